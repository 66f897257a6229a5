package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"path"
	"strings"

	"github.com/cloo-solutions/lessonindex/internal/api"
	"github.com/cloo-solutions/lessonindex/internal/domain"
	"github.com/google/uuid"
)

// UploadURLGenerator presigns direct uploads to the object store
type UploadURLGenerator interface {
	GenerateUploadURL(ctx context.Context, key string, contentType string) (string, error)
}

type UploadHandler struct {
	urls  UploadURLGenerator
	newID func() string
}

// NewUploadHandler creates an UploadHandler. A nil generator means no object
// store is configured and every request answers 501.
func NewUploadHandler(urls UploadURLGenerator) *UploadHandler {
	return &UploadHandler{urls: urls, newID: uuid.NewString}
}

type InitUploadRequest struct {
	CourseID    string `json:"course_id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

type InitUploadResponse struct {
	ResourceID  string `json:"resource_id"`
	Type        string `json:"type"`
	StorageKey  string `json:"storage_locator"`
	StorageKind string `json:"storage_kind"`
	UploadURL   string `json:"upload_url"`
}

// InitUpload reserves a resource id and returns a presigned PUT URL. The
// caller registers the resource with the returned id and locator once the
// bytes are stored.
func (h *UploadHandler) InitUpload(w http.ResponseWriter, r *http.Request) {
	if h.urls == nil {
		api.Error(w, http.StatusNotImplemented, "remote uploads not configured")
		return
	}

	var req InitUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.CourseID == "" {
		api.Error(w, http.StatusBadRequest, "course_id is required")
		return
	}
	if req.Filename == "" {
		api.Error(w, http.StatusBadRequest, "filename is required")
		return
	}

	ext := strings.ToLower(path.Ext(req.Filename))
	resourceType, err := domain.ParseResourceType(ext)
	if err != nil {
		api.Error(w, http.StatusBadRequest, "unsupported file type")
		return
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	resourceID := h.newID()
	key := path.Join("courses", req.CourseID, resourceID+ext)

	url, err := h.urls.GenerateUploadURL(r.Context(), key, contentType)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, InitUploadResponse{
		ResourceID:  resourceID,
		Type:        string(resourceType),
		StorageKey:  key,
		StorageKind: string(domain.StorageKindRemote),
		UploadURL:   url,
	})
}
