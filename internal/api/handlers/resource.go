package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cloo-solutions/lessonindex/internal/api"
	"github.com/cloo-solutions/lessonindex/internal/domain"
	"github.com/cloo-solutions/lessonindex/internal/service"
	"github.com/go-chi/chi/v5"
)

type ResourceService interface {
	Register(ctx context.Context, input service.RegisterInput) (*domain.Resource, error)
	Get(ctx context.Context, id string) (*domain.Resource, error)
	ListByCourse(ctx context.Context, input service.ListResourcesInput) (*service.ListResourcesOutput, error)
	Delete(ctx context.Context, id string) error
}

type ProcessingService interface {
	StartProcessing(ctx context.Context, req service.StartRequest) (*service.DispatchResult, error)
}

type StatusService interface {
	GetStatus(ctx context.Context, resourceID string) (domain.StatusView, error)
}

type ReindexService interface {
	Reindex(ctx context.Context, resourceID string) (service.Outcome, error)
}

type ResourceHandler struct {
	resources ResourceService
	processor ProcessingService
	status    StatusService
	reindexer ReindexService
}

func NewResourceHandler(resources ResourceService, processor ProcessingService, status StatusService, reindexer ReindexService) *ResourceHandler {
	return &ResourceHandler{
		resources: resources,
		processor: processor,
		status:    status,
		reindexer: reindexer,
	}
}

type CreateResourceRequest struct {
	ID          string `json:"id,omitempty"`
	CourseID    string `json:"course_id"`
	ModuleID    string `json:"module_id,omitempty"`
	Title       string `json:"title,omitempty"`
	Type        string `json:"type"`
	Locator     string `json:"storage_locator"`
	StorageKind string `json:"storage_kind,omitempty"`
	Published   bool   `json:"published,omitempty"`
	// Process starts an attempt right after registration
	Process bool   `json:"process,omitempty"`
	Mode    string `json:"mode,omitempty"`
}

type ProcessResourceRequest struct {
	Mode string `json:"mode"`
}

type ResourceResponse struct {
	ID              string  `json:"id"`
	CourseID        string  `json:"course_id"`
	ModuleID        string  `json:"module_id,omitempty"`
	Title           string  `json:"title"`
	Type            string  `json:"type"`
	Locator         string  `json:"storage_locator"`
	StorageKind     string  `json:"storage_kind"`
	Status          string  `json:"status"`
	Published       bool    `json:"published"`
	DurationSeconds float64 `json:"duration_seconds"`
	Error           string  `json:"error,omitempty"`
	UploadedAt      string  `json:"uploaded_at"`
	ProcessedAt     *string `json:"processed_at,omitempty"`
}

type CreateResourceResponse struct {
	Resource *ResourceResponse       `json:"resource"`
	Dispatch *service.DispatchResult `json:"dispatch,omitempty"`
}

type ResourceListResponse struct {
	Items   []*ResourceResponse `json:"items"`
	Cursor  string              `json:"cursor,omitempty"`
	HasMore bool                `json:"has_more"`
}

func resourceToResponse(r *domain.Resource) *ResourceResponse {
	resp := &ResourceResponse{
		ID:              r.ID,
		CourseID:        r.CourseID,
		ModuleID:        r.ModuleID,
		Title:           r.Title,
		Type:            string(r.Type),
		Locator:         r.Locator,
		StorageKind:     string(r.StorageKind),
		Status:          string(r.Status),
		Published:       r.Published,
		DurationSeconds: r.DurationSeconds,
		Error:           r.Error,
		UploadedAt:      r.UploadedAt.UTC().Format(time.RFC3339),
	}
	if r.ProcessedAt != nil {
		processed := r.ProcessedAt.UTC().Format(time.RFC3339)
		resp.ProcessedAt = &processed
	}
	return resp
}

func (h *ResourceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateResourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.CourseID == "" {
		api.Error(w, http.StatusBadRequest, "course_id is required")
		return
	}
	if req.Locator == "" {
		api.Error(w, http.StatusBadRequest, "storage_locator is required")
		return
	}

	resourceType, err := domain.ParseResourceType(req.Type)
	if err != nil {
		api.Error(w, http.StatusBadRequest, "invalid resource type")
		return
	}

	mode, err := domain.ParseDispatchMode(req.Mode)
	if err != nil {
		api.Error(w, http.StatusBadRequest, "invalid dispatch mode")
		return
	}

	resource, err := h.resources.Register(r.Context(), service.RegisterInput{
		ID:          req.ID,
		CourseID:    req.CourseID,
		ModuleID:    req.ModuleID,
		Title:       req.Title,
		Type:        resourceType,
		Locator:     req.Locator,
		StorageKind: domain.StorageKind(req.StorageKind),
		Published:   req.Published,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := CreateResourceResponse{Resource: resourceToResponse(resource)}
	if !req.Process {
		api.Success(w, http.StatusCreated, resp)
		return
	}

	result, err := h.processor.StartProcessing(r.Context(), startRequest(resource, mode))
	if result == nil {
		api.HandleError(w, err)
		return
	}
	resp.Dispatch = result
	resp.Resource.Status = string(result.Status)
	resp.Resource.Error = result.Error

	api.Success(w, http.StatusCreated, resp)
}

func (h *ResourceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	resource, err := h.resources.Get(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, resourceToResponse(resource))
}

func (h *ResourceHandler) ListByCourse(w http.ResponseWriter, r *http.Request) {
	courseID := chi.URLParam(r, "courseID")
	if courseID == "" {
		api.Error(w, http.StatusBadRequest, "course id is required")
		return
	}

	cursor := r.URL.Query().Get("cursor")
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	output, err := h.resources.ListByCourse(r.Context(), service.ListResourcesInput{
		CourseID: courseID,
		Cursor:   cursor,
		Limit:    limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*ResourceResponse, len(output.Items))
	for i, res := range output.Items {
		items[i] = resourceToResponse(res)
	}

	api.Success(w, http.StatusOK, ResourceListResponse{
		Items:   items,
		Cursor:  output.Cursor,
		HasMore: output.HasMore,
	})
}

// Process starts a new attempt. QUEUED answers 202 once the task is on the
// broker; SYNC answers 200 after the attempt finished. A FAILED attempt is
// reported in the body, not as an HTTP error.
func (h *ResourceHandler) Process(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	var req ProcessResourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Mode == "" {
		req.Mode = r.URL.Query().Get("mode")
	}

	mode, err := domain.ParseDispatchMode(req.Mode)
	if err != nil {
		api.Error(w, http.StatusBadRequest, "invalid dispatch mode")
		return
	}

	resource, err := h.resources.Get(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	result, err := h.processor.StartProcessing(r.Context(), startRequest(resource, mode))
	if result == nil {
		api.HandleError(w, err)
		return
	}

	status := http.StatusOK
	if result.Mode == domain.DispatchModeQueued && result.Status == domain.ResourceStatusPending {
		status = http.StatusAccepted
	}
	api.Success(w, status, result)
}

func (h *ResourceHandler) Status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	view, err := h.status.GetStatus(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, view)
}

func (h *ResourceHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	out, err := h.reindexer.Reindex(r.Context(), id)
	if err != nil && out.Status != domain.ResourceStatusFailed {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, out)
}

func (h *ResourceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.resources.Delete(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func startRequest(r *domain.Resource, mode domain.DispatchMode) service.StartRequest {
	return service.StartRequest{
		ResourceID:  r.ID,
		Locator:     r.Locator,
		StorageKind: r.StorageKind,
		Type:        r.Type,
		Mode:        mode,
	}
}
