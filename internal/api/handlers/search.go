package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/cloo-solutions/lessonindex/internal/api"
	"github.com/cloo-solutions/lessonindex/internal/domain"
	"github.com/cloo-solutions/lessonindex/internal/service"
)

type SearchService interface {
	Search(ctx context.Context, query string, topK int, scope *service.Scope) ([]service.SearchResult, error)
}

type SearchHandler struct {
	svc SearchService
}

func NewSearchHandler(svc SearchService) *SearchHandler {
	return &SearchHandler{svc: svc}
}

type SearchRequest struct {
	Query       string   `json:"query"`
	TopK        int      `json:"top_k,omitempty"`
	ResourceID  string   `json:"resource_id,omitempty"`
	ModuleID    string   `json:"module_id,omitempty"`
	SourceKind  string   `json:"source_kind,omitempty"`
	ResourceIDs []string `json:"resource_ids,omitempty"`
	ModuleIDs   []string `json:"module_ids,omitempty"`
}

type SearchResponse struct {
	Results []service.SearchResult `json:"results"`
	Count   int                    `json:"count"`
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	sourceKind := domain.SourceKind(strings.ToLower(req.SourceKind))
	if sourceKind != "" && sourceKind != domain.SourceKindVideo && sourceKind != domain.SourceKindDocument {
		api.Error(w, http.StatusBadRequest, "invalid source_kind")
		return
	}

	var scope *service.Scope
	if req.ResourceID != "" || req.ModuleID != "" || sourceKind != "" || len(req.ResourceIDs) > 0 || len(req.ModuleIDs) > 0 {
		scope = &service.Scope{
			Equals: domain.MetadataFilter{
				ResourceID: req.ResourceID,
				ModuleID:   req.ModuleID,
				SourceKind: sourceKind,
			},
			ResourceIDs: req.ResourceIDs,
			ModuleIDs:   req.ModuleIDs,
		}
	}

	results, err := h.svc.Search(r.Context(), req.Query, req.TopK, scope)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, SearchResponse{
		Results: results,
		Count:   len(results),
	})
}
