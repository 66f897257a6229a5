package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/cloo-solutions/lessonindex/internal/domain"
	"github.com/cloo-solutions/lessonindex/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
)

type MockResourceService struct {
	mock.Mock
}

func (m *MockResourceService) Register(ctx context.Context, input service.RegisterInput) (*domain.Resource, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Resource), args.Error(1)
}

func (m *MockResourceService) Get(ctx context.Context, id string) (*domain.Resource, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Resource), args.Error(1)
}

func (m *MockResourceService) ListByCourse(ctx context.Context, input service.ListResourcesInput) (*service.ListResourcesOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListResourcesOutput), args.Error(1)
}

func (m *MockResourceService) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockProcessingService struct {
	mock.Mock
}

func (m *MockProcessingService) StartProcessing(ctx context.Context, req service.StartRequest) (*service.DispatchResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DispatchResult), args.Error(1)
}

type MockStatusService struct {
	mock.Mock
}

func (m *MockStatusService) GetStatus(ctx context.Context, resourceID string) (domain.StatusView, error) {
	args := m.Called(ctx, resourceID)
	return args.Get(0).(domain.StatusView), args.Error(1)
}

type MockReindexService struct {
	mock.Mock
}

func (m *MockReindexService) Reindex(ctx context.Context, resourceID string) (service.Outcome, error) {
	args := m.Called(ctx, resourceID)
	return args.Get(0).(service.Outcome), args.Error(1)
}

type MockSearchService struct {
	mock.Mock
}

func (m *MockSearchService) Search(ctx context.Context, query string, topK int, scope *service.Scope) ([]service.SearchResult, error) {
	args := m.Called(ctx, query, topK, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]service.SearchResult), args.Error(1)
}

type MockUploadURLGenerator struct {
	mock.Mock
}

func (m *MockUploadURLGenerator) GenerateUploadURL(ctx context.Context, key string, contentType string) (string, error) {
	args := m.Called(ctx, key, contentType)
	return args.String(0), args.Error(1)
}

func newTestResource() *domain.Resource {
	return domain.NewResource(
		"res-123", "course-1", "mod-1", "Week 1",
		domain.ResourceTypePDF, "/data/week1.pdf", domain.StorageKindLocal,
		time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	)
}

func requestWithParams(method, url string, body []byte, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, url, bytes.NewReader(body))
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}
