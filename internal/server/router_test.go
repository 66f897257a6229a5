package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cloo-solutions/lessonindex/internal/api/handlers"
	"github.com/cloo-solutions/lessonindex/internal/domain"
	"github.com/cloo-solutions/lessonindex/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
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
	return m.Called(ctx, id).Error(0)
}

type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) StartProcessing(ctx context.Context, req service.StartRequest) (*service.DispatchResult, error) {
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

type MockReindexer struct {
	mock.Mock
}

func (m *MockReindexer) Reindex(ctx context.Context, resourceID string) (service.Outcome, error) {
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

type routerFixture struct {
	router     http.Handler
	resources  *MockResourceService
	dispatcher *MockDispatcher
	status     *MockStatusService
	reindexer  *MockReindexer
	search     *MockSearchService
}

func setupRouter(checks map[string]HealthCheck) *routerFixture {
	f := &routerFixture{
		resources:  new(MockResourceService),
		dispatcher: new(MockDispatcher),
		status:     new(MockStatusService),
		reindexer:  new(MockReindexer),
		search:     new(MockSearchService),
	}
	f.router = NewRouter(RouterConfig{
		ResourceHandler: handlers.NewResourceHandler(f.resources, f.dispatcher, f.status, f.reindexer),
		SearchHandler:   handlers.NewSearchHandler(f.search),
		UploadHandler:   handlers.NewUploadHandler(nil),
		HealthChecks:    checks,
	})
	return f
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp["data"].(map[string]interface{})
}

func TestRouter_HealthEndpoint(t *testing.T) {
	f := setupRouter(map[string]HealthCheck{
		"database": func(ctx context.Context) error { return nil },
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "ok", data["status"])
	assert.Equal(t, "ok", data["database"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouter_HealthEndpoint_Degraded(t *testing.T) {
	f := setupRouter(map[string]HealthCheck{
		"database": func(ctx context.Context) error { return errors.New("connection refused") },
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "degraded", data["status"])
	assert.Equal(t, "connection refused", data["database"])
}

func TestRouter_StatusRoute(t *testing.T) {
	f := setupRouter(nil)
	f.status.On("GetStatus", mock.Anything, "res-1").Return(domain.StatusView{
		ResourceID: "res-1",
		Status:     domain.ResourceStatusComplete,
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/resources/res-1/status", nil)
	w := httptest.NewRecorder()

	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "COMPLETE", decodeData(t, w)["status"])
	f.status.AssertExpectations(t)
}

func TestRouter_ProcessRoute(t *testing.T) {
	f := setupRouter(nil)
	resource := domain.NewResource("res-1", "course-1", "", "notes", domain.ResourceTypeTXT, "/data/notes.txt", domain.StorageKindLocal, time.Now().UTC())
	f.resources.On("Get", mock.Anything, "res-1").Return(resource, nil)
	f.dispatcher.On("StartProcessing", mock.Anything, mock.MatchedBy(func(req service.StartRequest) bool {
		return req.ResourceID == "res-1" && req.Mode == domain.DispatchModeQueued
	})).Return(&service.DispatchResult{
		ResourceID: "res-1",
		Mode:       domain.DispatchModeQueued,
		Status:     domain.ResourceStatusPending,
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/resources/res-1/process", nil)
	w := httptest.NewRecorder()

	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	f.dispatcher.AssertExpectations(t)
}

func TestRouter_CourseListingRoute(t *testing.T) {
	f := setupRouter(nil)
	f.resources.On("ListByCourse", mock.Anything, mock.MatchedBy(func(in service.ListResourcesInput) bool {
		return in.CourseID == "course-9"
	})).Return(&service.ListResourcesOutput{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/courses/course-9/resources", nil)
	w := httptest.NewRecorder()

	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	f.resources.AssertExpectations(t)
}

func TestRouter_SearchRoute(t *testing.T) {
	f := setupRouter(nil)
	f.search.On("Search", mock.Anything, "closures", 5, (*service.Scope)(nil)).Return([]service.SearchResult{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{"query":"closures","top_k":5}`))
	w := httptest.NewRecorder()

	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	f.search.AssertExpectations(t)
}

func TestRouter_UploadsWithoutObjectStore(t *testing.T) {
	f := setupRouter(nil)

	req := httptest.NewRequest(http.MethodPost, "/uploads", strings.NewReader(`{"course_id":"c","filename":"a.pdf"}`))
	w := httptest.NewRecorder()

	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestRouter_UnknownRoute(t *testing.T) {
	f := setupRouter(nil)

	req := httptest.NewRequest(http.MethodGet, "/knowledge", nil)
	w := httptest.NewRecorder()

	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
