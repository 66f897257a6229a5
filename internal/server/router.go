package server

import (
	"context"
	"net/http"
	"time"

	"github.com/cloo-solutions/lessonindex/internal/api"
	"github.com/cloo-solutions/lessonindex/internal/api/handlers"
	"github.com/cloo-solutions/lessonindex/internal/api/middleware"
	"github.com/cloo-solutions/lessonindex/internal/logger"
	"github.com/go-chi/chi/v5"
)

// HealthCheck reports whether a dependency is reachable
type HealthCheck func(ctx context.Context) error

type RouterConfig struct {
	ResourceHandler *handlers.ResourceHandler
	SearchHandler   *handlers.SearchHandler
	UploadHandler   *handlers.UploadHandler
	HealthChecks    map[string]HealthCheck
	Logger          *logger.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog(cfg.Logger))
	r.Use(middleware.MaxBodyBytes(middleware.DefaultMaxBodyBytes))

	r.Get("/health", healthHandler(cfg.HealthChecks))

	r.Route("/resources", func(r chi.Router) {
		r.Post("/", cfg.ResourceHandler.Create)
		r.Get("/{id}", cfg.ResourceHandler.Get)
		r.Delete("/{id}", cfg.ResourceHandler.Delete)
		r.Post("/{id}/process", cfg.ResourceHandler.Process)
		r.Post("/{id}/reindex", cfg.ResourceHandler.Reindex)
		r.Get("/{id}/status", cfg.ResourceHandler.Status)
	})

	r.Get("/courses/{courseID}/resources", cfg.ResourceHandler.ListByCourse)
	r.Post("/search", cfg.SearchHandler.Search)
	r.Post("/uploads", cfg.UploadHandler.InitUpload)

	return r
}

// healthHandler answers 200 when every check passes and 503 otherwise.
func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		report := map[string]string{"status": "ok"}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				report[name] = err.Error()
				report["status"] = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			report[name] = "ok"
		}

		api.Success(w, status, report)
	}
}
