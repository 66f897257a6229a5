package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/lessonindex/internal/api/handlers"
	"github.com/cloo-solutions/lessonindex/internal/database"
	"github.com/cloo-solutions/lessonindex/internal/logger"
	"github.com/cloo-solutions/lessonindex/internal/server"
	"github.com/spf13/cobra"
)

const defaultMigrationsURL = "file://migrations"

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the lessonindex API server with an in-process queue worker",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().Bool("no-worker", false, "Do not consume the processing queue in this process")
	cmd.Flags().String("migrations", defaultMigrationsURL, "Migration source URL")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()
	log := app.Log
	cfg := app.Config

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		source, _ := cmd.Flags().GetString("migrations")
		if err := runMigrations(cfg.DatabaseURL, source, log); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	var uploads handlers.UploadURLGenerator
	if app.Objects != nil {
		if err := app.Objects.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Info("S3 bucket ready", "bucket", cfg.S3Bucket)
		uploads = app.Objects
	}

	noWorker, _ := cmd.Flags().GetBool("no-worker")
	var worker *queueWorker
	if app.Broker != nil && !noWorker {
		worker, err = startQueueWorker(ctx, app)
		if err != nil {
			return err
		}
	}

	router := server.NewRouter(server.RouterConfig{
		ResourceHandler: handlers.NewResourceHandler(app.Resources, app.Dispatcher, app.Tracker, app.Orchestrator),
		SearchHandler:   handlers.NewSearchHandler(app.Retriever),
		UploadHandler:   handlers.NewUploadHandler(uploads),
		HealthChecks: map[string]server.HealthCheck{
			"database": app.Pool.Ping,
		},
		Logger: log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("starting server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}
	log.Info("shutting down")

	if worker != nil {
		worker.stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server exited")
	return nil
}

func runMigrations(databaseURL, sourceURL string, log *logger.Logger) error {
	result, err := database.Migrate(databaseURL, sourceURL)
	if err != nil {
		return err
	}

	switch {
	case result.Empty:
		log.Info("migrations: no migrations applied")
	case result.Applied:
		log.Info("migrations: applied successfully", "version", result.Version)
	default:
		log.Info("migrations: database is up to date", "version", result.Version)
	}
	return nil
}
