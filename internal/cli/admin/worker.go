package admin

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/lessonindex/internal/config"
	"github.com/cloo-solutions/lessonindex/internal/jobs"
	"github.com/spf13/cobra"
)

const workerDrainTimeout = 2 * time.Minute

// WorkerCmd returns the worker command
func WorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume the processing queue",
		Long:  "Run a standalone worker that pulls processing tasks from Redis and runs them",
		RunE:  runWorker,
	}

	cmd.Flags().IntP("concurrency", "c", 0, "Attempts to run at once (defaults to WORKER_CONCURRENCY)")

	return cmd
}

func runWorker(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	if app.Broker == nil {
		return fmt.Errorf("worker requires a task broker: set %s_REDIS_URL", config.EnvPrefix)
	}
	if err := app.Broker.Ping(ctx); err != nil {
		return fmt.Errorf("task broker unreachable: %w", err)
	}

	if c, _ := cmd.Flags().GetInt("concurrency"); c > 0 {
		app.Config.WorkerConcurrency = c
	}

	worker, err := startQueueWorker(ctx, app)
	if err != nil {
		return err
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	app.Log.Info("shutting down worker")

	worker.stop()
	return nil
}

// queueWorker is a poll loop feeding a PipelineWorker
type queueWorker struct {
	app      *App
	pipeline *jobs.PipelineWorker
	loop     *jobs.Worker
}

func startQueueWorker(ctx context.Context, app *App) (*queueWorker, error) {
	pipeline, err := jobs.NewPipelineWorker(app.Broker, app.Orchestrator, app.Config.WorkerConcurrency, app.Log)
	if err != nil {
		return nil, err
	}

	loop := jobs.NewWorker(pipeline, app.Config.WorkerPollInterval, app.Log)
	go loop.Start(ctx)
	app.Log.Info("queue worker started",
		"queue", app.Config.QueueName,
		"concurrency", app.Config.WorkerConcurrency,
	)

	return &queueWorker{app: app, pipeline: pipeline, loop: loop}, nil
}

// stop ends polling, then waits for in-flight attempts.
func (w *queueWorker) stop() {
	w.loop.Stop()
	if err := w.pipeline.Shutdown(workerDrainTimeout); err != nil {
		w.app.Log.Warn("worker shutdown incomplete", "error", err)
	}
}
