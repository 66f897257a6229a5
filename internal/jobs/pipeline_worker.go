package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cloo-solutions/lessonindex/internal/domain"
	"github.com/cloo-solutions/lessonindex/internal/logger"
	"github.com/cloo-solutions/lessonindex/internal/service"
	"github.com/cloo-solutions/lessonindex/internal/telemetry"
	"github.com/panjf2000/ants/v2"
)

const (
	// DefaultConcurrency bounds how many attempts a worker runs at once
	DefaultConcurrency = 4
	// DefaultDequeueWait is how long one poll blocks on an empty queue
	DefaultDequeueWait = time.Second
)

// TaskSource yields queued processing tasks. A nil task means the queue
// was empty for the whole wait.
type TaskSource interface {
	Dequeue(ctx context.Context, wait time.Duration) (*domain.ProcessingTask, error)
}

// PipelineWorker pulls processing tasks off the broker and runs each
// attempt on a bounded goroutine pool.
type PipelineWorker struct {
	source      TaskSource
	runner      service.PipelineRunner
	pool        *ants.Pool
	inflight    atomic.Int32
	dequeueWait time.Duration
	log         *logger.Logger
}

// NewPipelineWorker creates a PipelineWorker with the given concurrency.
func NewPipelineWorker(source TaskSource, runner service.PipelineRunner, concurrency int, log *logger.Logger) (*PipelineWorker, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if log == nil {
		log = logger.NewNop()
	}
	log = log.With("component", "pipeline_worker")

	pool, err := ants.NewPool(concurrency,
		ants.WithPanicHandler(func(p interface{}) {
			log.Error("pipeline task panicked", "panic", fmt.Sprint(p))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}

	return &PipelineWorker{
		source:      source,
		runner:      runner,
		pool:        pool,
		dequeueWait: DefaultDequeueWait,
		log:         log,
	}, nil
}

// ProcessJobs implements the JobProcessor interface. It takes tasks until
// the pool is saturated or the queue is empty.
func (w *PipelineWorker) ProcessJobs(ctx context.Context) error {
	for w.Running() < w.pool.Cap() {
		if ctx.Err() != nil {
			return nil
		}

		task, err := w.source.Dequeue(ctx, w.dequeueWait)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("failed to dequeue task: %w", err)
		}
		if task == nil {
			return nil
		}

		if err := w.submit(ctx, *task); err != nil {
			return err
		}
	}
	return nil
}

func (w *PipelineWorker) submit(ctx context.Context, task domain.ProcessingTask) error {
	runCtx := telemetry.WithAttemptScope(context.WithoutCancel(ctx), task.ResourceID, task.AttemptID)
	w.inflight.Add(1)
	err := w.pool.Submit(func() {
		defer w.inflight.Add(-1)
		out, err := w.runner.Run(runCtx, task)
		switch {
		case out.Superseded:
			w.log.Info("attempt superseded", "resource_id", task.ResourceID, "attempt_id", task.AttemptID)
		case err != nil:
			w.log.Warn("attempt failed", "resource_id", task.ResourceID, "attempt_id", task.AttemptID, "error", err)
		default:
			w.log.Info("attempt complete",
				"resource_id", task.ResourceID,
				"attempt_id", task.AttemptID,
				"chunks", out.ChunksIndexed,
				"elapsed", out.Elapsed.String(),
			)
		}
	})
	if err != nil {
		w.inflight.Add(-1)
		// the task was already popped, so the resource stays PENDING until redispatched
		w.log.Error("failed to submit task", "resource_id", task.ResourceID, "attempt_id", task.AttemptID, "error", err)
		return fmt.Errorf("failed to submit task: %w", err)
	}
	return nil
}

// Running returns the number of attempts in flight. Idle pool goroutines
// are not counted.
func (w *PipelineWorker) Running() int {
	return int(w.inflight.Load())
}

// Shutdown waits up to timeout for in-flight attempts, then releases the pool.
func (w *PipelineWorker) Shutdown(timeout time.Duration) error {
	if err := w.pool.ReleaseTimeout(timeout); err != nil {
		return fmt.Errorf("worker pool did not drain: %w", err)
	}
	return nil
}
