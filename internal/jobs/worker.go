package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/cloo-solutions/lessonindex/internal/logger"
)

// maxBackoffFactor bounds how far the poll interval stretches after
// consecutive failures.
const maxBackoffFactor = 8

// JobProcessor drains whatever work is currently queued
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker polls a JobProcessor until stopped. The first poll runs
// immediately; each consecutive failure doubles the delay up to
// maxBackoffFactor times the base interval.
type Worker struct {
	processor    JobProcessor
	pollInterval time.Duration
	log          *logger.Logger
	stopOnce     sync.Once
	stopChan     chan struct{}
	doneChan     chan struct{}
}

// NewWorker creates a poll loop around processor
func NewWorker(processor JobProcessor, pollInterval time.Duration, log *logger.Logger) *Worker {
	if log == nil {
		log = logger.NewNop()
	}
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Worker{
		processor:    processor,
		pollInterval: pollInterval,
		log:          log.With("component", "poll_loop"),
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Start blocks until ctx is cancelled or Stop is called
func (w *Worker) Start(ctx context.Context) {
	defer close(w.doneChan)

	w.log.Info("poll loop started", "poll_interval", w.pollInterval.String())

	failures := 0
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("poll loop stopped: context cancelled")
			return
		case <-w.stopChan:
			w.log.Info("poll loop stopped: stop signal received")
			return
		case <-timer.C:
		}

		if err := w.processor.ProcessJobs(ctx); err != nil {
			failures++
			w.log.Error("error processing jobs", "error", err, "consecutive_failures", failures)
		} else {
			failures = 0
		}
		timer.Reset(w.nextDelay(failures))
	}
}

func (w *Worker) nextDelay(failures int) time.Duration {
	factor := 1
	for i := 0; i < failures && factor < maxBackoffFactor; i++ {
		factor *= 2
	}
	return w.pollInterval * time.Duration(factor)
}

// Stop signals the loop and waits for it to exit. Safe to call more than once.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
	})
	<-w.doneChan
	w.log.Info("poll loop shutdown complete")
}
