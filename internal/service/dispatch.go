package service

import (
	"context"
	"errors"
	"time"

	"github.com/cloo-solutions/lessonindex/internal/domain"
	"github.com/cloo-solutions/lessonindex/internal/logger"
	"github.com/cloo-solutions/lessonindex/internal/telemetry"
)

// BrokerUnavailablePrefix starts the error stored when a queued dispatch
// cannot reach the task broker.
const BrokerUnavailablePrefix = "Processing service unavailable"

// TaskBroker hands tasks to out-of-band workers. Enqueue must check broker
// health synchronously and fail when it is unreachable.
type TaskBroker interface {
	Enqueue(ctx context.Context, task domain.ProcessingTask) error
}

// PipelineRunner runs one processing attempt to a terminal state
type PipelineRunner interface {
	Run(ctx context.Context, task domain.ProcessingTask) (Outcome, error)
}

// StartRequest asks for a resource to be processed
type StartRequest struct {
	ResourceID  string
	Locator     string
	StorageKind domain.StorageKind
	Type        domain.ResourceType
	Mode        domain.DispatchMode
}

// DispatchResult is what the caller of StartProcessing observes
type DispatchResult struct {
	ResourceID string                `json:"resource_id"`
	AttemptID  string                `json:"attempt_id"`
	Mode       domain.DispatchMode   `json:"mode"`
	Status     domain.ResourceStatus `json:"status"`
	Error      string                `json:"error,omitempty"`
	Outcome    *Outcome              `json:"outcome,omitempty"`
}

// Dispatcher decides where an attempt runs: on the task broker, or inline
// on the caller's goroutine.
type Dispatcher struct {
	tracker *StatusTracker
	runner  PipelineRunner
	broker  TaskBroker
	log     *logger.Logger
	now     func() time.Time
}

// NewDispatcher creates a new Dispatcher. A nil broker means no queue is
// configured and QUEUED requests run inline.
func NewDispatcher(tracker *StatusTracker, runner PipelineRunner, broker TaskBroker, log *logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.NewNop()
	}
	return &Dispatcher{
		tracker: tracker,
		runner:  runner,
		broker:  broker,
		log:     log.With("component", "dispatcher"),
		now:     time.Now,
	}
}

// StartProcessing begins a new attempt for the resource.
//
// QUEUED returns once the task is on the broker, with status PENDING. When
// the broker cannot be reached the resource is marked FAILED immediately and
// the FAILED result is returned without an error. SYNC returns after the
// attempt reaches a terminal state, even if ctx is cancelled meanwhile, and
// also returns the stage error.
func (d *Dispatcher) StartProcessing(ctx context.Context, req StartRequest) (*DispatchResult, error) {
	if req.ResourceID == "" || req.Locator == "" {
		return nil, domain.ErrMissingRequiredField
	}
	if !req.Type.IsVideo() && !req.Type.IsDocument() {
		return nil, domain.ErrInvalidResourceType
	}
	if req.StorageKind == "" {
		req.StorageKind = domain.StorageKindLocal
	}
	mode := req.Mode
	if mode == "" {
		mode = domain.DispatchModeQueued
	}
	if mode != domain.DispatchModeQueued && mode != domain.DispatchModeSync {
		return nil, domain.ErrInvalidDispatchMode
	}

	ctx, span := telemetry.StartSpan(ctx, "Dispatcher.StartProcessing", telemetry.SpanAttributes{
		ResourceID: req.ResourceID,
		Operation:  string(mode),
	})
	defer span.End()

	attemptID, err := d.tracker.BeginAttempt(ctx, req.ResourceID)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	task := domain.ProcessingTask{
		ResourceID:  req.ResourceID,
		Locator:     req.Locator,
		StorageKind: req.StorageKind,
		Type:        req.Type,
		AttemptID:   attemptID,
		EnqueuedAt:  d.now().UTC(),
	}
	result := &DispatchResult{ResourceID: req.ResourceID, AttemptID: attemptID, Mode: mode}

	if mode == domain.DispatchModeQueued && d.broker == nil {
		d.log.Debug("no task broker configured, running inline", "resource_id", req.ResourceID)
		mode = domain.DispatchModeSync
		result.Mode = mode
	}

	if mode == domain.DispatchModeSync {
		// An inline attempt runs to a terminal state even if the caller goes away.
		out, runErr := d.runner.Run(context.WithoutCancel(ctx), task)
		result.Status = out.Status
		result.Error = out.Error
		result.Outcome = &out
		return result, runErr
	}

	if err := d.broker.Enqueue(ctx, task); err != nil {
		msg := BrokerUnavailablePrefix + ": " + brokerCause(err)
		d.log.Warn("task broker unavailable, failing resource", "resource_id", req.ResourceID, "error", err)
		telemetry.CaptureError(ctx, err)

		if termErr := d.tracker.SetTerminal(context.WithoutCancel(ctx), req.ResourceID, attemptID, domain.ResourceStatusFailed, msg, 0); termErr != nil {
			span.SetError(termErr)
			return nil, termErr
		}
		result.Status = domain.ResourceStatusFailed
		result.Error = msg
		return result, nil
	}

	d.log.Info("task enqueued", "resource_id", req.ResourceID, "attempt_id", attemptID)
	result.Status = domain.ResourceStatusPending
	return result, nil
}

func brokerCause(err error) string {
	var de *domain.DomainError
	if errors.As(err, &de) && de.Code == domain.ErrCodeBrokerUnavailable && de.Err != nil {
		return de.Err.Error()
	}
	return err.Error()
}
