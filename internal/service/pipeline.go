package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloo-solutions/lessonindex/internal/domain"
	"github.com/cloo-solutions/lessonindex/internal/logger"
	"github.com/cloo-solutions/lessonindex/internal/telemetry"
)

// Extractor turns a stored artifact into a transcript. Only a missing or
// unsupported source is an error; degraded extraction lowers confidence.
type Extractor interface {
	Extract(ctx context.Context, locator string, kind domain.StorageKind, resourceType domain.ResourceType) (*domain.Transcript, error)
}

// ResourceReader loads resource records
type ResourceReader interface {
	GetByID(ctx context.Context, id string) (*domain.Resource, error)
}

// TranscriptRepository stores the single live transcript of a resource
type TranscriptRepository interface {
	Upsert(ctx context.Context, transcript *domain.Transcript) error
	GetByResourceID(ctx context.Context, resourceID string) (*domain.Transcript, error)
	DeleteByResourceID(ctx context.Context, resourceID string) error
}

// ContentIndexer writes and purges chunk embeddings
type ContentIndexer interface {
	Index(ctx context.Context, resourceID string, chunks []domain.Chunk) (int, error)
	Purge(ctx context.Context, resourceID string) (int64, error)
}

// VisualHook runs frame-level processing for videos. A nil hook is a no-op.
type VisualHook func(ctx context.Context, resource *domain.Resource, transcript *domain.Transcript) error

// Outcome summarises one processing attempt
type Outcome struct {
	ResourceID    string                `json:"resource_id"`
	AttemptID     string                `json:"attempt_id"`
	Status        domain.ResourceStatus `json:"status"`
	WordCount     int                   `json:"word_count"`
	ChunksIndexed int                   `json:"chunks_indexed"`
	Confidence    float64               `json:"confidence"`
	Superseded    bool                  `json:"superseded,omitempty"`
	Error         string                `json:"error,omitempty"`
	Elapsed       time.Duration         `json:"elapsed"`
}

// OrchestratorConfig wires the collaborators of an Orchestrator
type OrchestratorConfig struct {
	Tracker     *StatusTracker
	Resources   ResourceReader
	Extractor   Extractor
	Transcripts TranscriptRepository
	Indexer     ContentIndexer
	Chunking    ChunkConfig
	VisualHook  VisualHook
	Logger      *logger.Logger
}

// Orchestrator drives one resource through extraction, chunking, indexing
// and the terminal transition. It is the only place the stage order lives;
// the dispatcher and the queue worker both call Run.
type Orchestrator struct {
	tracker     *StatusTracker
	resources   ResourceReader
	extractor   Extractor
	transcripts TranscriptRepository
	indexer     ContentIndexer
	chunkCfg    ChunkConfig
	visualHook  VisualHook
	log         *logger.Logger
	now         func() time.Time
}

// NewOrchestrator creates a new Orchestrator instance
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	chunkCfg := cfg.Chunking
	if chunkCfg.MaxWords <= 0 {
		chunkCfg = DefaultChunkConfig()
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &Orchestrator{
		tracker:     cfg.Tracker,
		resources:   cfg.Resources,
		extractor:   cfg.Extractor,
		transcripts: cfg.Transcripts,
		indexer:     cfg.Indexer,
		chunkCfg:    chunkCfg,
		visualHook:  cfg.VisualHook,
		log:         log.With("component", "orchestrator"),
		now:         time.Now,
	}
}

// Run executes every stage for the task's attempt. Stage failures are
// recorded as FAILED and returned; a superseded attempt stops without
// further writes and returns domain.ErrAttemptSuperseded.
func (o *Orchestrator) Run(ctx context.Context, task domain.ProcessingTask) (out Outcome, err error) {
	started := o.now()
	out = Outcome{ResourceID: task.ResourceID, AttemptID: task.AttemptID}
	log := o.log.With("resource_id", task.ResourceID, "attempt_id", task.AttemptID)

	ctx, span := telemetry.StartSpan(ctx, "Orchestrator.Run", telemetry.SpanAttributes{
		ResourceID: task.ResourceID,
		AttemptID:  task.AttemptID,
		Operation:  "process",
	})
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during processing: %v", r)
			span.SetError(err)
			log.Error("pipeline panicked", "panic", r)
			out = o.fail(ctx, out, task, err)
		}
		out.Elapsed = o.now().Sub(started)
	}()

	if err := domain.ValidateProcessingTask(&task); err != nil {
		err = domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid processing task", err)
		if task.ResourceID == "" || task.AttemptID == "" {
			return out, err
		}
		log.Warn("rejecting invalid task", "error", err)
		return o.fail(ctx, out, task, err), err
	}

	resource, err := o.resources.GetByID(ctx, task.ResourceID)
	if errors.Is(err, domain.ErrResourceNotFound) {
		return out, err
	}
	if err != nil {
		err = fmt.Errorf("failed to load resource: %w", err)
		span.SetError(err)
		return o.fail(ctx, out, task, err), err
	}

	if err := o.stage(ctx, task, StageStarting); err != nil {
		return o.stop(ctx, out, task, err)
	}

	if err := o.stage(ctx, task, StageExtracting); err != nil {
		return o.stop(ctx, out, task, err)
	}
	transcript, err := o.extract(ctx, task)
	if err != nil {
		span.SetError(err)
		log.Warn("extraction failed", "error", err)
		return o.fail(ctx, out, task, err), err
	}
	out.WordCount = transcript.WordCount
	out.Confidence = transcript.Confidence

	transcript.ResourceID = task.ResourceID
	transcript.CreatedAt = o.now().UTC()
	if err := o.transcripts.Upsert(ctx, transcript); err != nil {
		err = fmt.Errorf("failed to persist transcript: %w", err)
		span.SetError(err)
		return o.fail(ctx, out, task, err), err
	}

	if err := o.stage(ctx, task, StageIndexing); err != nil {
		return o.stop(ctx, out, task, err)
	}
	indexed, err := o.index(ctx, resource, transcript)
	if err != nil {
		span.SetError(err)
		log.Warn("indexing failed, transcript kept", "error", err)
		return o.fail(ctx, out, task, err), err
	}
	out.ChunksIndexed = indexed

	if resource.Type.IsVideo() {
		if err := o.stage(ctx, task, StageVisual); err != nil {
			return o.stop(ctx, out, task, err)
		}
		if o.visualHook != nil {
			if err := o.visualHook(ctx, resource, transcript); err != nil {
				err = fmt.Errorf("visual processing failed: %w", err)
				span.SetError(err)
				return o.fail(ctx, out, task, err), err
			}
		}
	}

	if err := o.tracker.SetTerminal(context.WithoutCancel(ctx), task.ResourceID, task.AttemptID, domain.ResourceStatusComplete, "", transcript.DurationSeconds); err != nil {
		return o.stop(ctx, out, task, err)
	}
	out.Status = domain.ResourceStatusComplete

	log.Info("processing completed",
		"word_count", out.WordCount,
		"chunks_indexed", out.ChunksIndexed,
		"confidence", out.Confidence,
	)
	return out, nil
}

// Reindex rebuilds a resource's embeddings from its persisted transcript
// without extracting again. It runs as a new attempt and purges existing
// records first, so repeating it leaves one copy of each chunk.
func (o *Orchestrator) Reindex(ctx context.Context, resourceID string) (Outcome, error) {
	started := o.now()
	out := Outcome{ResourceID: resourceID}

	resource, err := o.resources.GetByID(ctx, resourceID)
	if err != nil {
		return out, err
	}
	transcript, err := o.transcripts.GetByResourceID(ctx, resourceID)
	if err != nil {
		return out, err
	}

	attemptID, err := o.tracker.BeginAttempt(ctx, resourceID)
	if err != nil {
		return out, err
	}
	out.AttemptID = attemptID
	task := domain.ProcessingTask{ResourceID: resourceID, AttemptID: attemptID}

	ctx, span := telemetry.StartSpan(ctx, "Orchestrator.Reindex", telemetry.SpanAttributes{
		ResourceID: resourceID,
		AttemptID:  attemptID,
		Operation:  "reindex",
	})
	defer span.End()

	if err := o.stage(ctx, task, StageIndexing); err != nil {
		return o.stop(ctx, out, task, err)
	}
	if _, err := o.indexer.Purge(ctx, resourceID); err != nil {
		span.SetError(err)
		return o.fail(ctx, out, task, err), err
	}
	indexed, err := o.index(ctx, resource, transcript)
	if err != nil {
		span.SetError(err)
		return o.fail(ctx, out, task, err), err
	}

	if err := o.tracker.SetTerminal(context.WithoutCancel(ctx), resourceID, attemptID, domain.ResourceStatusComplete, "", transcript.DurationSeconds); err != nil {
		return o.stop(ctx, out, task, err)
	}

	out.Status = domain.ResourceStatusComplete
	out.WordCount = transcript.WordCount
	out.Confidence = transcript.Confidence
	out.ChunksIndexed = indexed
	out.Elapsed = o.now().Sub(started)
	return out, nil
}

func (o *Orchestrator) stage(ctx context.Context, task domain.ProcessingTask, stage Stage) error {
	telemetry.AddBreadcrumb(ctx, "pipeline", stage.Note)
	o.log.Debug("stage", "resource_id", task.ResourceID, "progress", stage.Progress, "step", stage.Note)
	return o.tracker.SetStage(ctx, task.ResourceID, task.AttemptID, stage)
}

func (o *Orchestrator) extract(ctx context.Context, task domain.ProcessingTask) (*domain.Transcript, error) {
	ctx, span := telemetry.StartSpan(ctx, "Orchestrator.Extract", telemetry.SpanAttributes{
		ResourceID: task.ResourceID,
		Stage:      StageExtracting.Note,
	})
	defer span.End()

	transcript, err := o.extractor.Extract(ctx, task.Locator, task.StorageKind, task.Type)
	if err != nil {
		return nil, err
	}
	if transcript == nil || len(transcript.Segments) == 0 {
		return nil, domain.NewExtractionError("extractor returned no segments", nil)
	}
	return transcript, nil
}

func (o *Orchestrator) index(ctx context.Context, resource *domain.Resource, transcript *domain.Transcript) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "Orchestrator.Index", telemetry.SpanAttributes{
		ResourceID: resource.ID,
		ModuleID:   resource.ModuleID,
		Stage:      StageIndexing.Note,
	})
	defer span.End()

	chunks := BuildChunks(resource, transcript, o.chunkCfg)
	return o.indexer.Index(ctx, resource.ID, chunks)
}

// stop handles a failed tracker write. A superseded attempt exits quietly;
// anything else is recorded as FAILED.
func (o *Orchestrator) stop(ctx context.Context, out Outcome, task domain.ProcessingTask, err error) (Outcome, error) {
	if errors.Is(err, domain.ErrAttemptSuperseded) {
		o.log.Info("attempt superseded, stopping", "resource_id", task.ResourceID, "attempt_id", task.AttemptID)
		out.Superseded = true
		return out, err
	}
	return o.fail(ctx, out, task, err), err
}

// fail records FAILED for the attempt. The write outlives ctx so a caller
// that hangs up mid-stage cannot leave the resource in PROCESSING.
func (o *Orchestrator) fail(ctx context.Context, out Outcome, task domain.ProcessingTask, cause error) Outcome {
	msg := FailureMessage(cause)
	out.Status = domain.ResourceStatusFailed
	out.Error = msg

	ctx = context.WithoutCancel(ctx)
	if err := o.tracker.SetTerminal(ctx, task.ResourceID, task.AttemptID, domain.ResourceStatusFailed, msg, 0); err != nil {
		if errors.Is(err, domain.ErrAttemptSuperseded) {
			out.Superseded = true
			return out
		}
		telemetry.CaptureError(ctx, err)
		o.log.Error("failed to record failure", "resource_id", task.ResourceID, "error", err)
	}
	return out
}

// FailureMessage renders err as the user-visible error stored on a FAILED
// resource.
func FailureMessage(err error) string {
	var de *domain.DomainError
	if errors.As(err, &de) {
		if de.Err != nil {
			return de.Message + ": " + de.Err.Error()
		}
		return de.Message
	}
	return err.Error()
}
