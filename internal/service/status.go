package service

import (
	"context"
	"fmt"
	"time"

	"github.com/cloo-solutions/lessonindex/internal/domain"
	"github.com/google/uuid"
)

// Stage is one observable step of a processing attempt.
type Stage struct {
	Progress   int
	Note       string
	ETASeconds int
}

var (
	StageStarting   = Stage{Progress: 0, Note: "Starting processing", ETASeconds: 300}
	StageExtracting = Stage{Progress: 30, Note: "Extracting transcript", ETASeconds: 240}
	StageIndexing   = Stage{Progress: 60, Note: "Indexing content for search", ETASeconds: 180}
	StageVisual     = Stage{Progress: 80, Note: "Processing visual content", ETASeconds: 120}
	StageCompleted  = Stage{Progress: 100, Note: "Processing completed", ETASeconds: 0}
)

// ResourceStatusRepository persists status transitions. Attempt-scoped writes
// must match both the resource id and the attempt id and must not touch a
// terminal resource; when nothing matches they return domain.ErrAttemptSuperseded.
type ResourceStatusRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Resource, error)
	BeginAttempt(ctx context.Context, id, attemptID string) error
	UpdateStage(ctx context.Context, id, attemptID string, progress int, step string, etaSeconds int) error
	MarkTerminal(ctx context.Context, id, attemptID string, status domain.ResourceStatus, errMsg string, durationSeconds float64, processedAt time.Time) error
}

// StatusTracker is the single writer of a resource's processing state
type StatusTracker struct {
	repo  ResourceStatusRepository
	now   func() time.Time
	newID func() string
}

// NewStatusTracker creates a new StatusTracker instance
func NewStatusTracker(repo ResourceStatusRepository) *StatusTracker {
	return &StatusTracker{
		repo:  repo,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// BeginAttempt resets the resource to PENDING under a fresh attempt id and
// returns that id. Writes from any earlier attempt are rejected afterwards.
func (t *StatusTracker) BeginAttempt(ctx context.Context, resourceID string) (string, error) {
	attemptID := t.newID()
	if err := t.repo.BeginAttempt(ctx, resourceID, attemptID); err != nil {
		return "", fmt.Errorf("failed to begin processing attempt: %w", err)
	}
	return attemptID, nil
}

// SetStage records status PROCESSING with the stage's progress, note and ETA,
// replacing whatever transient fields were stored before.
func (t *StatusTracker) SetStage(ctx context.Context, resourceID, attemptID string, stage Stage) error {
	if stage.Progress < 0 || stage.Progress > 100 {
		return domain.NewDomainError(domain.ErrCodeValidation, fmt.Sprintf("progress out of range: %d", stage.Progress))
	}
	if stage.ETASeconds < 0 {
		stage.ETASeconds = 0
	}
	return t.repo.UpdateStage(ctx, resourceID, attemptID, stage.Progress, stage.Note, stage.ETASeconds)
}

// SetTerminal records COMPLETE or FAILED and clears the transient fields.
// COMPLETE also stores the measured duration and the processed timestamp.
func (t *StatusTracker) SetTerminal(
	ctx context.Context,
	resourceID, attemptID string,
	outcome domain.ResourceStatus,
	errMsg string,
	durationSeconds float64,
) error {
	if !outcome.IsTerminal() {
		return domain.ErrInvalidResourceStatus
	}
	if outcome == domain.ResourceStatusComplete {
		errMsg = ""
	} else if errMsg == "" {
		errMsg = domain.DefaultFailedMessage
	}
	if durationSeconds < 0 {
		durationSeconds = 0
	}
	return t.repo.MarkTerminal(ctx, resourceID, attemptID, outcome, errMsg, durationSeconds, t.now().UTC())
}

// GetStatus answers a status query for the resource.
func (t *StatusTracker) GetStatus(ctx context.Context, resourceID string) (domain.StatusView, error) {
	resource, err := t.repo.GetByID(ctx, resourceID)
	if err != nil {
		return domain.StatusView{}, err
	}
	return resource.StatusView(), nil
}
