package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cloo-solutions/lessonindex/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TranscriptRepository keeps one transcript per resource; segments are a
// JSONB array.
type TranscriptRepository struct {
	db dbtx
}

func NewTranscriptRepository(pool *pgxpool.Pool) *TranscriptRepository {
	return &TranscriptRepository{db: pool}
}

func NewTranscriptRepositoryWithTx(tx pgx.Tx) *TranscriptRepository {
	return &TranscriptRepository{db: tx}
}

// Upsert replaces the resource's transcript.
func (r *TranscriptRepository) Upsert(ctx context.Context, t *domain.Transcript) error {
	segments := t.Segments
	if segments == nil {
		segments = []domain.Segment{}
	}
	data, err := json.Marshal(segments)
	if err != nil {
		return fmt.Errorf("failed to marshal segments: %w", err)
	}

	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO transcripts (resource_id, segments, word_count, language, confidence, duration_seconds, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (resource_id) DO UPDATE SET
		     segments = EXCLUDED.segments,
		     word_count = EXCLUDED.word_count,
		     language = EXCLUDED.language,
		     confidence = EXCLUDED.confidence,
		     duration_seconds = EXCLUDED.duration_seconds,
		     created_at = EXCLUDED.created_at`,
		t.ResourceID, data, t.WordCount, t.Language, t.Confidence, t.DurationSeconds, createdAt,
	)
	return err
}

func (r *TranscriptRepository) GetByResourceID(ctx context.Context, resourceID string) (*domain.Transcript, error) {
	var t domain.Transcript
	var data []byte
	err := r.db.QueryRow(ctx,
		`SELECT resource_id, segments, word_count, language, confidence, duration_seconds, created_at
		 FROM transcripts WHERE resource_id = $1`,
		resourceID,
	).Scan(&t.ResourceID, &data, &t.WordCount, &t.Language, &t.Confidence, &t.DurationSeconds, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTranscriptNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(data, &t.Segments); err != nil {
		return nil, fmt.Errorf("failed to unmarshal segments: %w", err)
	}
	return &t, nil
}

// DeleteByResourceID removes the transcript. A missing transcript is not an error.
func (r *TranscriptRepository) DeleteByResourceID(ctx context.Context, resourceID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM transcripts WHERE resource_id = $1`, resourceID)
	return err
}
