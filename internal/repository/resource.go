package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cloo-solutions/lessonindex/internal/domain"
	"github.com/cloo-solutions/lessonindex/internal/pagination"
	"github.com/cloo-solutions/lessonindex/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const resourceColumns = `id, course_id, module_id, title, type, locator, storage_kind, status, published,
	duration_seconds, attempt_id, error, progress, current_step, eta_seconds, uploaded_at, processed_at`

// ResourceRepository stores resource records and their processing state.
type ResourceRepository struct {
	db dbtx
}

func NewResourceRepository(pool *pgxpool.Pool) *ResourceRepository {
	return &ResourceRepository{db: pool}
}

func NewResourceRepositoryWithTx(tx pgx.Tx) *ResourceRepository {
	return &ResourceRepository{db: tx}
}

func (r *ResourceRepository) Create(ctx context.Context, res *domain.Resource) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO resources (id, course_id, module_id, title, type, locator, storage_kind, status, published, attempt_id, uploaded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		res.ID, res.CourseID, nullableString(res.ModuleID), res.Title, res.Type, res.Locator, res.StorageKind,
		res.Status, res.Published, res.AttemptID, res.UploadedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrResourceAlreadyExists
	}
	return err
}

func (r *ResourceRepository) GetByID(ctx context.Context, id string) (*domain.Resource, error) {
	row := r.db.QueryRow(ctx, `SELECT `+resourceColumns+` FROM resources WHERE id = $1`, id)
	res, err := scanResource(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrResourceNotFound
		}
		return nil, err
	}
	return res, nil
}

func (r *ResourceRepository) ListByCourseWithCursor(ctx context.Context, courseID string, cursor *pagination.Cursor, limit int) (*service.ResourcePageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT `+resourceColumns+`
			 FROM resources
			 WHERE course_id = $1 AND (uploaded_at, id) < ($2, $3)
			 ORDER BY uploaded_at DESC, id DESC
			 LIMIT $4`,
			courseID, cursor.UploadedAt, cursor.ID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT `+resourceColumns+`
			 FROM resources
			 WHERE course_id = $1
			 ORDER BY uploaded_at DESC, id DESC
			 LIMIT $2`,
			courseID, limit+1,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*domain.Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	items, nextCursor, hasMore := pagination.Trim(items, limit, func(res *domain.Resource) (time.Time, string) {
		return res.UploadedAt, res.ID
	})

	return &service.ResourcePageResult{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

func (r *ResourceRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM resources WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrResourceNotFound
	}
	return nil
}

// BeginAttempt hands the resource to a new attempt and resets it to PENDING.
func (r *ResourceRepository) BeginAttempt(ctx context.Context, id, attemptID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE resources
		 SET attempt_id = $2, status = 'PENDING', error = '',
		     progress = NULL, current_step = NULL, eta_seconds = NULL
		 WHERE id = $1`,
		id, attemptID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrResourceNotFound
	}
	return nil
}

// UpdateStage records a non-terminal stage for the current attempt.
func (r *ResourceRepository) UpdateStage(ctx context.Context, id, attemptID string, progress int, step string, etaSeconds int) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE resources
		 SET status = 'PROCESSING', progress = $3, current_step = $4, eta_seconds = $5
		 WHERE id = $1 AND attempt_id = $2 AND status IN ('PENDING', 'PROCESSING')`,
		id, attemptID, progress, step, etaSeconds,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAttemptSuperseded
	}
	return nil
}

// MarkTerminal moves the current attempt to COMPLETE or FAILED. Duration and
// processed time are only recorded on COMPLETE.
func (r *ResourceRepository) MarkTerminal(
	ctx context.Context,
	id, attemptID string,
	status domain.ResourceStatus,
	errMsg string,
	durationSeconds float64,
	processedAt time.Time,
) error {
	var tag pgconn.CommandTag
	var err error

	if status == domain.ResourceStatusComplete {
		tag, err = r.db.Exec(ctx,
			`UPDATE resources
			 SET status = 'COMPLETE', error = '', duration_seconds = $3, processed_at = $4,
			     progress = NULL, current_step = NULL, eta_seconds = NULL
			 WHERE id = $1 AND attempt_id = $2 AND status IN ('PENDING', 'PROCESSING')`,
			id, attemptID, durationSeconds, processedAt,
		)
	} else {
		tag, err = r.db.Exec(ctx,
			`UPDATE resources
			 SET status = $3, error = $4,
			     progress = NULL, current_step = NULL, eta_seconds = NULL
			 WHERE id = $1 AND attempt_id = $2 AND status IN ('PENDING', 'PROCESSING')`,
			id, attemptID, status, errMsg,
		)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAttemptSuperseded
	}
	return nil
}

func scanResource(row pgx.Row) (*domain.Resource, error) {
	var res domain.Resource
	var moduleID *string
	err := row.Scan(
		&res.ID, &res.CourseID, &moduleID, &res.Title, &res.Type, &res.Locator, &res.StorageKind,
		&res.Status, &res.Published, &res.DurationSeconds, &res.AttemptID, &res.Error,
		&res.Progress, &res.CurrentStep, &res.ETASeconds, &res.UploadedAt, &res.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}
	res.ModuleID = derefString(moduleID)
	return &res, nil
}
