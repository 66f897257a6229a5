package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloo-solutions/lessonindex/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// EmbeddingRepository is the pgvector-backed vector store for lesson chunks.
type EmbeddingRepository struct {
	db dbtx
}

func NewEmbeddingRepository(pool *pgxpool.Pool) *EmbeddingRepository {
	return &EmbeddingRepository{db: pool}
}

func NewEmbeddingRepositoryWithTx(tx pgx.Tx) *EmbeddingRepository {
	return &EmbeddingRepository{db: tx}
}

// InsertBatch writes all records or none.
func (r *EmbeddingRepository) InsertBatch(ctx context.Context, records []domain.EmbeddingRecord) error {
	if len(records) == 0 {
		return nil
	}

	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, rec := range records {
			createdAt := rec.CreatedAt
			if createdAt.IsZero() {
				createdAt = time.Now().UTC()
			}
			c := rec.Chunk
			batch.Queue(
				`INSERT INTO embeddings
					(id, resource_id, module_id, segment_index, chunk_index, source_kind, content, start_seconds, end_seconds, embedding, created_at)
				 VALUES
					($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
				rec.ID,
				c.ResourceID,
				nullableString(c.ModuleID),
				c.SegmentIndex,
				c.ChunkIndex,
				c.SourceKind,
				c.Content,
				c.StartSeconds,
				c.EndSeconds,
				pgvector.NewVector(rec.Vector),
				createdAt,
			)
		}

		br := tx.SendBatch(ctx, batch)
		for range records {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				if isForeignKeyViolation(err) {
					return fmt.Errorf("failed to insert embedding: %w", domain.ErrResourceNotFound)
				}
				return fmt.Errorf("failed to insert embedding: %w", err)
			}
		}
		return br.Close()
	})
}

// Query returns the topK nearest chunks by cosine distance. Score is
// 1 - distance, so higher is more similar.
func (r *EmbeddingRepository) Query(ctx context.Context, vector []float32, topK int, filter domain.MetadataFilter) ([]domain.ScoredChunk, error) {
	if topK <= 0 {
		return []domain.ScoredChunk{}, nil
	}

	args := []any{pgvector.NewVector(vector)}
	var where []string
	if filter.ResourceID != "" {
		args = append(args, filter.ResourceID)
		where = append(where, fmt.Sprintf("resource_id = $%d", len(args)))
	}
	if filter.ModuleID != "" {
		args = append(args, filter.ModuleID)
		where = append(where, fmt.Sprintf("module_id = $%d", len(args)))
	}
	if filter.SourceKind != "" {
		args = append(args, filter.SourceKind)
		where = append(where, fmt.Sprintf("source_kind = $%d", len(args)))
	}
	args = append(args, topK)

	var sb strings.Builder
	sb.WriteString(`SELECT id, resource_id, module_id, segment_index, chunk_index, source_kind, content,
		start_seconds, end_seconds, 1 - (embedding <=> $1) AS score
		FROM embeddings`)
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	fmt.Fprintf(&sb, " ORDER BY embedding <=> $1 LIMIT $%d", len(args))

	var results []domain.ScoredChunk
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if len(where) > 0 {
			// filters apply after the HNSW candidate set; keep scanning until topK rows match
			if _, err := tx.Exec(ctx, "SET LOCAL hnsw.iterative_scan = strict_order"); err != nil {
				return fmt.Errorf("failed to enable iterative scan: %w", err)
			}
		}

		rows, err := tx.Query(ctx, sb.String(), args...)
		if err != nil {
			return fmt.Errorf("failed to query embeddings: %w", err)
		}
		results, err = pgx.CollectRows(rows, scanScoredChunk)
		return err
	})
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []domain.ScoredChunk{}
	}
	return results, nil
}

func scanScoredChunk(row pgx.CollectableRow) (domain.ScoredChunk, error) {
	var sc domain.ScoredChunk
	var moduleID *string
	err := row.Scan(
		&sc.ID, &sc.Chunk.ResourceID, &moduleID, &sc.Chunk.SegmentIndex, &sc.Chunk.ChunkIndex,
		&sc.Chunk.SourceKind, &sc.Chunk.Content, &sc.Chunk.StartSeconds, &sc.Chunk.EndSeconds, &sc.Score,
	)
	sc.Chunk.ModuleID = derefString(moduleID)
	return sc, err
}

// DeleteByResource removes every record of the resource and returns how many went.
func (r *EmbeddingRepository) DeleteByResource(ctx context.Context, resourceID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM embeddings WHERE resource_id = $1`, resourceID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
