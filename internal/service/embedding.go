package service

import (
	"context"
	"time"

	"github.com/cloo-solutions/lessonindex/internal/domain"
	"github.com/google/uuid"
)

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingStore is the vector store holding embedding records. Ranking is
// the store's own; an empty result is not an error.
type EmbeddingStore interface {
	InsertBatch(ctx context.Context, records []domain.EmbeddingRecord) error
	Query(ctx context.Context, vector []float32, topK int, filter domain.MetadataFilter) ([]domain.ScoredChunk, error)
	DeleteByResource(ctx context.Context, resourceID string) (int64, error)
}

// EmbeddingIndexer computes chunk embeddings and writes them to the vector
// store under freshly generated ids. Indexing the same resource twice
// accumulates records unless Purge is called first.
type EmbeddingIndexer struct {
	client EmbeddingClient
	store  EmbeddingStore
	newID  func() string
	now    func() time.Time
}

// NewEmbeddingIndexer creates a new EmbeddingIndexer instance
func NewEmbeddingIndexer(client EmbeddingClient, store EmbeddingStore) *EmbeddingIndexer {
	return &EmbeddingIndexer{
		client: client,
		store:  store,
		newID:  uuid.NewString,
		now:    time.Now,
	}
}

// Index embeds every chunk and stores the records, returning how many were
// written. Any backend or store failure is reported as an index error and
// nothing from this call is written.
func (ix *EmbeddingIndexer) Index(ctx context.Context, resourceID string, chunks []domain.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	records := make([]domain.EmbeddingRecord, 0, len(chunks))
	createdAt := ix.now().UTC()
	for _, c := range chunks {
		if c.Content == "" {
			continue
		}
		c.ResourceID = resourceID

		vector, err := ix.client.GenerateEmbedding(ctx, c.Content)
		if err != nil {
			return 0, domain.NewIndexError("failed to generate embedding", err)
		}

		records = append(records, domain.EmbeddingRecord{
			ID:        ix.newID(),
			Chunk:     c,
			Vector:    vector,
			CreatedAt: createdAt,
		})
	}

	if len(records) == 0 {
		return 0, nil
	}

	if err := ix.store.InsertBatch(ctx, records); err != nil {
		return 0, domain.NewIndexError("failed to write embeddings", err)
	}

	return len(records), nil
}

// Query returns up to topK chunks nearest to vector that satisfy filter.
func (ix *EmbeddingIndexer) Query(ctx context.Context, vector []float32, topK int, filter domain.MetadataFilter) ([]domain.ScoredChunk, error) {
	if topK <= 0 || len(vector) == 0 {
		return []domain.ScoredChunk{}, nil
	}

	results, err := ix.store.Query(ctx, vector, topK, filter)
	if err != nil {
		return nil, domain.NewIndexError("vector query failed", err)
	}
	if results == nil {
		return []domain.ScoredChunk{}, nil
	}
	if len(results) > topK {
		results = results[:topK]
	}

	return results, nil
}

// Purge removes every record of the resource from the vector store.
func (ix *EmbeddingIndexer) Purge(ctx context.Context, resourceID string) (int64, error) {
	n, err := ix.store.DeleteByResource(ctx, resourceID)
	if err != nil {
		return 0, domain.NewIndexError("failed to purge embeddings", err)
	}
	return n, nil
}
