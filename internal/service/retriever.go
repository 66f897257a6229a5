package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/cloo-solutions/lessonindex/internal/domain"
	"github.com/cloo-solutions/lessonindex/internal/telemetry"
)

const (
	defaultSearchTopK          = 5
	maxSearchTopK              = 50
	defaultCandidateMultiplier = 4
	defaultMinCandidates       = 20
	defaultMaxCandidates       = 200
)

// VectorQuerier runs filtered nearest-neighbour queries
type VectorQuerier interface {
	Query(ctx context.Context, vector []float32, topK int, filter domain.MetadataFilter) ([]domain.ScoredChunk, error)
}

// Scope narrows a search. Equals is pushed down to the vector store;
// membership sets are applied to the returned candidates.
type Scope struct {
	Equals      domain.MetadataFilter
	ResourceIDs []string
	ModuleIDs   []string
}

func (s *Scope) hasMembership() bool {
	return s != nil && (len(s.ResourceIDs) > 0 || len(s.ModuleIDs) > 0)
}

// SearchMetadata is the provenance returned with each result
type SearchMetadata struct {
	ResourceID   string            `json:"resource_id"`
	ModuleID     string            `json:"module_id,omitempty"`
	SegmentIndex int               `json:"segment_index"`
	ChunkIndex   int               `json:"chunk_index"`
	SourceKind   domain.SourceKind `json:"source_kind"`
	StartSeconds *float64          `json:"start_seconds,omitempty"`
	EndSeconds   *float64          `json:"end_seconds,omitempty"`
}

// SearchResult is one ranked chunk
type SearchResult struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Score    float64        `json:"score"`
	Metadata SearchMetadata `json:"metadata"`
}

// Retriever serves similarity queries over the indexed chunks
type Retriever struct {
	client EmbeddingClient
	index  VectorQuerier
}

// NewRetriever creates a new Retriever. client must be the same embedding
// backend the indexer writes with.
func NewRetriever(client EmbeddingClient, index VectorQuerier) *Retriever {
	return &Retriever{client: client, index: index}
}

// Search embeds query and returns at most topK chunks that satisfy scope, in
// the vector store's relevance order.
func (r *Retriever) Search(ctx context.Context, query string, topK int, scope *Scope) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}
	if topK <= 0 {
		topK = defaultSearchTopK
	}
	if topK > maxSearchTopK {
		topK = maxSearchTopK
	}

	ctx, span := telemetry.StartSpan(ctx, "Retriever.Search", telemetry.SpanAttributes{
		Operation: "search",
	})
	defer span.End()

	scope = pushDownMembership(scope)

	var filter domain.MetadataFilter
	if scope != nil {
		filter = scope.Equals
	}

	limit := topK
	if scope.hasMembership() {
		limit = candidateLimit(topK)
	}

	vector, err := r.client.GenerateEmbedding(ctx, query)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	candidates, err := r.index.Query(ctx, vector, limit, filter)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	results := make([]SearchResult, 0, topK)
	for _, c := range candidates {
		if !scope.admits(c.Chunk) {
			continue
		}
		results = append(results, toSearchResult(c))
		if len(results) == topK {
			break
		}
	}

	return results, nil
}

func candidateLimit(topK int) int {
	limit := topK * defaultCandidateMultiplier
	if limit < defaultMinCandidates {
		limit = defaultMinCandidates
	}
	if limit > defaultMaxCandidates {
		limit = defaultMaxCandidates
	}
	return limit
}

// pushDownMembership turns a single-element membership set into an equality
// filter when the equality slot is free.
func pushDownMembership(scope *Scope) *Scope {
	if scope == nil {
		return nil
	}
	out := *scope
	if len(out.ResourceIDs) == 1 && out.Equals.ResourceID == "" {
		out.Equals.ResourceID = out.ResourceIDs[0]
		out.ResourceIDs = nil
	}
	if len(out.ModuleIDs) == 1 && out.Equals.ModuleID == "" {
		out.Equals.ModuleID = out.ModuleIDs[0]
		out.ModuleIDs = nil
	}
	return &out
}

func (s *Scope) admits(c domain.Chunk) bool {
	if s == nil {
		return true
	}
	if !s.Equals.Matches(c) {
		return false
	}
	if len(s.ResourceIDs) > 0 && !slices.Contains(s.ResourceIDs, c.ResourceID) {
		return false
	}
	if len(s.ModuleIDs) > 0 && !slices.Contains(s.ModuleIDs, c.ModuleID) {
		return false
	}
	return true
}

func toSearchResult(c domain.ScoredChunk) SearchResult {
	return SearchResult{
		ID:      c.ID,
		Content: c.Chunk.Content,
		Score:   c.Score,
		Metadata: SearchMetadata{
			ResourceID:   c.Chunk.ResourceID,
			ModuleID:     c.Chunk.ModuleID,
			SegmentIndex: c.Chunk.SegmentIndex,
			ChunkIndex:   c.Chunk.ChunkIndex,
			SourceKind:   c.Chunk.SourceKind,
			StartSeconds: c.Chunk.StartSeconds,
			EndSeconds:   c.Chunk.EndSeconds,
		},
	}
}
