package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cloo-solutions/lessonindex/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func seedChunks(t *testing.T, ix *EmbeddingIndexer, resourceID, moduleID string, n int) {
	t.Helper()
	chunks := make([]domain.Chunk, n)
	for i := range chunks {
		chunks[i] = domain.Chunk{
			ModuleID:   moduleID,
			ChunkIndex: i,
			SourceKind: domain.SourceKindDocument,
			Content:    fmt.Sprintf("lesson %s part %d about goroutines and channels", resourceID, i),
		}
	}
	count, err := ix.Index(context.Background(), resourceID, chunks)
	require.NoError(t, err)
	require.Equal(t, n, count)
}

func newSeededRetriever(t *testing.T) *Retriever {
	t.Helper()
	store := &memVectorStore{}
	ix := NewEmbeddingIndexer(hashEmbedder{}, store)
	seedChunks(t, ix, "res-a", "mod-1", 5)
	seedChunks(t, ix, "res-b", "mod-2", 2)
	return NewRetriever(hashEmbedder{}, ix)
}

func TestRetriever_Search_ScopedToResource(t *testing.T) {
	r := newSeededRetriever(t)

	results, err := r.Search(context.Background(), "goroutines", 3, &Scope{
		Equals: domain.MetadataFilter{ResourceID: "res-b"},
	})

	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), 2)
	assert.NotEmpty(t, results)
	for _, res := range results {
		assert.Equal(t, "res-b", res.Metadata.ResourceID)
	}
}

func TestRetriever_Search_ModuleScope(t *testing.T) {
	r := newSeededRetriever(t)

	results, err := r.Search(context.Background(), "channels", 10, &Scope{
		Equals: domain.MetadataFilter{ModuleID: "mod-1"},
	})

	require.NoError(t, err)
	assert.Len(t, results, 5)
	for _, res := range results {
		assert.Equal(t, "mod-1", res.Metadata.ModuleID)
	}
}

func TestRetriever_Search_Unscoped(t *testing.T) {
	r := newSeededRetriever(t)

	results, err := r.Search(context.Background(), "goroutines and channels", 10, nil)

	require.NoError(t, err)
	assert.Len(t, results, 7)
	seen := map[string]bool{}
	for _, res := range results {
		seen[res.Metadata.ResourceID] = true
	}
	assert.True(t, seen["res-a"])
	assert.True(t, seen["res-b"])
}

func TestRetriever_Search_MembershipPostFilter(t *testing.T) {
	store := &memVectorStore{}
	ix := NewEmbeddingIndexer(hashEmbedder{}, store)
	seedChunks(t, ix, "res-a", "mod-1", 5)
	seedChunks(t, ix, "res-b", "mod-1", 2)
	seedChunks(t, ix, "res-c", "mod-1", 3)
	r := NewRetriever(hashEmbedder{}, ix)

	results, err := r.Search(context.Background(), "goroutines", 4, &Scope{
		Equals:      domain.MetadataFilter{ModuleID: "mod-1"},
		ResourceIDs: []string{"res-b", "res-c"},
	})

	require.NoError(t, err)
	assert.Len(t, results, 4)
	for _, res := range results {
		assert.Contains(t, []string{"res-b", "res-c"}, res.Metadata.ResourceID)
	}
}

func TestRetriever_Search_SingleMembershipPushedDown(t *testing.T) {
	querier := new(MockVectorQuerier)
	querier.On("Query", mock.Anything, mock.Anything, 3, domain.MetadataFilter{ResourceID: "res-b"}).
		Return([]domain.ScoredChunk{}, nil)
	r := NewRetriever(hashEmbedder{}, querier)

	results, err := r.Search(context.Background(), "anything", 3, &Scope{ResourceIDs: []string{"res-b"}})

	require.NoError(t, err)
	assert.Empty(t, results)
	querier.AssertExpectations(t)
}

func TestRetriever_Search_OverFetchesForMembership(t *testing.T) {
	querier := new(MockVectorQuerier)
	querier.On("Query", mock.Anything, mock.Anything, defaultMinCandidates, domain.MetadataFilter{}).
		Return([]domain.ScoredChunk{}, nil)
	r := NewRetriever(hashEmbedder{}, querier)

	_, err := r.Search(context.Background(), "anything", 3, &Scope{ModuleIDs: []string{"m1", "m2"}})

	require.NoError(t, err)
	querier.AssertExpectations(t)
}

func TestRetriever_Search_EmptyQuery(t *testing.T) {
	r := NewRetriever(hashEmbedder{}, &memVectorStore{})

	_, err := r.Search(context.Background(), "   ", 3, nil)
	assert.ErrorIs(t, err, domain.ErrEmptyQuery)
}

func TestRetriever_Search_EmptyIndex(t *testing.T) {
	r := NewRetriever(hashEmbedder{}, NewEmbeddingIndexer(hashEmbedder{}, &memVectorStore{}))

	results, err := r.Search(context.Background(), "nothing here", 3, nil)

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRetriever_Search_EmbeddingError(t *testing.T) {
	client := new(MockEmbeddingClient)
	client.On("GenerateEmbedding", mock.Anything, "q").Return(nil, errors.New("rate limited"))
	r := NewRetriever(client, &memVectorStore{})

	_, err := r.Search(context.Background(), "q", 3, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to embed query")
}

func TestCandidateLimit(t *testing.T) {
	assert.Equal(t, defaultMinCandidates, candidateLimit(1))
	assert.Equal(t, 40, candidateLimit(10))
	assert.Equal(t, defaultMaxCandidates, candidateLimit(100))
}

type MockVectorQuerier struct {
	mock.Mock
}

func (m *MockVectorQuerier) Query(ctx context.Context, vector []float32, topK int, filter domain.MetadataFilter) ([]domain.ScoredChunk, error) {
	args := m.Called(ctx, vector, topK, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ScoredChunk), args.Error(1)
}
