package service

import (
	"context"
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cloo-solutions/lessonindex/internal/domain"
	"github.com/cloo-solutions/lessonindex/internal/pagination"
	"github.com/stretchr/testify/mock"
)

// memResources is an in-memory resource store with the same attempt-guarded
// write semantics as the Postgres repository. Like pgx, every call fails
// once ctx is done.
type memResources struct {
	mu        sync.Mutex
	resources map[string]*domain.Resource
	progress  map[string][]int
	statuses  map[string][]domain.ResourceStatus
	getErr    error
}

func newMemResources(resources ...*domain.Resource) *memResources {
	m := &memResources{
		resources: make(map[string]*domain.Resource),
		progress:  make(map[string][]int),
		statuses:  make(map[string][]domain.ResourceStatus),
	}
	for _, r := range resources {
		m.resources[r.ID] = r
	}
	return m
}

func (m *memResources) Create(ctx context.Context, r *domain.Resource) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.resources[r.ID]; ok {
		return domain.ErrResourceAlreadyExists
	}
	cp := *r
	m.resources[r.ID] = &cp
	return nil
}

func (m *memResources) GetByID(ctx context.Context, id string) (*domain.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	r, ok := m.resources[id]
	if !ok {
		return nil, domain.ErrResourceNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memResources) ListByCourseWithCursor(ctx context.Context, courseID string, cursor *pagination.Cursor, limit int) (*ResourcePageResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*domain.Resource
	for _, r := range m.resources {
		if r.CourseID == courseID && cursor.Admits(r.UploadedAt, r.ID) {
			cp := *r
			items = append(items, &cp)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].UploadedAt.Equal(items[j].UploadedAt) {
			return items[i].UploadedAt.After(items[j].UploadedAt)
		}
		return items[i].ID > items[j].ID
	})
	items, next, more := pagination.Trim(items, limit, func(r *domain.Resource) (time.Time, string) {
		return r.UploadedAt, r.ID
	})
	return &ResourcePageResult{Items: items, NextCursor: next, HasMore: more}, nil
}

func (m *memResources) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.resources[id]; !ok {
		return domain.ErrResourceNotFound
	}
	delete(m.resources, id)
	return nil
}

func (m *memResources) BeginAttempt(ctx context.Context, id, attemptID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.resources[id]
	if !ok {
		return domain.ErrResourceNotFound
	}
	r.AttemptID = attemptID
	r.Status = domain.ResourceStatusPending
	r.Error = ""
	r.Progress, r.CurrentStep, r.ETASeconds = nil, nil, nil
	m.statuses[id] = append(m.statuses[id], r.Status)
	return nil
}

func (m *memResources) guarded(id, attemptID string) (*domain.Resource, error) {
	r, ok := m.resources[id]
	if !ok || r.AttemptID != attemptID || r.Status.IsTerminal() {
		return nil, domain.ErrAttemptSuperseded
	}
	return r, nil
}

func (m *memResources) UpdateStage(ctx context.Context, id, attemptID string, progress int, step string, eta int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, err := m.guarded(id, attemptID)
	if err != nil {
		return err
	}
	r.Status = domain.ResourceStatusProcessing
	r.Progress, r.CurrentStep, r.ETASeconds = &progress, &step, &eta
	m.progress[id] = append(m.progress[id], progress)
	m.statuses[id] = append(m.statuses[id], r.Status)
	return nil
}

func (m *memResources) MarkTerminal(ctx context.Context, id, attemptID string, status domain.ResourceStatus, errMsg string, duration float64, processedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, err := m.guarded(id, attemptID)
	if err != nil {
		return err
	}
	r.Status = status
	r.Error = errMsg
	r.Progress, r.CurrentStep, r.ETASeconds = nil, nil, nil
	if status == domain.ResourceStatusComplete {
		r.DurationSeconds = duration
		r.ProcessedAt = &processedAt
	}
	m.statuses[id] = append(m.statuses[id], status)
	return nil
}

func (m *memResources) exists(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.resources[id]
	return ok
}

func (m *memResources) progressOf(id string) []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.progress[id]...)
}

func (m *memResources) statusesOf(id string) []domain.ResourceStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ResourceStatus(nil), m.statuses[id]...)
}

type memTranscripts struct {
	mu          sync.Mutex
	transcripts map[string]*domain.Transcript
}

func newMemTranscripts() *memTranscripts {
	return &memTranscripts{transcripts: make(map[string]*domain.Transcript)}
}

func (m *memTranscripts) Upsert(ctx context.Context, t *domain.Transcript) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.transcripts[t.ResourceID] = &cp
	return nil
}

func (m *memTranscripts) GetByResourceID(ctx context.Context, id string) (*domain.Transcript, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transcripts[id]
	if !ok {
		return nil, domain.ErrTranscriptNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTranscripts) DeleteByResourceID(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.transcripts, id)
	return nil
}

// memVectorStore ranks by cosine similarity. With owners set, inserts for a
// resource that no longer exists fail the way the foreign key does.
type memVectorStore struct {
	mu        sync.Mutex
	records   []domain.EmbeddingRecord
	insertErr error
	owners    *memResources
}

func (s *memVectorStore) InsertBatch(ctx context.Context, records []domain.EmbeddingRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.owners != nil {
		for _, r := range records {
			if !s.owners.exists(r.Chunk.ResourceID) {
				return domain.ErrResourceNotFound
			}
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.records = append(s.records, records...)
	return nil
}

func (s *memVectorStore) Query(ctx context.Context, vector []float32, topK int, filter domain.MetadataFilter) ([]domain.ScoredChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ScoredChunk
	for _, r := range s.records {
		if !filter.Matches(r.Chunk) {
			continue
		}
		out = append(out, domain.ScoredChunk{ID: r.ID, Chunk: r.Chunk, Score: cosine(vector, r.Vector)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (s *memVectorStore) DeleteByResource(ctx context.Context, resourceID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.records[:0]
	var n int64
	for _, r := range s.records {
		if r.Chunk.ResourceID == resourceID {
			n++
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
	return n, nil
}

func (s *memVectorStore) countFor(resourceID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.records {
		if r.Chunk.ResourceID == resourceID {
			n++
		}
	}
	return n
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		if i >= len(b) {
			break
		}
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// hashEmbedder maps each word onto one of 16 buckets.
type hashEmbedder struct{}

func (hashEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, 16)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%16]++
	}
	v[0] += 0.01
	return v, nil
}

type MockEmbeddingClient struct {
	mock.Mock
}

func (m *MockEmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) Extract(ctx context.Context, locator string, kind domain.StorageKind, resourceType domain.ResourceType) (*domain.Transcript, error) {
	args := m.Called(ctx, locator, kind, resourceType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transcript), args.Error(1)
}

type MockTaskBroker struct {
	mock.Mock
}

func (m *MockTaskBroker) Enqueue(ctx context.Context, task domain.ProcessingTask) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

type memTxRunner struct {
	resources   *memResources
	transcripts *memTranscripts
	vectors     *memVectorStore
}

func (r *memTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	return fn(r)
}

func (r *memTxRunner) Resources() ResourceRepositoryInterface { return r.resources }
func (r *memTxRunner) Transcripts() TranscriptRepository      { return r.transcripts }
func (r *memTxRunner) Embeddings() EmbeddingStore             { return r.vectors }
