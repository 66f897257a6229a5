//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cloo-solutions/lessonindex/internal/api/handlers"
	"github.com/cloo-solutions/lessonindex/internal/cli/admin"
	"github.com/cloo-solutions/lessonindex/internal/cli/client"
	"github.com/cloo-solutions/lessonindex/internal/config"
	"github.com/cloo-solutions/lessonindex/internal/jobs"
	"github.com/cloo-solutions/lessonindex/internal/logger"
	"github.com/cloo-solutions/lessonindex/internal/server"
	"github.com/cloo-solutions/lessonindex/internal/testutil"
)

const embeddingDimensions = 1536

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T         *testing.T
	Ctx       context.Context
	PostgresC *testutil.PostgresContainer
	RedisC    *testutil.RedisContainer
	RustFSC   *testutil.RustFSContainer
	App       *admin.App
	API       *client.APIClient
	ServerURL string

	cancel      context.CancelFunc
	server      *httptest.Server
	embeddings  *httptest.Server
	workerLoop  *jobs.Worker
	workerQueue *jobs.PipelineWorker
}

// SetupE2EEnv starts Postgres, Redis and RustFS, wires the daemon against
// them and serves the API on a local listener.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx, cancel := context.WithCancel(context.Background())

	pgC := testutil.NewPostgresContainer(ctx, t)
	redisC := testutil.NewRedisContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)

	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")
	pool.Close()

	embeddings := httptest.NewServer(http.HandlerFunc(fakeEmbeddings))

	cfg := &config.Config{
		Port:                "0",
		DatabaseURL:         pgC.ConnectionString(),
		DatabaseMaxConns:    5,
		RedisURL:            redisC.URL(),
		QueueName:           "lessonindex:e2e",
		WorkerConcurrency:   2,
		WorkerPollInterval:  100 * time.Millisecond,
		S3Endpoint:          s3C.Endpoint(),
		S3AccessKey:         "rustfsadmin",
		S3SecretKey:         "rustfsadmin",
		S3Bucket:            "e2e-resources",
		S3Region:            "us-east-1",
		OpenAIAPIKey:        "e2e",
		OpenAIBaseURL:       embeddings.URL + "/v1",
		EmbeddingDimensions: embeddingDimensions,
		ChunkMaxWords:       512,
		ChunkOverlapWords:   50,
		FFmpegPath:          "ffmpeg",
		FFprobePath:         "ffprobe",
		WorkDir:             t.TempDir(),
		Environment:         "test",
	}

	app, err := admin.NewApp(ctx, cfg, logger.NewNop())
	if err != nil {
		t.Fatalf("failed to wire app: %v", err)
	}
	if err := app.Objects.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	pipeline, err := jobs.NewPipelineWorker(app.Broker, app.Orchestrator, cfg.WorkerConcurrency, app.Log)
	if err != nil {
		t.Fatalf("failed to create pipeline worker: %v", err)
	}
	loop := jobs.NewWorker(pipeline, cfg.WorkerPollInterval, app.Log)
	go loop.Start(ctx)

	router := server.NewRouter(server.RouterConfig{
		ResourceHandler: handlers.NewResourceHandler(app.Resources, app.Dispatcher, app.Tracker, app.Orchestrator),
		SearchHandler:   handlers.NewSearchHandler(app.Retriever),
		UploadHandler:   handlers.NewUploadHandler(app.Objects),
		HealthChecks: map[string]server.HealthCheck{
			"database": app.Pool.Ping,
		},
		Logger: app.Log,
	})
	srv := httptest.NewServer(router)

	return &E2ETestEnv{
		T:           t,
		Ctx:         ctx,
		PostgresC:   pgC,
		RedisC:      redisC,
		RustFSC:     s3C,
		App:         app,
		API:         client.NewAPIClientWithConfig(srv.URL),
		ServerURL:   srv.URL,
		cancel:      cancel,
		server:      srv,
		embeddings:  embeddings,
		workerLoop:  loop,
		workerQueue: pipeline,
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	e.server.Close()
	e.workerLoop.Stop()
	_ = e.workerQueue.Shutdown(30 * time.Second)
	e.cancel()
	e.App.Close()
	e.embeddings.Close()

	ctx := context.Background()
	_ = e.RustFSC.Terminate(ctx)
	_ = e.RedisC.Terminate(ctx)
	_ = e.PostgresC.Terminate(ctx)
}

// Reset empties every table between tests.
func (e *E2ETestEnv) Reset() {
	if err := testutil.TruncateAll(e.Ctx, e.App.Pool); err != nil {
		e.T.Fatalf("failed to truncate tables: %v", err)
	}
}

// Register posts a resource and decodes the response.
func (e *E2ETestEnv) Register(req client.RegisterRequest) client.RegisterResponse {
	e.T.Helper()
	resp, err := e.API.Post("/resources", req)
	if err != nil {
		e.T.Fatalf("register failed: %v", err)
	}
	var out client.RegisterResponse
	if err := resp.Decode(&out); err != nil {
		e.T.Fatalf("failed to decode register response: %v", err)
	}
	return out
}

// Search posts a query and decodes the ranked results.
func (e *E2ETestEnv) Search(req client.SearchRequest) client.SearchResponse {
	e.T.Helper()
	resp, err := e.API.Post("/search", req)
	if err != nil {
		e.T.Fatalf("search failed: %v", err)
	}
	var out client.SearchResponse
	if err := resp.Decode(&out); err != nil {
		e.T.Fatalf("failed to decode search response: %v", err)
	}
	return out
}

// WaitForTerminal polls the status endpoint until COMPLETE or FAILED.
func (e *E2ETestEnv) WaitForTerminal(resourceID string, timeout time.Duration) client.Status {
	e.T.Helper()
	deadline := time.Now().Add(timeout)
	for {
		resp, err := e.API.Get("/resources/" + resourceID + "/status")
		if err != nil {
			e.T.Fatalf("status failed: %v", err)
		}
		var s client.Status
		if err := resp.Decode(&s); err != nil {
			e.T.Fatalf("failed to decode status: %v", err)
		}
		if s.IsTerminal() {
			return s
		}
		if time.Now().After(deadline) {
			e.T.Fatalf("resource %s still %s after %s", resourceID, s.Status, timeout)
		}
		time.Sleep(200 * time.Millisecond)
	}
}

// fakeEmbeddings answers the OpenAI embeddings endpoint with a bag-of-words
// hash vector, so texts sharing words land close together.
func fakeEmbeddings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Input []string `json:"input"`
		Model string   `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	type item struct {
		Object    string    `json:"object"`
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	}
	data := make([]item, 0, len(req.Input))
	for i, text := range req.Input {
		data = append(data, item{Object: "embedding", Index: i, Embedding: hashVector(text)})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"object": "list",
		"data":   data,
		"model":  req.Model,
	})
}

func hashVector(text string) []float32 {
	vec := make([]float32, embeddingDimensions)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(strings.Trim(word, ".,?!")))
		vec[h.Sum32()%embeddingDimensions]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
