package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloo-solutions/lessonindex/internal/broker"
	"github.com/cloo-solutions/lessonindex/internal/config"
	"github.com/cloo-solutions/lessonindex/internal/database"
	"github.com/cloo-solutions/lessonindex/internal/domain"
	"github.com/cloo-solutions/lessonindex/internal/extract"
	"github.com/cloo-solutions/lessonindex/internal/logger"
	"github.com/cloo-solutions/lessonindex/internal/openai"
	"github.com/cloo-solutions/lessonindex/internal/repository"
	"github.com/cloo-solutions/lessonindex/internal/service"
	"github.com/cloo-solutions/lessonindex/internal/storage"
	"github.com/cloo-solutions/lessonindex/internal/telemetry"
	"github.com/jackc/pgx/v5/pgxpool"
	goopenai "github.com/sashabaranov/go-openai"
)

// App holds the wired services shared by every daemon command
type App struct {
	Config       *config.Config
	Log          *logger.Logger
	Pool         *pgxpool.Pool
	Objects      *storage.S3Client
	Broker       *broker.RedisBroker
	Resources    *service.ResourceService
	Tracker      *service.StatusTracker
	Orchestrator *service.Orchestrator
	Dispatcher   *service.Dispatcher
	Retriever    *service.Retriever

	shutdownTelemetry func()
}

// loadApp reads the environment and builds an App. Callers must Close it.
func loadApp(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	mode := cfg.LogMode
	if cfg.Debug {
		mode = "dev"
	}
	log, err := logger.New(mode)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return NewApp(ctx, cfg, log)
}

// NewApp connects to the database and wires the pipeline. Object storage,
// the task broker and the OpenAI backend are each optional.
func NewApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	app := &App{Config: cfg, Log: log, shutdownTelemetry: func() {}}

	// Default to 10% sampling in production, 100% in development
	sampleRate := 0.1
	if cfg.Environment == "development" {
		sampleRate = 1.0
	}
	shutdown, err := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		TracesSampleRate: sampleRate,
		Debug:            cfg.Debug,
	}, log)
	if err != nil {
		log.Warn("telemetry init failed, continuing without tracing", "error", err)
	} else {
		app.shutdownTelemetry = shutdown
	}

	pool, err := database.NewPool(ctx, database.Config{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DatabaseMaxConns,
	})
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Pool = pool
	log.Info("connected to database")

	resourceRepo := repository.NewResourceRepository(pool)
	transcriptRepo := repository.NewTranscriptRepository(pool)
	embeddingRepo := repository.NewEmbeddingRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	var fetcher extract.ObjectFetcher
	var remover service.ObjectRemover
	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		app.Objects = s3Client
		fetcher = s3Client
		remover = s3Client
	}

	var embedder service.EmbeddingClient = unconfiguredEmbedder{}
	var transcriber extract.Transcriber
	if cfg.HasOpenAI() {
		oaCfg := openai.Config{
			APIKey:              cfg.OpenAIAPIKey,
			BaseURL:             cfg.OpenAIBaseURL,
			EmbeddingModel:      goopenai.EmbeddingModel(cfg.EmbeddingModel),
			EmbeddingDimensions: cfg.EmbeddingDimensions,
			TranscriptionModel:  cfg.TranscriptionModel,
		}
		embedder = openai.NewClientWithConfig(oaCfg)
		transcriber = openai.NewTranscriber(oaCfg)
	} else {
		log.Warn("OPENAI_API_KEY not set, indexing and search are disabled")
	}

	video := extract.NewVideoExtractor(extract.VideoConfig{
		FFmpegPath:  cfg.FFmpegPath,
		FFprobePath: cfg.FFprobePath,
		WorkDir:     cfg.WorkDir,
	}, transcriber, log)
	extractor := extract.NewAdapter(video, fetcher, cfg.WorkDir, log)
	indexer := service.NewEmbeddingIndexer(embedder, embeddingRepo)

	app.Tracker = service.NewStatusTracker(resourceRepo)
	app.Orchestrator = service.NewOrchestrator(service.OrchestratorConfig{
		Tracker:     app.Tracker,
		Resources:   resourceRepo,
		Extractor:   extractor,
		Transcripts: transcriptRepo,
		Indexer:     indexer,
		Chunking: service.ChunkConfig{
			MaxWords:     cfg.ChunkMaxWords,
			OverlapWords: cfg.ChunkOverlapWords,
		},
		Logger: log,
	})

	var taskBroker service.TaskBroker
	if cfg.HasBroker() {
		b, err := broker.NewRedisBroker(cfg.RedisURL, cfg.QueueName, log)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to create task broker: %w", err)
		}
		app.Broker = b
		taskBroker = b
	} else {
		log.Info("REDIS_URL not set, queued processing runs inline")
	}

	app.Dispatcher = service.NewDispatcher(app.Tracker, app.Orchestrator, taskBroker, log)
	app.Retriever = service.NewRetriever(embedder, indexer)
	app.Resources = service.NewResourceService(resourceRepo, txRunner, remover, log)

	return app, nil
}

// Close releases every connection the App holds.
func (a *App) Close() {
	if a.Broker != nil {
		if err := a.Broker.Close(); err != nil {
			a.Log.Warn("failed to close task broker", "error", err)
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	a.shutdownTelemetry()
	a.Log.Sync()
}

var errNoEmbeddingBackend = errors.New("embedding backend not configured: OPENAI_API_KEY required")

// unconfiguredEmbedder fails every call so a missing backend surfaces as an
// index failure on the resource instead of a startup error.
type unconfiguredEmbedder struct{}

func (unconfiguredEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return nil, domain.NewIndexError("cannot embed text", errNoEmbeddingBackend)
}
