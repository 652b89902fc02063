package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/docwise-ai/docwise/internal/config"
	"github.com/docwise-ai/docwise/internal/core"
	db "github.com/docwise-ai/docwise/internal/core/database"
	"github.com/docwise-ai/docwise/internal/core/index"
	"github.com/docwise-ai/docwise/internal/core/ingestion_engine"
	"github.com/docwise-ai/docwise/internal/core/llm"
	objectclient "github.com/docwise-ai/docwise/internal/core/object-client"
	"github.com/docwise-ai/docwise/internal/core/retrieval"
	"github.com/docwise-ai/docwise/internal/services"
)

type App struct {
	DBClient *db.DatabaseClient
	Ingestor *ingestion_engine.DocumentIngestor
	Server   *Server

	closers []func() error
}

func NewApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	log.Info("database initialized and ready")

	objClient, err := objectclient.NewS3Client(appCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("object storage: %w", err)
	}
	log.Info("object storage initialized and ready")

	embedder, err := llm.NewGeminiEmbedder(appCtx, cfg.AIAPIKey, cfg.EmbedModel, cfg.EmbedDim)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}

	completion, err := llm.NewGeminiLLM(appCtx, cfg.AIAPIKey, cfg.GenModel)
	if err != nil {
		return nil, fmt.Errorf("completion provider: %w", err)
	}

	transcriber, err := llm.NewGeminiTranscriber(appCtx, cfg.AIAPIKey, cfg.TranscribeModel)
	if err != nil {
		return nil, fmt.Errorf("transcriber: %w", err)
	}

	var vectorIndex core.VectorIndex
	switch cfg.IndexBackend {
	case "memory":
		vectorIndex = index.NewMemoryIndex(cfg.EmbedDim)
	case "pgvector":
		vectorIndex = dbClient.Index()
	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.IndexBackend)
	}

	ingCfg := &ingestion_engine.IngestConfig{
		TargetTokens:  cfg.TargetTokens,
		OverlapTokens: cfg.OverlapTokens,
		BatchSize:     cfg.BatchSize,
		MaxAttempts:   cfg.MaxAttempts,
		Workers:       cfg.Workers,
		EmbedRPS:      cfg.EmbedRPS,
	}
	ingestor := ingestion_engine.NewDocumentIngestor(
		dbClient, objClient, vectorIndex, embedder,
		ingestion_engine.NewDocconvExtractor(false),
		ingestion_engine.NewMediaExtractor(transcriber, cfg.MaxAttempts),
		ingCfg, cfg.BucketName, log,
	)

	docService := services.NewDocumentService(
		dbClient, objClient, ingestor, cfg.BucketName, cfg.MaxUploadsPerDay, log)

	engine := retrieval.NewEngine(
		dbClient, vectorIndex, embedder, completion,
		retrieval.Config{
			TopK:            cfg.TopK,
			MaxAttempts:     cfg.MaxAttempts,
			ProviderTimeout: cfg.ProviderTimeout,
		}, log)

	server := NewServer(cfg, dbClient, docService, engine, log)

	return &App{
		DBClient: dbClient,
		Ingestor: ingestor,
		Server:   server,
		closers:  []func() error{embedder.Close, completion.Close, transcriber.Close, dbClient.Close},
	}, nil
}

func (a *App) Close() {
	for _, c := range a.closers {
		_ = c()
	}
}
