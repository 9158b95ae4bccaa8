package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/quizcatalyst/rag-tutor/internal/config"
	"github.com/quizcatalyst/rag-tutor/internal/core/ports"
	"github.com/quizcatalyst/rag-tutor/internal/core/usecase"
	"github.com/quizcatalyst/rag-tutor/internal/infrastructure/chunking"
	"github.com/quizcatalyst/rag-tutor/internal/infrastructure/extractor/document"
	"github.com/quizcatalyst/rag-tutor/internal/infrastructure/llm/ollama"
	"github.com/quizcatalyst/rag-tutor/internal/infrastructure/queue/nats"
	"github.com/quizcatalyst/rag-tutor/internal/infrastructure/repository/postgres"
	"github.com/quizcatalyst/rag-tutor/internal/infrastructure/resilience"
	"github.com/quizcatalyst/rag-tutor/internal/infrastructure/vector/memory"
	"github.com/quizcatalyst/rag-tutor/internal/infrastructure/vector/qdrant"
	"github.com/quizcatalyst/rag-tutor/internal/observability/metrics"
)

// App wires configuration into the API's dependency graph.
type App struct {
	Config   config.Config
	DB       *sql.DB
	Tutor    ports.ChatTutor
	Feedback ports.FeedbackPublisher
	Metrics  *metrics.APIMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	chatRepo := postgres.NewChatRepository(db)
	if err := chatRepo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.Options{
		CallTimeout:        time.Duration(cfg.ModelCallTimeoutSeconds) * time.Second,
		ResilienceExecutor: executor,
	})
	embedder := ollama.NewEmbedder(ollamaClient)
	generator := ollama.NewGenerator(ollamaClient, cfg.Temperature)

	var index ports.VectorIndex
	switch cfg.VectorBackend {
	case "qdrant":
		index = qdrant.NewIndex(cfg.QdrantURL)
	default:
		index = memory.NewIndex()
	}

	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	extractor := document.NewExtractor()

	retrieval := usecase.NewRetrievalService(chunker, embedder, index)
	tutor := usecase.NewTutorService(chatRepo, extractor, retrieval, generator, usecase.TutorConfig{
		TopK:             cfg.RAGTopK,
		MaxNewTokens:     cfg.MaxNewTokens,
		StudyGuideChunks: cfg.StudyGuideChunks,
	})

	var feedback ports.FeedbackPublisher
	var closeQueue func()
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		// Feedback is loss-tolerant; the API still serves turns without a broker.
		slog.Warn("nats unavailable, feedback disabled", "url", cfg.NATSURL, "error", err)
		feedback = nats.NoopPublisher{}
	} else {
		feedback = queue
		closeQueue = queue.Close
	}

	return &App{
		Config:   cfg,
		DB:       db,
		Tutor:    tutor,
		Feedback: feedback,
		Metrics:  metrics.NewAPIMetrics(),

		closeFn: func() {
			if closeQueue != nil {
				closeQueue()
			}
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
