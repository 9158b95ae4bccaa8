package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quizcatalyst/rag-tutor/internal/config"
	"github.com/quizcatalyst/rag-tutor/internal/core/domain"
	"github.com/quizcatalyst/rag-tutor/internal/infrastructure/queue/nats"
	"github.com/quizcatalyst/rag-tutor/internal/infrastructure/repository/postgres"
	"github.com/quizcatalyst/rag-tutor/internal/observability/logging"
	"github.com/quizcatalyst/rag-tutor/internal/observability/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logging.Setup("worker", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		slog.Error("open postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	chatRepo := postgres.NewChatRepository(db)
	if err := chatRepo.EnsureSchema(ctx); err != nil {
		slog.Error("ensure schema", "error", err)
		os.Exit(1)
	}
	feedbackRepo := postgres.NewFeedbackRepository(db)

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		slog.Error("connect nats", "url", cfg.NATSURL, "error", err)
		os.Exit(1)
	}
	defer queue.Close()

	workerMetrics := metrics.NewWorkerMetrics()
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker consuming feedback", "subject", cfg.NATSSubject)
	err = queue.SubscribeFeedback(ctx, func(ctx context.Context, fb domain.Feedback) error {
		workerMetrics.StartFeedback()
		start := time.Now()
		saveErr := feedbackRepo.SaveFeedback(ctx, fb)
		workerMetrics.FinishFeedback("worker", time.Since(start), saveErr)
		if saveErr != nil {
			return saveErr
		}
		slog.Info("feedback stored",
			"feedback_id", fb.ID,
			"chat_id", fb.ChatID,
			"verdict", fb.Verdict,
		)
		return nil
	})
	if err != nil {
		slog.Error("feedback subscription failed", "error", err)
		os.Exit(1)
	}
}
