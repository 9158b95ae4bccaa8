package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/quizcatalyst/rag-tutor/internal/adapters/http"
	"github.com/quizcatalyst/rag-tutor/internal/bootstrap"
	"github.com/quizcatalyst/rag-tutor/internal/config"
	"github.com/quizcatalyst/rag-tutor/internal/observability/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logging.Setup("api", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	router := httpadapter.NewRouter(app.Tutor, app.Feedback, app.Metrics, httpadapter.Config{
		Service:         "api",
		RateLimitRPS:    cfg.APIRateLimitRPS,
		RateLimitBurst:  cfg.APIRateLimitBurst,
		MaxConcurrent:   cfg.APIMaxConcurrent,
		MaxUploadBytes:  cfg.MaxUploadBytes,
		UploadWarnBytes: cfg.UploadWarnBytes,
	})
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("api listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("api server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("api shutdown incomplete", "error", err)
	}
}
