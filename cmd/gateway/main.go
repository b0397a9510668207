package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mosaiko-ai/factcheck-gateway/internal/api"
	"github.com/mosaiko-ai/factcheck-gateway/internal/audit"
	"github.com/mosaiko-ai/factcheck-gateway/internal/config"
	"github.com/mosaiko-ai/factcheck-gateway/internal/dispatch"
	"github.com/mosaiko-ai/factcheck-gateway/internal/media"
	"github.com/mosaiko-ai/factcheck-gateway/internal/pipeline"
	"github.com/mosaiko-ai/factcheck-gateway/internal/server"
	"github.com/mosaiko-ai/factcheck-gateway/internal/session"
	"github.com/mosaiko-ai/factcheck-gateway/internal/telemetry"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	shutdownTracer, err := telemetry.InitTracer("factcheck-gateway", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	cfg, err := config.Load(os.Getenv("MOSAIKO_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	sessions, err := session.New(cfg.Storage.Root, logger)
	if err != nil {
		log.Fatalf("Failed to open session store: %v", err)
	}

	var recorder pipeline.Recorder
	var auditStore *audit.Store
	if cfg.Storage.AuditDB != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.AuditDB), 0o755); err != nil {
			log.Fatalf("Failed to create audit directory: %v", err)
		}
		auditStore, err = audit.New(cfg.Storage.AuditDB)
		if err != nil {
			log.Fatalf("Failed to open audit store: %v", err)
		}
		defer auditStore.Close()
		recorder = auditStore
	}

	dispatcher := dispatch.New(cfg.Webhooks, dispatch.WithTimeout(cfg.Dispatch.Timeout))
	sequencer := pipeline.New(sessions, dispatcher, recorder, logger)
	mediaStore := media.New(cfg.Storage.Root)

	srv := server.New(cfg.Server.Port, logger)
	handler := api.New(sessions, mediaStore, sequencer, auditStore, logger)
	handler.RegisterRoutes(srv.Router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	case sig := <-sigCh:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("gateway shutdown complete")
}
