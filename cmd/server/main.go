package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"docrag/internal/bootstrap"
	"docrag/internal/config"
	"docrag/internal/logging"
	httptransport "docrag/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Fatalf("%v", err)
	}
	_, closeLog := logging.Setup(cfg.Log.File, level)
	defer func() { _ = closeLog() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			slog.Error("close resources failed", "error", err)
		}
	}()

	if cfg.Worker.Enabled {
		if err := app.StartBackground(ctx); err != nil {
			slog.Error("start background workers failed", "error", err)
			return
		}
	}

	if err := httptransport.Serve(ctx, app); err != nil {
		slog.Error("server failed", "error", err)
	}
}
