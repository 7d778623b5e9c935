package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	configloader "github.com/foxseedlab/livescribe/external/config"
	transcriberimpl "github.com/foxseedlab/livescribe/external/transcriber"
)

const downloadTimeout = 30 * time.Minute

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := &http.Client{Timeout: downloadTimeout}
	if _, err := transcriberimpl.FetchModel(ctx, client, cfg.WhisperModelURL, cfg.WhisperModelPath); err != nil {
		slog.Error("whisper model setup failed", "error", err)
		os.Exit(1)
	}
	slog.Info("whisper model setup complete", "path", cfg.WhisperModelPath)
}
