package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	audioimpl "github.com/foxseedlab/livescribe/external/audio"
	configloader "github.com/foxseedlab/livescribe/external/config"
	"github.com/foxseedlab/livescribe/external/discord"
	repositoryimpl "github.com/foxseedlab/livescribe/external/repository"
	"github.com/foxseedlab/livescribe/external/server"
	transcriberimpl "github.com/foxseedlab/livescribe/external/transcriber"
	webhookimpl "github.com/foxseedlab/livescribe/external/webhook"
	"github.com/foxseedlab/livescribe/internal/archive"
	"github.com/foxseedlab/livescribe/internal/config"
	discordpkg "github.com/foxseedlab/livescribe/internal/discord"
	"github.com/foxseedlab/livescribe/internal/notifier"
	"github.com/foxseedlab/livescribe/internal/repository"
	"github.com/foxseedlab/livescribe/internal/session"
	"github.com/foxseedlab/livescribe/internal/transcriber"
	"github.com/samber/do/v2"
	"golang.org/x/sync/errgroup"
)

const discordConnectTimeout = 20 * time.Second

func main() {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env, "engine", cfg.TranscriptionEngine, "store", cfg.TranscriptStore)

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)

	if err := run(cfg, injector); err != nil {
		slog.Error("service stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("service stopped")
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	repositoryimpl.RegisterDI(injector)
	audioimpl.RegisterDI(injector)
	discord.RegisterDI(injector)
	transcriberimpl.RegisterDI(injector)
	webhookimpl.RegisterDI(injector)
	notifier.RegisterDI(injector)
	archive.RegisterDI(injector)
	session.RegisterDI(injector)
	server.RegisterDI(injector)

	return injector
}

func run(cfg *config.Config, injector do.Injector) error {
	// Resolved first so a broken store fails startup instead of silently disabling the archive.
	repo, err := do.Invoke[repository.Repository](injector)
	if err != nil {
		return err
	}
	defer func() {
		if err := repo.Close(); err != nil {
			slog.Error("transcript store close failed", "error", err)
		}
	}()

	dc := do.MustInvoke[discordpkg.Client](injector)
	connectDiscord(cfg, dc)
	defer func() {
		if err := dc.Close(); err != nil {
			slog.Error("discord close failed", "error", err)
		}
	}()

	engine := do.MustInvoke[transcriber.Transcriber](injector)
	defer func() {
		if c, ok := engine.(io.Closer); ok {
			if err := c.Close(); err != nil {
				slog.Error("transcription engine close failed", "error", err)
			}
		}
	}()

	registry := do.MustInvoke[*session.Registry](injector)
	srv := do.MustInvoke[*server.Server](injector)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Listen()
	})
	g.Go(func() error {
		return registry.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down", "timeout", cfg.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := registry.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// connectDiscord keeps the service running without the relay when the gateway is unreachable.
func connectDiscord(cfg *config.Config, dc discordpkg.Client) {
	if cfg.DiscordToken == "" {
		slog.Info("discord relay disabled")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), discordConnectTimeout)
	defer cancel()

	slog.Info("startup: connecting to discord gateway")
	if err := dc.Connect(ctx); err != nil {
		slog.Error("discord connect failed; transcripts will not be relayed", "error", err)
		return
	}
	name, err := dc.ChannelName(cfg.DiscordTranscriptChannelID)
	if err != nil {
		slog.Warn("failed to resolve transcript channel", "error", err, "channel_id", cfg.DiscordTranscriptChannelID)
	}
	if name == "" {
		slog.Warn("transcript channel not found", "channel_id", cfg.DiscordTranscriptChannelID)
	}
	slog.Info("startup: discord connected", "channel_id", cfg.DiscordTranscriptChannelID, "channel_name", name)
}
