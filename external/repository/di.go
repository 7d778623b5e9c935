package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/foxseedlab/livescribe/internal/config"
	"github.com/foxseedlab/livescribe/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/do/v2"
)

const databaseInitTimeout = 15 * time.Second

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (repository.Repository, error) {
		cfg := do.MustInvoke[*config.Config](i)
		ctx, cancel := context.WithTimeout(context.Background(), databaseInitTimeout)
		defer cancel()
		return Open(ctx, cfg)
	})
}

func Open(ctx context.Context, cfg *config.Config) (repository.Repository, error) {
	switch cfg.TranscriptStore {
	case config.StorePostgres:
		p, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect database: %w", err)
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		if err := RunMigration(ctx, p); err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to run migration: %w", err)
		}
		slog.Info("transcript store ready", "store", cfg.TranscriptStore)
		return NewPostgresRepository(p), nil
	case config.StoreSQLite:
		repo, err := OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		slog.Info("transcript store ready", "store", cfg.TranscriptStore, "path", cfg.SQLitePath)
		return repo, nil
	case config.StoreNone, "":
		slog.Info("transcript store disabled")
		return NoopRepository{}, nil
	default:
		return nil, fmt.Errorf("unknown transcript store %q", cfg.TranscriptStore)
	}
}
