package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/masterdata/internal/config"
	"github.com/JonMunkholm/masterdata/internal/core"
	"github.com/JonMunkholm/masterdata/internal/history"
	"github.com/JonMunkholm/masterdata/internal/logging"
	"github.com/JonMunkholm/masterdata/internal/masterdata"
	"github.com/JonMunkholm/masterdata/internal/web"
)

func main() {
	if err := godotenv.Overload(); err == nil {
		slog.Info("loaded .env file")
	}

	if err := run(); err != nil {
		slog.Error("import console stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openHistory(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open import history: %w", err)
	}
	defer closeStore()

	client, err := masterdata.New(cfg.API.BaseURL, cfg.API.Timeout,
		masterdata.WithRateLimit(cfg.API.RequestsPerSecond))
	if err != nil {
		return fmt.Errorf("master-data client: %w", err)
	}

	service := core.NewService(client, store, core.Options{
		Batch:                cfg.API.Batch,
		UploadTimeout:        cfg.Upload.Timeout,
		SessionTTL:           cfg.Upload.SessionTTL,
		MaxConcurrentUploads: cfg.Upload.MaxConcurrent,
		UploadWait:           cfg.Upload.MaxWait,
	})
	logTargets(client.BaseURL())

	server := web.NewServer(service, cfg)

	go service.StartJanitor(ctx, cfg.Upload.SessionTTL/4)
	go history.StartRetention(ctx, store, history.RetentionConfig{
		RetentionDays: cfg.History.RetentionDays,
		CheckInterval: cfg.History.CheckInterval,
	})
	server.StartBackground(ctx)

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Start() }()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutdown requested")
	return drain(service, server, cfg.Server.ShutdownTimeout)
}

// drain lets in-flight uploads finish before closing the listener. Both
// steps share one deadline.
func drain(service *core.Service, server *web.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if active := service.UploadStatus().Active; active > 0 {
		slog.Info("waiting for uploads", "active", active)
		if err := service.WaitForUploads(ctx); err != nil {
			slog.Warn("uploads still running at shutdown", "error", err)
		}
	}

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

func logTargets(api string) {
	defs := core.Targets()
	names := make([]string, len(defs))
	for i, def := range defs {
		names[i] = string(def.Target)
	}
	slog.Info("targets registered", "targets", names, "api", api)
}

// openHistory returns the PostgreSQL store when DATABASE_URL is set and an
// in-memory store otherwise.
func openHistory(ctx context.Context, cfg *config.Config) (history.Store, func(), error) {
	if !cfg.HistoryEnabled() {
		slog.Info("import history kept in memory", "size", cfg.History.MemorySize)
		return history.NewMemoryStore(cfg.History.MemorySize), func() {}, nil
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	store := history.NewPostgresStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	slog.Info("import history stored in database", "database", poolConfig.ConnConfig.Database)
	return store, pool.Close, nil
}
