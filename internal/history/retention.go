package history

// retention.go purges old import runs on a schedule.
//
// The job runs once at startup and then every CheckInterval until the
// context is cancelled. A failed purge is logged and retried on the next tick.

import (
	"context"
	"log/slog"
	"time"
)

// RetentionConfig holds configuration for the retention job.
type RetentionConfig struct {
	RetentionDays int           // Days to keep runs (default: 90)
	CheckInterval time.Duration // How often to run (default: 24h)
}

func (c RetentionConfig) withDefaults() RetentionConfig {
	if c.RetentionDays <= 0 {
		c.RetentionDays = 90
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 24 * time.Hour
	}
	return c
}

// StartRetention blocks, purging runs older than RetentionDays until ctx is
// cancelled. Call it in its own goroutine.
func StartRetention(ctx context.Context, store Store, cfg RetentionConfig) {
	cfg = cfg.withDefaults()
	slog.Info("history retention started",
		"retention_days", cfg.RetentionDays,
		"check_interval", cfg.CheckInterval,
	)

	runRetention(ctx, store, cfg.RetentionDays, time.Now)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("history retention stopped")
			return
		case <-ticker.C:
			runRetention(ctx, store, cfg.RetentionDays, time.Now)
		}
	}
}

// runRetention performs one purge cycle.
func runRetention(ctx context.Context, store Store, days int, now func() time.Time) int64 {
	start := time.Now()
	cutoff := now().AddDate(0, 0, -days)

	purged, err := store.Purge(ctx, cutoff)
	if err != nil {
		slog.Error("history purge failed", "error", err)
		return 0
	}

	slog.Info("purged import history",
		"runs_purged", purged,
		"cutoff", cutoff.Format(time.RFC3339),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return purged
}
