package core

// scheduler.go runs background maintenance for the calculation history.
//
// The pruner deletes history rows older than the retention window. It runs
// once on start and then every CheckInterval until its context is cancelled.
// A failed run is logged and retried on the next tick.

import (
	"context"
	"log/slog"
	"time"
)

// RetentionConfig controls history pruning. A zero MaxAge keeps history
// forever.
type RetentionConfig struct {
	MaxAge        time.Duration
	CheckInterval time.Duration // default: 24h
}

// StartHistoryPruner blocks, pruning history on every tick until ctx ends.
func (s *Service) StartHistoryPruner(ctx context.Context, cfg RetentionConfig) {
	if cfg.MaxAge <= 0 {
		slog.Debug("history retention disabled")
		return
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 24 * time.Hour
	}

	slog.Info("history pruner started",
		"max_age", cfg.MaxAge.String(),
		"check_interval", cfg.CheckInterval.String(),
	)

	s.PruneHistory(ctx, cfg.MaxAge)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("history pruner stopped")
			return
		case <-ticker.C:
			s.PruneHistory(ctx, cfg.MaxAge)
		}
	}
}

// PruneHistory deletes calculations older than maxAge and reports how many
// were removed.
func (s *Service) PruneHistory(ctx context.Context, maxAge time.Duration) int64 {
	start := time.Now()
	n, err := s.history.PruneHistory(ctx, start.Add(-maxAge))
	if err != nil {
		slog.Error("history prune failed", "error", err)
		return 0
	}
	slog.Info("pruned calculation history",
		"records_pruned", n,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return n
}
