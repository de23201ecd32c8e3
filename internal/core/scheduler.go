package core

// scheduler.go runs run-history retention in the background. Each pass
// deletes runs older than the configured age; a failed pass is logged and
// retried on the next tick.

import (
	"context"
	"time"

	"github.com/JonMunkholm/bomtool/internal/logging"
)

// DefaultRetentionInterval is how often the retention job runs.
const DefaultRetentionInterval = 24 * time.Hour

// RetentionConfig controls run history pruning.
type RetentionConfig struct {
	MaxAge        time.Duration // runs older than this are deleted; zero keeps everything
	CheckInterval time.Duration // default: 24h
}

// StartRetention prunes old runs immediately and then every CheckInterval
// until ctx is cancelled. It returns at once when history is disabled or
// MaxAge is zero.
func (s *Service) StartRetention(ctx context.Context, cfg RetentionConfig) {
	if s.runs == nil || cfg.MaxAge <= 0 {
		return
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultRetentionInterval
	}

	logger := logging.FromContext(ctx)
	logger.Info("retention scheduler started",
		"max_age", cfg.MaxAge.String(),
		"interval", cfg.CheckInterval.String(),
	)

	s.pruneRuns(ctx, cfg.MaxAge, time.Now())

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("retention scheduler stopped")
			return
		case now := <-ticker.C:
			s.pruneRuns(ctx, cfg.MaxAge, now)
		}
	}
}

// pruneRuns deletes runs created before now-maxAge.
func (s *Service) pruneRuns(ctx context.Context, maxAge time.Duration, now time.Time) int64 {
	start := time.Now()
	cutoff := now.Add(-maxAge).UTC()

	deleted, err := s.runs.DeleteRunsBefore(ctx, cutoff)
	if err != nil {
		logging.FromContext(ctx).Error("retention pass failed", "cutoff", cutoff, "error", err)
		return 0
	}

	logging.FromContext(ctx).Info("retention pass completed",
		"deleted", deleted,
		"cutoff", cutoff,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return deleted
}
