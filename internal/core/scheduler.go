package core

// scheduler.go runs background maintenance for the service.
//
// The workspace sweeper drops workspaces that have been idle longer than
// the configured TTL, releasing their loaded rows, drafts and registration
// forms. It is long-running and stops when its context is cancelled.

import (
	"context"
	"log/slog"
	"time"
)

// SweepConfig holds configuration for the workspace sweeper.
// Zero values fall back to the defaults below.
type SweepConfig struct {
	IdleTTL       time.Duration // Drop workspaces idle longer than this (default: 2h)
	CheckInterval time.Duration // How often to sweep (default: 5m)
}

func (c SweepConfig) withDefaults() SweepConfig {
	if c.IdleTTL <= 0 {
		c.IdleTTL = 2 * time.Hour
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 5 * time.Minute
	}
	return c
}

// StartWorkspaceSweeper periodically drops idle workspaces until ctx is
// cancelled. Call it in its own goroutine.
func (s *Service) StartWorkspaceSweeper(ctx context.Context, cfg SweepConfig) {
	cfg = cfg.withDefaults()
	slog.Info("workspace sweeper started",
		"idle_ttl", cfg.IdleTTL.String(),
		"interval", cfg.CheckInterval.String(),
	)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("workspace sweeper stopped")
			return
		case now := <-ticker.C:
			s.runSweep(now, cfg)
		}
	}
}

// runSweep performs one sweep.
func (s *Service) runSweep(now time.Time, cfg SweepConfig) {
	start := time.Now()
	dropped := s.SweepIdle(now, cfg.IdleTTL)
	if dropped == 0 {
		slog.Debug("workspace sweep found nothing idle")
		return
	}
	slog.Info("dropped idle workspaces",
		"dropped", dropped,
		"remaining", s.Len(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
