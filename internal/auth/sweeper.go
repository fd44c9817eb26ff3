// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// Sweeper periodically deletes expired sessions. Expiry is enforced at read
// time regardless; sweeping only reclaims storage.
type Sweeper struct {
	sessions SessionStore
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a Sweeper that runs every interval.
func NewSweeper(sessions SessionStore, interval time.Duration, logger *slog.Logger) (*Sweeper, error) {
	if sessions == nil {
		return nil, oops.Code("SWEEPER_INVALID_CONFIG").Errorf("session store is required")
	}
	if interval <= 0 {
		return nil, oops.Code("SWEEPER_INVALID_CONFIG").
			With("interval", interval.String()).
			Errorf("sweep interval must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{sessions: sessions, interval: interval, logger: logger}, nil
}

// SweepOnce deletes expired sessions and returns how many were removed.
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpired(ctx)
	if err != nil {
		return 0, oops.With("operation", "delete expired sessions").Wrap(err)
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "expired sessions removed", "count", n)
	}
	return n, nil
}

// Run sweeps every interval until ctx is cancelled. Sweep failures are logged
// and do not stop the loop.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.WarnContext(ctx, "session sweep failed", "error", err)
			}
		}
	}
}
