// RideLens - Ride Pickup/Drop Pair Recommendation Engine
// Copyright 2026 RideLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ridelens/ridelens

package scheduler

import (
	"context"
	"time"

	"github.com/ridelens/ridelens/internal/config"
	"github.com/ridelens/ridelens/internal/logging"
)

// RetentionStore is the housekeeping surface of the store.
type RetentionStore interface {
	PurgeEventsBefore(ctx context.Context, cutoff string) (int64, error)
	PruneVersions(ctx context.Context, keepDepth int) error
}

// Housekeeper sweeps expired raw events and superseded aggregate versions
// on an interval. Cumulative aggregate history at the published version is
// never touched: retention bounds raw events and old snapshots only.
type Housekeeper struct {
	store RetentionStore
	loc   *time.Location
	cfg   config.RetentionConfig

	now func() time.Time
}

// NewHousekeeper creates a housekeeping service.
func NewHousekeeper(store RetentionStore, loc *time.Location, cfg config.RetentionConfig) *Housekeeper {
	return &Housekeeper{
		store: store,
		loc:   loc,
		cfg:   cfg,
		now:   time.Now,
	}
}

// String names the service in supervisor logs.
func (h *Housekeeper) String() string {
	return "retention-housekeeper"
}

// Serve sweeps on the configured interval until context cancellation.
func (h *Housekeeper) Serve(ctx context.Context) error {
	ticker := time.NewTicker(h.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			h.Sweep(ctx)
		}
	}
}

// Sweep performs one housekeeping pass. Errors are logged, not fatal: a
// failed sweep retries at the next interval.
func (h *Housekeeper) Sweep(ctx context.Context) {
	if h.cfg.EventHorizonDays > 0 {
		cutoff := h.now().In(h.loc).
			AddDate(0, 0, -h.cfg.EventHorizonDays).
			Format("2006-01-02")
		if _, err := h.store.PurgeEventsBefore(ctx, cutoff); err != nil {
			logging.Error().Err(err).Str("cutoff", cutoff).Msg("Event purge failed")
		}
	}

	if err := h.store.PruneVersions(ctx, h.cfg.PublishedKeepDepth); err != nil {
		logging.Error().Err(err).Msg("Version prune failed")
	}
}
