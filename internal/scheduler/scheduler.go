// RideLens - Ride Pickup/Drop Pair Recommendation Engine
// Copyright 2026 RideLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ridelens/ridelens

// Package scheduler triggers the daily aggregation run and periodic
// housekeeping. Both are suture services: a panic or error hands control
// back to the supervisor, which restarts with backoff.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/ridelens/ridelens/internal/config"
	"github.com/ridelens/ridelens/internal/engine"
	"github.com/ridelens/ridelens/internal/logging"
)

// Runner is the engine entry point the scheduler drives.
type Runner interface {
	Run(ctx context.Context, partition string) (*engine.RunResult, error)
}

// Scheduler fires the daily run at the configured local hour for
// yesterday's partition, retrying fatal failures a bounded number of
// times. Each retry re-runs the whole pipeline, so a publication that
// failed half-way is recomputed from fresh history rather than resumed.
type Scheduler struct {
	runner Runner
	loc    *time.Location
	cfg    config.EngineConfig

	// now is a hook for tests.
	now func() time.Time
}

// New creates a scheduler. loc must be the engine timezone: the run hour,
// like partition boundaries, is interpreted in it.
func New(runner Runner, loc *time.Location, cfg config.EngineConfig) *Scheduler {
	return &Scheduler{
		runner: runner,
		loc:    loc,
		cfg:    cfg,
		now:    time.Now,
	}
}

// String names the service in supervisor logs.
func (s *Scheduler) String() string {
	return "daily-scheduler"
}

// Serve blocks until context cancellation, firing the daily run on
// schedule.
func (s *Scheduler) Serve(ctx context.Context) error {
	for {
		now := s.now().In(s.loc)
		next := s.nextRun(now)
		logging.Info().
			Time("next_run", next).
			Msg("Daily run scheduled")

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		partition := engine.YesterdayPartition(s.now().In(s.loc))
		s.RunWithRetry(ctx, partition)
	}
}

// nextRun returns the next occurrence of the run hour strictly after now.
func (s *Scheduler) nextRun(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), s.cfg.RunHour, 0, 0, 0, s.loc)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// RunWithRetry executes the run for one partition, retrying fatal
// failures up to engine.retry_attempts times with engine.retry_delay
// between attempts. Returns the last error when all attempts fail; the
// previously published recommendations stay live in that case.
func (s *Scheduler) RunWithRetry(ctx context.Context, partition string) error {
	attempts := s.cfg.RetryAttempts + 1

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := s.runner.Run(ctx, partition)
		if err == nil {
			logging.Info().
				Str("partition", partition).
				Int64("version", result.Version).
				Int("entries", result.Entries).
				Int("attempt", attempt).
				Msg("Daily run published")
			return nil
		}
		lastErr = err

		var runErr *engine.RunError
		ev := logging.Error().Err(err).Str("partition", partition).Int("attempt", attempt)
		if errors.As(err, &runErr) {
			ev = ev.Str("stage", string(runErr.Stage))
		}
		ev.Msg("Daily run failed")

		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.RetryDelay):
		}
	}

	logging.Error().
		Err(lastErr).
		Str("partition", partition).
		Int("attempts", attempts).
		Msg("Daily run exhausted retries, previous publication remains live")
	return lastErr
}
