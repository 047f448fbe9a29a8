// RideLens - Ride Pickup/Drop Pair Recommendation Engine
// Copyright 2026 RideLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ridelens/ridelens

package engine

import (
	"context"
	"time"

	"github.com/ridelens/ridelens/internal/logging"
	"github.com/ridelens/ridelens/internal/metrics"
	"github.com/ridelens/ridelens/internal/models"
)

// Store is the durable storage the runner operates against. The engine is
// the sole writer of the aggregate and the recommendation set; the store
// guarantees that PublishRun is observed atomically by readers.
type Store interface {
	// ReadPartition returns all ride events for one date partition
	// (YYYY-MM-DD). It returns ErrPartitionUnavailable (possibly wrapped)
	// when the partition has no data.
	ReadPartition(ctx context.Context, date string) ([]models.RideEvent, error)

	// ReadPublishedAggregate returns the currently published cumulative
	// aggregate. A first-ever run sees an empty slice, not an error.
	ReadPublishedAggregate(ctx context.Context) ([]models.AggregateRecord, error)

	// PublishRun persists the merged aggregate and the recommendation set
	// as a new version and atomically repoints readers to it. Nothing is
	// visible to readers until the swap commits.
	PublishRun(ctx context.Context, partition string, aggregate []models.AggregateRecord, entries []models.RecommendationEntry) (version int64, err error)
}

// Runner executes one pipeline run per date partition.
type Runner struct {
	store   Store
	loc     *time.Location
	topK    int
	workers int
}

// NewRunner creates a runner. loc is the fixed source timezone used for
// ride-period classification; topK is the rank cutoff; workers bounds the
// concurrency of the aggregation and ranking stages (0 = NumCPU).
func NewRunner(store Store, loc *time.Location, topK, workers int) *Runner {
	if loc == nil {
		loc = time.UTC
	}
	return &Runner{store: store, loc: loc, topK: topK, workers: workers}
}

// RunResult summarizes one successful run for logging and observability.
type RunResult struct {
	Partition  string
	Version    int64
	EventsRead int
	Malformed  int
	Duplicates int
	BatchKeys  int
	MergedKeys int
	Entries    int
	Elapsed    time.Duration
}

// Run processes one date partition end to end. Fatal conditions come back
// as *RunError carrying the partition and stage; before the publish stage
// commits, the previously published state is untouched and the partition is
// safe to retry. History is always read fresh inside the run, never reused
// from a prior attempt.
func (r *Runner) Run(ctx context.Context, partition string) (*RunResult, error) {
	start := time.Now()
	ctx = logging.ContextWithRunID(ctx, logging.GenerateRunID())
	log := logging.Ctx(ctx)
	log.Info().Str("partition", partition).Msg("Run started")

	// Read stage. An unavailable partition is fatal for this run but safe
	// to retry; nothing has been written yet.
	readStart := time.Now()
	events, err := r.store.ReadPartition(ctx, partition)
	if err != nil {
		metrics.RunFailures.WithLabelValues(string(StageRead)).Inc()
		return nil, runErr(partition, StageRead, err)
	}
	metrics.RunDuration.WithLabelValues(string(StageRead)).Observe(time.Since(readStart).Seconds())

	// Malformed events are skipped and counted, never fatal.
	valid := events[:0:0]
	malformed := 0
	for _, e := range events {
		if err := e.Validate(); err != nil {
			malformed++
			log.Warn().Err(err).Msg("Skipping malformed event")
			continue
		}
		valid = append(valid, e)
	}
	if malformed > 0 {
		metrics.EventsMalformed.Add(float64(malformed))
	}

	unique, duplicates := Deduplicate(valid)
	if duplicates > 0 {
		metrics.EventsDuplicate.WithLabelValues("run").Add(float64(duplicates))
		log.Info().Int("duplicates", duplicates).Msg("Dropped redelivered events")
	}

	batch := AggregateBatch(unique, r.loc, r.workers)

	// Merge stage: history is read fresh here on every attempt so a retry
	// after a failed publish cannot reapply counts on top of a stale
	// in-memory copy.
	mergeStart := time.Now()
	history, err := r.store.ReadPublishedAggregate(ctx)
	if err != nil {
		metrics.RunFailures.WithLabelValues(string(StageMerge)).Inc()
		return nil, runErr(partition, StageMerge, err)
	}
	merged := Merge(history, batch)
	metrics.RunDuration.WithLabelValues(string(StageMerge)).Observe(time.Since(mergeStart).Seconds())

	rankStart := time.Now()
	entries := Rank(merged, r.topK, r.workers)
	metrics.RunDuration.WithLabelValues(string(StageRank)).Observe(time.Since(rankStart).Seconds())

	// Publish stage: write-new then swap. A failure here leaves the prior
	// published state intact and valid.
	publishStart := time.Now()
	version, err := r.store.PublishRun(ctx, partition, merged, entries)
	if err != nil {
		metrics.RunFailures.WithLabelValues(string(StagePublish)).Inc()
		return nil, runErr(partition, StagePublish, err)
	}
	metrics.RunDuration.WithLabelValues(string(StagePublish)).Observe(time.Since(publishStart).Seconds())

	metrics.RunsCompleted.Inc()
	metrics.MergedKeys.Set(float64(len(merged)))
	metrics.PublishedEntries.Set(float64(len(entries)))
	metrics.PublishedVersion.Set(float64(version))

	result := &RunResult{
		Partition:  partition,
		Version:    version,
		EventsRead: len(events),
		Malformed:  malformed,
		Duplicates: duplicates,
		BatchKeys:  len(batch),
		MergedKeys: len(merged),
		Entries:    len(entries),
		Elapsed:    time.Since(start),
	}

	log.Info().
		Str("partition", partition).
		Int64("version", version).
		Int("events", result.EventsRead).
		Int("malformed", malformed).
		Int("duplicates", duplicates).
		Int("merged_keys", result.MergedKeys).
		Int("entries", result.Entries).
		Dur("elapsed", result.Elapsed).
		Msg("Run published")

	return result, nil
}

// YesterdayPartition returns the default target partition, "yesterday"
// relative to now. Callers are expected to pass a time already in the
// source timezone; the location carried by now decides the day boundary.
func YesterdayPartition(now time.Time) string {
	return now.AddDate(0, 0, -1).Format("2006-01-02")
}

// YesterdayPartition returns the default target partition in the runner's
// timezone.
func (r *Runner) YesterdayPartition(now time.Time) string {
	return YesterdayPartition(now.In(r.loc))
}
