// RideLens - Ride Pickup/Drop Pair Recommendation Engine
// Copyright 2026 RideLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ridelens/ridelens

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ridelens/ridelens/internal/logging"
	"github.com/ridelens/ridelens/internal/metrics"
	"github.com/ridelens/ridelens/internal/models"
)

// ReadPublishedAggregate returns the cumulative aggregate at the currently
// published version, sorted by key. Before the first publication it
// returns an empty slice: missing history is the normal first-run state,
// not an error.
func (s *Store) ReadPublishedAggregate(ctx context.Context) (records []models.AggregateRecord, err error) {
	start := time.Now()
	defer func() { metrics.ObserveStoreQuery("read_published", "aggregate_counts", start, err) }()

	rows, err := s.conn.QueryContext(ctx,
		`SELECT user_id, pickup_location, drop_location, ride_period, rides_count
		 FROM aggregate_counts
		 WHERE version = (SELECT aggregate_version FROM published_state WHERE id = 1)
		 ORDER BY user_id, pickup_location, drop_location, ride_period`)
	if err != nil {
		return nil, fmt.Errorf("query published aggregate: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var r models.AggregateRecord
		var period string
		if err = rows.Scan(&r.UserID, &r.PickupLocation, &r.DropLocation, &period, &r.RidesCount); err != nil {
			return nil, fmt.Errorf("scan aggregate record: %w", err)
		}
		r.RidePeriod = models.RidePeriod(period)
		records = append(records, r)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate published aggregate: %w", err)
	}
	return records, nil
}

// PublishedVersion returns the currently published aggregate version;
// 0 means nothing has been published yet.
func (s *Store) PublishedVersion(ctx context.Context) (int64, error) {
	var v int64
	err := s.conn.QueryRowContext(ctx,
		`SELECT aggregate_version FROM published_state WHERE id = 1`).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("read published version: %w", err)
	}
	return v, nil
}

// PublishRun persists the merged aggregate and the recommendation set as a
// new version and repoints published_state at it, all in one transaction.
// The pointer update is the commit point: until the transaction commits,
// readers keep seeing the previous version, and a failure at any earlier
// step rolls everything back leaving the prior publication intact.
func (s *Store) PublishRun(ctx context.Context, partition string, aggregate []models.AggregateRecord, entries []models.RecommendationEntry) (version int64, err error) {
	start := time.Now()
	defer func() { metrics.ObserveStoreQuery("publish_run", "published_state", start, err) }()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logging.Error().Err(rbErr).AnErr("original_error", err).Msg("Rollback failed")
			}
		}
	}()

	if err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM aggregate_versions`).Scan(&version); err != nil {
		return 0, fmt.Errorf("allocate version: %w", err)
	}

	aggStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO aggregate_counts
		 (version, user_id, pickup_location, drop_location, ride_period, rides_count)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare aggregate insert: %w", err)
	}
	defer func() { _ = aggStmt.Close() }()

	for i := range aggregate {
		r := &aggregate[i]
		if _, err = aggStmt.ExecContext(ctx,
			version, r.UserID, r.PickupLocation, r.DropLocation, r.RidePeriod.String(), r.RidesCount); err != nil {
			return 0, fmt.Errorf("insert aggregate row: %w", err)
		}
	}

	recStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO recommendations
		 (version, user_id, rank, pickup_location, drop_location, ride_period, rides_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare recommendation insert: %w", err)
	}
	defer func() { _ = recStmt.Close() }()

	for i := range entries {
		e := &entries[i]
		if _, err = recStmt.ExecContext(ctx,
			version, e.UserID, e.Rank, e.PickupLocation, e.DropLocation, e.RidePeriod.String(), e.RidesCount); err != nil {
			return 0, fmt.Errorf("insert recommendation row: %w", err)
		}
	}

	now := time.Now().UTC()
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO aggregate_versions (version, partition_date, row_count, created_at)
		 VALUES (?, ?, ?, ?)`, version, partition, len(aggregate), now); err != nil {
		return 0, fmt.Errorf("record version: %w", err)
	}

	// The swap. Readers join through this row; committing it is what makes
	// the new version visible.
	if _, err = tx.ExecContext(ctx,
		`UPDATE published_state
		 SET aggregate_version = ?, recommendation_version = ?, published_at = ?
		 WHERE id = 1`, version, version, now); err != nil {
		return 0, fmt.Errorf("repoint published_state: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit publication: %w", err)
	}
	return version, nil
}

// PruneVersions removes rows invisible to readers: orphan versions newer
// than the published pointer (left by runs that failed before the swap)
// and superseded versions older than the newest keepDepth publications.
// The published version itself is always retained.
func (s *Store) PruneVersions(ctx context.Context, keepDepth int) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveStoreQuery("prune", "aggregate_versions", start, err) }()

	if keepDepth < 1 {
		keepDepth = 1
	}

	var published int64
	if published, err = s.PublishedVersion(ctx); err != nil {
		return err
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logging.Error().Err(rbErr).AnErr("original_error", err).Msg("Rollback failed")
			}
		}
	}()

	floor := published - int64(keepDepth) + 1
	for _, table := range []string{"aggregate_counts", "recommendations", "aggregate_versions"} {
		if _, err = tx.ExecContext(ctx,
			// Orphans above the pointer, superseded below the keep floor.
			fmt.Sprintf(`DELETE FROM %s WHERE version > ? OR version < ?`, table),
			published, floor); err != nil {
			return fmt.Errorf("prune %s: %w", table, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit prune: %w", err)
	}
	return nil
}
