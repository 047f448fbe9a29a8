// RideLens - Ride Pickup/Drop Pair Recommendation Engine
// Copyright 2026 RideLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ridelens/ridelens

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ridelens/ridelens/internal/engine"
	"github.com/ridelens/ridelens/internal/logging"
	"github.com/ridelens/ridelens/internal/metrics"
	"github.com/ridelens/ridelens/internal/models"
)

// InsertEventsBatch writes validated ride events into the partitioned
// event log. Inserts are idempotent on ride_id (ON CONFLICT DO NOTHING),
// so broker redeliveries that slip past the ingest dedup index do not
// create second rows. Returns how many rows were inserted and how many
// were conflict-skipped.
// insertOutcome classifies what one ON CONFLICT insert did to the table.
type insertOutcome int

const (
	insertNew insertOutcome = iota
	insertSkipped
	insertUnknown
)

func classifyInsert(res sql.Result) (insertOutcome, error) {
	n, err := res.RowsAffected()
	switch {
	case err != nil:
		return insertUnknown, err
	case n == 0:
		return insertSkipped, nil
	default:
		return insertNew, nil
	}
}

func (s *Store) InsertEventsBatch(ctx context.Context, events []models.RideEvent) (inserted, duplicates int, err error) {
	if len(events) == 0 {
		return 0, 0, nil
	}
	start := time.Now()
	defer func() { metrics.ObserveStoreQuery("insert_batch", "ride_events", start, err) }()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logging.Error().Err(rbErr).AnErr("original_error", err).Msg("Rollback failed")
			}
		}
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO ride_events (
			ride_id, user_id, pickup_location, drop_location,
			event_time, partition_date, ride_type, fare_amount, distance_km, ingested_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (ride_id) DO NOTHING`)
	if err != nil {
		return 0, 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().UTC()
	for i := range events {
		e := &events[i]
		res, execErr := stmt.ExecContext(ctx,
			e.RideID, e.UserID, e.PickupLocation, e.DropLocation,
			e.Timestamp.UTC(), e.PartitionDate(s.loc), e.RideType,
			e.FareAmount, e.DistanceKm, now)
		if execErr != nil {
			err = fmt.Errorf("insert ride %s: %w", e.RideID, execErr)
			return 0, 0, err
		}
		switch outcome, raErr := classifyInsert(res); outcome {
		case insertUnknown:
			// The row is committed either way; only the counters are off.
			logging.Warn().Err(raErr).Str("ride_id", e.RideID).Msg("Rows-affected unavailable for insert")
		case insertSkipped:
			duplicates++
		default:
			inserted++
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit insert batch: %w", err)
	}
	return inserted, duplicates, nil
}

// ReadPartition returns all ride events for one date partition,
// ordered by ingestion so redelivery dedup keeps the first-seen payload.
// A partition with no rows returns engine.ErrPartitionUnavailable: the run
// must abort rather than publish an update computed from missing data.
func (s *Store) ReadPartition(ctx context.Context, date string) (events []models.RideEvent, err error) {
	start := time.Now()
	defer func() { metrics.ObserveStoreQuery("read_partition", "ride_events", start, err) }()

	rows, err := s.conn.QueryContext(ctx,
		`SELECT ride_id, user_id, pickup_location, drop_location,
		        event_time, ride_type, fare_amount, distance_km
		 FROM ride_events
		 WHERE partition_date = ?
		 ORDER BY ingested_at, ride_id`, date)
	if err != nil {
		return nil, fmt.Errorf("query partition %s: %w", date, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var e models.RideEvent
		var rideType *string
		if err = rows.Scan(&e.RideID, &e.UserID, &e.PickupLocation, &e.DropLocation,
			&e.Timestamp, &rideType, &e.FareAmount, &e.DistanceKm); err != nil {
			return nil, fmt.Errorf("scan ride event: %w", err)
		}
		if rideType != nil {
			e.RideType = *rideType
		}
		events = append(events, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate partition %s: %w", date, err)
	}

	if len(events) == 0 {
		return nil, fmt.Errorf("partition %s: %w", date, engine.ErrPartitionUnavailable)
	}
	return events, nil
}

// PurgeEventsBefore deletes raw event partitions older than the cutoff
// date (YYYY-MM-DD). Aggregate history is never touched: cumulative counts
// persist regardless of raw event retention.
func (s *Store) PurgeEventsBefore(ctx context.Context, cutoff string) (deleted int64, err error) {
	start := time.Now()
	defer func() { metrics.ObserveStoreQuery("purge", "ride_events", start, err) }()

	res, err := s.conn.ExecContext(ctx,
		`DELETE FROM ride_events WHERE partition_date < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge events before %s: %w", cutoff, err)
	}
	deleted, _ = res.RowsAffected()
	if deleted > 0 {
		logging.Info().Int64("deleted", deleted).Str("cutoff", cutoff).Msg("Purged raw event partitions")
	}
	return deleted, nil
}
