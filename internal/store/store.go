// RideLens - Ride Pickup/Drop Pair Recommendation Engine
// Copyright 2026 RideLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ridelens/ridelens

// Package store persists RideLens state in DuckDB: the partitioned
// ride-event log, versioned aggregate snapshots, and versioned
// recommendation publications behind a single atomically-swapped pointer.
//
// Versioning is what makes publication atomic from the reader's point of
// view: each run writes a complete new aggregate and recommendation set
// under a fresh version number, then repoints the singleton published_state
// row inside the same transaction. Readers always join through
// published_state, so they observe the pre-run or post-run state, never a
// partially written one. A run that fails before the swap leaves orphan
// rows that housekeeping prunes later; the published pointer is untouched.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/ridelens/ridelens/internal/config"
	"github.com/ridelens/ridelens/internal/logging"
)

// Store wraps the DuckDB connection and provides data access methods.
// The engine is the sole writer; API readers share the same pool.
type Store struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig
	loc  *time.Location
}

// New opens (or creates) the database and initializes the schema. loc is
// the engine timezone used to derive partition dates from event
// timestamps.
func New(cfg *config.DatabaseConfig, loc *time.Location) (*Store, error) {
	if loc == nil {
		loc = time.UTC
	}

	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	// The parent directory may not exist on first start.
	if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." && cfg.Path != ":memory:" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", dir, err)
		}
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s",
		cfg.Path, threads, cfg.MaxMemory)
	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{conn: conn, cfg: cfg, loc: loc}
	if err := s.initialize(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Int("threads", threads).Msg("Database ready")
	return s, nil
}

// initialize creates the schema when missing and seeds the published
// pointer at version 0 (nothing published yet).
func (s *Store) initialize() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS ride_events (
			ride_id         TEXT PRIMARY KEY,
			user_id         TEXT NOT NULL,
			pickup_location TEXT NOT NULL,
			drop_location   TEXT NOT NULL,
			event_time      TIMESTAMP NOT NULL,
			partition_date  DATE NOT NULL,
			ride_type       TEXT,
			fare_amount     DOUBLE NOT NULL,
			distance_km     DOUBLE NOT NULL,
			ingested_at     TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ride_events_partition ON ride_events (partition_date)`,
		`CREATE TABLE IF NOT EXISTS aggregate_versions (
			version        BIGINT PRIMARY KEY,
			partition_date DATE NOT NULL,
			row_count      BIGINT NOT NULL,
			created_at     TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS aggregate_counts (
			version         BIGINT NOT NULL,
			user_id         TEXT NOT NULL,
			pickup_location TEXT NOT NULL,
			drop_location   TEXT NOT NULL,
			ride_period     TEXT NOT NULL,
			rides_count     BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_aggregate_counts_version ON aggregate_counts (version)`,
		`CREATE TABLE IF NOT EXISTS recommendations (
			version         BIGINT NOT NULL,
			user_id         TEXT NOT NULL,
			rank            INTEGER NOT NULL,
			pickup_location TEXT NOT NULL,
			drop_location   TEXT NOT NULL,
			ride_period     TEXT NOT NULL,
			rides_count     BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_recommendations_version_user ON recommendations (version, user_id)`,
		`CREATE TABLE IF NOT EXISTS published_state (
			id                     INTEGER PRIMARY KEY CHECK (id = 1),
			aggregate_version      BIGINT NOT NULL,
			recommendation_version BIGINT NOT NULL,
			published_at           TIMESTAMP
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.conn.Exec(stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}

	_, err := s.conn.Exec(
		`INSERT INTO published_state (id, aggregate_version, recommendation_version, published_at)
		 VALUES (1, 0, 0, NULL)
		 ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("seed published_state: %w", err)
	}
	return nil
}

// Ping verifies the connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Location returns the engine timezone the store partitions by.
func (s *Store) Location() *time.Location {
	return s.loc
}
