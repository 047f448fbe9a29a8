// RideLens - Ride Pickup/Drop Pair Recommendation Engine
// Copyright 2026 RideLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ridelens/ridelens

// Package config loads and validates RideLens configuration via Koanf v2
// with layered sources (highest priority wins):
//
//  1. Environment variables (RIDELENS_ prefix, e.g. RIDELENS_ENGINE_TOP_K)
//  2. Config file (config.yaml, overridable via CONFIG_PATH)
//  3. Built-in defaults
package config

import (
	"time"
)

// Config is the root configuration for the RideLens process.
type Config struct {
	Database  DatabaseConfig  `koanf:"database"`
	NATS      NATSConfig      `koanf:"nats"`
	Ingest    IngestConfig    `koanf:"ingest"`
	Engine    EngineConfig    `koanf:"engine"`
	Server    ServerConfig    `koanf:"server"`
	Retention RetentionConfig `koanf:"retention"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// DatabaseConfig configures the DuckDB store.
type DatabaseConfig struct {
	// Path is the DuckDB database file. ":memory:" is accepted for tests.
	Path string `koanf:"path"`

	// MaxMemory is the DuckDB memory limit (e.g. "2GB").
	MaxMemory string `koanf:"max_memory"`

	// Threads is the DuckDB thread count; 0 means runtime.NumCPU().
	Threads int `koanf:"threads"`
}

// NATSConfig configures the JetStream connection used for ride ingestion.
type NATSConfig struct {
	Enabled bool `koanf:"enabled"`

	// URL of the external NATS server. Ignored when EmbeddedServer is true.
	URL string `koanf:"url"`

	// EmbeddedServer runs an in-process NATS server for single-instance
	// deployments.
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`
	MaxMemory      int64  `koanf:"max_memory"`
	MaxStore       int64  `koanf:"max_store"`

	// StreamName and Subjects define the ride-events stream.
	StreamName string   `koanf:"stream_name"`
	Subjects   []string `koanf:"subjects"`

	// StreamMaxAge bounds broker-side retention. The event store, not the
	// broker, is the durable system of record.
	StreamMaxAge time.Duration `koanf:"stream_max_age"`
}

// IngestConfig configures the consumer that turns broker deliveries into
// event-store rows.
type IngestConfig struct {
	// Topic is the subject pattern to subscribe to.
	Topic string `koanf:"topic"`

	// DurableName and QueueGroup configure the JetStream consumer.
	DurableName string `koanf:"durable_name"`
	QueueGroup  string `koanf:"queue_group"`

	// SubscribersCount is the number of concurrent subscriptions.
	SubscribersCount int `koanf:"subscribers_count"`

	// BatchSize and FlushInterval control event-store write batching:
	// a batch is written when it reaches BatchSize events or when
	// FlushInterval has elapsed since the first buffered event.
	BatchSize     int           `koanf:"batch_size"`
	FlushInterval time.Duration `koanf:"flush_interval"`

	// DedupPath is the Badger directory for the durable rideId index.
	// Empty disables the durable index (the engine-side deduplicator and
	// the store's rideId conflict handling still protect counts).
	DedupPath string `koanf:"dedup_path"`

	// DedupWindow is how long rideIds are remembered.
	DedupWindow time.Duration `koanf:"dedup_window"`

	// RatePerSecond throttles event-store writes; 0 disables throttling.
	RatePerSecond int `koanf:"rate_per_second"`

	// Breaker settings for the event-store write path.
	BreakerThreshold uint32        `koanf:"breaker_threshold"`
	BreakerTimeout   time.Duration `koanf:"breaker_timeout"`
}

// EngineConfig configures the aggregation and ranking engine.
type EngineConfig struct {
	// TopK is the rank cutoff for published recommendations. Ties at the
	// boundary rank may push a user past TopK rows; that over-production
	// is preserved and the serving layer applies its own limit.
	TopK int `koanf:"top_k"`

	// Timezone is the fixed source timezone used for partition boundaries
	// and ride-period classification.
	Timezone string `koanf:"timezone"`

	// Workers bounds the concurrency of the aggregation and ranking
	// stages; 0 means runtime.NumCPU().
	Workers int `koanf:"workers"`

	// RunHour is the local hour (0-23) at which the scheduler triggers the
	// daily run for yesterday's partition.
	RunHour int `koanf:"run_hour"`

	// RetryAttempts and RetryDelay govern scheduler-driven retries of
	// fatal run failures.
	RetryAttempts int           `koanf:"retry_attempts"`
	RetryDelay    time.Duration `koanf:"retry_delay"`
}

// ServerConfig configures the HTTP serving surface.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`

	// RateLimitReqs requests per RateLimitWindow per client IP.
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`

	CORSOrigins []string `koanf:"cors_origins"`

	// DefaultLimit and MaxLimit bound the per-user entry count returned by
	// the recommendations endpoint.
	DefaultLimit int `koanf:"default_limit"`
	MaxLimit     int `koanf:"max_limit"`
}

// RetentionConfig configures raw event housekeeping. Aggregate history is
// never purged.
type RetentionConfig struct {
	// EventHorizonDays is how many days of raw ride_events partitions to
	// keep; 0 keeps everything.
	EventHorizonDays int `koanf:"event_horizon_days"`

	// PublishedKeepDepth is how many superseded published versions to
	// retain for inspection.
	PublishedKeepDepth int `koanf:"published_keep_depth"`

	// Interval between housekeeping sweeps.
	Interval time.Duration `koanf:"interval"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:      "/data/ridelens.duckdb",
			MaxMemory: "2GB",
			Threads:   0,
		},
		NATS: NATSConfig{
			Enabled:        true,
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: false,
			StoreDir:       "/data/nats/jetstream",
			MaxMemory:      1 << 30,  // 1GB
			MaxStore:       10 << 30, // 10GB
			StreamName:     "RIDES",
			Subjects:       []string{"rides.completed", "rides.completed.>"},
			StreamMaxAge:   7 * 24 * time.Hour,
		},
		Ingest: IngestConfig{
			Topic:            "rides.completed",
			DurableName:      "ridelens-ingest",
			QueueGroup:       "ingesters",
			SubscribersCount: 4,
			BatchSize:        500,
			FlushInterval:    2 * time.Second,
			DedupPath:        "/data/ridelens-dedup",
			DedupWindow:      48 * time.Hour,
			RatePerSecond:    0,
			BreakerThreshold: 5,
			BreakerTimeout:   30 * time.Second,
		},
		Engine: EngineConfig{
			TopK:          10,
			Timezone:      "Asia/Kolkata",
			Workers:       0,
			RunHour:       2,
			RetryAttempts: 3,
			RetryDelay:    5 * time.Minute,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8643,
			Timeout:         30 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
			DefaultLimit:    10,
			MaxLimit:        100,
		},
		Retention: RetentionConfig{
			EventHorizonDays:   90,
			PublishedKeepDepth: 3,
			Interval:           6 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}
