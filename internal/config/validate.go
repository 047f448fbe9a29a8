// RideLens - Ride Pickup/Drop Pair Recommendation Engine
// Copyright 2026 RideLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ridelens/ridelens

package config

import (
	"fmt"
	"time"
)

// Validate checks that required configuration is present and consistent.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateDatabase,
		c.validateNATS,
		c.validateIngest,
		c.validateEngine,
		c.validateServer,
		c.validateRetention,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Database.Threads < 0 {
		return fmt.Errorf("database.threads must be >= 0, got %d", c.Database.Threads)
	}
	return nil
}

func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}
	if !c.NATS.EmbeddedServer && c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required when nats.embedded_server=false")
	}
	if c.NATS.EmbeddedServer && c.NATS.StoreDir == "" {
		return fmt.Errorf("nats.store_dir is required when nats.embedded_server=true")
	}
	if c.NATS.StreamName == "" {
		return fmt.Errorf("nats.stream_name is required when nats.enabled=true")
	}
	if len(c.NATS.Subjects) == 0 {
		return fmt.Errorf("nats.subjects must not be empty when nats.enabled=true")
	}
	return nil
}

func (c *Config) validateIngest() error {
	if !c.NATS.Enabled {
		return nil
	}
	if c.Ingest.Topic == "" {
		return fmt.Errorf("ingest.topic is required when nats.enabled=true")
	}
	if c.Ingest.SubscribersCount < 1 {
		return fmt.Errorf("ingest.subscribers_count must be >= 1, got %d", c.Ingest.SubscribersCount)
	}
	if c.Ingest.BatchSize < 1 {
		return fmt.Errorf("ingest.batch_size must be >= 1, got %d", c.Ingest.BatchSize)
	}
	if c.Ingest.FlushInterval <= 0 {
		return fmt.Errorf("ingest.flush_interval must be positive, got %s", c.Ingest.FlushInterval)
	}
	if c.Ingest.DedupPath != "" && c.Ingest.DedupWindow <= 0 {
		return fmt.Errorf("ingest.dedup_window must be positive when ingest.dedup_path is set")
	}
	if c.Ingest.RatePerSecond < 0 {
		return fmt.Errorf("ingest.rate_per_second must be >= 0, got %d", c.Ingest.RatePerSecond)
	}
	return nil
}

func (c *Config) validateEngine() error {
	if c.Engine.TopK < 1 {
		return fmt.Errorf("engine.top_k must be >= 1, got %d", c.Engine.TopK)
	}
	if c.Engine.Workers < 0 {
		return fmt.Errorf("engine.workers must be >= 0, got %d", c.Engine.Workers)
	}
	if c.Engine.RunHour < 0 || c.Engine.RunHour > 23 {
		return fmt.Errorf("engine.run_hour must be in [0,23], got %d", c.Engine.RunHour)
	}
	if c.Engine.RetryAttempts < 0 {
		return fmt.Errorf("engine.retry_attempts must be >= 0, got %d", c.Engine.RetryAttempts)
	}
	if _, err := time.LoadLocation(c.Engine.Timezone); err != nil {
		return fmt.Errorf("engine.timezone %q is not a valid IANA zone: %w", c.Engine.Timezone, err)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1,65535], got %d", c.Server.Port)
	}
	if c.Server.DefaultLimit < 1 {
		return fmt.Errorf("server.default_limit must be >= 1, got %d", c.Server.DefaultLimit)
	}
	if c.Server.MaxLimit < c.Server.DefaultLimit {
		return fmt.Errorf("server.max_limit (%d) must be >= server.default_limit (%d)",
			c.Server.MaxLimit, c.Server.DefaultLimit)
	}
	return nil
}

func (c *Config) validateRetention() error {
	if c.Retention.EventHorizonDays < 0 {
		return fmt.Errorf("retention.event_horizon_days must be >= 0, got %d", c.Retention.EventHorizonDays)
	}
	if c.Retention.PublishedKeepDepth < 1 {
		return fmt.Errorf("retention.published_keep_depth must be >= 1, got %d", c.Retention.PublishedKeepDepth)
	}
	return nil
}

// Location resolves the engine timezone. Validate must have succeeded
// before calling.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Engine.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
