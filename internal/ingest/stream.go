// RideLens - Ride Pickup/Drop Pair Recommendation Engine
// Copyright 2026 RideLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ridelens/ridelens

package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/ridelens/ridelens/internal/config"
)

// StreamManager handles the ride-events JetStream stream lifecycle.
type StreamManager struct {
	js  jetstream.JetStream
	nc  *nats.Conn
	cfg config.NATSConfig
}

// NewStreamManager creates a stream manager over an established
// connection.
func NewStreamManager(nc *nats.Conn, cfg *config.NATSConfig) (*StreamManager, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}
	return &StreamManager{js: js, nc: nc, cfg: *cfg}, nil
}

// EnsureStream creates or updates the ride-events stream. The broker is a
// buffer, not the system of record: retention is limits-based and bounded
// by StreamMaxAge, while the event store keeps the durable copy. The
// duplicate window gives publisher-side msg-id dedup on top of the
// consumer's rideId index.
func (m *StreamManager) EnsureStream(ctx context.Context, dedupWindow time.Duration) (jetstream.Stream, error) {
	streamCfg := jetstream.StreamConfig{
		Name:       m.cfg.StreamName,
		Subjects:   m.cfg.Subjects,
		Retention:  jetstream.LimitsPolicy,
		MaxAge:     m.cfg.StreamMaxAge,
		MaxBytes:   m.cfg.MaxStore,
		Duplicates: dedupWindow,
		Storage:    jetstream.FileStorage,
		Discard:    jetstream.DiscardOld,
	}

	if _, err := m.js.Stream(ctx, m.cfg.StreamName); err == nil {
		stream, err := m.js.UpdateStream(ctx, streamCfg)
		if err != nil {
			return nil, fmt.Errorf("update stream %s: %w", m.cfg.StreamName, err)
		}
		return stream, nil
	}

	stream, err := m.js.CreateStream(ctx, streamCfg)
	if err != nil {
		return nil, fmt.Errorf("create stream %s: %w", m.cfg.StreamName, err)
	}
	return stream, nil
}

// StreamInfo returns current stream state for health reporting.
func (m *StreamManager) StreamInfo(ctx context.Context) (*jetstream.StreamInfo, error) {
	stream, err := m.js.Stream(ctx, m.cfg.StreamName)
	if err != nil {
		return nil, fmt.Errorf("get stream %s: %w", m.cfg.StreamName, err)
	}
	return stream.Info(ctx)
}
