// RideLens - Ride Pickup/Drop Pair Recommendation Engine
// Copyright 2026 RideLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ridelens/ridelens

// Package ingest moves completed-ride events from NATS JetStream into the
// DuckDB event store.
//
// The pipeline is: durable JetStream subscription -> JSON decode and
// validation -> rideId dedup index -> batched, circuit-breaker-protected
// writes into the partitioned ride_events table. Messages are acked only
// after their batch commits, so a crash between receive and commit results
// in redelivery, and redelivery is harmless: the dedup index and the
// store's rideId primary key both drop the second copy.
//
// An embedded NATS server is available for single-instance deployments;
// multi-instance deployments point the subscriber at an external cluster
// and share the load through a queue group.
package ingest
