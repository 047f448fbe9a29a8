// RideLens - Ride Pickup/Drop Pair Recommendation Engine
// Copyright 2026 RideLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ridelens/ridelens

// Package api serves published recommendations over HTTP using the Chi
// router. The surface is read-only: per-user recommendations, health
// probes, and Prometheus metrics. All data reads go through the published
// version pointer, so responses always reflect a complete run's output,
// never a partial one.
package api
