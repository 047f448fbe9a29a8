// RideLens - Ride Pickup/Drop Pair Recommendation Engine
// Copyright 2026 RideLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ridelens/ridelens

// Package engine implements the recommendation aggregation and ranking
// pipeline. One run processes a single date partition:
//
//	read partition -> dedup -> classify+count -> merge with history ->
//	rank top-K per user -> publish (atomic version swap)
//
// The engine owns the cumulative aggregate (counts per user, pickup, drop,
// ride period) and the published recommendation set. Both are recomputed
// against a fresh snapshot on every run, so a failed run is simply retried:
// nothing is visible to readers until the final swap commits.
package engine
