// RideLens - Ride Pickup/Drop Pair Recommendation Engine
// Copyright 2026 RideLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ridelens/ridelens

package models

// AggregateKey is the composite key the engine aggregates on. It is unique
// within one aggregate version.
type AggregateKey struct {
	UserID         string     `json:"user_id"`
	PickupLocation string     `json:"pickup_location"`
	DropLocation   string     `json:"drop_location"`
	RidePeriod     RidePeriod `json:"ride_period"`
}

// Less imposes the deterministic ordering used for tie-breaks and stable
// output: user, pickup, drop, then ride period, all lexicographic.
func (k AggregateKey) Less(other AggregateKey) bool {
	if k.UserID != other.UserID {
		return k.UserID < other.UserID
	}
	if k.PickupLocation != other.PickupLocation {
		return k.PickupLocation < other.PickupLocation
	}
	if k.DropLocation != other.DropLocation {
		return k.DropLocation < other.DropLocation
	}
	return k.RidePeriod < other.RidePeriod
}

// AggregateRecord is one row of the durable cumulative state: the total
// number of rides observed for a key across all merged partitions.
// RidesCount is monotonically non-decreasing across successive merges.
type AggregateRecord struct {
	AggregateKey
	RidesCount int64 `json:"rides_count"`
}

// BatchCount is one row of a batch-local aggregation: the number of rides
// observed for a key within a single date partition. It never consults
// historical state.
type BatchCount struct {
	AggregateKey
	NewRideCount int64 `json:"new_ride_count"`
}

// RecommendationEntry is one row of the published per-user ranking. Entries
// are recomputed wholesale each run; a new publication entirely supersedes
// the previous set.
//
// For a fixed user the ranks form a prefix of 1..K under standard
// (non-dense) ranking: tied counts share a rank and consume rank slots, so
// ties at the boundary rank may push the row count past K.
type RecommendationEntry struct {
	UserID         string     `json:"user_id"`
	Rank           int        `json:"rank"`
	PickupLocation string     `json:"pickup_location"`
	DropLocation   string     `json:"drop_location"`
	RidePeriod     RidePeriod `json:"ride_period"`
	RidesCount     int64      `json:"rides_count"`
}
