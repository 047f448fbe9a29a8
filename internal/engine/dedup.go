// RideLens - Ride Pickup/Drop Pair Recommendation Engine
// Copyright 2026 RideLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ridelens/ridelens

package engine

import "github.com/ridelens/ridelens/internal/models"

// Deduplicate removes redelivered events from a batch, keeping the first
// occurrence of each rideId. Duplicates are dropped silently; the returned
// count exists for observability only.
//
// This is a correctness requirement, not an optimization: counts are
// cumulative and never corrected downstream, so a redelivered event that
// slips through inflates ridesCount permanently.
func Deduplicate(events []models.RideEvent) (unique []models.RideEvent, duplicates int) {
	if len(events) == 0 {
		return nil, 0
	}

	seen := make(map[string]struct{}, len(events))
	unique = make([]models.RideEvent, 0, len(events))
	for _, e := range events {
		if _, ok := seen[e.RideID]; ok {
			duplicates++
			continue
		}
		seen[e.RideID] = struct{}{}
		unique = append(unique, e)
	}
	return unique, duplicates
}
