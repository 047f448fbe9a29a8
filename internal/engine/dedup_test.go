// RideLens - Ride Pickup/Drop Pair Recommendation Engine
// Copyright 2026 RideLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ridelens/ridelens

package engine

import (
	"testing"
	"time"

	"github.com/ridelens/ridelens/internal/models"
)

func event(rideID, userID, pickup, drop string, ts time.Time) models.RideEvent {
	return models.RideEvent{
		RideID:         rideID,
		UserID:         userID,
		PickupLocation: pickup,
		DropLocation:   drop,
		Timestamp:      ts,
		FareAmount:     120,
		DistanceKm:     5,
	}
}

func TestDeduplicateFirstOccurrenceWins(t *testing.T) {
	t1 := time.Date(2026, 8, 24, 8, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	events := []models.RideEvent{
		event("r1", "u1", "Home", "Work", t1),
		event("r2", "u1", "Home", "Gym", t1),
		event("r1", "u1", "Home", "WorkChanged", t2), // redelivery with drift
		event("r2", "u1", "Home", "Gym", t1),
		event("r1", "u1", "Home", "Work", t1),
	}

	unique, dups := Deduplicate(events)
	if len(unique) != 2 {
		t.Fatalf("unique = %d, want 2", len(unique))
	}
	if dups != 3 {
		t.Errorf("duplicates = %d, want 3", dups)
	}
	// First occurrence wins, including its payload.
	if unique[0].RideID != "r1" || unique[0].DropLocation != "Work" {
		t.Errorf("first occurrence not preserved: %+v", unique[0])
	}
	if unique[1].RideID != "r2" {
		t.Errorf("order not preserved: %+v", unique[1])
	}
}

func TestDeduplicateNoDuplicates(t *testing.T) {
	t1 := time.Date(2026, 8, 24, 8, 0, 0, 0, time.UTC)
	events := []models.RideEvent{
		event("r1", "u1", "A", "B", t1),
		event("r2", "u2", "C", "D", t1),
	}
	unique, dups := Deduplicate(events)
	if len(unique) != 2 || dups != 0 {
		t.Errorf("got %d unique, %d dups; want 2, 0", len(unique), dups)
	}
}

func TestDeduplicateEmpty(t *testing.T) {
	unique, dups := Deduplicate(nil)
	if unique != nil || dups != 0 {
		t.Errorf("got %v, %d; want nil, 0", unique, dups)
	}
}

// A rideId delivered n>1 times contributes exactly 1 to downstream counts.
func TestDeduplicateIdempotenceUnderRedelivery(t *testing.T) {
	t1 := time.Date(2026, 8, 24, 8, 0, 0, 0, time.UTC)
	var events []models.RideEvent
	for i := 0; i < 5; i++ {
		events = append(events, event("r1", "u1", "Home", "Work", t1))
	}

	unique, _ := Deduplicate(events)
	counts := AggregateBatch(unique, time.UTC, 1)
	if len(counts) != 1 {
		t.Fatalf("groups = %d, want 1", len(counts))
	}
	if counts[0].NewRideCount != 1 {
		t.Errorf("count = %d, want 1 despite 5 deliveries", counts[0].NewRideCount)
	}
}
