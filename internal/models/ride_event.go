// RideLens - Ride Pickup/Drop Pair Recommendation Engine
// Copyright 2026 RideLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ridelens/ridelens

// Package models defines the data structures shared across RideLens:
// ride events, cumulative aggregate records, and published recommendations.
package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrMalformedEvent marks an event that fails validation. Malformed events
// are skipped and counted, never fatal for a batch.
var ErrMalformedEvent = errors.New("malformed ride event")

// RideEvent represents one completed ride, immutable once ingested.
//
// Events arrive from the broker with at-least-once delivery, so RideID is
// the only identity that matters for exactly-once counting: every
// downstream consumer deduplicates on it.
type RideEvent struct {
	// RideID is the globally unique ride identifier.
	RideID string `json:"ride_id"`

	// UserID identifies the rider.
	UserID string `json:"user_id"`

	// PickupLocation and DropLocation are opaque location strings.
	// No geocoding or semantic deduplication is applied.
	PickupLocation string `json:"pickup_location"`
	DropLocation   string `json:"drop_location"`

	// Timestamp is the ride completion time in the source timezone.
	Timestamp time.Time `json:"timestamp"`

	// RideType is the product category (mini, sedan, auto, ...).
	RideType string `json:"ride_type,omitempty"`

	// FareAmount is the ride fare, non-negative.
	FareAmount float64 `json:"fare_amount"`

	// DistanceKm is the ride distance in kilometers, non-negative.
	DistanceKm float64 `json:"distance_km"`
}

// Validate checks required fields and value ranges.
// A failing event wraps ErrMalformedEvent so callers can classify it.
func (e *RideEvent) Validate() error {
	switch {
	case e.RideID == "":
		return fmt.Errorf("%w: missing ride_id", ErrMalformedEvent)
	case e.UserID == "":
		return fmt.Errorf("%w: missing user_id (ride %s)", ErrMalformedEvent, e.RideID)
	case e.PickupLocation == "":
		return fmt.Errorf("%w: missing pickup_location (ride %s)", ErrMalformedEvent, e.RideID)
	case e.DropLocation == "":
		return fmt.Errorf("%w: missing drop_location (ride %s)", ErrMalformedEvent, e.RideID)
	case e.Timestamp.IsZero():
		return fmt.Errorf("%w: missing timestamp (ride %s)", ErrMalformedEvent, e.RideID)
	case e.FareAmount < 0:
		return fmt.Errorf("%w: negative fare_amount (ride %s)", ErrMalformedEvent, e.RideID)
	case e.DistanceKm < 0:
		return fmt.Errorf("%w: negative distance_km (ride %s)", ErrMalformedEvent, e.RideID)
	}
	return nil
}

// PartitionDate returns the calendar date this event belongs to, evaluated
// in the given location. Partitioning and ride-period classification must
// use the same zone or a ride near midnight lands in one partition but
// classifies as the other day's period.
func (e *RideEvent) PartitionDate(loc *time.Location) string {
	return e.Timestamp.In(loc).Format("2006-01-02")
}
