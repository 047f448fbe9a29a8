// RideLens - Ride Pickup/Drop Pair Recommendation Engine
// Copyright 2026 RideLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ridelens/ridelens

package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ridelens/ridelens/internal/metrics"
	"github.com/ridelens/ridelens/internal/models"
)

// RecommendationFilter narrows the recommendation read path. Zero values
// mean "no filter"; Limit <= 0 means no cap beyond what was published.
type RecommendationFilter struct {
	ExcludePeriod models.RidePeriod
	Pickup        string
	Limit         int
}

// Recommendations returns the published recommendation entries for one
// user, best pairs first. Filters apply after ranking, so ranks may have
// gaps when entries are excluded.
func (s *Store) Recommendations(ctx context.Context, userID string, f RecommendationFilter) (entries []models.RecommendationEntry, err error) {
	start := time.Now()
	defer func() { metrics.ObserveStoreQuery("read_recommendations", "recommendations", start, err) }()

	var sb strings.Builder
	sb.WriteString(
		`SELECT user_id, rank, pickup_location, drop_location, ride_period, rides_count
		 FROM recommendations
		 WHERE version = (SELECT recommendation_version FROM published_state WHERE id = 1)
		   AND user_id = ?`)
	args := []any{userID}

	if f.ExcludePeriod != "" {
		sb.WriteString(` AND ride_period <> ?`)
		args = append(args, f.ExcludePeriod.String())
	}
	if f.Pickup != "" {
		sb.WriteString(` AND pickup_location = ?`)
		args = append(args, f.Pickup)
	}
	sb.WriteString(` ORDER BY rank, pickup_location, drop_location, ride_period`)
	if f.Limit > 0 {
		sb.WriteString(` LIMIT ?`)
		args = append(args, f.Limit)
	}

	rows, err := s.conn.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query recommendations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var e models.RecommendationEntry
		var period string
		if err = rows.Scan(&e.UserID, &e.Rank, &e.PickupLocation, &e.DropLocation, &period, &e.RidesCount); err != nil {
			return nil, fmt.Errorf("scan recommendation: %w", err)
		}
		e.RidePeriod = models.RidePeriod(period)
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recommendations: %w", err)
	}
	return entries, nil
}
