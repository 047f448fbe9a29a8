// RideLens - Ride Pickup/Drop Pair Recommendation Engine
// Copyright 2026 RideLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ridelens/ridelens

package engine

import (
	"sort"

	"github.com/ridelens/ridelens/internal/models"
)

// Merge combines the persisted aggregate with a batch's new counts using
// full-outer semantics on the shared key:
//
//   - keys only in history keep their existing count unchanged
//   - keys only in the batch are inserted with the batch count
//   - keys in both have counts summed
//
// The output is the complete updated aggregate, a superset of history that
// never shrinks, sorted by key for reproducible downstream processing.
//
// Merge is additive, not idempotent: merging an already-merged batch again
// double-counts. Deduplication upstream and the fresh history read on retry
// are what make re-execution safe, not this function.
func Merge(history []models.AggregateRecord, batch []models.BatchCount) []models.AggregateRecord {
	merged := make(map[models.AggregateKey]int64, len(history)+len(batch))
	for _, r := range history {
		merged[r.AggregateKey] = r.RidesCount
	}
	for _, b := range batch {
		merged[b.AggregateKey] += b.NewRideCount
	}

	out := make([]models.AggregateRecord, 0, len(merged))
	for k, n := range merged {
		out = append(out, models.AggregateRecord{AggregateKey: k, RidesCount: n})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].AggregateKey.Less(out[j].AggregateKey)
	})
	return out
}
