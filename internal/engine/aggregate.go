// RideLens - Ride Pickup/Drop Pair Recommendation Engine
// Copyright 2026 RideLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ridelens/ridelens

package engine

import (
	"hash/fnv"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/ridelens/ridelens/internal/models"
)

// AggregateBatch groups deduplicated events by (user, pickup, drop, ride
// period) and emits one BatchCount per group. The ride period is derived
// from each event's timestamp evaluated in loc.
//
// Grouping is batch-local and never consults historical state. Events are
// sharded by user across workers and shard counts are summed afterwards,
// so the result is exact regardless of shard assignment.
//
// The output is sorted by key so identical input always yields identical
// output.
func AggregateBatch(events []models.RideEvent, loc *time.Location, workers int) []models.BatchCount {
	if len(events) == 0 {
		return nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(events) {
		workers = 1
	}

	shards := make([][]models.RideEvent, workers)
	for _, e := range events {
		i := int(shardFor(e.UserID, workers))
		shards[i] = append(shards[i], e)
	}

	counts := make([]map[models.AggregateKey]int64, workers)
	var wg sync.WaitGroup
	for i := range shards {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m := make(map[models.AggregateKey]int64)
			for _, e := range shards[i] {
				key := models.AggregateKey{
					UserID:         e.UserID,
					PickupLocation: e.PickupLocation,
					DropLocation:   e.DropLocation,
					RidePeriod:     models.ClassifyRidePeriod(e.Timestamp.In(loc)),
				}
				m[key]++
			}
			counts[i] = m
		}(i)
	}
	wg.Wait()

	total := 0
	for _, m := range counts {
		total += len(m)
	}
	merged := make(map[models.AggregateKey]int64, total)
	for _, m := range counts {
		for k, n := range m {
			merged[k] += n
		}
	}

	out := make([]models.BatchCount, 0, len(merged))
	for k, n := range merged {
		out = append(out, models.BatchCount{AggregateKey: k, NewRideCount: n})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].AggregateKey.Less(out[j].AggregateKey)
	})
	return out
}

// shardFor maps a user to a worker shard.
func shardFor(userID string, workers int) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return h.Sum32() % uint32(workers) //nolint:gosec // workers is a small positive int
}
