// RideLens - Ride Pickup/Drop Pair Recommendation Engine
// Copyright 2026 RideLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ridelens/ridelens

package engine

import (
	"runtime"
	"sort"
	"sync"

	"github.com/ridelens/ridelens/internal/models"
)

// Rank partitions the merged aggregate by user, orders each partition by
// ridesCount descending, assigns standard (non-dense) ranks, and retains
// rows with rank <= k.
//
// Standard ranking: tied counts share a rank and consume rank slots, so the
// next distinct count's rank is the number of strictly higher rows plus
// one (1,1,3,...). A tie across the boundary rank keeps every tied row, so
// a user may get more than k rows; the serving layer applies the display
// cutoff. Within equal counts the tie-break is the deterministic key order
// (pickup, drop, ride period), which keeps output reproducible on any
// execution schedule.
//
// Users are ranked concurrently across workers; the final entry slice is
// ordered by (user, rank, key) regardless of scheduling.
func Rank(records []models.AggregateRecord, k, workers int) []models.RecommendationEntry {
	if len(records) == 0 || k < 1 {
		return nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	byUser := make(map[string][]models.AggregateRecord)
	users := make([]string, 0)
	for _, r := range records {
		if _, ok := byUser[r.UserID]; !ok {
			users = append(users, r.UserID)
		}
		byUser[r.UserID] = append(byUser[r.UserID], r)
	}
	sort.Strings(users)

	results := make([][]models.RecommendationEntry, len(users))
	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	for i, u := range users {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, rows []models.AggregateRecord) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = rankUser(rows, k)
		}(i, byUser[u])
	}
	wg.Wait()

	var out []models.RecommendationEntry
	for _, entries := range results {
		out = append(out, entries...)
	}
	return out
}

// rankUser ranks a single user's rows and truncates at rank k.
func rankUser(rows []models.AggregateRecord, k int) []models.RecommendationEntry {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].RidesCount != rows[j].RidesCount {
			return rows[i].RidesCount > rows[j].RidesCount
		}
		return rows[i].AggregateKey.Less(rows[j].AggregateKey)
	})

	entries := make([]models.RecommendationEntry, 0, min(len(rows), k))
	rank := 1
	for i, r := range rows {
		if i > 0 && r.RidesCount != rows[i-1].RidesCount {
			rank = i + 1
		}
		if rank > k {
			break
		}
		entries = append(entries, models.RecommendationEntry{
			UserID:         r.UserID,
			Rank:           rank,
			PickupLocation: r.PickupLocation,
			DropLocation:   r.DropLocation,
			RidePeriod:     r.RidePeriod,
			RidesCount:     r.RidesCount,
		})
	}
	return entries
}
