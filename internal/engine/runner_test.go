// RideLens - Ride Pickup/Drop Pair Recommendation Engine
// Copyright 2026 RideLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ridelens/ridelens

package engine

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/ridelens/ridelens/internal/models"
)

// mockStore implements Store for testing.
type mockStore struct {
	events       map[string][]models.RideEvent
	published    []models.AggregateRecord
	entries      []models.RecommendationEntry
	version      int64
	readErr      error
	historyErr   error
	publishErr   error
	historyReads int
	publishes    int
}

func (m *mockStore) ReadPartition(_ context.Context, date string) ([]models.RideEvent, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	events, ok := m.events[date]
	if !ok {
		return nil, ErrPartitionUnavailable
	}
	return events, nil
}

func (m *mockStore) ReadPublishedAggregate(_ context.Context) ([]models.AggregateRecord, error) {
	m.historyReads++
	if m.historyErr != nil {
		return nil, m.historyErr
	}
	out := make([]models.AggregateRecord, len(m.published))
	copy(out, m.published)
	return out, nil
}

func (m *mockStore) PublishRun(_ context.Context, _ string, aggregate []models.AggregateRecord, entries []models.RecommendationEntry) (int64, error) {
	m.publishes++
	if m.publishErr != nil {
		return 0, m.publishErr
	}
	m.version++
	m.published = aggregate
	m.entries = entries
	return m.version, nil
}

func newRunner(store *mockStore) *Runner {
	return NewRunner(store, time.UTC, 10, 1)
}

// The concrete end-to-end scenario: history (u1,Home,Work,commute)=5, batch
// adds 3 events to that key and 1 event to (u1,Home,Gym,routine). Merged
// counts 8 and 1; ranks 1 and 2.
func TestRunConcreteScenario(t *testing.T) {
	commute := time.Date(2026, 8, 24, 8, 0, 0, 0, time.UTC)  // Monday 08:00
	routine := time.Date(2026, 8, 24, 13, 0, 0, 0, time.UTC) // Monday 13:00

	store := &mockStore{
		events: map[string][]models.RideEvent{
			"2026-08-24": {
				event("r1", "u1", "Home", "Work", commute),
				event("r2", "u1", "Home", "Work", commute),
				event("r3", "u1", "Home", "Work", commute),
				event("r4", "u1", "Home", "Gym", routine),
			},
		},
		published: []models.AggregateRecord{
			record("u1", "Home", "Work", models.PeriodWeekdayCommute, 5),
		},
	}

	result, err := newRunner(store).Run(context.Background(), "2026-08-24")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.MergedKeys != 2 || result.Entries != 2 {
		t.Errorf("result = %+v, want 2 merged keys and 2 entries", result)
	}

	wantAggregate := []models.AggregateRecord{
		record("u1", "Home", "Gym", models.PeriodWeekdayRoutine, 1),
		record("u1", "Home", "Work", models.PeriodWeekdayCommute, 8),
	}
	if !reflect.DeepEqual(store.published, wantAggregate) {
		t.Errorf("aggregate:\n got  %+v\n want %+v", store.published, wantAggregate)
	}

	wantEntries := []models.RecommendationEntry{
		{UserID: "u1", Rank: 1, PickupLocation: "Home", DropLocation: "Work", RidePeriod: models.PeriodWeekdayCommute, RidesCount: 8},
		{UserID: "u1", Rank: 2, PickupLocation: "Home", DropLocation: "Gym", RidePeriod: models.PeriodWeekdayRoutine, RidesCount: 1},
	}
	if !reflect.DeepEqual(store.entries, wantEntries) {
		t.Errorf("entries:\n got  %+v\n want %+v", store.entries, wantEntries)
	}
}

// Re-running with an empty batch over an already-merged aggregate is a
// no-op: aggregate and recommendation set come out bit-identical.
func TestRunEmptyBatchIsNoOp(t *testing.T) {
	store := &mockStore{
		events: map[string][]models.RideEvent{"2026-08-25": {}},
		published: []models.AggregateRecord{
			record("u1", "Home", "Work", models.PeriodWeekdayCommute, 8),
			record("u1", "Home", "Gym", models.PeriodWeekdayRoutine, 1),
		},
	}

	runner := newRunner(store)
	if _, err := runner.Run(context.Background(), "2026-08-25"); err != nil {
		t.Fatalf("first run: %v", err)
	}
	firstAggregate := store.published
	firstEntries := store.entries

	if _, err := runner.Run(context.Background(), "2026-08-25"); err != nil {
		t.Fatalf("second run: %v", err)
	}

	if !reflect.DeepEqual(store.published, firstAggregate) {
		t.Errorf("aggregate changed on empty re-run:\n %+v\n %+v", store.published, firstAggregate)
	}
	if !reflect.DeepEqual(store.entries, firstEntries) {
		t.Errorf("entries changed on empty re-run:\n %+v\n %+v", store.entries, firstEntries)
	}
}

func TestRunEmptyBatchNewUserNoEntries(t *testing.T) {
	store := &mockStore{
		events: map[string][]models.RideEvent{"2026-08-25": {}},
	}

	if _, err := newRunner(store).Run(context.Background(), "2026-08-25"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(store.entries) != 0 {
		t.Errorf("entries = %+v, want none for empty batch and no history", store.entries)
	}
}

func TestRunMissingHistoryIsNotAnError(t *testing.T) {
	commute := time.Date(2026, 8, 24, 8, 0, 0, 0, time.UTC)
	store := &mockStore{
		events: map[string][]models.RideEvent{
			"2026-08-24": {event("r1", "u1", "Home", "Work", commute)},
		},
	}

	result, err := newRunner(store).Run(context.Background(), "2026-08-24")
	if err != nil {
		t.Fatalf("first-ever run should succeed: %v", err)
	}
	if result.MergedKeys != 1 {
		t.Errorf("merged keys = %d, want 1", result.MergedKeys)
	}
}

func TestRunMalformedEventsSkipped(t *testing.T) {
	commute := time.Date(2026, 8, 24, 8, 0, 0, 0, time.UTC)
	bad := event("r2", "", "Home", "Work", commute) // missing user
	store := &mockStore{
		events: map[string][]models.RideEvent{
			"2026-08-24": {event("r1", "u1", "Home", "Work", commute), bad},
		},
	}

	result, err := newRunner(store).Run(context.Background(), "2026-08-24")
	if err != nil {
		t.Fatalf("malformed events must not fail the run: %v", err)
	}
	if result.Malformed != 1 {
		t.Errorf("malformed = %d, want 1", result.Malformed)
	}
	if store.published[0].RidesCount != 1 {
		t.Errorf("count = %d, want 1 (malformed event excluded)", store.published[0].RidesCount)
	}
}

func TestRunPartitionUnavailableIsFatal(t *testing.T) {
	store := &mockStore{events: map[string][]models.RideEvent{}}

	_, err := newRunner(store).Run(context.Background(), "2026-08-24")
	if err == nil {
		t.Fatal("expected error for missing partition")
	}

	var runError *RunError
	if !errors.As(err, &runError) {
		t.Fatalf("error %T should be *RunError", err)
	}
	if runError.Stage != StageRead || runError.Partition != "2026-08-24" {
		t.Errorf("RunError = %+v, want stage read, partition 2026-08-24", runError)
	}
	if !errors.Is(err, ErrPartitionUnavailable) {
		t.Error("error should wrap ErrPartitionUnavailable")
	}
	if store.publishes != 0 {
		t.Error("nothing may be published when the partition is unavailable")
	}
}

func TestRunPublishFailureLeavesStateUntouched(t *testing.T) {
	commute := time.Date(2026, 8, 24, 8, 0, 0, 0, time.UTC)
	prior := []models.AggregateRecord{
		record("u1", "Home", "Work", models.PeriodWeekdayCommute, 5),
	}
	store := &mockStore{
		events: map[string][]models.RideEvent{
			"2026-08-24": {event("r1", "u1", "Home", "Work", commute)},
		},
		published:  prior,
		publishErr: errors.New("disk full"),
	}

	_, err := newRunner(store).Run(context.Background(), "2026-08-24")
	var runError *RunError
	if !errors.As(err, &runError) || runError.Stage != StagePublish {
		t.Fatalf("err = %v, want RunError at stage publish", err)
	}
	if !reflect.DeepEqual(store.published, prior) {
		t.Error("prior published state must remain intact after publish failure")
	}

	// Retry succeeds and re-reads history fresh rather than reusing the
	// failed attempt's in-memory merge.
	store.publishErr = nil
	readsBefore := store.historyReads
	if _, err := newRunner(store).Run(context.Background(), "2026-08-24"); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if store.historyReads != readsBefore+1 {
		t.Error("retry must re-read history")
	}
	if store.published[0].RidesCount != 6 {
		t.Errorf("retried count = %d, want 6", store.published[0].RidesCount)
	}
}

func TestYesterdayPartition(t *testing.T) {
	kolkata, _ := time.LoadLocation("Asia/Kolkata")
	r := NewRunner(&mockStore{}, kolkata, 10, 1)

	// 2026-08-24 22:00 UTC is already 2026-08-25 03:30 IST.
	now := time.Date(2026, 8, 24, 22, 0, 0, 0, time.UTC)
	if got := r.YesterdayPartition(now); got != "2026-08-24" {
		t.Errorf("YesterdayPartition = %s, want 2026-08-24", got)
	}

	// Package-level form uses whatever location now carries.
	if got := YesterdayPartition(now.In(kolkata)); got != "2026-08-24" {
		t.Errorf("YesterdayPartition(package) = %s, want 2026-08-24", got)
	}
	if got := YesterdayPartition(now); got != "2026-08-23" {
		t.Errorf("YesterdayPartition(UTC) = %s, want 2026-08-23", got)
	}
}
