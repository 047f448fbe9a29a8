// RideLens - Ride Pickup/Drop Pair Recommendation Engine
// Copyright 2026 RideLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ridelens/ridelens

package ingest

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryDedupIndexCheckAndMark(t *testing.T) {
	idx := NewMemoryDedupIndex(time.Hour)
	defer func() { _ = idx.Close() }()
	ctx := context.Background()

	seen, err := idx.CheckAndMark(ctx, "ride-1")
	if err != nil {
		t.Fatalf("CheckAndMark() failed: %v", err)
	}
	if seen {
		t.Error("first occurrence reported as seen")
	}

	seen, err = idx.CheckAndMark(ctx, "ride-1")
	if err != nil {
		t.Fatalf("CheckAndMark() failed: %v", err)
	}
	if !seen {
		t.Error("second occurrence not reported as seen")
	}

	seen, err = idx.CheckAndMark(ctx, "ride-2")
	if err != nil {
		t.Fatalf("CheckAndMark() failed: %v", err)
	}
	if seen {
		t.Error("distinct rideID reported as seen")
	}
}

func TestMemoryDedupIndexExpiry(t *testing.T) {
	idx := NewMemoryDedupIndex(10 * time.Millisecond)
	defer func() { _ = idx.Close() }()
	ctx := context.Background()

	if _, err := idx.CheckAndMark(ctx, "ride-1"); err != nil {
		t.Fatalf("CheckAndMark() failed: %v", err)
	}

	time.Sleep(25 * time.Millisecond)

	seen, err := idx.CheckAndMark(ctx, "ride-1")
	if err != nil {
		t.Fatalf("CheckAndMark() failed: %v", err)
	}
	if seen {
		t.Error("entry still seen after the window expired")
	}
}

func TestMemoryDedupIndexClosed(t *testing.T) {
	idx := NewMemoryDedupIndex(time.Hour)
	_ = idx.Close()

	if _, err := idx.CheckAndMark(context.Background(), "ride-1"); !errors.Is(err, ErrIndexClosed) {
		t.Errorf("CheckAndMark() on closed index: got %v, want ErrIndexClosed", err)
	}
}

func TestBadgerDedupIndexPersistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	idx, err := NewBadgerDedupIndex(dir, time.Hour)
	if err != nil {
		t.Fatalf("NewBadgerDedupIndex() failed: %v", err)
	}

	seen, err := idx.CheckAndMark(ctx, "ride-1")
	if err != nil {
		t.Fatalf("CheckAndMark() failed: %v", err)
	}
	if seen {
		t.Error("first occurrence reported as seen")
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	// Reopen: dedup state must survive a restart.
	idx, err = NewBadgerDedupIndex(dir, time.Hour)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer func() { _ = idx.Close() }()

	seen, err = idx.CheckAndMark(ctx, "ride-1")
	if err != nil {
		t.Fatalf("CheckAndMark() after reopen failed: %v", err)
	}
	if !seen {
		t.Error("rideID forgotten across restart")
	}
}
