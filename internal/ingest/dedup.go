// RideLens - Ride Pickup/Drop Pair Recommendation Engine
// Copyright 2026 RideLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ridelens/ridelens

package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/ridelens/ridelens/internal/logging"
)

// ErrIndexClosed indicates the dedup index has been closed.
var ErrIndexClosed = errors.New("dedup index is closed")

// DedupIndex remembers recently seen rideIds so broker redeliveries are
// dropped before they reach the event store.
type DedupIndex interface {
	// CheckAndMark atomically reports whether rideID was already seen
	// within the window, marking it seen if not.
	CheckAndMark(ctx context.Context, rideID string) (seen bool, err error)

	// Close releases index resources.
	Close() error
}

// BadgerDedupIndex is a BadgerDB-backed index that survives restarts.
// Entries expire via Badger's native TTL, so the index stays bounded by
// the dedup window without explicit sweeps.
type BadgerDedupIndex struct {
	db     *badger.DB
	window time.Duration
	prefix []byte

	mu     sync.RWMutex
	closed bool
}

// NewBadgerDedupIndex opens (or creates) the index at dir.
func NewBadgerDedupIndex(dir string, window time.Duration) (*BadgerDedupIndex, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(nil).
		WithCompactL0OnClose(true)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open dedup index at %s: %w", dir, err)
	}

	logging.Info().Str("dir", dir).Dur("window", window).Msg("Dedup index ready")
	return &BadgerDedupIndex{db: db, window: window, prefix: []byte("ride:")}, nil
}

func (i *BadgerDedupIndex) makeKey(rideID string) []byte {
	return append(i.prefix, []byte(rideID)...)
}

// CheckAndMark atomically checks and marks a rideID inside one Badger
// transaction.
func (i *BadgerDedupIndex) CheckAndMark(ctx context.Context, rideID string) (bool, error) {
	i.mu.RLock()
	if i.closed {
		i.mu.RUnlock()
		return false, ErrIndexClosed
	}
	i.mu.RUnlock()

	key := i.makeKey(rideID)
	seen := false

	err := i.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			seen = true
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		e := badger.NewEntry(key, nil).WithTTL(i.window)
		return txn.SetEntry(e)
	})
	if err != nil {
		return false, fmt.Errorf("dedup check %s: %w", rideID, err)
	}
	return seen, nil
}

// Close closes the underlying Badger database.
func (i *BadgerDedupIndex) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil
	}
	i.closed = true
	return i.db.Close()
}

// MemoryDedupIndex is an in-memory index. Entries are lost on restart,
// which the store's rideId primary key compensates for; it is the fallback
// when no dedup directory is configured, and the index used in tests.
type MemoryDedupIndex struct {
	window time.Duration

	mu     sync.Mutex
	seen   map[string]time.Time
	closed bool
}

// NewMemoryDedupIndex creates an in-memory dedup index.
func NewMemoryDedupIndex(window time.Duration) *MemoryDedupIndex {
	return &MemoryDedupIndex{window: window, seen: make(map[string]time.Time)}
}

// CheckAndMark atomically checks and marks a rideID. Expired entries are
// reclaimed lazily on access.
func (i *MemoryDedupIndex) CheckAndMark(ctx context.Context, rideID string) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return false, ErrIndexClosed
	}

	now := time.Now()
	if expiry, ok := i.seen[rideID]; ok && now.Before(expiry) {
		return true, nil
	}
	i.seen[rideID] = now.Add(i.window)
	return false, nil
}

// Close discards the index.
func (i *MemoryDedupIndex) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.closed = true
	i.seen = nil
	return nil
}
