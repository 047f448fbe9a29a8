// RideLens - Ride Pickup/Drop Pair Recommendation Engine
// Copyright 2026 RideLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ridelens/ridelens

package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/ridelens/ridelens/internal/config"
	"github.com/ridelens/ridelens/internal/models"
)

type fakeSource struct {
	ch chan *message.Message
}

func (s *fakeSource) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return s.ch, nil
}

type fakeWriter struct {
	mu      sync.Mutex
	batches [][]models.RideEvent
	failErr error
}

func (w *fakeWriter) InsertEventsBatch(ctx context.Context, events []models.RideEvent) (int, int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failErr != nil {
		return 0, 0, w.failErr
	}
	batch := make([]models.RideEvent, len(events))
	copy(batch, events)
	w.batches = append(w.batches, batch)
	return len(events), 0, nil
}

func (w *fakeWriter) batchCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.batches)
}

func (w *fakeWriter) allEvents() []models.RideEvent {
	w.mu.Lock()
	defer w.mu.Unlock()
	var all []models.RideEvent
	for _, b := range w.batches {
		all = append(all, b...)
	}
	return all
}

func testIngestConfig(batchSize int, flushInterval time.Duration) config.IngestConfig {
	return config.IngestConfig{
		Topic:            "rides.completed",
		DurableName:      "test",
		QueueGroup:       "test",
		SubscribersCount: 1,
		BatchSize:        batchSize,
		FlushInterval:    flushInterval,
		BreakerThreshold: 5,
		BreakerTimeout:   time.Minute,
	}
}

func rideMessage(t *testing.T, rideID, userID string) *message.Message {
	t.Helper()
	payload, err := json.Marshal(models.RideEvent{
		RideID:         rideID,
		UserID:         userID,
		PickupLocation: "hsr",
		DropLocation:   "ecity",
		Timestamp:      time.Date(2026, 8, 24, 8, 30, 0, 0, time.UTC),
		RideType:       "mini",
		FareAmount:     180,
		DistanceKm:     7,
	})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return message.NewMessage(watermill.NewUUID(), payload)
}

func waitSettled(t *testing.T, msg *message.Message) (acked bool) {
	t.Helper()
	select {
	case <-msg.Acked():
		return true
	case <-msg.Nacked():
		return false
	case <-time.After(5 * time.Second):
		t.Fatal("message neither acked nor nacked")
		return false
	}
}

func startConsumer(t *testing.T, c *Consumer) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Serve(ctx)
	}()
	return func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("consumer did not stop")
		}
	}
}

func TestConsumerFlushesOnBatchSize(t *testing.T) {
	src := &fakeSource{ch: make(chan *message.Message, 10)}
	writer := &fakeWriter{}
	c := NewConsumer(src, writer, NewMemoryDedupIndex(time.Hour), testIngestConfig(2, time.Hour))
	stop := startConsumer(t, c)
	defer stop()

	m1 := rideMessage(t, "r1", "u1")
	m2 := rideMessage(t, "r2", "u1")
	src.ch <- m1
	src.ch <- m2

	if !waitSettled(t, m1) || !waitSettled(t, m2) {
		t.Fatal("messages were nacked, want acked after batch commit")
	}
	if got := writer.batchCount(); got != 1 {
		t.Errorf("writer received %d batches, want 1", got)
	}
	if got := len(writer.allEvents()); got != 2 {
		t.Errorf("writer received %d events, want 2", got)
	}
}

func TestConsumerFlushesOnInterval(t *testing.T) {
	src := &fakeSource{ch: make(chan *message.Message, 10)}
	writer := &fakeWriter{}
	c := NewConsumer(src, writer, NewMemoryDedupIndex(time.Hour), testIngestConfig(100, 50*time.Millisecond))
	stop := startConsumer(t, c)
	defer stop()

	m := rideMessage(t, "r1", "u1")
	src.ch <- m

	if !waitSettled(t, m) {
		t.Fatal("message was nacked, want interval flush to commit it")
	}
	if got := len(writer.allEvents()); got != 1 {
		t.Errorf("writer received %d events, want 1", got)
	}
}

func TestConsumerDropsMalformed(t *testing.T) {
	src := &fakeSource{ch: make(chan *message.Message, 10)}
	writer := &fakeWriter{}
	c := NewConsumer(src, writer, NewMemoryDedupIndex(time.Hour), testIngestConfig(1, time.Hour))
	stop := startConsumer(t, c)
	defer stop()

	bad := message.NewMessage(watermill.NewUUID(), []byte(`{"ride_id": 42`))
	src.ch <- bad
	if !waitSettled(t, bad) {
		t.Fatal("undecodable message was nacked, want ack so it is not redelivered")
	}

	// Decodes but fails validation.
	payload, _ := json.Marshal(models.RideEvent{RideID: "r1"})
	invalid := message.NewMessage(watermill.NewUUID(), payload)
	src.ch <- invalid
	if !waitSettled(t, invalid) {
		t.Fatal("invalid event was nacked, want ack")
	}

	if got := writer.batchCount(); got != 0 {
		t.Errorf("writer received %d batches for dropped messages, want 0", got)
	}
}

func TestConsumerDropsDuplicateRideIDs(t *testing.T) {
	src := &fakeSource{ch: make(chan *message.Message, 10)}
	writer := &fakeWriter{}
	c := NewConsumer(src, writer, NewMemoryDedupIndex(time.Hour), testIngestConfig(2, time.Hour))
	stop := startConsumer(t, c)
	defer stop()

	m1 := rideMessage(t, "r1", "u1")
	dup := rideMessage(t, "r1", "u1")
	m2 := rideMessage(t, "r2", "u1")
	src.ch <- m1
	src.ch <- dup
	src.ch <- m2

	// Duplicate is acked immediately; the two unique events fill the batch.
	if !waitSettled(t, dup) {
		t.Fatal("duplicate was nacked, want immediate ack")
	}
	if !waitSettled(t, m1) || !waitSettled(t, m2) {
		t.Fatal("unique messages were nacked")
	}

	events := writer.allEvents()
	if len(events) != 2 {
		t.Fatalf("writer received %d events, want 2", len(events))
	}
	if events[0].RideID != "r1" || events[1].RideID != "r2" {
		t.Errorf("writer received %v, want r1 then r2", events)
	}
}

func TestConsumerNacksOnWriteFailure(t *testing.T) {
	src := &fakeSource{ch: make(chan *message.Message, 10)}
	writer := &fakeWriter{failErr: errors.New("store unavailable")}
	c := NewConsumer(src, writer, NewMemoryDedupIndex(time.Hour), testIngestConfig(1, time.Hour))
	stop := startConsumer(t, c)
	defer stop()

	m := rideMessage(t, "r1", "u1")
	src.ch <- m

	if waitSettled(t, m) {
		t.Fatal("message was acked despite write failure, want nack for redelivery")
	}
}

func TestConsumerBreakerShedsAfterConsecutiveFailures(t *testing.T) {
	src := &fakeSource{ch: make(chan *message.Message, 10)}
	writer := &fakeWriter{failErr: errors.New("store unavailable")}

	cfg := testIngestConfig(1, time.Hour)
	cfg.BreakerThreshold = 1
	// Index nil: the same rideId may be retried after a nack.
	c := NewConsumer(src, writer, nil, cfg)
	stop := startConsumer(t, c)
	defer stop()

	m1 := rideMessage(t, "r1", "u1")
	src.ch <- m1
	if waitSettled(t, m1) {
		t.Fatal("first message acked despite failure")
	}

	// Breaker is now open: the next flush is rejected without touching
	// the writer.
	m2 := rideMessage(t, "r2", "u1")
	src.ch <- m2
	if waitSettled(t, m2) {
		t.Fatal("second message acked despite open breaker")
	}
}
