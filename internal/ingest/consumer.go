// RideLens - Ride Pickup/Drop Pair Recommendation Engine
// Copyright 2026 RideLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ridelens/ridelens

package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/ridelens/ridelens/internal/config"
	"github.com/ridelens/ridelens/internal/logging"
	"github.com/ridelens/ridelens/internal/metrics"
	"github.com/ridelens/ridelens/internal/models"
)

// EventWriter is the event-store write path the consumer feeds.
type EventWriter interface {
	InsertEventsBatch(ctx context.Context, events []models.RideEvent) (inserted, duplicates int, err error)
}

// MessageSource delivers broker messages for a topic.
type MessageSource interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
}

// Consumer drains ride-event messages into the event store in batches.
// Malformed payloads are dropped with a counter rather than redelivered
// forever; duplicate rideIds are dropped by the dedup index. A message is
// acked only once its batch has committed, so every validated event
// reaches the store at least once, and the rideId keys downstream make
// that effectively exactly-once.
//
// Consumer implements suture.Service.
type Consumer struct {
	source  MessageSource
	writer  EventWriter
	index   DedupIndex
	breaker *gobreaker.CircuitBreaker[interface{}]
	limiter *rate.Limiter
	cfg     config.IngestConfig
}

// NewConsumer wires a consumer. index may be nil when no dedup index is
// configured; the store's rideId conflict handling is then the only
// duplicate filter.
func NewConsumer(source MessageSource, writer EventWriter, index DedupIndex, cfg config.IngestConfig) *Consumer {
	settings := gobreaker.Settings{
		Name:        "event-store-writes",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			open := 0.0
			if to == gobreaker.StateOpen {
				open = 1.0
			}
			metrics.IngestBreakerState.Set(open)
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	}

	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RatePerSecond)
	}

	return &Consumer{
		source:  source,
		writer:  writer,
		index:   index,
		breaker: gobreaker.NewCircuitBreaker[interface{}](settings),
		limiter: limiter,
		cfg:     cfg,
	}
}

// String names the service in supervisor logs.
func (c *Consumer) String() string {
	return "ingest-consumer"
}

// Serve consumes until context cancellation. Returning an error hands
// control back to the supervisor, which restarts with backoff.
func (c *Consumer) Serve(ctx context.Context) error {
	messages, err := c.source.Subscribe(ctx, c.cfg.Topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", c.cfg.Topic, err)
	}

	logging.Info().
		Str("topic", c.cfg.Topic).
		Int("batch_size", c.cfg.BatchSize).
		Dur("flush_interval", c.cfg.FlushInterval).
		Msg("Ingest consumer started")

	batch := make([]models.RideEvent, 0, c.cfg.BatchSize)
	pending := make([]*message.Message, 0, c.cfg.BatchSize)

	ticker := time.NewTicker(c.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.flush(context.WithoutCancel(ctx), &batch, &pending)
			return ctx.Err()

		case <-ticker.C:
			c.flush(ctx, &batch, &pending)

		case msg, ok := <-messages:
			if !ok {
				c.flush(ctx, &batch, &pending)
				return nil
			}
			if c.accept(ctx, msg, &batch) {
				pending = append(pending, msg)
			}
			if len(batch) >= c.cfg.BatchSize {
				c.flush(ctx, &batch, &pending)
			}
		}
	}
}

// accept decodes and filters one message. Returns true when the event was
// buffered and the message must wait for its batch to commit; false means
// the message was already acked (dropped).
func (c *Consumer) accept(ctx context.Context, msg *message.Message, batch *[]models.RideEvent) bool {
	var event models.RideEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		metrics.EventsMalformed.Inc()
		logging.Warn().
			Err(err).
			Str("message_uuid", msg.UUID).
			Msg("Dropping undecodable ride event")
		msg.Ack()
		return false
	}

	if err := event.Validate(); err != nil {
		metrics.EventsMalformed.Inc()
		logging.Warn().
			Err(err).
			Str("message_uuid", msg.UUID).
			Str("ride_id", event.RideID).
			Msg("Dropping malformed ride event")
		msg.Ack()
		return false
	}

	if c.index != nil {
		seen, err := c.index.CheckAndMark(ctx, event.RideID)
		if err != nil {
			// Index trouble must not lose events; the store's rideId
			// key still drops true duplicates.
			logging.Warn().Err(err).Str("ride_id", event.RideID).Msg("Dedup index check failed")
		} else if seen {
			metrics.EventsDuplicate.WithLabelValues("ingest").Inc()
			msg.Ack()
			return false
		}
	}

	*batch = append(*batch, event)
	return true
}

// flush writes the buffered batch through the circuit breaker and settles
// the pending messages: ack on commit, nack on failure so the broker
// redelivers.
func (c *Consumer) flush(ctx context.Context, batch *[]models.RideEvent, pending *[]*message.Message) {
	if len(*batch) == 0 {
		return
	}

	if c.limiter != nil {
		if err := c.limiter.WaitN(ctx, len(*batch)); err != nil {
			c.settle(*pending, false)
			*batch, *pending = (*batch)[:0], (*pending)[:0]
			return
		}
	}

	events := *batch
	result, err := c.breaker.Execute(func() (interface{}, error) {
		inserted, duplicates, err := c.writer.InsertEventsBatch(ctx, events)
		if err != nil {
			return nil, err
		}
		return [2]int{inserted, duplicates}, nil
	})

	if err != nil {
		logging.Error().
			Err(err).
			Int("events", len(events)).
			Msg("Event batch write failed, messages will be redelivered")
		c.settle(*pending, false)
	} else {
		counts := result.([2]int)
		metrics.EventsIngested.Add(float64(counts[0]))
		if counts[1] > 0 {
			metrics.EventsDuplicate.WithLabelValues("ingest").Add(float64(counts[1]))
		}
		logging.Debug().
			Int("inserted", counts[0]).
			Int("duplicates", counts[1]).
			Msg("Event batch committed")
		c.settle(*pending, true)
	}

	*batch, *pending = (*batch)[:0], (*pending)[:0]
}

func (c *Consumer) settle(pending []*message.Message, ok bool) {
	for _, msg := range pending {
		if ok {
			msg.Ack()
		} else {
			msg.Nack()
		}
	}
}
