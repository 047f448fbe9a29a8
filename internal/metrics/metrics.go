// RideLens - Ride Pickup/Drop Pair Recommendation Engine
// Copyright 2026 RideLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ridelens/ridelens

// Package metrics exposes Prometheus instrumentation for RideLens:
// ingest throughput, engine run stages, storage operations, and the
// serving API.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingest metrics

	EventsIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ridelens_events_ingested_total",
			Help: "Total ride events written to the partitioned event store",
		},
	)

	EventsMalformed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ridelens_events_malformed_total",
			Help: "Total ride events skipped because validation failed",
		},
	)

	EventsDuplicate = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ridelens_events_duplicate_total",
			Help: "Total redelivered ride events dropped by deduplication",
		},
		[]string{"stage"}, // "ingest" (badger index) or "run" (batch dedup)
	)

	IngestBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ridelens_ingest_breaker_open",
			Help: "Whether the event-store circuit breaker is open (1) or closed (0)",
		},
	)

	// Engine run metrics

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ridelens_run_stage_duration_seconds",
			Help:    "Duration of engine run stages in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	RunFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ridelens_run_failures_total",
			Help: "Total fatal run failures by stage",
		},
		[]string{"stage"},
	)

	RunsCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ridelens_runs_completed_total",
			Help: "Total engine runs that published successfully",
		},
	)

	MergedKeys = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ridelens_aggregate_keys",
			Help: "Number of keys in the most recently published aggregate",
		},
	)

	PublishedEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ridelens_recommendation_entries",
			Help: "Number of entries in the most recently published recommendation set",
		},
	)

	PublishedVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ridelens_published_version",
			Help: "Currently published aggregate version",
		},
	)

	// Storage metrics

	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ridelens_store_query_duration_seconds",
			Help:    "Duration of DuckDB operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	StoreQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ridelens_store_query_errors_total",
			Help: "Total DuckDB operation errors",
		},
		[]string{"operation", "table"},
	)

	// API metrics

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ridelens_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ridelens_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
	)
)

// ObserveStoreQuery records one storage operation with its duration and,
// on error, increments the matching error counter.
func ObserveStoreQuery(operation, table string, start time.Time, err error) {
	StoreQueryDuration.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	if err != nil {
		StoreQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// ObserveHTTPRequest records one served HTTP request.
func ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}
