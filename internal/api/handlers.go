// RideLens - Ride Pickup/Drop Pair Recommendation Engine
// Copyright 2026 RideLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ridelens/ridelens

package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ridelens/ridelens/internal/config"
	"github.com/ridelens/ridelens/internal/logging"
	"github.com/ridelens/ridelens/internal/models"
	"github.com/ridelens/ridelens/internal/store"
)

// RecommendationReader is the subset of the store the handlers need.
type RecommendationReader interface {
	Recommendations(ctx context.Context, userID string, f store.RecommendationFilter) ([]models.RecommendationEntry, error)
	PublishedVersion(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}

// Handler serves the recommendation API.
type Handler struct {
	reader    RecommendationReader
	cfg       *config.ServerConfig
	startTime time.Time
}

// NewHandler creates an API handler backed by reader.
func NewHandler(reader RecommendationReader, cfg *config.ServerConfig) *Handler {
	return &Handler{
		reader:    reader,
		cfg:       cfg,
		startTime: time.Now(),
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// recommendationQuery is the validated query surface of the
// recommendations endpoint.
type recommendationQuery struct {
	UserID        string `validate:"required,max=128"`
	ExcludePeriod string `validate:"omitempty,oneof=weekday_commute weekday_routine nightlife weekend_leisure weekend_social other"`
	Pickup        string `validate:"omitempty,max=256"`
	Limit         int    `validate:"gte=1"`
}

// Recommendations handles GET /api/v1/recommendations/{userID}.
//
// Query parameters:
//   - exclude_period: drop entries classified into the given ride period
//   - pickup: only entries starting at the given pickup location
//   - limit: cap the number of entries (bounded by server.max_limit)
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	q := recommendationQuery{
		UserID:        chi.URLParam(r, "userID"),
		ExcludePeriod: r.URL.Query().Get("exclude_period"),
		Pickup:        r.URL.Query().Get("pickup"),
		Limit:         h.cfg.DefaultLimit,
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer", err)
			return
		}
		q.Limit = limit
	}
	if q.Limit > h.cfg.MaxLimit {
		q.Limit = h.cfg.MaxLimit
	}

	if err := validate.Struct(&q); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_query", "invalid query parameters", err)
		return
	}

	entries, err := h.reader.Recommendations(r.Context(), q.UserID, store.RecommendationFilter{
		ExcludePeriod: models.RidePeriod(q.ExcludePeriod),
		Pickup:        q.Pickup,
		Limit:         q.Limit,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "read_failed", "failed to read recommendations", err)
		return
	}

	version, err := h.reader.PublishedVersion(r.Context())
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to read published version for response metadata")
	}

	// Users with no ride history get an empty list, not a 404.
	if entries == nil {
		entries = []models.RecommendationEntry{}
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   entries,
		Metadata: models.Metadata{
			Timestamp: time.Now().UTC(),
			Count:     len(entries),
			Version:   version,
		},
	})
}

// HealthLive handles GET /api/v1/health/live. Always 200 while the
// process is up.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status:   "success",
		Data:     map[string]string{"status": "alive"},
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
	})
}

// HealthReady handles GET /api/v1/health/ready. Ready means the store
// answers a ping.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.reader.Ping(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "not_ready", "database unavailable", err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status:   "success",
		Data:     map[string]string{"status": "ready"},
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
	})
}

// Health handles GET /api/v1/health with overall status and the current
// published version.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := models.HealthStatus{
		Status:   "healthy",
		Uptime:   time.Since(h.startTime).Round(time.Second).String(),
		Database: "up",
	}

	code := http.StatusOK
	if err := h.reader.Ping(ctx); err != nil {
		status.Status = "degraded"
		status.Database = "down"
		code = http.StatusServiceUnavailable
	} else if version, err := h.reader.PublishedVersion(ctx); err == nil {
		status.PublishedVersion = version
	}

	respondJSON(w, code, &models.APIResponse{
		Status:   "success",
		Data:     status,
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
	})
}
