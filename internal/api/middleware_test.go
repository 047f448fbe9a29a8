// RideLens - Ride Pickup/Drop Pair Recommendation Engine
// Copyright 2026 RideLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ridelens/ridelens

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// The metrics and access-log middlewares wrap the response writer to
// observe the status code. The wrapper must stay a transparent
// passthrough: whatever the handler writes is what the client sees.
func TestMiddlewarePreservesHandlerStatus(t *testing.T) {
	tests := []struct {
		name       string
		middleware func(http.Handler) http.Handler
	}{
		{"metrics", Metrics},
		{"access_log", AccessLog},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := tt.middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTeapot)
				if _, err := w.Write([]byte("short and stout")); err != nil {
					t.Fatalf("Write() error: %v", err)
				}
			}))

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil))

			if rec.Code != http.StatusTeapot {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusTeapot)
			}
			if rec.Body.String() != "short and stout" {
				t.Errorf("body = %q, want %q", rec.Body.String(), "short and stout")
			}
		})
	}
}
