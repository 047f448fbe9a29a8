// RideLens - Ride Pickup/Drop Pair Recommendation Engine
// Copyright 2026 RideLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ridelens/ridelens

package models

import (
	"testing"
	"time"
)

// ts builds a timestamp on a fixed week in UTC: 2026-08-24 is a Monday.
func ts(t *testing.T, weekday time.Weekday, hour int) time.Time {
	t.Helper()
	base := time.Date(2026, 8, 24, hour, 0, 0, 0, time.UTC) // Monday
	offset := (int(weekday) - int(time.Monday) + 7) % 7
	return base.AddDate(0, 0, offset)
}

func TestClassifyRidePeriod(t *testing.T) {
	tests := []struct {
		name    string
		weekday time.Weekday
		hour    int
		want    RidePeriod
	}{
		{"monday morning rush start", time.Monday, 6, PeriodWeekdayCommute},
		{"monday morning rush end exclusive", time.Monday, 10, PeriodWeekdayRoutine},
		{"friday evening rush", time.Friday, 17, PeriodWeekdayCommute},
		{"friday evening rush end exclusive", time.Friday, 21, PeriodWeekdayRoutine},
		{"weekday midday", time.Wednesday, 13, PeriodWeekdayRoutine},
		// Weekday late night stays routine: the weekday rule precedes the
		// nightlife rule and captures every weekday hour.
		{"weekday late night", time.Tuesday, 23, PeriodWeekdayRoutine},
		{"weekday small hours", time.Thursday, 2, PeriodWeekdayRoutine},
		{"saturday nightlife", time.Saturday, 21, PeriodNightlife},
		{"sunday nightlife wraps midnight", time.Sunday, 2, PeriodNightlife},
		{"saturday brunch", time.Saturday, 10, PeriodWeekendLeisure},
		// Saturday 18:00 matches both the leisure window [10,20) and the
		// social window [16,23); leisure wins by evaluation order.
		{"saturday evening overlap", time.Saturday, 18, PeriodWeekendLeisure},
		// Hour 20 is the only weekend hour the social rule can win: leisure
		// has already claimed [16,20) and nightlife claims [21,24).
		{"saturday leisure end exclusive", time.Saturday, 20, PeriodWeekendSocial},
		{"sunday late evening", time.Sunday, 22, PeriodNightlife},
		{"weekend early morning", time.Sunday, 5, PeriodOther},
		{"weekend pre-brunch", time.Saturday, 9, PeriodOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyRidePeriod(ts(t, tt.weekday, tt.hour))
			if got != tt.want {
				t.Errorf("ClassifyRidePeriod(%s %02d:00) = %s, want %s",
					tt.weekday, tt.hour, got, tt.want)
			}
		})
	}
}

func TestClassifyRidePeriodCoversAllHours(t *testing.T) {
	// Every (weekday, hour) combination must classify into a valid period.
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		for hour := 0; hour < 24; hour++ {
			got := ClassifyRidePeriod(ts(t, wd, hour))
			if !got.Valid() {
				t.Errorf("ClassifyRidePeriod(%s %02d:00) = %q, not a valid period", wd, hour, got)
			}
		}
	}
}

func TestRidePeriodValid(t *testing.T) {
	for _, p := range []RidePeriod{
		PeriodWeekdayCommute, PeriodWeekdayRoutine, PeriodNightlife,
		PeriodWeekendLeisure, PeriodWeekendSocial, PeriodOther,
	} {
		if !p.Valid() {
			t.Errorf("%s should be valid", p)
		}
	}
	if RidePeriod("rush_hour").Valid() {
		t.Error("unknown period should be invalid")
	}
}
