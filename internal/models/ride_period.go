// RideLens - Ride Pickup/Drop Pair Recommendation Engine
// Copyright 2026 RideLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ridelens/ridelens

package models

import "time"

// RidePeriod is the categorical time-of-day/day-of-week bucket that
// contextualizes a ride for recommendation purposes.
type RidePeriod string

const (
	// PeriodWeekdayCommute covers weekday rush windows 06:00-10:00 and 17:00-21:00.
	PeriodWeekdayCommute RidePeriod = "weekday_commute"
	// PeriodWeekdayRoutine covers all remaining weekday hours.
	PeriodWeekdayRoutine RidePeriod = "weekday_routine"
	// PeriodNightlife covers 21:00-03:00 on any day, wrapping past midnight.
	PeriodNightlife RidePeriod = "nightlife"
	// PeriodWeekendLeisure covers weekend hours 10:00-20:00.
	PeriodWeekendLeisure RidePeriod = "weekend_leisure"
	// PeriodWeekendSocial covers weekend hours 16:00-23:00.
	PeriodWeekendSocial RidePeriod = "weekend_social"
	// PeriodOther is the fallback bucket.
	PeriodOther RidePeriod = "other"
)

// Valid reports whether p is one of the defined ride periods.
func (p RidePeriod) Valid() bool {
	switch p {
	case PeriodWeekdayCommute, PeriodWeekdayRoutine, PeriodNightlife,
		PeriodWeekendLeisure, PeriodWeekendSocial, PeriodOther:
		return true
	default:
		return false
	}
}

// String returns the persisted form of the ride period.
func (p RidePeriod) String() string {
	return string(p)
}

// ClassifyRidePeriod maps a timestamp to exactly one RidePeriod.
//
// Rule evaluation is ordered and first-match-wins. The rules are NOT
// mutually exclusive: on weekends the leisure window [10,20) and the social
// window [16,23) overlap on [16,20), and leisure wins there because it is
// evaluated first. That precedence is a deliberate policy carried over from
// the original classification; reordering the rules silently changes which
// bucket historical counts accumulate under, so it must stay fixed.
//
// The timestamp is evaluated in its own location; callers normalize to the
// engine timezone before classifying.
func ClassifyRidePeriod(t time.Time) RidePeriod {
	hour := t.Hour()
	weekday := t.Weekday()
	isWeekend := weekday == time.Saturday || weekday == time.Sunday

	switch {
	case !isWeekend && (inHourRange(hour, 6, 10) || inHourRange(hour, 17, 21)):
		return PeriodWeekdayCommute
	case !isWeekend:
		return PeriodWeekdayRoutine
	case hour >= 21 || hour < 3:
		return PeriodNightlife
	case inHourRange(hour, 10, 20):
		return PeriodWeekendLeisure
	case inHourRange(hour, 16, 23):
		return PeriodWeekendSocial
	default:
		return PeriodOther
	}
}

// inHourRange reports whether hour lies in the half-open range [lo, hi).
func inHourRange(hour, lo, hi int) bool {
	return hour >= lo && hour < hi
}
