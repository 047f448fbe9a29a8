// RideLens - Ride Pickup/Drop Pair Recommendation Engine
// Copyright 2026 RideLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ridelens/ridelens

package engine

import (
	"errors"
	"fmt"
)

// ErrPartitionUnavailable is returned when the event store has no data for
// the requested date partition. The run aborts without touching the
// aggregate and is safe to retry once data arrives.
var ErrPartitionUnavailable = errors.New("partition unavailable")

// Stage identifies the pipeline stage a fatal run error originated from.
type Stage string

const (
	StageRead    Stage = "read"
	StageMerge   Stage = "merge"
	StageRank    Stage = "rank"
	StagePublish Stage = "publish"
)

// RunError is the typed failure propagated to the run's caller. It carries
// the partition identifier and the stage so operators can tell a missing
// partition from a failed publish.
type RunError struct {
	Partition string
	Stage     Stage
	Err       error
}

// Error implements the error interface.
func (e *RunError) Error() string {
	return fmt.Sprintf("run for partition %s failed at stage %s: %v", e.Partition, e.Stage, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *RunError) Unwrap() error {
	return e.Err
}

// runErr wraps err as a RunError for the given partition and stage.
func runErr(partition string, stage Stage, err error) *RunError {
	return &RunError{Partition: partition, Stage: stage, Err: err}
}
