// Package events defines the run-related events emitted on the event bus.
//
// Available event types:
//   - StateEvent: execution engine state transition
//   - IterationEvent: one completed sampling iteration
//   - DriftEvent: an iteration started late
package events

import (
	"time"

	"github.com/permealab/hcellrun/core/runlog"
)

// StateEvent reports an execution engine state transition.
type StateEvent struct {
	RunID     string    `json:"run_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Iteration int       `json:"iteration"`
	Time      time.Time `json:"time"`
}

// IterationEvent carries the log record of a completed iteration.
type IterationEvent struct {
	Record runlog.Record `json:"record"`
}

// DriftEvent reports that an iteration started behind schedule.
type DriftEvent struct {
	RunID        string    `json:"run_id"`
	Iteration    int       `json:"iteration"`
	DriftSeconds float64   `json:"drift_seconds"`
	Time         time.Time `json:"time"`
}
