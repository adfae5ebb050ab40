// Package runlog persists the append-only experiment log: one record per
// executed iteration, written incrementally so a crash or abort preserves
// every completed iteration.
package runlog

import (
	"context"
	"time"
)

// Record captures one executed iteration.
type Record struct {
	RunID            string            `json:"run_id"`
	Iteration        int               `json:"iteration"`
	ScheduledSeconds float64           `json:"scheduled_seconds"`
	ActualStart      time.Time         `json:"actual_start"`
	ActualEnd        time.Time         `json:"actual_end"`
	DriftSeconds     float64           `json:"drift_seconds"`
	Operations       int               `json:"operations"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// Query defines filters for retrieving records.
type Query struct {
	RunID         string
	FromIteration int
	ToIteration   int // inclusive; 0 means no upper bound
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}
