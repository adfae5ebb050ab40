// Package metrics defines the sink interfaces the execution engine reports
// into. Sinks like the Prometheus and InfluxDB implementations under
// infra/metrics record iteration timing and drift and can be combined with
// a multi sink.
package metrics

import "time"

// IterationResult is one executed sampling round.
type IterationResult struct {
	RunID           string
	Iteration       int
	ScheduledOffset time.Duration
	Start           time.Time
	End             time.Time
	DriftSeconds    float64
	Operations      int
}

// StateChange records an execution engine state transition.
type StateChange struct {
	RunID string
	State string
	Time  time.Time
}

// Sink records execution events for observability purposes.
type Sink interface {
	RecordIteration(res IterationResult) error
	RecordStateChange(ev StateChange) error
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) RecordIteration(IterationResult) error { return nil }
func (NopSink) RecordStateChange(StateChange) error   { return nil }
