package metrics

import coremetrics "github.com/permealab/hcellrun/core/metrics"

// MultiSink fans execution events out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordIteration forwards the result to all sinks, returning the first
// error encountered.
func (m *MultiSink) RecordIteration(res coremetrics.IterationResult) error {
	for _, s := range m.Sinks {
		if err := s.RecordIteration(res); err != nil {
			return err
		}
	}
	return nil
}

// RecordStateChange forwards the transition to all sinks.
func (m *MultiSink) RecordStateChange(ev coremetrics.StateChange) error {
	for _, s := range m.Sinks {
		if err := s.RecordStateChange(ev); err != nil {
			return err
		}
	}
	return nil
}
