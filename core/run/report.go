package run

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// Report summarizes an execution run. Drift is never silently absorbed:
// the cumulative figure and its distribution are surfaced here at the end
// of every run, aborted or not.
type Report struct {
	RunID                  string    `json:"run_id"`
	State                  string    `json:"state"`
	Completed              int       `json:"completed"`
	Started                time.Time `json:"started"`
	Finished               time.Time `json:"finished"`
	CumulativeDriftSeconds float64   `json:"cumulative_drift_seconds"`
	MeanDriftSeconds       float64   `json:"mean_drift_seconds"`
	StdDevDriftSeconds     float64   `json:"stddev_drift_seconds"`
	MaxDriftSeconds        float64   `json:"max_drift_seconds"`
}

func (e *Engine) report() *Report {
	e.mu.Lock()
	defer e.mu.Unlock()

	rep := &Report{
		RunID:     e.runID,
		State:     e.state.String(),
		Completed: len(e.drifts),
		Started:   e.started,
		Finished:  e.clock.Now(),
	}
	if len(e.drifts) == 0 {
		return rep
	}
	for _, d := range e.drifts {
		rep.CumulativeDriftSeconds += d
		if d > rep.MaxDriftSeconds {
			rep.MaxDriftSeconds = d
		}
	}
	rep.MeanDriftSeconds = stat.Mean(e.drifts, nil)
	if len(e.drifts) > 1 {
		rep.StdDevDriftSeconds = stat.StdDev(e.drifts, nil)
	}
	return rep
}
