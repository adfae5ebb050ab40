package schedule

import (
	"fmt"
	"time"

	"github.com/permealab/hcellrun/core/model"
)

// Segment is one phase of the sampling plan: sample every Interval for
// Duration. Segments tile the experiment timeline without gaps or overlap.
type Segment struct {
	Duration time.Duration
	Interval time.Duration
}

// Builder turns a segmented sampling plan into an IterationSchedule.
type Builder struct {
	Total      time.Duration
	Segments   []Segment
	MaxColumns int
}

// Build generates the iteration schedule. Index 0 always samples at t=0;
// each segment then contributes one timestamp per elapsed interval.
// Deterministic: the same inputs always yield the same schedule.
func (b Builder) Build() (model.Schedule, error) {
	if b.Total <= 0 {
		return nil, fmt.Errorf("total time must be positive: %w", model.ErrConfig)
	}
	if len(b.Segments) == 0 {
		return nil, fmt.Errorf("at least one sampling segment is required: %w", model.ErrConfig)
	}
	var covered time.Duration
	for i, seg := range b.Segments {
		if seg.Interval <= 0 {
			return nil, fmt.Errorf("segment %d: sampling interval must be positive: %w", i, model.ErrConfig)
		}
		if seg.Duration <= 0 {
			return nil, fmt.Errorf("segment %d: duration must be positive: %w", i, model.ErrConfig)
		}
		covered += seg.Duration
	}
	if covered != b.Total {
		return nil, fmt.Errorf("segments cover %s of %s total: %w", covered, b.Total, model.ErrConfig)
	}

	sched := model.Schedule{{Index: 0, Offset: 0}}
	var elapsed time.Duration
	for _, seg := range b.Segments {
		segEnd := elapsed + seg.Duration
		for t := elapsed + seg.Interval; t <= segEnd; t += seg.Interval {
			sched = append(sched, model.IterationPoint{Index: len(sched), Offset: t})
		}
		elapsed = segEnd
	}

	if b.MaxColumns > 0 && len(sched) > b.MaxColumns {
		return nil, fmt.Errorf("%d iterations exceed the %d-column plate budget: %w",
			len(sched), b.MaxColumns, model.ErrCapacity)
	}
	return sched, nil
}
