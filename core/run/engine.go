// Package run executes a materialized transfer plan against the robot
// driver in schedule order. The engine owns all real-time and hardware
// side effects; plan generation has already validated every volume, so
// execution mutates nothing but timing and logging state.
package run

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/permealab/hcellrun/core/driver"
	"github.com/permealab/hcellrun/core/events"
	"github.com/permealab/hcellrun/core/logger"
	"github.com/permealab/hcellrun/core/metrics"
	"github.com/permealab/hcellrun/core/model"
	"github.com/permealab/hcellrun/core/runlog"
	"github.com/permealab/hcellrun/internal/eventbus"
)

// Config assembles the engine's collaborators.
type Config struct {
	Driver   driver.Robot
	Schedule model.Schedule
	Plan     []model.TransferOperation
	Store    runlog.Store
	Logger   logger.Logger
	Sink     metrics.Sink
	Bus      eventbus.EventBus
	Clock    Clock
	RunID    string
	Metadata map[string]string
}

// Engine replays the plan iteration by iteration, sleeping between
// iterations and tolerating overrun. Single-threaded by design: there is
// one robot arm, so operations never run concurrently.
type Engine struct {
	driver driver.Robot
	sched  model.Schedule
	byIter map[int][]model.TransferOperation
	store  runlog.Store
	log    logger.Logger
	sink   metrics.Sink
	bus    eventbus.EventBus
	clock  Clock
	runID  string
	meta   map[string]string

	mu        sync.Mutex
	state     State
	iteration int
	drifts    []float64
	started   time.Time
}

// NewEngine validates the wiring and groups the plan by iteration.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Driver == nil || cfg.Store == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("run: nil parameter provided to NewEngine")
	}
	if len(cfg.Schedule) == 0 {
		return nil, fmt.Errorf("run: empty schedule: %w", model.ErrConfig)
	}
	byIter := make(map[int][]model.TransferOperation)
	for _, op := range cfg.Plan {
		byIter[op.Iteration] = append(byIter[op.Iteration], op)
	}
	for _, pt := range cfg.Schedule {
		if len(byIter[pt.Index]) == 0 {
			return nil, fmt.Errorf("run: plan has no operations for iteration %d: %w",
				pt.Index, model.ErrConfig)
		}
	}
	if cfg.Sink == nil {
		cfg.Sink = metrics.NopSink{}
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock()
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	return &Engine{
		driver: cfg.Driver,
		sched:  cfg.Schedule,
		byIter: byIter,
		store:  cfg.Store,
		log:    cfg.Logger,
		sink:   cfg.Sink,
		bus:    cfg.Bus,
		clock:  cfg.Clock,
		runID:  cfg.RunID,
		meta:   cfg.Metadata,
		state:  StateIdle,
	}, nil
}

// RunID returns the identifier stamped on log records and telemetry.
func (e *Engine) RunID() string { return e.runID }

// State reports the engine's current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) transition(to State, iteration int) {
	e.mu.Lock()
	from := e.state
	e.state = to
	e.iteration = iteration
	e.mu.Unlock()
	now := e.clock.Now()
	if e.bus != nil {
		e.bus.Publish(events.StateEvent{
			RunID:     e.runID,
			From:      from.String(),
			To:        to.String(),
			Iteration: iteration,
			Time:      now,
		})
	}
	if err := e.sink.RecordStateChange(metrics.StateChange{RunID: e.runID, State: to.String(), Time: now}); err != nil {
		e.log.Warnf("record state change: %v", err)
	}
	e.log.Debugw("state transition", map[string]any{
		"from": from.String(), "to": to.String(), "iteration": iteration,
	})
}

// Run executes the whole plan. It returns the run report together with any
// terminal error; the report is valid even when the run aborts, covering
// every completed iteration.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	e.mu.Lock()
	if e.state != StateIdle {
		e.mu.Unlock()
		return nil, fmt.Errorf("run: engine already started")
	}
	e.started = e.clock.Now()
	e.mu.Unlock()

	e.log.Infof("run %s started: %d iterations over %s",
		e.runID, len(e.sched), e.sched[len(e.sched)-1].Offset)

	for _, pt := range e.sched {
		target := e.started.Add(pt.Offset)
		wait := target.Sub(e.clock.Now())
		if wait > 0 {
			e.transition(StateWaiting, pt.Index)
			select {
			case <-e.clock.After(wait):
			case <-ctx.Done():
				e.transition(StateAborted, pt.Index)
				e.log.Warnf("run %s aborted while waiting for iteration %d", e.runID, pt.Index)
				return e.report(), fmt.Errorf("aborted before iteration %d: %w", pt.Index, ctx.Err())
			}
		}

		e.transition(StateRunning, pt.Index)
		actualStart := e.clock.Now()
		drift := actualStart.Sub(target)
		if drift < 0 {
			drift = 0
		}
		if drift > 0 {
			e.log.Warnf("iteration %d started %.1fs behind schedule", pt.Index, drift.Seconds())
			if e.bus != nil {
				e.bus.Publish(events.DriftEvent{
					RunID:        e.runID,
					Iteration:    pt.Index,
					DriftSeconds: drift.Seconds(),
					Time:         actualStart,
				})
			}
		}

		if err := e.dispatch(ctx, pt.Index); err != nil {
			e.transition(StateAborted, pt.Index)
			e.log.Errorf("iteration %d: %v", pt.Index, err)
			return e.report(), fmt.Errorf("iteration %d: %w", pt.Index, err)
		}
		actualEnd := e.clock.Now()

		e.mu.Lock()
		e.drifts = append(e.drifts, drift.Seconds())
		e.mu.Unlock()

		rec := runlog.Record{
			RunID:            e.runID,
			Iteration:        pt.Index,
			ScheduledSeconds: pt.Offset.Seconds(),
			ActualStart:      actualStart,
			ActualEnd:        actualEnd,
			DriftSeconds:     drift.Seconds(),
			Operations:       len(e.byIter[pt.Index]),
			Metadata:         e.meta,
		}
		if err := e.store.Append(ctx, rec); err != nil {
			e.log.Errorf("append run log for iteration %d: %v", pt.Index, err)
		}
		if err := e.sink.RecordIteration(metrics.IterationResult{
			RunID:           e.runID,
			Iteration:       pt.Index,
			ScheduledOffset: pt.Offset,
			Start:           actualStart,
			End:             actualEnd,
			DriftSeconds:    drift.Seconds(),
			Operations:      len(e.byIter[pt.Index]),
		}); err != nil {
			e.log.Warnf("record iteration metrics: %v", err)
		}
		if e.bus != nil {
			e.bus.Publish(events.IterationEvent{Record: rec})
		}
		e.log.Infof("iteration %d complete in %s (drift %.1fs)",
			pt.Index, actualEnd.Sub(actualStart), drift.Seconds())
	}

	e.transition(StateComplete, e.sched[len(e.sched)-1].Index)
	rep := e.report()
	e.log.Infof("run %s complete: cumulative drift %.1fs over %d iterations",
		e.runID, rep.CumulativeDriftSeconds, rep.Completed)
	return rep, nil
}

// dispatch replays one iteration's operations, handling tip groups. Any
// driver error is an unrecoverable fault: liquid state cannot be rewound,
// so there is no retry.
func (e *Engine) dispatch(ctx context.Context, iteration int) error {
	tipLoaded := false
	for _, op := range e.byIter[iteration] {
		if op.FreshTip {
			if tipLoaded {
				if err := e.driver.DropTip(ctx); err != nil {
					return fmt.Errorf("drop tip: %v: %w", err, model.ErrDriverFault)
				}
			}
			if err := e.driver.PickUpTip(ctx); err != nil {
				return fmt.Errorf("pick up tip: %v: %w", err, model.ErrDriverFault)
			}
			tipLoaded = true
		}
		if err := e.driver.Aspirate(ctx, op.Source, op.VolumeUl); err != nil {
			return fmt.Errorf("%s: aspirate %.1fuL from %s: %v: %w",
				op.Kind, op.VolumeUl, op.Source.Label(), err, model.ErrDriverFault)
		}
		if err := e.driver.Dispense(ctx, op.Dest, op.VolumeUl); err != nil {
			return fmt.Errorf("%s: dispense %.1fuL into %s: %v: %w",
				op.Kind, op.VolumeUl, op.Dest.Label(), err, model.ErrDriverFault)
		}
		if op.MixAfter != nil {
			if err := e.driver.Mix(ctx, op.Dest, op.MixAfter.VolumeUl, op.MixAfter.Repetitions); err != nil {
				return fmt.Errorf("%s: mix %s: %v: %w",
					op.Kind, op.Dest.Label(), err, model.ErrDriverFault)
			}
		}
	}
	if tipLoaded {
		if err := e.driver.DropTip(ctx); err != nil {
			return fmt.Errorf("drop tip: %v: %w", err, model.ErrDriverFault)
		}
	}
	return nil
}
