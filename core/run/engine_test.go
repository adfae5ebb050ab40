package run

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/permealab/hcellrun/core/driver"
	"github.com/permealab/hcellrun/core/ledger"
	"github.com/permealab/hcellrun/core/model"
	"github.com/permealab/hcellrun/core/plan"
	"github.com/permealab/hcellrun/core/runlog"
	"github.com/permealab/hcellrun/core/wellmap"
)

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any)         {}
func (nopLogger) Debugw(string, map[string]any) {}
func (nopLogger) Infof(string, ...any)          {}
func (nopLogger) Warnf(string, ...any)          {}
func (nopLogger) Errorf(string, ...any)         {}

// fakeClock completes every wait instantly by jumping its notion of now.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.Advance(d)
	ch := make(chan time.Time, 1)
	ch <- c.Now()
	return ch
}

// blockingClock never completes a wait; used to test operator abort.
type blockingClock struct{ *fakeClock }

func (blockingClock) After(time.Duration) <-chan time.Time {
	return make(chan time.Time)
}

// slowDriver advances the clock on every primitive so iterations overrun
// their sampling interval.
type slowDriver struct {
	*driver.Mock
	clock   *fakeClock
	perCall time.Duration
}

func (d *slowDriver) Aspirate(ctx context.Context, from model.Site, vol float64) error {
	d.clock.Advance(d.perCall)
	return d.Mock.Aspirate(ctx, from, vol)
}

func (d *slowDriver) Dispense(ctx context.Context, to model.Site, vol float64) error {
	d.clock.Advance(d.perCall)
	return d.Mock.Dispense(ctx, to, vol)
}

func testPlan(t *testing.T, cells, iterations int) (model.Schedule, []model.TransferOperation) {
	t.Helper()
	layout, err := wellmap.NewLayout(cells)
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	sched := make(model.Schedule, iterations)
	for i := range sched {
		sched[i] = model.IterationPoint{Index: i, Offset: time.Duration(i) * time.Hour}
	}
	g, err := plan.NewGenerator(plan.Params{
		Layout:         layout,
		Schedule:       sched,
		AliquotUl:      20,
		DilutionUl:     180,
		MixRepetitions: 8,
	}, ledger.New(layout.Chambers(), 5000, 6000), ledger.NewStockTracker(2, 17000))
	if err != nil {
		t.Fatalf("generator: %v", err)
	}
	ops, err := g.Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return sched, ops
}

func testStore(t *testing.T) runlog.Store {
	t.Helper()
	s, err := runlog.NewJSONLStore(filepath.Join(t.TempDir(), "run.jsonl"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	return s
}

func TestRunCompletes(t *testing.T) {
	sched, ops := testPlan(t, 2, 3)
	mock := driver.NewMock()
	store := testStore(t)
	eng, err := NewEngine(Config{
		Driver:   mock,
		Schedule: sched,
		Plan:     ops,
		Store:    store,
		Logger:   nopLogger{},
		Clock:    newFakeClock(),
		Metadata: map[string]string{"author": "mg", "sample": "PEG-400"},
	})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}

	rep, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if eng.State() != StateComplete {
		t.Fatalf("state %s, want complete", eng.State())
	}
	if rep.Completed != 3 {
		t.Fatalf("completed %d iterations, want 3", rep.Completed)
	}

	recs, err := store.Query(context.Background(), runlog.Query{RunID: eng.RunID()})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 log records, got %d", len(recs))
	}
	for i, rec := range recs {
		if rec.Iteration != i {
			t.Fatalf("record %d has iteration %d", i, rec.Iteration)
		}
		if rec.ScheduledSeconds != float64(i)*3600 {
			t.Fatalf("record %d scheduled at %.0fs", i, rec.ScheduledSeconds)
		}
		if rec.Metadata["sample"] != "PEG-400" {
			t.Fatalf("record %d missing metadata", i)
		}
	}
}

func TestRunCallSequence(t *testing.T) {
	sched, ops := testPlan(t, 1, 1)
	mock := driver.NewMock()
	eng, err := NewEngine(Config{
		Driver:   mock,
		Schedule: sched,
		Plan:     ops,
		Store:    testStore(t),
		Logger:   nopLogger{},
		Clock:    newFakeClock(),
	})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	if _, err := eng.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	want := []string{
		// dilution fills, one shared tip
		"pick_up_tip", "aspirate", "dispense", "aspirate", "dispense",
		// donor extraction, fresh tip, mixed in place
		"drop_tip", "pick_up_tip", "aspirate", "dispense", "mix",
		// receptor extraction
		"drop_tip", "pick_up_tip", "aspirate", "dispense", "mix",
		// replenishment, one shared tip
		"drop_tip", "pick_up_tip", "aspirate", "dispense", "aspirate", "dispense",
		"drop_tip",
	}
	calls := mock.Calls()
	if len(calls) != len(want) {
		t.Fatalf("expected %d calls, got %d", len(want), len(calls))
	}
	for i, c := range calls {
		if c.Op != want[i] {
			t.Fatalf("call %d: %s, want %s", i, c.Op, want[i])
		}
	}
}

func TestRunOverrunProceedsImmediately(t *testing.T) {
	sched, ops := testPlan(t, 2, 3)
	clock := newFakeClock()
	// Each aspirate/dispense eats 10 minutes: an iteration of 12 ops blows
	// well past the 1h sampling interval.
	slow := &slowDriver{Mock: driver.NewMock(), clock: clock, perCall: 10 * time.Minute}
	eng, err := NewEngine(Config{
		Driver:   slow,
		Schedule: sched,
		Plan:     ops,
		Store:    testStore(t),
		Logger:   nopLogger{},
		Clock:    clock,
	})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}

	rep, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if eng.State() != StateComplete {
		t.Fatalf("state %s, want complete", eng.State())
	}
	if rep.Completed != 3 {
		t.Fatalf("completed %d, want 3", rep.Completed)
	}
	if rep.CumulativeDriftSeconds <= 0 {
		t.Fatalf("expected positive cumulative drift, got %.1f", rep.CumulativeDriftSeconds)
	}
	if rep.MaxDriftSeconds < rep.MeanDriftSeconds {
		t.Fatalf("max drift %.1f below mean %.1f", rep.MaxDriftSeconds, rep.MeanDriftSeconds)
	}
}

func TestRunDriverFaultAborts(t *testing.T) {
	sched, ops := testPlan(t, 2, 3)
	mock := driver.NewMock()
	// 4 chambers: one iteration issues 40 driver calls; fail partway
	// through the second iteration.
	mock.FailAt = 50
	store := testStore(t)
	eng, err := NewEngine(Config{
		Driver:   mock,
		Schedule: sched,
		Plan:     ops,
		Store:    store,
		Logger:   nopLogger{},
		Clock:    newFakeClock(),
	})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}

	rep, err := eng.Run(context.Background())
	if !errors.Is(err, model.ErrDriverFault) {
		t.Fatalf("expected driver fault, got %v", err)
	}
	if eng.State() != StateAborted {
		t.Fatalf("state %s, want aborted", eng.State())
	}
	if rep.Completed != 1 {
		t.Fatalf("report shows %d completed, want 1", rep.Completed)
	}

	// The log is preserved up to the fault.
	recs, err := store.Query(context.Background(), runlog.Query{RunID: eng.RunID()})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(recs) != 1 || recs[0].Iteration != 0 {
		t.Fatalf("expected the first iteration logged, got %+v", recs)
	}
}

func TestRunAbortDuringWait(t *testing.T) {
	sched, ops := testPlan(t, 1, 3)
	store := testStore(t)
	eng, err := NewEngine(Config{
		Driver:   driver.NewMock(),
		Schedule: sched,
		Plan:     ops,
		Store:    store,
		Logger:   nopLogger{},
		Clock:    blockingClock{newFakeClock()},
	})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var rep *Report
	var runErr error
	go func() {
		rep, runErr = eng.Run(ctx)
		close(done)
	}()

	// Iteration 0 runs immediately; the engine then blocks waiting for
	// iteration 1 until the operator aborts.
	for eng.State() != StateWaiting {
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done

	if !errors.Is(runErr, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", runErr)
	}
	if eng.State() != StateAborted {
		t.Fatalf("state %s, want aborted", eng.State())
	}
	if rep.Completed != 1 {
		t.Fatalf("report shows %d completed, want 1", rep.Completed)
	}
	recs, err := store.Query(context.Background(), runlog.Query{RunID: eng.RunID()})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 preserved record, got %d", len(recs))
	}
}

func TestNewEngineValidation(t *testing.T) {
	sched, ops := testPlan(t, 1, 2)
	store := testStore(t)
	if _, err := NewEngine(Config{Schedule: sched, Plan: ops, Store: store, Logger: nopLogger{}}); err == nil {
		t.Fatalf("expected error for nil driver")
	}
	if _, err := NewEngine(Config{Driver: driver.NewMock(), Plan: ops, Store: store, Logger: nopLogger{}}); !errors.Is(err, model.ErrConfig) {
		t.Fatalf("expected config error for empty schedule, got %v", err)
	}
	// Plan missing operations for a scheduled iteration.
	short := ops[:12]
	if _, err := NewEngine(Config{Driver: driver.NewMock(), Schedule: sched, Plan: short, Store: store, Logger: nopLogger{}}); !errors.Is(err, model.ErrConfig) {
		t.Fatalf("expected config error for missing iteration, got %v", err)
	}
}

func TestEngineSingleUse(t *testing.T) {
	sched, ops := testPlan(t, 1, 1)
	eng, err := NewEngine(Config{
		Driver:   driver.NewMock(),
		Schedule: sched,
		Plan:     ops,
		Store:    testStore(t),
		Logger:   nopLogger{},
		Clock:    newFakeClock(),
	})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	if _, err := eng.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := eng.Run(context.Background()); err == nil {
		t.Fatalf("expected error on second run")
	}
}
