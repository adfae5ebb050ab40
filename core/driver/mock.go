package driver

import (
	"context"
	"fmt"
	"sync"

	"github.com/permealab/hcellrun/core/model"
)

// Call records one primitive issued to the mock.
type Call struct {
	Op          string
	Site        string
	VolumeUl    float64
	Repetitions int
}

// Mock is a scripted Robot used in tests. It records every call and can be
// told to fail at the nth call.
type Mock struct {
	mu     sync.Mutex
	calls  []Call
	FailAt int // fail on this 1-based call index; 0 disables
}

// NewMock creates a mock that never fails.
func NewMock() *Mock {
	return &Mock{}
}

// Calls returns a copy of the recorded call trace.
func (m *Mock) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *Mock) record(c Call) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c)
	if m.FailAt > 0 && len(m.calls) == m.FailAt {
		return fmt.Errorf("scripted fault at call %d (%s)", m.FailAt, c.Op)
	}
	return nil
}

func (m *Mock) PickUpTip(ctx context.Context) error {
	return m.record(Call{Op: "pick_up_tip"})
}

func (m *Mock) DropTip(ctx context.Context) error {
	return m.record(Call{Op: "drop_tip"})
}

func (m *Mock) Aspirate(ctx context.Context, from model.Site, volUl float64) error {
	return m.record(Call{Op: "aspirate", Site: from.Label(), VolumeUl: volUl})
}

func (m *Mock) Dispense(ctx context.Context, to model.Site, volUl float64) error {
	return m.record(Call{Op: "dispense", Site: to.Label(), VolumeUl: volUl})
}

func (m *Mock) Mix(ctx context.Context, at model.Site, volUl float64, repetitions int) error {
	return m.record(Call{Op: "mix", Site: at.Label(), VolumeUl: volUl, Repetitions: repetitions})
}
