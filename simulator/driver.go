// Package simulator provides a software stand-in for the liquid handler,
// used to rehearse a full experiment without hardware. Every primitive
// takes a configurable amount of wall-clock time, so overnight runs can be
// dress-rehearsed at realistic or compressed speed.
package simulator

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/permealab/hcellrun/core/model"
	"github.com/permealab/hcellrun/infra/logger"
)

// Config holds parameters for the simulated driver.
type Config struct {
	// CallLatency is the base wall-clock duration of one primitive.
	CallLatency time.Duration
	// JitterStdDev adds gaussian noise to each call's latency.
	JitterStdDev time.Duration
	// FailAtCall makes the nth call (1-based) return a fault. Zero
	// disables fault injection.
	FailAtCall int
	// Seed fixes the jitter sequence. Zero seeds from the current time.
	Seed int64
}

// Call records one primitive issued to the simulator.
type Call struct {
	Op       string
	Site     string
	VolumeUl float64
	At       time.Time
}

// Driver is a simulated Robot. Safe for use by a single engine; the call
// trace may be read concurrently.
type Driver struct {
	cfg Config
	log logger.Logger
	rng *rand.Rand

	mu    sync.Mutex
	calls []Call
}

// New creates a simulated driver.
func New(cfg Config) *Driver {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Driver{
		cfg: cfg,
		log: logger.New("simulator"),
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Calls returns a copy of the recorded call trace.
func (d *Driver) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Call, len(d.calls))
	copy(out, d.calls)
	return out
}

func (d *Driver) step(ctx context.Context, c Call) error {
	d.mu.Lock()
	latency := d.cfg.CallLatency
	if d.cfg.JitterStdDev > 0 {
		latency += time.Duration(d.rng.NormFloat64() * float64(d.cfg.JitterStdDev))
		if latency < 0 {
			latency = 0
		}
	}
	c.At = time.Now()
	d.calls = append(d.calls, c)
	n := len(d.calls)
	d.mu.Unlock()

	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if d.cfg.FailAtCall > 0 && n == d.cfg.FailAtCall {
		return fmt.Errorf("simulated hardware fault at call %d (%s)", n, c.Op)
	}
	if c.Site != "" {
		d.log.Debugf("%s %s %.1fuL", c.Op, c.Site, c.VolumeUl)
	} else {
		d.log.Debugf("%s", c.Op)
	}
	return nil
}

func (d *Driver) PickUpTip(ctx context.Context) error {
	return d.step(ctx, Call{Op: "pick_up_tip"})
}

func (d *Driver) DropTip(ctx context.Context) error {
	return d.step(ctx, Call{Op: "drop_tip"})
}

func (d *Driver) Aspirate(ctx context.Context, from model.Site, volUl float64) error {
	return d.step(ctx, Call{Op: "aspirate", Site: from.Label(), VolumeUl: volUl})
}

func (d *Driver) Dispense(ctx context.Context, to model.Site, volUl float64) error {
	return d.step(ctx, Call{Op: "dispense", Site: to.Label(), VolumeUl: volUl})
}

func (d *Driver) Mix(ctx context.Context, at model.Site, volUl float64, repetitions int) error {
	return d.step(ctx, Call{Op: "mix", Site: at.Label(), VolumeUl: volUl})
}
