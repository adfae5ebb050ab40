// Package plan materializes the complete, time-ordered list of transfer
// operations for an experiment before execution begins. Generation is pure:
// it mutates only the simulated volume ledger, so an infeasible experiment
// fails here, with zero operations emitted, before the robot moves.
package plan

import (
	"fmt"

	"github.com/permealab/hcellrun/core/ledger"
	"github.com/permealab/hcellrun/core/model"
	"github.com/permealab/hcellrun/core/wellmap"
)

// DyeOrder positions the one-time dye injection relative to the first
// aliquot extraction.
type DyeOrder int

const (
	// DyeBeforeExtraction injects before the first aliquot is drawn, so
	// tracer shows up in the t=0 sample.
	DyeBeforeExtraction DyeOrder = iota
	// DyeAfterExtraction keeps the t=0 sample dye-free.
	DyeAfterExtraction
)

func (d DyeOrder) String() string {
	if d == DyeAfterExtraction {
		return "after_extraction"
	}
	return "before_extraction"
}

// ParseDyeOrder maps the configuration string to a DyeOrder.
func ParseDyeOrder(s string) (DyeOrder, error) {
	switch s {
	case "", "before_extraction":
		return DyeBeforeExtraction, nil
	case "after_extraction":
		return DyeAfterExtraction, nil
	default:
		return 0, fmt.Errorf("unknown dye order %q: %w", s, model.ErrConfig)
	}
}

// DyeSpec configures the optional tracer injection into donor chambers at
// iteration 0.
type DyeSpec struct {
	VolumeUl   float64
	SourceWell int
	Order      DyeOrder
}

// Params are the planning inputs, validated once at configuration load.
type Params struct {
	Layout         wellmap.Layout
	Schedule       model.Schedule
	AliquotUl      float64
	DilutionUl     float64
	MixRepetitions int
	Dye            *DyeSpec
}

// Generator emits the flat operation list for every scheduled iteration.
type Generator struct {
	params Params
	ledger *ledger.Ledger
	stock  *ledger.StockTracker
}

// NewGenerator wires the planner to its simulated ledger and stock tracker.
func NewGenerator(p Params, led *ledger.Ledger, stock *ledger.StockTracker) (*Generator, error) {
	if led == nil || stock == nil {
		return nil, fmt.Errorf("plan: nil parameter provided to NewGenerator")
	}
	if len(p.Schedule) == 0 {
		return nil, fmt.Errorf("plan requires a non-empty schedule: %w", model.ErrConfig)
	}
	if p.AliquotUl <= 0 {
		return nil, fmt.Errorf("aliquot volume must be positive: %w", model.ErrConfig)
	}
	if p.DilutionUl < 0 {
		return nil, fmt.Errorf("dilution volume must not be negative: %w", model.ErrConfig)
	}
	if p.MixRepetitions <= 0 {
		p.MixRepetitions = 8
	}
	return &Generator{params: p, ledger: led, stock: stock}, nil
}

// Generate simulates every iteration against the ledger and returns the
// complete operation list. Any capacity or volume violation aborts the
// whole plan: no partial plan is ever returned.
func (g *Generator) Generate() ([]model.TransferOperation, error) {
	chambers := g.params.Layout.Chambers()
	ops := make([]model.TransferOperation, 0, 3*len(chambers)*len(g.params.Schedule))

	for _, pt := range g.params.Schedule {
		iterOps, err := g.iteration(pt.Index, chambers)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", pt.Index, err)
		}
		ops = append(ops, iterOps...)
	}
	return ops, nil
}

// iteration emits one sampling round in the fixed sub-step order: dilution
// fills for every well on one shared tip, then per-chamber extraction on
// fresh tips, then replenishment on one shared tip. The dye injection, when
// configured, slots before or after the extraction block of iteration 0.
func (g *Generator) iteration(index int, chambers []model.Chamber) ([]model.TransferOperation, error) {
	var ops []model.TransferOperation
	step := 0
	emit := func(op model.TransferOperation) {
		op.Iteration = index
		op.Step = step
		step++
		ops = append(ops, op)
	}

	wells := make(map[model.Chamber]model.Well, len(chambers))
	for _, ch := range chambers {
		w, err := g.params.Layout.Map(ch, index)
		if err != nil {
			return nil, err
		}
		wells[ch] = w
	}

	// Diluent into every destination well first: same liquid, one tip.
	for i, ch := range chambers {
		src, err := g.stock.Draw(g.params.DilutionUl)
		if err != nil {
			return nil, err
		}
		emit(model.TransferOperation{
			Kind:     model.OpFillDilution,
			Source:   src,
			Dest:     wells[ch],
			VolumeUl: g.params.DilutionUl,
			FreshTip: i == 0,
		})
	}

	injectDye := index == 0 && g.params.Dye != nil && g.params.Dye.VolumeUl > 0
	if injectDye && g.params.Dye.Order == DyeBeforeExtraction {
		if err := g.emitDye(chambers, emit); err != nil {
			return nil, err
		}
	}

	// Aliquot out of each chamber into its well, mixed in place. Chamber
	// contents differ, so every extraction takes a fresh tip.
	for _, ch := range chambers {
		if err := g.ledger.ReserveExtraction(ch, g.params.AliquotUl); err != nil {
			return nil, err
		}
		emit(model.TransferOperation{
			Kind:     model.OpExtractAndDilute,
			Source:   ch,
			Dest:     wells[ch],
			VolumeUl: g.params.AliquotUl,
			FreshTip: true,
			MixAfter: &model.Mix{Repetitions: g.params.MixRepetitions, VolumeUl: g.params.AliquotUl},
		})
	}

	if injectDye && g.params.Dye.Order == DyeAfterExtraction {
		if err := g.emitDye(chambers, emit); err != nil {
			return nil, err
		}
	}

	// Restore every chamber to its pre-extraction volume: diluent again,
	// one tip for the whole block.
	for i, ch := range chambers {
		src, err := g.stock.Draw(g.params.AliquotUl)
		if err != nil {
			return nil, err
		}
		if err := g.ledger.ReserveReplenishment(ch, g.params.AliquotUl); err != nil {
			return nil, err
		}
		emit(model.TransferOperation{
			Kind:     model.OpReplenish,
			Source:   src,
			Dest:     ch,
			VolumeUl: g.params.AliquotUl,
			FreshTip: i == 0,
		})
	}

	return ops, nil
}

// emitDye adds the tracer to every donor chamber, one fresh tip each.
func (g *Generator) emitDye(chambers []model.Chamber, emit func(model.TransferOperation)) error {
	for _, ch := range chambers {
		if ch.Role != model.RoleDonor {
			continue
		}
		if err := g.ledger.ReserveReplenishment(ch, g.params.Dye.VolumeUl); err != nil {
			return err
		}
		emit(model.TransferOperation{
			Kind:     model.OpInjectDye,
			Source:   model.StockWell{Index: g.params.Dye.SourceWell},
			Dest:     ch,
			VolumeUl: g.params.Dye.VolumeUl,
			FreshTip: true,
		})
	}
	return nil
}
