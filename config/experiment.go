package config

import (
	"fmt"
	"math"
	"time"

	"github.com/permealab/hcellrun/core/ledger"
	"github.com/permealab/hcellrun/core/model"
	"github.com/permealab/hcellrun/core/plan"
	"github.com/permealab/hcellrun/core/schedule"
	"github.com/permealab/hcellrun/core/wellmap"
)

// SegmentConfig is one phase of the sampling plan: take a sample every
// IntervalHours for DurationHours.
type SegmentConfig struct {
	DurationHours float64 `json:"duration_hours"`
	IntervalHours float64 `json:"interval_hours"`
}

// DyeConfig describes the optional one-time tracer injection into donor
// chambers at iteration 0.
type DyeConfig struct {
	Enabled   bool    `json:"enabled"`
	VolumeUl  float64 `json:"volume_ul"`
	StockWell int     `json:"stock_well"`
	// Order places the injection "before_extraction" (dye shows up in the
	// t=0 sample) or "after_extraction" (t=0 sample stays dye-free).
	Order string `json:"order"`
}

// StockConfig describes the diluent stock reservoir.
type StockConfig struct {
	Wells      int     `json:"wells"`
	CapacityUl float64 `json:"capacity_ul"`
}

// ExperimentConfig defines the physical experiment: how many H-cells are on
// the deck, how long and how often to sample, and the volumes involved.
type ExperimentConfig struct {
	Name              string          `json:"name"`
	NumCells          int             `json:"num_cells"`
	TotalHours        float64         `json:"total_hours"`
	Segments          []SegmentConfig `json:"segments"`
	AliquotUl         float64         `json:"aliquot_ul"`
	DilutionUl        float64         `json:"dilution_ul"`
	WellCapacityUl    float64         `json:"well_capacity_ul"`
	ChamberVolumeUl   float64         `json:"chamber_volume_ul"`
	ChamberCapacityUl float64         `json:"chamber_capacity_ul"`
	MixRepetitions    int             `json:"mix_repetitions"`
	Dye               DyeConfig       `json:"dye"`
	Stock             StockConfig     `json:"stock"`
}

// SetDefaults applies sane defaults.
func (c *ExperimentConfig) SetDefaults() {
	if c.AliquotUl == 0 {
		c.AliquotUl = 20
	}
	if c.DilutionUl == 0 {
		c.DilutionUl = 180
	}
	if c.WellCapacityUl == 0 {
		c.WellCapacityUl = 200
	}
	if c.MixRepetitions == 0 {
		c.MixRepetitions = 8
	}
	if c.Stock.Wells == 0 {
		c.Stock.Wells = 12
	}
	if c.Stock.CapacityUl == 0 {
		c.Stock.CapacityUl = 17000
	}
	if len(c.Segments) == 0 && c.TotalHours > 0 {
		c.Segments = []SegmentConfig{{DurationHours: c.TotalHours, IntervalHours: 1}}
	}
	// A chamber may hold the injected dye on top of its working volume.
	if c.ChamberCapacityUl == 0 && c.ChamberVolumeUl > 0 {
		c.ChamberCapacityUl = c.ChamberVolumeUl
		if c.Dye.Enabled {
			c.ChamberCapacityUl += c.Dye.VolumeUl
		}
	}
}

// Validate checks mandatory fields and physical consistency.
func (c ExperimentConfig) Validate() error {
	if c.NumCells < 1 || c.NumCells > wellmap.MaxCells {
		return fmt.Errorf("num_cells must be between 1 and %d, got %d: %w",
			wellmap.MaxCells, c.NumCells, model.ErrConfig)
	}
	if c.TotalHours <= 0 {
		return fmt.Errorf("total_hours must be positive: %w", model.ErrConfig)
	}
	var sum float64
	for i, s := range c.Segments {
		if s.DurationHours <= 0 || s.IntervalHours <= 0 {
			return fmt.Errorf("segment %d: duration and interval must be positive: %w",
				i, model.ErrConfig)
		}
		sum += s.DurationHours
	}
	if math.Abs(sum-c.TotalHours) > 1e-9 {
		return fmt.Errorf("segments cover %.2fh but total_hours is %.2fh: %w",
			sum, c.TotalHours, model.ErrConfig)
	}
	if c.AliquotUl <= 0 {
		return fmt.Errorf("aliquot_ul must be positive: %w", model.ErrConfig)
	}
	if c.DilutionUl < 0 {
		return fmt.Errorf("dilution_ul must not be negative: %w", model.ErrConfig)
	}
	if c.AliquotUl+c.DilutionUl > c.WellCapacityUl {
		return fmt.Errorf("aliquot %.1fuL + dilution %.1fuL exceeds well capacity %.1fuL: %w",
			c.AliquotUl, c.DilutionUl, c.WellCapacityUl, model.ErrConfig)
	}
	if c.ChamberVolumeUl <= c.AliquotUl {
		return fmt.Errorf("chamber_volume_ul %.1f must exceed the aliquot volume: %w",
			c.ChamberVolumeUl, model.ErrConfig)
	}
	if c.ChamberCapacityUl < c.ChamberVolumeUl {
		return fmt.Errorf("chamber_capacity_ul must be at least chamber_volume_ul: %w", model.ErrConfig)
	}
	if c.Stock.Wells < 1 || c.Stock.CapacityUl <= 0 {
		return fmt.Errorf("stock reservoir needs at least one well with positive capacity: %w", model.ErrConfig)
	}
	if c.Dye.Enabled {
		if c.Dye.VolumeUl <= 0 {
			return fmt.Errorf("dye volume_ul must be positive when dye is enabled: %w", model.ErrConfig)
		}
		if c.Dye.StockWell < 0 || c.Dye.StockWell >= c.Stock.Wells {
			return fmt.Errorf("dye stock_well %d outside reservoir (0..%d): %w",
				c.Dye.StockWell, c.Stock.Wells-1, model.ErrConfig)
		}
		if _, err := plan.ParseDyeOrder(c.Dye.Order); err != nil {
			return err
		}
	}
	return nil
}

func hours(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}

// Layout builds the deck layout for the configured number of cells.
func (c ExperimentConfig) Layout() (wellmap.Layout, error) {
	return wellmap.NewLayout(c.NumCells)
}

// ScheduleBuilder builds the segmented schedule builder, capped at the
// column budget of the given layout.
func (c ExperimentConfig) ScheduleBuilder(layout wellmap.Layout) schedule.Builder {
	segs := make([]schedule.Segment, len(c.Segments))
	for i, s := range c.Segments {
		segs[i] = schedule.Segment{Duration: hours(s.DurationHours), Interval: hours(s.IntervalHours)}
	}
	return schedule.Builder{
		Total:      hours(c.TotalHours),
		Segments:   segs,
		MaxColumns: layout.MaxColumns(),
	}
}

// DyeSpec converts the dye configuration into planner terms. Returns nil
// when dye injection is disabled.
func (c ExperimentConfig) DyeSpec() (*plan.DyeSpec, error) {
	if !c.Dye.Enabled {
		return nil, nil
	}
	order, err := plan.ParseDyeOrder(c.Dye.Order)
	if err != nil {
		return nil, err
	}
	return &plan.DyeSpec{
		VolumeUl:   c.Dye.VolumeUl,
		SourceWell: c.Dye.StockWell,
		Order:      order,
	}, nil
}

// PlanParams assembles the planner inputs from the configured volumes.
func (c ExperimentConfig) PlanParams(layout wellmap.Layout, sched model.Schedule) (plan.Params, error) {
	dye, err := c.DyeSpec()
	if err != nil {
		return plan.Params{}, err
	}
	return plan.Params{
		Layout:         layout,
		Schedule:       sched,
		AliquotUl:      c.AliquotUl,
		DilutionUl:     c.DilutionUl,
		MixRepetitions: c.MixRepetitions,
		Dye:            dye,
	}, nil
}

// NewLedger creates the volume ledger seeded with every chamber at its
// starting working volume.
func (c ExperimentConfig) NewLedger(layout wellmap.Layout) *ledger.Ledger {
	return ledger.New(layout.Chambers(), c.ChamberVolumeUl, c.ChamberCapacityUl)
}

// NewStockTracker creates the diluent stock tracker.
func (c ExperimentConfig) NewStockTracker() *ledger.StockTracker {
	return ledger.NewStockTracker(c.Stock.Wells, c.Stock.CapacityUl)
}
