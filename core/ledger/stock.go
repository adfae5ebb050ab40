package ledger

import (
	"fmt"

	"github.com/permealab/hcellrun/core/model"
)

// StockTracker walks the diluent reservoir during plan generation. Dilution
// fills and replenishments draw from the current stock well until it is
// spent, then move to the next one. Running out of stock wells fails the
// plan instead of surfacing as a dry aspiration mid-run.
type StockTracker struct {
	wells      int
	capacityUl float64
	index      int
	usedUl     float64
}

// NewStockTracker configures wells stock wells of capacityUl each.
func NewStockTracker(wells int, capacityUl float64) *StockTracker {
	return &StockTracker{wells: wells, capacityUl: capacityUl}
}

// Draw reserves volUl of diluent and returns the stock well to aspirate
// from, advancing to the next well when the current one is exhausted.
func (s *StockTracker) Draw(volUl float64) (model.StockWell, error) {
	if volUl > s.capacityUl {
		return model.StockWell{}, fmt.Errorf("draw of %.1fuL exceeds the %.1fuL stock well capacity: %w",
			volUl, s.capacityUl, model.ErrVolume)
	}
	if s.usedUl+volUl > s.capacityUl {
		s.index++
		s.usedUl = 0
	}
	if s.index >= s.wells {
		return model.StockWell{}, fmt.Errorf("diluent demand exceeds %d stock wells of %.1fuL: %w",
			s.wells, s.capacityUl, model.ErrVolume)
	}
	s.usedUl += volUl
	return model.StockWell{Index: s.index}, nil
}

// ConsumedUl reports the total volume drawn so far.
func (s *StockTracker) ConsumedUl() float64 {
	return float64(s.index)*s.capacityUl + s.usedUl
}
