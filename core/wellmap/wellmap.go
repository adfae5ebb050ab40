// Package wellmap maps H-cell chambers and iteration indices onto sample
// plate wells. The layout invariant for the whole system lives here: each
// chamber owns a plate row, each iteration owns a column. With four cells
// or fewer the eight rows of a plate fit all chambers and a second plate
// extends the column budget to 24; with more cells the chambers spill onto
// a second plate and each row keeps the single-plate budget of 12 columns.
package wellmap

import (
	"fmt"

	"github.com/permealab/hcellrun/core/model"
)

// Plate geometry of the sample plates on the deck, fixed by the labware
// definition (standard 96-well plates).
const (
	PlateRows    = 8
	PlateColumns = 12
)

// MaxCells is the most H-cells the deck can host.
const MaxCells = 8

// Layout is a pure, stateless mapping for a given cell count.
type Layout struct {
	cells int
}

// NewLayout validates the cell count and returns the layout for it.
func NewLayout(cells int) (Layout, error) {
	if cells < 1 || cells > MaxCells {
		return Layout{}, fmt.Errorf("num_cells must be between 1 and %d, got %d: %w",
			MaxCells, cells, model.ErrConfig)
	}
	return Layout{cells: cells}, nil
}

// Cells returns the number of H-cells in the layout.
func (l Layout) Cells() int { return l.cells }

// RowsUsed is the number of plate rows consumed by chamber assignments.
func (l Layout) RowsUsed() int { return 2 * l.cells }

// MaxColumns is the per-chamber sample budget: one column per iteration.
func (l Layout) MaxColumns() int {
	if l.RowsUsed() <= PlateRows {
		return 2 * PlateColumns
	}
	return PlateColumns
}

// Map resolves a chamber and iteration index to a unique well. No two
// distinct (chamber, iteration) pairs resolve to the same well.
func (l Layout) Map(ch model.Chamber, iteration int) (model.Well, error) {
	if ch.Cell < 0 || ch.Cell >= l.cells {
		return model.Well{}, fmt.Errorf("cell %d outside layout of %d cells: %w",
			ch.Cell, l.cells, model.ErrCapacity)
	}
	if ch.Role != model.RoleDonor && ch.Role != model.RoleReceptor {
		return model.Well{}, fmt.Errorf("unknown chamber role %d: %w", ch.Role, model.ErrCapacity)
	}
	if iteration < 0 || iteration >= l.MaxColumns() {
		return model.Well{}, fmt.Errorf("iteration %d outside the %d-column budget: %w",
			iteration, l.MaxColumns(), model.ErrCapacity)
	}

	row := 2*ch.Cell + int(ch.Role)
	if l.RowsUsed() <= PlateRows {
		// Donor/receptor row pairs share a plate; late iterations
		// continue in the same row of the next plate.
		return model.Well{
			Plate:  iteration / PlateColumns,
			Row:    row,
			Column: iteration % PlateColumns,
		}, nil
	}
	// Chambers beyond row H occupy the second plate.
	return model.Well{
		Plate:  row / PlateRows,
		Row:    row % PlateRows,
		Column: iteration,
	}, nil
}

// Chambers enumerates every chamber of the layout in deck order: cell by
// cell, donor before receptor. Plan generation and the volume ledger both
// iterate in this order so tip groups stay contiguous.
func (l Layout) Chambers() []model.Chamber {
	chambers := make([]model.Chamber, 0, 2*l.cells)
	for cell := 0; cell < l.cells; cell++ {
		chambers = append(chambers,
			model.Chamber{Cell: cell, Role: model.RoleDonor},
			model.Chamber{Cell: cell, Role: model.RoleReceptor},
		)
	}
	return chambers
}
