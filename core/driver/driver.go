// Package driver defines the capability interface the execution engine
// issues against the physical liquid handler. Motion planning, calibration
// and labware geometry live entirely behind this seam.
package driver

import (
	"context"

	"github.com/permealab/hcellrun/core/model"
)

// Robot is the narrow command set consumed by the execution engine. Every
// call blocks until the hardware acknowledges the primitive; any returned
// error is treated as an unrecoverable fault and aborts the run.
type Robot interface {
	PickUpTip(ctx context.Context) error
	DropTip(ctx context.Context) error
	Aspirate(ctx context.Context, from model.Site, volUl float64) error
	Dispense(ctx context.Context, to model.Site, volUl float64) error
	Mix(ctx context.Context, at model.Site, volUl float64, repetitions int) error
}
