package model

import (
	"fmt"
	"time"
)

// Role identifies which side of an H-cell membrane a chamber sits on.
type Role int

const (
	RoleDonor Role = iota
	RoleReceptor
)

func (r Role) String() string {
	switch r {
	case RoleDonor:
		return "donor"
	case RoleReceptor:
		return "receptor"
	default:
		return "unknown"
	}
}

// Site is any location the robot can aspirate from or dispense into.
type Site interface {
	Label() string
}

// Chamber identifies one compartment of an H-cell. Cell is zero-based.
type Chamber struct {
	Cell int  `json:"cell"`
	Role Role `json:"role"`
}

// Label renders the chamber in the H<n>_1 / H<n>_2 naming used on the deck,
// where _1 is the donor and _2 the receptor compartment.
func (c Chamber) Label() string {
	return fmt.Sprintf("H%d_%d", c.Cell+1, int(c.Role)+1)
}

// Well addresses one sample-plate well. Plate indexes the plate within the
// deck's plate bank; Row and Column are zero-based within the plate.
type Well struct {
	Plate  int `json:"plate"`
	Row    int `json:"row"`
	Column int `json:"column"`
}

// Label renders the well in plate notation, e.g. "P1:B07".
func (w Well) Label() string {
	return fmt.Sprintf("P%d:%c%02d", w.Plate+1, 'A'+rune(w.Row), w.Column+1)
}

// StockWell addresses a well on the diluent/dye stock reservoir.
type StockWell struct {
	Index int `json:"index"`
}

func (s StockWell) Label() string {
	return fmt.Sprintf("stock_%d", s.Index+1)
}

// OpKind enumerates the atomic transfer operation types.
type OpKind int

const (
	OpFillDilution OpKind = iota
	OpExtractAndDilute
	OpInjectDye
	OpReplenish
)

func (k OpKind) String() string {
	switch k {
	case OpFillDilution:
		return "fill_dilution"
	case OpExtractAndDilute:
		return "extract_and_dilute"
	case OpInjectDye:
		return "inject_dye"
	case OpReplenish:
		return "replenish"
	default:
		return "unknown"
	}
}

// Mix describes an in-place mix performed after a dispense.
type Mix struct {
	Repetitions int
	VolumeUl    float64
}

// TransferOperation is one atomic liquid transfer. Operations are totally
// ordered by (Iteration, Step). FreshTip marks the start of a tip group:
// the executor picks up a new tip before the operation and keeps it until
// the next FreshTip operation or the end of the iteration.
type TransferOperation struct {
	Kind      OpKind
	Iteration int
	Step      int
	Source    Site
	Dest      Site
	VolumeUl  float64
	FreshTip  bool
	MixAfter  *Mix
}

// IterationPoint is one scheduled sampling round.
type IterationPoint struct {
	Index  int
	Offset time.Duration
}

// Schedule is the materialized iteration schedule, strictly increasing in
// both index and offset. It is built once and never mutated.
type Schedule []IterationPoint
