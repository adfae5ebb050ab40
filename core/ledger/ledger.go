// Package ledger does the volume bookkeeping for plan generation. Every
// extraction and replenishment is reserved here before the corresponding
// transfer operation is emitted, so a plan that would under- or overflow a
// chamber is rejected before the robot ever moves.
package ledger

import (
	"fmt"

	"github.com/permealab/hcellrun/core/model"
)

// Ledger tracks the simulated running volume of each chamber. It is only
// mutated during plan generation; execution replays the validated plan
// without touching it.
type Ledger struct {
	volumes  map[model.Chamber]float64
	capacity float64
}

// New seeds every chamber with its user-filled starting volume. capacityUl
// bounds replenishment; a chamber may never exceed it.
func New(chambers []model.Chamber, startUl, capacityUl float64) *Ledger {
	volumes := make(map[model.Chamber]float64, len(chambers))
	for _, ch := range chambers {
		volumes[ch] = startUl
	}
	return &Ledger{volumes: volumes, capacity: capacityUl}
}

// Volume reports the current simulated volume of a chamber.
func (l *Ledger) Volume(ch model.Chamber) float64 {
	return l.volumes[ch]
}

// ReserveExtraction withdraws volUl from the chamber, failing if the
// chamber would run dry.
func (l *Ledger) ReserveExtraction(ch model.Chamber, volUl float64) error {
	cur, ok := l.volumes[ch]
	if !ok {
		return fmt.Errorf("unknown chamber %s: %w", ch.Label(), model.ErrVolume)
	}
	if cur-volUl < 0 {
		return fmt.Errorf("extracting %.1fuL from %s holding %.1fuL: %w",
			volUl, ch.Label(), cur, model.ErrVolume)
	}
	l.volumes[ch] = cur - volUl
	return nil
}

// ReserveReplenishment adds volUl to the chamber, failing if the chamber
// would exceed its capacity.
func (l *Ledger) ReserveReplenishment(ch model.Chamber, volUl float64) error {
	cur, ok := l.volumes[ch]
	if !ok {
		return fmt.Errorf("unknown chamber %s: %w", ch.Label(), model.ErrVolume)
	}
	if cur+volUl > l.capacity {
		return fmt.Errorf("replenishing %s to %.1fuL exceeds %.1fuL capacity: %w",
			ch.Label(), cur+volUl, l.capacity, model.ErrVolume)
	}
	l.volumes[ch] = cur + volUl
	return nil
}

// Snapshot copies the current per-chamber volumes.
func (l *Ledger) Snapshot() map[model.Chamber]float64 {
	out := make(map[model.Chamber]float64, len(l.volumes))
	for ch, v := range l.volumes {
		out[ch] = v
	}
	return out
}
