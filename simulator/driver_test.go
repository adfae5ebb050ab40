package simulator

import (
	"context"
	"testing"
	"time"

	"github.com/permealab/hcellrun/core/model"
)

func TestDriverRecordsTrace(t *testing.T) {
	d := New(Config{Seed: 1})
	ctx := context.Background()

	if err := d.PickUpTip(ctx); err != nil {
		t.Fatalf("pick up tip: %v", err)
	}
	well := model.Well{Plate: 0, Row: 1, Column: 7}
	if err := d.Aspirate(ctx, well, 20); err != nil {
		t.Fatalf("aspirate: %v", err)
	}
	if err := d.Dispense(ctx, model.StockWell{Index: 0}, 20); err != nil {
		t.Fatalf("dispense: %v", err)
	}
	if err := d.DropTip(ctx); err != nil {
		t.Fatalf("drop tip: %v", err)
	}

	calls := d.Calls()
	if len(calls) != 4 {
		t.Fatalf("expected 4 calls, got %d", len(calls))
	}
	if calls[1].Op != "aspirate" || calls[1].Site != well.Label() || calls[1].VolumeUl != 20 {
		t.Errorf("unexpected aspirate call: %+v", calls[1])
	}
}

func TestDriverFaultInjection(t *testing.T) {
	d := New(Config{FailAtCall: 2, Seed: 1})
	ctx := context.Background()

	if err := d.PickUpTip(ctx); err != nil {
		t.Fatalf("call 1 should succeed: %v", err)
	}
	if err := d.Mix(ctx, model.StockWell{Index: 0}, 20, 8); err == nil {
		t.Fatal("call 2 should fail")
	}
	if err := d.DropTip(ctx); err != nil {
		t.Fatalf("call 3 should succeed: %v", err)
	}
}

func TestDriverHonorsContext(t *testing.T) {
	d := New(Config{CallLatency: time.Minute, Seed: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := d.PickUpTip(ctx); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
