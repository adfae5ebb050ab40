package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/permealab/hcellrun/core/model"
)

//nolint:gocyclo
func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `experiment:
  name: "permeation-trial-12"
  num_cells: 4
  total_hours: 8
  chamber_volume_ul: 12000
  segments:
    - duration_hours: 2
      interval_hours: 0.5
    - duration_hours: 6
      interval_hours: 2
  dye:
    enabled: true
    volume_ul: 80
    stock_well: 3
    order: "before_extraction"
run_log:
  path: "trial12.log"
metrics:
  prometheus:
    enabled: true
    addr: ":9200"
telemetry:
  enabled: false
metadata:
  operator: "bench-2"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"name", cfg.Experiment.Name, "permeation-trial-12"},
		{"num_cells", cfg.Experiment.NumCells, 4},
		{"total_hours", cfg.Experiment.TotalHours, 8.0},
		{"segments", len(cfg.Experiment.Segments), 2},
		{"aliquot_default", cfg.Experiment.AliquotUl, 20.0},
		{"dilution_default", cfg.Experiment.DilutionUl, 180.0},
		{"well_capacity_default", cfg.Experiment.WellCapacityUl, 200.0},
		{"mix_default", cfg.Experiment.MixRepetitions, 8},
		{"chamber_capacity_derived", cfg.Experiment.ChamberCapacityUl, 12080.0},
		{"stock_wells_default", cfg.Experiment.Stock.Wells, 12},
		{"stock_capacity_default", cfg.Experiment.Stock.CapacityUl, 17000.0},
		{"dye_volume", cfg.Experiment.Dye.VolumeUl, 80.0},
		{"dye_well", cfg.Experiment.Dye.StockWell, 3},
		{"run_log_path", cfg.RunLog.Path, "trial12.log"},
		{"prom_addr", cfg.Metrics.Prometheus.Addr, ":9200"},
		{"telemetry_disabled", cfg.Telemetry.Enabled, false},
		{"metadata", cfg.Metadata["operator"], "bench-2"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s: got %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `experiment:
  num_cells: 2
  total_hours: 4
  chamber_volume_ul: 12000
  segments:
    - duration_hours: 4
      interval_hours: 1
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("HC_RUN_LOG__PATH", "env.log")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.RunLog.Path != "env.log" {
		t.Errorf("env override ignored: got %q", cfg.RunLog.Path)
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	if _, err := Load("config.toml"); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestExperimentValidate(t *testing.T) {
	base := func() ExperimentConfig {
		c := ExperimentConfig{
			NumCells:        2,
			TotalHours:      8,
			ChamberVolumeUl: 12000,
		}
		c.SetDefaults()
		return c
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*ExperimentConfig)
	}{
		{"zero cells", func(c *ExperimentConfig) { c.NumCells = 0 }},
		{"too many cells", func(c *ExperimentConfig) { c.NumCells = 9 }},
		{"segments mismatch", func(c *ExperimentConfig) { c.Segments[0].DurationHours = 5 }},
		{"negative interval", func(c *ExperimentConfig) { c.Segments[0].IntervalHours = -1 }},
		{"well overflow", func(c *ExperimentConfig) { c.DilutionUl = 190 }},
		{"tiny chamber", func(c *ExperimentConfig) { c.ChamberVolumeUl = 10; c.ChamberCapacityUl = 10 }},
		{"dye without volume", func(c *ExperimentConfig) { c.Dye.Enabled = true }},
		{"dye well out of range", func(c *ExperimentConfig) {
			c.Dye = DyeConfig{Enabled: true, VolumeUl: 80, StockWell: 12}
		}},
		{"bad dye order", func(c *ExperimentConfig) {
			c.Dye = DyeConfig{Enabled: true, VolumeUl: 80, Order: "mid_run"}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := base()
			tc.mutate(&c)
			err := c.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, model.ErrConfig) {
				t.Errorf("error not tagged as config error: %v", err)
			}
		})
	}
}

func TestScheduleBuilderConversion(t *testing.T) {
	c := ExperimentConfig{
		NumCells:        2,
		TotalHours:      8,
		ChamberVolumeUl: 12000,
		Segments: []SegmentConfig{
			{DurationHours: 2, IntervalHours: 0.5},
			{DurationHours: 6, IntervalHours: 2},
		},
	}
	c.SetDefaults()
	layout, err := c.Layout()
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	sched, err := c.ScheduleBuilder(layout).Build()
	if err != nil {
		t.Fatalf("build schedule: %v", err)
	}
	// t=0 plus 4 half-hourly then 3 two-hourly samples.
	if len(sched) != 8 {
		t.Fatalf("expected 8 iterations, got %d", len(sched))
	}
	params, err := c.PlanParams(layout, sched)
	if err != nil {
		t.Fatalf("plan params: %v", err)
	}
	if params.AliquotUl != 20 || params.DilutionUl != 180 || params.Dye != nil {
		t.Errorf("unexpected params: %+v", params)
	}
}
