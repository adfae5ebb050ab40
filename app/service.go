// Package app wires configuration, planning, and execution into a runnable
// service.
package app

import (
	"context"
	"fmt"

	"github.com/permealab/hcellrun/config"
	"github.com/permealab/hcellrun/core/driver"
	coremetrics "github.com/permealab/hcellrun/core/metrics"
	"github.com/permealab/hcellrun/core/model"
	"github.com/permealab/hcellrun/core/plan"
	"github.com/permealab/hcellrun/core/run"
	"github.com/permealab/hcellrun/core/runlog"
	"github.com/permealab/hcellrun/infra/logger"
	"github.com/permealab/hcellrun/infra/metrics"
	"github.com/permealab/hcellrun/infra/telemetry"
	"github.com/permealab/hcellrun/internal/eventbus"
)

// Service owns one fully planned experiment run: the materialized transfer
// plan, the execution engine, and the observability plumbing around it.
type Service struct {
	Engine *run.Engine

	sched       model.Schedule
	plan        []model.TransferOperation
	bus         eventbus.EventBus
	store       runlog.Store
	publisher   *telemetry.Publisher
	log         logger.Logger
	promEnabled bool
	promAddr    string
}

// Plan builds the complete transfer plan for the configured experiment
// without touching any hardware. An infeasible experiment fails here.
func Plan(cfg *config.Config) (model.Schedule, []model.TransferOperation, error) {
	exp := cfg.Experiment
	layout, err := exp.Layout()
	if err != nil {
		return nil, nil, err
	}
	sched, err := exp.ScheduleBuilder(layout).Build()
	if err != nil {
		return nil, nil, err
	}
	params, err := exp.PlanParams(layout, sched)
	if err != nil {
		return nil, nil, err
	}
	gen, err := plan.NewGenerator(params, exp.NewLedger(layout), exp.NewStockTracker())
	if err != nil {
		return nil, nil, err
	}
	ops, err := gen.Generate()
	if err != nil {
		return nil, nil, err
	}
	return sched, ops, nil
}

// New plans the experiment and assembles the execution service around the
// given robot driver.
func New(cfg *config.Config, drv driver.Robot) (*Service, error) {
	logg := logger.New("service")

	sched, ops, err := Plan(cfg)
	if err != nil {
		return nil, fmt.Errorf("plan experiment: %w", err)
	}
	logg.Infof("plan ready: %d iterations, %d operations", len(sched), len(ops))

	store, err := runlog.NewJSONLStore(cfg.RunLog.Path)
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}

	var sinks []coremetrics.Sink
	if cfg.Metrics.Prometheus.Enabled {
		sink, err := metrics.NewPromSink()
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.Influx.Enabled {
		in := cfg.Metrics.Influx
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(in.URL, in.Token, in.Org, in.Bucket))
	}
	var sink coremetrics.Sink
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}

	bus := eventbus.New()
	engine, err := run.NewEngine(run.Config{
		Driver:   drv,
		Schedule: sched,
		Plan:     ops,
		Store:    store,
		Logger:   logger.New("engine"),
		Sink:     sink,
		Bus:      bus,
		Metadata: cfg.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("execution engine: %w", err)
	}

	svc := &Service{
		Engine:      engine,
		sched:       sched,
		plan:        ops,
		bus:         bus,
		store:       store,
		log:         logg,
		promEnabled: cfg.Metrics.Prometheus.Enabled,
		promAddr:    cfg.Metrics.Prometheus.Addr,
	}
	if cfg.Telemetry.Enabled {
		pub, err := telemetry.NewPublisher(cfg.Telemetry)
		if err != nil {
			return nil, fmt.Errorf("telemetry publisher: %w", err)
		}
		svc.publisher = pub
	}
	return svc, nil
}

// Schedule returns the iteration schedule of the planned run.
func (s *Service) Schedule() model.Schedule { return s.sched }

// Operations returns the materialized transfer plan of the run.
func (s *Service) Operations() []model.TransferOperation { return s.plan }

// Run executes the experiment and blocks until it completes, aborts, or the
// context is cancelled.
func (s *Service) Run(ctx context.Context) (*run.Report, error) {
	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promAddr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if s.publisher != nil {
		go s.publisher.Run(ctx, s.bus)
	}

	rep, err := s.Engine.Run(ctx)
	if rep != nil {
		s.log.Infof("run %s finished in state %s: %d/%d iterations, cumulative drift %.1fs",
			rep.RunID, rep.State, rep.Completed, len(s.sched), rep.CumulativeDriftSeconds)
	}
	return rep, err
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.publisher != nil {
		s.publisher.Close()
	}
	s.bus.Close()
	return s.store.Close()
}
