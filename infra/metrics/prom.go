package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	coremetrics "github.com/permealab/hcellrun/core/metrics"
)

// PromSink records execution events in Prometheus metrics.
type PromSink struct {
	iterations *prometheus.CounterVec
	duration   prometheus.Histogram
	drift      prometheus.Gauge
	state      *prometheus.GaugeVec
}

// NewPromSink registers run metrics on the default Prometheus registerer.
// The Prometheus server should be started separately with StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	iterations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hcellrun_iterations_total",
		Help: "Total number of executed sampling iterations",
	}, []string{"run_id"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "hcellrun_iteration_duration_seconds",
		Help:    "Wall time spent dispatching one iteration",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
	drift := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hcellrun_iteration_drift_seconds",
		Help: "How far behind schedule the last iteration started",
	})
	state := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hcellrun_run_state",
		Help: "Current execution engine state (1 for the active state)",
	}, []string{"state"})

	if err := reg.Register(iterations); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			iterations = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(duration); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			duration = are.ExistingCollector.(prometheus.Histogram)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(drift); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			drift = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(state); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			state = are.ExistingCollector.(*prometheus.GaugeVec)
		} else {
			return nil, err
		}
	}

	return &PromSink{iterations: iterations, duration: duration, drift: drift, state: state}, nil
}

// RecordIteration updates the iteration counter, duration histogram and
// drift gauge.
func (s *PromSink) RecordIteration(res coremetrics.IterationResult) error {
	s.iterations.WithLabelValues(res.RunID).Inc()
	s.duration.Observe(res.End.Sub(res.Start).Seconds())
	s.drift.Set(res.DriftSeconds)
	return nil
}

// RecordStateChange marks the new state active and clears the others.
func (s *PromSink) RecordStateChange(ev coremetrics.StateChange) error {
	for _, st := range []string{"idle", "running", "waiting", "complete", "aborted"} {
		v := 0.0
		if st == ev.State {
			v = 1
		}
		s.state.WithLabelValues(st).Set(v)
	}
	return nil
}

// StartPromServer starts an HTTP server exposing Prometheus metrics on the
// given address. The server runs until the provided context is canceled.
func StartPromServer(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
