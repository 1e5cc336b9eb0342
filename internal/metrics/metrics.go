// Package metrics exposes run metrics in the prometheus format.
//
// Runs are short-lived CLI invocations, so metrics are not served over HTTP;
// they are written to a node-exporter textfile after the run instead.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/dmut/internal/runner"
)

const namespace = "dmut"

// Outcome labels for dmut_runs_total.
const (
	OutcomeCommitted  = "committed"
	OutcomeRolledBack = "rolled_back"
	OutcomeFailed     = "failed"
)

// Metrics holds the collectors of one process. It implements
// runner.Recorder.
type Metrics struct {
	registry *prometheus.Registry
	runs     *prometheus.CounterVec
	units    *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration prometheus.Histogram
	lastRun  prometheus.Gauge
}

var _ runner.Recorder = (*Metrics)(nil)

// New creates a Metrics with its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Reconciliation runs by outcome.",
		}, []string{"outcome"}),
		units: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_total",
			Help:      "Mutation units processed by phase.",
		}, []string{"phase"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Run failures by error code.",
		}, []string{"code"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of reconciliation runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last finished run.",
		}),
	}
	m.registry.MustRegister(m.runs, m.units, m.failures, m.duration, m.lastRun)
	return m
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRun implements runner.Recorder.
func (m *Metrics) RecordRun(res *runner.Result, elapsed time.Duration, err error) {
	switch {
	case err != nil:
		m.runs.WithLabelValues(OutcomeFailed).Inc()
	case res.Committed:
		m.runs.WithLabelValues(OutcomeCommitted).Inc()
	default:
		m.runs.WithLabelValues(OutcomeRolledBack).Inc()
	}

	if res != nil {
		m.units.WithLabelValues("retract").Add(float64(len(res.Retracted)))
		m.units.WithLabelValues("apply").Add(float64(len(res.Applied)))
		m.units.WithLabelValues("test").Add(float64(len(res.Tested)))
	}

	if err != nil {
		if failures := runner.ReversibilityErrors(err); len(failures) > 0 {
			m.failures.WithLabelValues(string(runner.ErrCodeReversibilityFailed)).Add(float64(len(failures)))
		} else if runner.IsExecutionError(err) {
			m.failures.WithLabelValues(string(runner.ErrCodeExecutionFailed)).Inc()
		} else {
			m.failures.WithLabelValues("OTHER").Inc()
		}
	}

	m.duration.Observe(elapsed.Seconds())
	m.lastRun.SetToCurrentTime()
}

// WriteTextfile writes every metric to path in the text exposition format.
// The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
