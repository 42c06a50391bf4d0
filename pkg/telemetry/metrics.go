// Package telemetry records run metrics for the Prometheus textfile collector
// and emits OpenTelemetry spans for runs and tests.
package telemetry

import (
	"fmt"
	"time"

	"github.com/entrhq/guitest/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "guitest"

// Metrics holds the collectors for one process. Each Metrics owns its own
// registry so the textfile only carries guitest series.
type Metrics struct {
	registry *prometheus.Registry

	Runs         *prometheus.CounterVec
	Tests        *prometheus.CounterVec
	Skipped      prometheus.Counter
	TestDuration *prometheus.HistogramVec
	RunDuration  prometheus.Gauge
	LastRun      prometheus.Gauge
	ProviderErrs *prometheus.CounterVec
}

// NewMetrics registers the guitest collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "run",
				Name:      "total",
				Help:      "Total number of story runs",
			},
			[]string{"story", "result"}, // "passed", "failed" or "skipped"
		),
		Tests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "test",
				Name:      "total",
				Help:      "Total number of executed tests",
			},
			[]string{"kind", "result"},
		),
		Skipped: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "test",
				Name:      "skipped_total",
				Help:      "Semantic tests skipped because no provider was available",
			},
		),
		TestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "test",
				Name:      "duration_seconds",
				Help:      "Test duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
			},
			[]string{"kind"},
		),
		RunDuration: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "run",
				Name:      "duration_seconds",
				Help:      "Duration of the most recent run in seconds",
			},
		),
		LastRun: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "run",
				Name:      "last_timestamp_seconds",
				Help:      "Unix time the most recent run finished",
			},
		),
		ProviderErrs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "verify",
				Name:      "provider_errors_total",
				Help:      "Verification calls that failed before producing a verdict",
			},
			[]string{"provider"},
		),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRun folds a finished run into the collectors.
func (m *Metrics) ObserveRun(r *types.RunResult) {
	if r == nil {
		return
	}
	outcome := "passed"
	switch {
	case r.TotalTests == 0:
		outcome = "skipped"
	case r.Failed():
		outcome = "failed"
	}
	m.Runs.WithLabelValues(r.StoryID, outcome).Inc()

	for _, tr := range r.Results {
		kind := string(tr.Kind)
		if kind == "" {
			kind = string(types.KindBrowser)
		}
		m.Tests.WithLabelValues(kind, result(tr.Passed)).Inc()
		m.TestDuration.WithLabelValues(kind).Observe(float64(tr.Duration) / 1000)
	}
	m.Skipped.Add(float64(r.SkippedTests))
	m.RunDuration.Set(float64(r.Duration) / 1000)
	m.LastRun.Set(float64(r.StartedAt.Add(time.Duration(r.Duration) * time.Millisecond).Unix()))
}

// ProviderError counts a failed verification call.
func (m *Metrics) ProviderError(provider string) {
	m.ProviderErrs.WithLabelValues(provider).Inc()
}

// WriteTextfile writes all series to path in the text exposition format,
// atomically replacing any previous file.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

func result(passed bool) string {
	if passed {
		return "passed"
	}
	return "failed"
}
