// Package metrics exposes the engine's Prometheus collectors. Collection
// is optional; the engine skips it entirely when metrics are disabled.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector bundles the engine metrics. Register one per process.
type Collector struct {
	ExecutionsTotal   *prometheus.CounterVec
	ExecutionDuration prometheus.Histogram
	StepsTotal        *prometheus.CounterVec
	StepDuration      *prometheus.HistogramVec
	QueueDepth        prometheus.Gauge
	ActiveExecutions  prometheus.Gauge
}

// NewCollector registers the engine metrics with the given registerer.
// Tests pass a fresh prometheus.NewRegistry to avoid duplicate
// registration panics.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		ExecutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "weft_executions_total",
				Help: "Workflow executions by terminal status",
			},
			[]string{"status"},
		),
		ExecutionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "weft_execution_duration_seconds",
				Help:    "Wall time of workflow executions",
				Buckets: prometheus.DefBuckets,
			},
		),
		StepsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "weft_steps_total",
				Help: "Step executions by type and outcome",
			},
			[]string{"step_type", "status"},
		),
		StepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "weft_step_duration_seconds",
				Help:    "Wall time of step executions by type",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"step_type"},
		),
		QueueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "weft_queue_depth",
				Help: "Executions waiting for admission",
			},
		),
		ActiveExecutions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "weft_active_executions",
				Help: "Executions currently running",
			},
		),
	}
}
