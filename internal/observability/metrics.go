package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// conversion pipeline.
type Metrics struct {
	TimestepsProcessed prometheus.Counter
	RecordsWritten     prometheus.Counter
	TransformErrors    prometheus.Counter
	PipelineRunning    prometheus.Gauge
	CellsMapped        prometheus.Gauge

	StepDuration prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		TimestepsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "era5_shetran",
			Name:      "timesteps_processed_total",
			Help:      "Total timesteps converted.",
		}),
		RecordsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "era5_shetran",
			Name:      "records_written_total",
			Help:      "Total output records (cells x variables x timesteps) written.",
		}),
		TransformErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "era5_shetran",
			Name:      "transform_errors_total",
			Help:      "Total transformation failures. Any failure aborts the run.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "era5_shetran",
			Name:      "pipeline_running",
			Help:      "1 while a conversion is active, 0 otherwise.",
		}),
		CellsMapped: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "era5_shetran",
			Name:      "cells_mapped",
			Help:      "Number of SHETRAN cells in the active cell map.",
		}),
		StepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "era5_shetran",
			Name:      "step_duration_seconds",
			Help:      "Duration of one extract-transform-load timestep.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}

	prometheus.MustRegister(
		m.TimestepsProcessed,
		m.RecordsWritten,
		m.TransformErrors,
		m.PipelineRunning,
		m.CellsMapped,
		m.StepDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		TimestepsProcessed: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "era5_shetran", Name: "timesteps_processed_total"}),
		RecordsWritten:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "era5_shetran", Name: "records_written_total"}),
		TransformErrors:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "era5_shetran", Name: "transform_errors_total"}),
		PipelineRunning:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "era5_shetran", Name: "pipeline_running"}),
		CellsMapped:        prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "era5_shetran", Name: "cells_mapped"}),
		StepDuration:       prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "era5_shetran", Name: "step_duration_seconds"}),
	}
}
