package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// forecast consolidation pipeline.
type Metrics struct {
	Consolidations        prometheus.Counter
	ConsolidationDuration prometheus.Histogram
	PipelineRunning       prometheus.Gauge

	// Per-model metrics.
	RunsDetected     *prometheus.CounterVec // labels: model
	ModelFailures    *prometheus.CounterVec // labels: model, reason={latest_run,process}
	LastRunTimestamp *prometheus.GaugeVec   // labels: model
	EnsembleMembers  *prometheus.GaugeVec   // labels: model

	// Export metrics.
	ExportErrors *prometheus.CounterVec // labels: sink={consolidated,model,kafka}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Consolidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ensemble_cast",
			Name:      "consolidations_total",
			Help:      "Total consolidated forecasts produced.",
		}),
		ConsolidationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ensemble_cast",
			Name:      "consolidation_duration_seconds",
			Help:      "Duration of a complete fetch-summarise-merge-export cycle.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ensemble_cast",
			Name:      "pipeline_running",
			Help:      "1 when the consolidator is active, 0 when shut down.",
		}),
		RunsDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ensemble_cast",
			Name:      "runs_detected_total",
			Help:      "New model runs detected and processed, by model.",
		}, []string{"model"}),
		ModelFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ensemble_cast",
			Name:      "model_failures_total",
			Help:      "Model processing failures by model and reason.",
		}, []string{"model", "reason"}),
		LastRunTimestamp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ensemble_cast",
			Name:      "last_run_timestamp_seconds",
			Help:      "Initialisation time of the most recently processed run, by model.",
		}, []string{"model"}),
		EnsembleMembers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ensemble_cast",
			Name:      "ensemble_members",
			Help:      "Member count of the most recently processed run, by model.",
		}, []string{"model"}),
		ExportErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ensemble_cast",
			Name:      "export_errors_total",
			Help:      "Failed table exports by sink.",
		}, []string{"sink"}),
	}

	prometheus.MustRegister(
		m.Consolidations,
		m.ConsolidationDuration,
		m.PipelineRunning,
		m.RunsDetected,
		m.ModelFailures,
		m.LastRunTimestamp,
		m.EnsembleMembers,
		m.ExportErrors,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		Consolidations:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "ensemble_cast", Name: "consolidations_total"}),
		ConsolidationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "ensemble_cast", Name: "consolidation_duration_seconds"}),
		PipelineRunning:       prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "ensemble_cast", Name: "pipeline_running"}),
		RunsDetected:          prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "ensemble_cast", Name: "runs_detected_total"}, []string{"model"}),
		ModelFailures:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "ensemble_cast", Name: "model_failures_total"}, []string{"model", "reason"}),
		LastRunTimestamp:      prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: "ensemble_cast", Name: "last_run_timestamp_seconds"}, []string{"model"}),
		EnsembleMembers:       prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: "ensemble_cast", Name: "ensemble_members"}, []string{"model"}),
		ExportErrors:          prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "ensemble_cast", Name: "export_errors_total"}, []string{"sink"}),
	}
}
