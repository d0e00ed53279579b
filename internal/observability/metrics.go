package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storm_risk"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// claims risk pipeline.
type Metrics struct {
	ClaimsRead       prometheus.Counter
	ClaimsSkipped    prometheus.Counter
	ReportsPublished prometheus.Counter
	PipelineRunning  prometheus.Gauge

	// Run metrics.
	RunDuration       prometheus.Histogram
	RunErrors         *prometheus.CounterVec // labels: stage={extract,analyze,load}
	LastRunSuccessful prometheus.Gauge       // unix seconds of the last published report

	// Model metrics.
	BranchFailures *prometheus.CounterVec // labels: branch, kind
	FitSlope       *prometheus.GaugeVec   // labels: branch
	FitRSquared    *prometheus.GaugeVec   // labels: branch

	// Sink metrics.
	SinkWrites *prometheus.CounterVec // labels: sink, outcome={success,error}
}

func newMetrics() *Metrics {
	return &Metrics{
		ClaimsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claims_read_total",
			Help:      "Total claim records read from the source.",
		}),
		ClaimsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claims_skipped_total",
			Help:      "Total claim records that could not be parsed.",
		}),
		ReportsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_published_total",
			Help:      "Total reports delivered to every sink.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete extract-analyze-load run.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		RunErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_errors_total",
			Help:      "Failed run stages by stage.",
		}, []string{"stage"}),
		LastRunSuccessful: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_report_timestamp_seconds",
			Help:      "Unix time of the most recently published report.",
		}),
		BranchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "branch_failures_total",
			Help:      "Analysis branches that produced no model, by branch and error kind.",
		}, []string{"branch", "kind"}),
		FitSlope: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fit_slope",
			Help:      "Fitted slope a of value = a·log(RI) + b, by branch.",
		}, []string{"branch"}),
		FitRSquared: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fit_r_squared",
			Help:      "Coefficient of determination of the latest fit, by branch.",
		}, []string{"branch"}),
		SinkWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_writes_total",
			Help:      "Report writes by sink and outcome.",
		}, []string{"sink", "outcome"}),
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ClaimsRead,
		m.ClaimsSkipped,
		m.ReportsPublished,
		m.PipelineRunning,
		m.RunDuration,
		m.RunErrors,
		m.LastRunSuccessful,
		m.BranchFailures,
		m.FitSlope,
		m.FitRSquared,
		m.SinkWrites,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
