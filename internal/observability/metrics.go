package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// monitoring pipeline.
type Metrics struct {
	SamplesConsumed     prometheus.Counter
	ParseErrors         prometheus.Counter
	LocationFailures    prometheus.Counter
	NormalizerFallbacks prometheus.Counter
	PipelineRunning     prometheus.Gauge

	// Cycle processing metrics.
	BatchSize     prometheus.Histogram
	CycleDuration prometheus.Histogram

	// Outcome metrics.
	AlertsGenerated   *prometheus.CounterVec // labels: level={Low,Moderate,High,Critical}
	CorrelationsFired *prometheus.CounterVec // labels: type
	ReportValidations *prometheus.CounterVec // labels: outcome={matched,inconclusive,error}

	// Geocoding metrics.
	GeocodeRequests *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeCache    *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeEnabled  prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		SamplesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "enviro_risk",
			Name:      "samples_consumed_total",
			Help:      "Total raw sensor samples read from the source topic.",
		}),
		ParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "enviro_risk",
			Name:      "parse_errors_total",
			Help:      "Total samples dropped because they could not be parsed.",
		}),
		LocationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "enviro_risk",
			Name:      "location_failures_total",
			Help:      "Total per-station processing failures within otherwise successful cycles.",
		}),
		NormalizerFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "enviro_risk",
			Name:      "normalizer_fallbacks_total",
			Help:      "Total factor values carried forward from history because the feed went quiet.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "enviro_risk",
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "enviro_risk",
			Name:      "batch_size",
			Help:      "Number of samples per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "enviro_risk",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a complete extract-assess-load cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		AlertsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "enviro_risk",
			Name:      "alerts_generated_total",
			Help:      "Alerts generated by risk level.",
		}, []string{"level"}),
		CorrelationsFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "enviro_risk",
			Name:      "correlations_fired_total",
			Help:      "Correlation rule firings by rule type.",
		}, []string{"type"}),
		ReportValidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "enviro_risk",
			Name:      "report_validations_total",
			Help:      "Citizen report validation attempts by outcome.",
		}, []string{"outcome"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "enviro_risk",
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "enviro_risk",
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "enviro_risk",
			Name:      "geocode_enabled",
			Help:      "1 when report geocoding is enabled, 0 otherwise.",
		}),
	}

	prometheus.MustRegister(
		m.SamplesConsumed,
		m.ParseErrors,
		m.LocationFailures,
		m.NormalizerFallbacks,
		m.PipelineRunning,
		m.BatchSize,
		m.CycleDuration,
		m.AlertsGenerated,
		m.CorrelationsFired,
		m.ReportValidations,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeEnabled,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		SamplesConsumed:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "enviro_risk", Name: "samples_consumed_total"}),
		ParseErrors:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: "enviro_risk", Name: "parse_errors_total"}),
		LocationFailures:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "enviro_risk", Name: "location_failures_total"}),
		NormalizerFallbacks: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "enviro_risk", Name: "normalizer_fallbacks_total"}),
		PipelineRunning:     prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "enviro_risk", Name: "pipeline_running"}),
		BatchSize:           prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "enviro_risk", Name: "batch_size"}),
		CycleDuration:       prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "enviro_risk", Name: "cycle_duration_seconds"}),
		AlertsGenerated:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "enviro_risk", Name: "alerts_generated_total"}, []string{"level"}),
		CorrelationsFired:   prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "enviro_risk", Name: "correlations_fired_total"}, []string{"type"}),
		ReportValidations:   prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "enviro_risk", Name: "report_validations_total"}, []string{"outcome"}),
		GeocodeRequests:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "enviro_risk", Name: "geocode_requests_total"}, []string{"outcome"}),
		GeocodeCache:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "enviro_risk", Name: "geocode_cache_total"}, []string{"result"}),
		GeocodeEnabled:      prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "enviro_risk", Name: "geocode_enabled"}),
	}
}
