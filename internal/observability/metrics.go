package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CoverageCollector bundles Prometheus metrics for the coverage cache, the
// parameter evaluator and the environment filler. It satisfies
// coverage.LookupRecorder, evaluator.Recorder and filler.Recorder.
type CoverageCollector struct {
	gatherer prometheus.Gatherer

	CacheLookups       *prometheus.CounterVec
	Evaluations        *prometheus.CounterVec
	FallbackSeries     prometheus.Counter
	EvaluationDuration prometheus.Histogram
	FillerTasks        *prometheus.CounterVec
}

// NewCoverageCollector registers coverage metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewCoverageCollector(reg prometheus.Registerer) (*CoverageCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	lookups, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coverage_cache_lookups_total",
		Help: "Coverage cache lookups, labeled by how the coverage was obtained (exact, clone, open).",
	}, []string{"result"}), "coverage_cache_lookups_total")
	if err != nil {
		return nil, err
	}

	evaluations, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coverage_evaluations_total",
		Help: "Parameter evaluations, labeled by outcome (value, missing, outside, error).",
	}, []string{"outcome"}), "coverage_evaluations_total")
	if err != nil {
		return nil, err
	}

	fallback, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "coverage_fallback_series_total",
		Help: "Evaluations answered by a fallback series after the primary had no data.",
	}), "coverage_fallback_series_total")
	if err != nil {
		return nil, err
	}

	duration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "coverage_evaluation_duration_seconds",
		Help:    "Parameter evaluation latency in seconds.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}), "coverage_evaluation_duration_seconds")
	if err != nil {
		return nil, err
	}

	tasks, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "filler_tasks_total",
		Help: "Environment filler tasks, labeled by outcome (written, missing, outside).",
	}, []string{"outcome"}), "filler_tasks_total")
	if err != nil {
		return nil, err
	}

	return &CoverageCollector{
		gatherer:           gatherer,
		CacheLookups:       lookups,
		Evaluations:        evaluations,
		FallbackSeries:     fallback,
		EvaluationDuration: duration,
		FillerTasks:        tasks,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *CoverageCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// RecordLookup counts a coverage cache lookup.
func (c *CoverageCollector) RecordLookup(result string) {
	if c == nil || c.CacheLookups == nil {
		return
	}
	c.CacheLookups.WithLabelValues(result).Inc()
}

// ObserveEvaluation records the outcome and latency of one evaluation.
func (c *CoverageCollector) ObserveEvaluation(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	if c.Evaluations != nil {
		c.Evaluations.WithLabelValues(outcome).Inc()
	}
	if c.EvaluationDuration != nil {
		c.EvaluationDuration.Observe(d.Seconds())
	}
}

// RecordFallback counts an evaluation served by a fallback series.
func (c *CoverageCollector) RecordFallback() {
	if c == nil || c.FallbackSeries == nil {
		return
	}
	c.FallbackSeries.Inc()
}

// RecordTask counts a filler task outcome.
func (c *CoverageCollector) RecordTask(outcome string) {
	if c == nil || c.FillerTasks == nil {
		return
	}
	c.FillerTasks.WithLabelValues(outcome).Inc()
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
