// Package metrics defines the Prometheus collectors used by the keyword,
// validation and evaluation services and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the pipeline.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	ArticlesProcessedTotal *prometheus.CounterVec
	ExtractionDuration     prometheus.Histogram
	KeywordsPerArticle     prometheus.Histogram

	QueriesExpandedTotal *prometheus.CounterVec
	ValidationsTotal     *prometheus.CounterVec
	MatchScore           *prometheus.HistogramVec

	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	EvaluationRunsTotal *prometheus.CounterVec
	EvaluationDuration  *prometheus.HistogramVec
	CircuitBreakerState *prometheus.GaugeVec
}

// New creates all collectors and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates all collectors and registers them with reg. Tests
// pass a fresh prometheus.NewRegistry() to avoid duplicate registration.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		ArticlesProcessedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "articles_processed_total",
				Help: "Articles run through keyword extraction by outcome (ok, partial, error).",
			},
			[]string{"outcome"},
		),
		ExtractionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "keyword_extraction_duration_seconds",
				Help:    "Time spent extracting keywords from one article.",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
		),
		KeywordsPerArticle: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "keywords_per_article",
				Help:    "Number of distinct keywords extracted per article.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
			},
		),
		QueriesExpandedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "queries_expanded_total",
				Help: "Queries expanded by outcome (ok, error).",
			},
			[]string{"outcome"},
		),
		ValidationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "validations_total",
				Help: "Query-article pairs scored by algorithm and outcome.",
			},
			[]string{"algorithm", "outcome"},
		),
		MatchScore: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "match_score",
				Help:    "Distribution of query-article match scores.",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
			[]string{"algorithm"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "keyword_cache_hits_total",
				Help: "Total number of keyword cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "keyword_cache_misses_total",
				Help: "Total number of keyword cache misses.",
			},
		),
		EvaluationRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evaluation_runs_total",
				Help: "Evaluation runs by stage and outcome.",
			},
			[]string{"stage", "outcome"},
		),
		EvaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "evaluation_duration_seconds",
				Help:    "Wall time of each evaluation stage.",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
			},
			[]string{"stage"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.ArticlesProcessedTotal,
		m.ExtractionDuration,
		m.KeywordsPerArticle,
		m.QueriesExpandedTotal,
		m.ValidationsTotal,
		m.MatchScore,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.EvaluationRunsTotal,
		m.EvaluationDuration,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
