// Package metrics defines the Prometheus metric collectors used by the span
// services and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors of the span services.
type Metrics struct {
	HTTPRequestsTotal      *prometheus.CounterVec
	HTTPRequestDuration    *prometheus.HistogramVec
	DocumentsTotal         *prometheus.CounterVec
	AnnotationsPerDocument prometheus.Histogram
	RuleDuration           *prometheus.HistogramVec
	SpansDroppedTotal      *prometheus.CounterVec
	IndexedSpans           *prometheus.HistogramVec
	CacheHitsTotal         prometheus.Counter
	CacheMissesTotal       prometheus.Counter
	CacheCircuitState      prometheus.Gauge
	PublishRetriesTotal    prometheus.Counter
	PublishFailuresTotal   prometheus.Counter
}

// New creates all collectors and registers them with reg. Pass
// prometheus.DefaultRegisterer in services and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
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
		DocumentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "span_documents_total",
				Help: "Documents handled by the processor by status (processed, cached, invalid, failed).",
			},
			[]string{"status"},
		),
		AnnotationsPerDocument: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "span_annotations_per_document",
				Help:    "Number of annotations carried by a processed document.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 9),
			},
		),
		RuleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "span_rule_duration_seconds",
				Help:    "Time spent per post-processing rule, including index build and freeze.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"rule"},
		),
		SpansDroppedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "span_dropped_total",
				Help: "Spans removed by a post-processing rule.",
			},
			[]string{"rule"},
		),
		IndexedSpans: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "span_index_size",
				Help:    "Number of spans in an index at freeze time by index variant.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 9),
			},
			[]string{"index"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "span_cache_hits_total",
				Help: "Total number of result cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "span_cache_misses_total",
				Help: "Total number of result cache misses.",
			},
		),
		CacheCircuitState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "span_cache_circuit_state",
				Help: "Result cache circuit breaker state (0 closed, 1 open, 2 half-open).",
			},
		),
		PublishRetriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "span_publish_retries_total",
				Help: "Result publish attempts that failed and were retried.",
			},
		),
		PublishFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "span_publish_failures_total",
				Help: "Results that could not be published after all retries.",
			},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.DocumentsTotal,
		m.AnnotationsPerDocument,
		m.RuleDuration,
		m.SpansDroppedTotal,
		m.IndexedSpans,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheCircuitState,
		m.PublishRetriesTotal,
		m.PublishFailuresTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
