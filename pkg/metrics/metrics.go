// Package metrics defines the Prometheus metric collectors used by the batch
// job and the lookup service, and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	CorpusPosts          prometheus.Gauge
	CorpusTags           prometheus.Gauge
	PostsRankedTotal     *prometheus.CounterVec
	StageDuration        *prometheus.HistogramVec
	RelatedListLength    prometheus.Histogram
	CollectorBacklog     prometheus.Gauge
	SinkRecordsTotal     *prometheus.CounterVec
	LookupsTotal         *prometheus.CounterVec
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates all collectors and registers them with reg. Binaries pass
// prometheus.DefaultRegisterer; tests pass a fresh prometheus.NewRegistry().
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
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		CorpusPosts: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "corpus_posts",
				Help: "Number of posts in the most recently loaded corpus.",
			},
		),
		CorpusTags: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "corpus_tags",
				Help: "Number of distinct tags in the most recently built index.",
			},
		),
		PostsRankedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "posts_ranked_total",
				Help: "Total posts ranked by strategy.",
			},
			[]string{"strategy"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "related_stage_duration_seconds",
				Help:    "Duration of each batch stage (run, load, index, rank, write, publish).",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"stage"},
		),
		RelatedListLength: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "related_list_length",
				Help:    "Number of related posts emitted per post.",
				Buckets: []float64{0, 1, 2, 3, 4, 5, 10, 20},
			},
		),
		CollectorBacklog: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "related_collector_backlog",
				Help: "Results buffered in the parallel pipeline channel.",
			},
		),
		SinkRecordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sink_records_total",
				Help: "Ranked results handed to downstream sinks by sink and status.",
			},
			[]string{"sink", "status"},
		),
		LookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "related_lookups_total",
				Help: "Related-post lookups by result (cache, store, not_found, error, cancelled).",
			},
			[]string{"result"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses.",
			},
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
		m.CorpusPosts,
		m.CorpusTags,
		m.PostsRankedTotal,
		m.StageDuration,
		m.RelatedListLength,
		m.CollectorBacklog,
		m.SinkRecordsTotal,
		m.LookupsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the scrape handler for g, or for the default gatherer
// when g is nil.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
