package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can build as many as they like.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	queriesTotal         *prometheus.CounterVec
	classificationsTotal *prometheus.CounterVec
	listingsTotal        *prometheus.CounterVec
	retrievalHitTotal    prometheus.Counter
	retrievalNoContext   prometheus.Counter
	retrievedChunks      prometheus.Histogram
	handleDuration       *prometheus.HistogramVec
	usageRejectedTotal   prometheus.Counter
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marrfa",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		}, []string{"method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "marrfa",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		queriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marrfa",
			Subsystem: "router",
			Name:      "queries_total",
			Help:      "Routed queries by intent and response kind.",
		}, []string{"intent", "kind"}),
		classificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marrfa",
			Subsystem: "classifier",
			Name:      "classifications_total",
			Help:      "Classifications by method.",
		}, []string{"method"}),
		listingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marrfa",
			Subsystem: "listings",
			Name:      "searches_total",
			Help:      "Listings API searches by outcome (results, empty, unavailable).",
		}, []string{"outcome"}),
		retrievalHitTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "marrfa",
			Subsystem: "retrieval",
			Name:      "hit_total",
			Help:      "Retrievals with at least one chunk.",
		}),
		retrievalNoContext: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "marrfa",
			Subsystem: "retrieval",
			Name:      "no_context_total",
			Help:      "Retrievals without any chunk.",
		}),
		retrievedChunks: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "marrfa",
			Subsystem: "retrieval",
			Name:      "retrieved_chunks",
			Help:      "Chunks returned per retrieval.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		}),
		handleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "marrfa",
			Subsystem: "router",
			Name:      "handle_duration_seconds",
			Help:      "Router handling time by intent.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"intent"}),
		usageRejectedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "marrfa",
			Subsystem: "usage",
			Name:      "rejected_total",
			Help:      "Anonymous queries rejected by the usage limit.",
		}),
	}

	registry.MustRegister(
		m.requestTotal,
		m.requestDuration,
		m.queriesTotal,
		m.classificationsTotal,
		m.listingsTotal,
		m.retrievalHitTotal,
		m.retrievalNoContext,
		m.retrievedChunks,
		m.handleDuration,
		m.usageRejectedTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency by route template
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if m == nil {
			return
		}

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.requestTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) RecordQuery(intent, kind string, duration time.Duration) {
	if m == nil {
		return
	}
	m.queriesTotal.WithLabelValues(intent, kind).Inc()
	m.handleDuration.WithLabelValues(intent).Observe(duration.Seconds())
}

func (m *Metrics) RecordClassification(method string) {
	if m == nil {
		return
	}
	m.classificationsTotal.WithLabelValues(method).Inc()
}

func (m *Metrics) RecordListingsSearch(outcome string) {
	if m == nil {
		return
	}
	m.listingsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordRetrieval(chunks int) {
	if m == nil {
		return
	}
	if chunks > 0 {
		m.retrievalHitTotal.Inc()
	} else {
		m.retrievalNoContext.Inc()
	}
	m.retrievedChunks.Observe(float64(chunks))
}

func (m *Metrics) RecordUsageRejected() {
	if m == nil {
		return
	}
	m.usageRejectedTotal.Inc()
}
