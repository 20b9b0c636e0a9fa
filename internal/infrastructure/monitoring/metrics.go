package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tabshell"

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Bookmark metrics
	BookmarksCreated  *prometheus.CounterVec
	BookmarksDeleted  prometheus.Counter
	BookmarksImported prometheus.Counter
	BookmarksSkipped  prometheus.Counter

	// Enrichment outcomes: inline, fallback, unreachable
	Enrichments *prometheus.CounterVec

	// Client-side remote failures absorbed by the local mirror
	RemoteFallbacks *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    prometheus.Counter
}

// NewMetrics creates a new metrics collector on its own registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),

		BookmarksCreated: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bookmarks_created_total",
				Help:      "Bookmark create requests by result (created, existing)",
			},
			[]string{"result"},
		),
		BookmarksDeleted: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bookmarks_deleted_total",
				Help:      "Bookmarks deleted",
			},
		),
		BookmarksImported: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bookmarks_imported_total",
				Help:      "Bookmarks inserted by bulk import",
			},
		),
		BookmarksSkipped: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bookmarks_import_skipped_total",
				Help:      "Duplicate bookmarks skipped by bulk import",
			},
		),

		Enrichments: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "enrichments_total",
				Help:      "Metadata enrichment results by favicon source",
			},
			[]string{"outcome"},
		),

		RemoteFallbacks: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "remote_fallbacks_total",
				Help:      "Bookmark API failures served from the local mirror",
			},
			[]string{"op"},
		),

		WSConnections: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ws_connections",
				Help:      "Open event stream connections",
			},
		),
		WSMessages: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ws_messages_total",
				Help:      "Events written to stream subscribers",
			},
		),
	}
}

// Registry exposes the underlying registry for scraping in tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordBookmarkCreated counts a create request; existing marks a server-side dedupe hit
func (m *Metrics) RecordBookmarkCreated(existing bool) {
	if m == nil {
		return
	}
	result := "created"
	if existing {
		result = "existing"
	}
	m.BookmarksCreated.WithLabelValues(result).Inc()
}

// RecordBookmarkDeleted counts a deletion
func (m *Metrics) RecordBookmarkDeleted() {
	if m == nil {
		return
	}
	m.BookmarksDeleted.Inc()
}

// RecordImport counts the result of a bulk import
func (m *Metrics) RecordImport(imported, skipped int) {
	if m == nil {
		return
	}
	m.BookmarksImported.Add(float64(imported))
	m.BookmarksSkipped.Add(float64(skipped))
}

// RecordEnrichment counts an enrichment by where the favicon came from
func (m *Metrics) RecordEnrichment(outcome string) {
	if m == nil {
		return
	}
	m.Enrichments.WithLabelValues(outcome).Inc()
}

// RecordRemoteFallback counts a remote failure absorbed locally
func (m *Metrics) RecordRemoteFallback(op string) {
	if m == nil {
		return
	}
	m.RemoteFallbacks.WithLabelValues(op).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}

// RecordWSMessage counts an event delivered to a subscriber
func (m *Metrics) RecordWSMessage() {
	if m == nil {
		return
	}
	m.WSMessages.Inc()
}
