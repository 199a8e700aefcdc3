// Package metrics exposes Prometheus counters and histograms for the
// ingestion engine and the HTTP layer, grounded on the example pack's
// arkiv-ingestion service (the clearest prometheus/client_golang precedent
// for an ingestion worker in this corpus).
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every collector Kizami registers.
type Metrics struct {
	IngestCyclesTotal   *prometheus.CounterVec
	IngestBlocksTotal   *prometheus.CounterVec
	IngestCycleDuration *prometheus.HistogramVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	handler http.Handler
}

// New registers and returns a fresh collector set against its own registry
// so repeated calls (e.g. in tests) never collide with prometheus's
// default global registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		IngestCyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "kizami_ingest_cycles_total", Help: "Ingestion cycles by chain and outcome."},
			[]string{"chain", "status"},
		),
		IngestBlocksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "kizami_ingest_blocks_total", Help: "Blocks persisted by chain."},
			[]string{"chain"},
		),
		IngestCycleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: "kizami_ingest_cycle_duration_seconds", Help: "Ingestion cycle latency.", Buckets: prometheus.DefBuckets},
			[]string{"chain"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "kizami_http_requests_total", Help: "HTTP requests served."},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: "kizami_http_request_duration_seconds", Help: "HTTP request latency.", Buckets: prometheus.DefBuckets},
			[]string{"method", "path"},
		),
	}
	reg.MustRegister(m.IngestCyclesTotal, m.IngestBlocksTotal, m.IngestCycleDuration, m.HTTPRequestsTotal, m.HTTPRequestDuration)
	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return m
}

// Handler returns the /metrics HTTP handler for this collector set.
func (m *Metrics) Handler() http.Handler {
	return m.handler
}

// Instrument wraps a handler to record request count and latency, labeled
// by the route's template path (not the raw URL) so cardinality stays
// bounded across arbitrary chain ids and timestamps.
func (m *Metrics) Instrument(routePath string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next(rw, r)
		status := strconv.Itoa(rw.status)
		m.HTTPRequestsTotal.WithLabelValues(r.Method, routePath, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, routePath).Observe(time.Since(start).Seconds())
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
