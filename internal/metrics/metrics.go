// Package metrics provides Prometheus instrumentation for the ledger.
package metrics

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PositionsOpened counts successful position opens by asset and side.
	PositionsOpened = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "claerdex_positions_opened_total",
		Help: "Total positions opened",
	}, []string{"asset", "side"})

	// PositionsClosed counts successful position closes by asset and side.
	PositionsClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "claerdex_positions_closed_total",
		Help: "Total positions closed",
	}, []string{"asset", "side"})

	// OpenRejections counts opens rejected before settlement, by reason.
	OpenRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "claerdex_open_rejections_total",
		Help: "Position opens rejected before settlement",
	}, []string{"reason"})

	// SettlementFailures counts failed settlement calls by kind
	// (rejected, ambiguous).
	SettlementFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "claerdex_settlement_failures_total",
		Help: "Settlement calls that did not succeed",
	}, []string{"kind"})

	// SettlementLatency tracks settlement call duration by operation.
	SettlementLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "claerdex_settlement_latency_seconds",
		Help:    "Settlement call latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	// PersistenceInconsistencies counts the critical case where settlement
	// succeeded but the ledger write failed.
	PersistenceInconsistencies = promauto.NewCounter(prometheus.CounterOpts{
		Name: "claerdex_persistence_inconsistencies_total",
		Help: "Settled operations whose ledger write failed",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "claerdex_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "claerdex_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "claerdex_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the raw path for the label; the route surface is small
		// enough that cardinality stays bounded.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack passes through to the underlying writer so WebSocket upgrades
// work behind the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return h.Hijack()
}
