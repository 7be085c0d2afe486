// Package telemetry defines the prometheus metrics of the server.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	httpDur = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	// Assignments counts identifiers placed into a group.
	Assignments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sprida_assignments_total",
			Help: "Identifiers assigned to a group, by split and group",
		},
		[]string{"split", "group"},
	)
	// InsufficientEntropy counts identifiers too short for their split.
	InsufficientEntropy = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sprida_insufficient_entropy_total",
			Help: "Identifiers rejected for carrying too few bits, by split",
		},
		[]string{"split"},
	)

	SSEClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sprida_sse_clients",
		Help: "Number of currently connected SSE clients",
	})
	SnapshotSplits = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sprida_snapshot_splits",
		Help: "Number of splits currently in the in-memory snapshot",
	})

	// WebhookDeliveries counts webhook delivery attempts by result
	// (success, retry, failed, dropped).
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sprida_webhook_deliveries_total",
			Help: "Webhook delivery attempts by result",
		},
		[]string{"result"},
	)
)

// Collectors returns every metric of the package.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{httpReqs, httpDur, Assignments, InsufficientEntropy, SSEClients, SnapshotSplits, WebhookDeliveries}
}

// Init registers the metrics with the default registry.
func Init() {
	prometheus.MustRegister(Collectors()...)
}

// Middleware records request counts and latencies by chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		// the pattern is only complete once routing has finished
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}

		httpReqs.WithLabelValues(route, r.Method, strconv.Itoa(ww.status)).Inc()
		httpDur.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
