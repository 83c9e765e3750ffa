package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// Authorization outcomes by decision. Denials are the interesting
	// series for alerting on misconfigured role grants.
	authzDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rbac_authz_decisions_total",
			Help: "Role checks performed by the access-control middleware.",
		},
		[]string{"decision"},
	)

	fieldDecryptFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fieldcrypt_decrypt_failures_total",
		Help: "Encrypted field values that failed to decrypt and were returned as-is.",
	})
)

// Init registers all metrics with the default registry.
func Init() {
	prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration,
		authzDecisions, fieldDecryptFailures)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// CountAuthzDecision records an allow/deny/error outcome from the middleware.
func CountAuthzDecision(decision string) {
	authzDecisions.WithLabelValues(decision).Inc()
}

// CountDecryptFailure records a field value that could not be decrypted.
func CountDecryptFailure() {
	fieldDecryptFailures.Inc()
}

// Instrument wraps a handler with request counting and latency measurement.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// CanonicalPath collapses resource identifiers so metric cardinality stays
// bounded: /api/events/<id>/incidents/<id> becomes
// /api/events/:id/incidents/:id.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	segments := strings.Split(path, "/")
	collapse := false
	for i, seg := range segments {
		switch seg {
		case "events", "organizations", "incidents", "users", "comments", "event-by-slug":
			collapse = true
			continue
		}
		if collapse && seg != "" {
			segments[i] = ":id"
		}
		collapse = false
	}
	return strings.Join(segments, "/")
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
