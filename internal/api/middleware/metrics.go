// metrics.go - Prometheus HTTP metrics:
// es_http_requests_total, es_http_request_duration_seconds.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "es_http_requests_total",
			Help: "Total HTTP requests served by EventSync.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "es_http_request_duration_seconds",
			Help:    "EventSync HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware records request count and duration per route.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			path := normalizePath(r.URL.Path)

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the original writer.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// pathParams maps a collection segment to the placeholder of the id after it.
var pathParams = map[string]string{
	"events": "{eventId}",
	"teams":  "{teamId}",
}

// normalizePath replaces ids with placeholders to bound label cardinality:
// /api/v1/events/<uuid>/teams/<uuid>/tracking -> /api/v1/events/{eventId}/teams/{teamId}/tracking
// Paths outside the API collapse to "other".
func normalizePath(path string) string {
	switch path {
	case "/health/live", "/health/ready", "/metrics":
		return path
	}
	if !strings.HasPrefix(path, "/api/v1/") {
		return "other"
	}

	segments := strings.Split(strings.TrimSuffix(path, "/"), "/")
	for i := 1; i < len(segments); i++ {
		if placeholder, ok := pathParams[segments[i-1]]; ok {
			segments[i] = placeholder
		}
	}
	return strings.Join(segments, "/")
}
