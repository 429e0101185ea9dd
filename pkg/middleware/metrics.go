// Package middleware provides the HTTP middleware chain of the lookup
// service: request IDs, Prometheus metrics, and request timeouts.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/related-posts/pkg/metrics"
)

// Metrics returns middleware that records request count, latency and the
// in-flight gauge for API routes. Health and scrape paths pass through
// unrecorded.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if unrecorded(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()

			m.HTTPRequestsInFlight.Inc()
			defer m.HTTPRequestsInFlight.Dec()

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			duration := time.Since(start).Seconds()
			path := normalizePath(r.URL.Path)

			m.HTTPRequestsTotal.WithLabelValues(
				r.Method,
				path,
				strconv.Itoa(sw.status),
			).Inc()

			m.HTTPRequestDuration.WithLabelValues(
				r.Method,
				path,
			).Observe(duration)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the response status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.wroteHeader {
		sw.status = code
		sw.wroteHeader = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if !sw.wroteHeader {
		sw.wroteHeader = true
	}
	return sw.ResponseWriter.Write(b)
}

func (sw *statusWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}

const relatedPrefix = "/api/v1/related/"

// normalizePath collapses post ids out of lookup paths so the label set
// stays bounded.
func normalizePath(path string) string {
	if strings.HasPrefix(path, relatedPrefix) && len(path) > len(relatedPrefix) {
		return relatedPrefix + "{id}"
	}
	return path
}

func unrecorded(path string) bool {
	return path == "/metrics" || strings.HasPrefix(path, "/health/")
}
