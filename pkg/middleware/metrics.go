// Package middleware holds the HTTP middleware of the API server: request
// IDs, Prometheus request metrics, CORS and request timeouts.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/eventdetection/event-detection/pkg/metrics"
)

// unmatchedRoute labels 404s outside the article routes, so scanners
// probing random paths do not create new series.
const unmatchedRoute = "unmatched"

// Metrics counts and times requests by method, route and status, and tracks
// requests in flight.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.HTTPRequestsInFlight.Inc()
			defer m.HTTPRequestsInFlight.Dec()

			rec := &recorder{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(rec, r)
			elapsed := time.Since(start)

			route := routeLabel(r.URL.Path, rec.code())
			m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.code())).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())
		})
	}
}

// recorder remembers the first status written. A handler that only calls
// Write has implicitly sent 200.
type recorder struct {
	http.ResponseWriter
	status int
}

func (rec *recorder) WriteHeader(code int) {
	if rec.status == 0 {
		rec.status = code
	}
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *recorder) Write(b []byte) (int, error) {
	if rec.status == 0 {
		rec.status = http.StatusOK
	}
	return rec.ResponseWriter.Write(b)
}

func (rec *recorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

func (rec *recorder) code() int {
	if rec.status == 0 {
		return http.StatusOK
	}
	return rec.status
}

func routeLabel(path string, status int) string {
	route := normalizePath(path)
	if status == http.StatusNotFound && route == path {
		return unmatchedRoute
	}
	return route
}

// normalizePath replaces the article id in /api/v1/articles/{id}/... with
// ":id" to bound label cardinality.
func normalizePath(path string) string {
	const prefix = "/api/v1/articles/"
	rest, ok := strings.CutPrefix(path, prefix)
	if !ok || rest == "" {
		return path
	}
	if _, tail, found := strings.Cut(rest, "/"); found {
		return prefix + ":id/" + tail
	}
	return prefix + ":id"
}
