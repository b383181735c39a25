package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"sessionlimit/internal/observability/metrics"

	"github.com/go-chi/chi/v5"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// WithMetrics records request count and latency. Paths are labelled with the
// chi route pattern so session ids do not explode cardinality.
func WithMetrics(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sr, r)

			duration := time.Since(start).Seconds()
			path := r.URL.Path
			if rc := chi.RouteContext(r.Context()); rc != nil {
				if p := rc.RoutePattern(); p != "" {
					path = p
				}
			}
			statusStr := strconv.Itoa(sr.status)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, statusStr).Inc()
			metrics.HTTPRequestDurationSeconds.WithLabelValues(r.Method, path).Observe(duration)

			logger.DebugContext(r.Context(), "finished request",
				"request_id", RequestIDFromContext(r.Context()),
				"method", r.Method,
				"path", path,
				"status", sr.status,
				"duration_seconds", duration,
			)
		})
	}
}
