package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"sessionlimit/internal/observability/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestWithRequestAndTraceGeneratesAndEchoesIDs(t *testing.T) {
	var seen string
	h := WithRequestAndTrace(discard)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || rec.Header().Get("X-Request-ID") != seen {
		t.Fatalf("request id not propagated: ctx=%q header=%q", seen, rec.Header().Get("X-Request-ID"))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "given")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen != "given" {
		t.Fatalf("expected caller supplied id, got %q", seen)
	}
}

func TestWithMetricsUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(WithMetrics(discard))
	r.Delete("/v1/sessions/{sessionID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	before := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues(http.MethodDelete, "/v1/sessions/{sessionID}", "204"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/sessions/abc", nil))
	after := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues(http.MethodDelete, "/v1/sessions/{sessionID}", "204"))

	if after-before != 1 {
		t.Fatalf("expected one request recorded under the route pattern, delta=%v", after-before)
	}
}
