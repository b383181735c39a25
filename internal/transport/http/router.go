package http

import (
	"log/slog"
	"net/http"
	"time"

	"sessionlimit/internal/service"

	obsmw "sessionlimit/internal/observability/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterConfig struct {
	Logger *slog.Logger
	// Authenticate must put the caller's subject into the request context
	// (identity.Verifier.Middleware).
	Authenticate       func(http.Handler) http.Handler
	TrustProxy         bool
	CORSOrigins        []string
	RateLimitPerMinute int
	RequestTimeout     time.Duration
	// Metrics defaults to promhttp.Handler().
	Metrics http.Handler
}

func NewRouter(sessions service.SessionService, cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.Metrics == nil {
		cfg.Metrics = promhttp.Handler()
	}
	h := &handler{sessions: sessions, logger: cfg.Logger, trustProxy: cfg.TrustProxy}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(obsmw.WithRequestAndTrace(cfg.Logger))
	r.Use(obsmw.WithMetrics(cfg.Logger))
	r.Use(chimw.Timeout(cfg.RequestTimeout))
	if cfg.RateLimitPerMinute > 0 {
		if cfg.TrustProxy {
			r.Use(httprate.Limit(cfg.RateLimitPerMinute, time.Minute, httprate.WithKeyFuncs(httprate.KeyByRealIP)))
		} else {
			r.Use(httprate.LimitByIP(cfg.RateLimitPerMinute, time.Minute))
		}
	}
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id", sessionTokenHeader},
			ExposedHeaders:   []string{"X-Request-Id", "X-Trace-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", cfg.Metrics)

	r.Route("/v1/sessions", func(r chi.Router) {
		if cfg.Authenticate != nil {
			r.Use(cfg.Authenticate)
		}
		r.Post("/", h.createSession)
		r.Get("/", h.listSessions)
		r.Post("/force", h.forceSession)
		r.Get("/validate", h.validateSession)
		r.Post("/heartbeat", h.heartbeat)
		r.Delete("/{sessionID}", h.terminateSession)
	})

	return r
}
