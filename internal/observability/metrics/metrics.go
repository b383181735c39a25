package metrics

import "github.com/prometheus/client_golang/prometheus"

// Result labels for SessionCreateAttemptsTotal.
const (
	ResultCreated       = "created"
	ResultLimitExceeded = "limit_exceeded"
	ResultNotFound      = "not_found"
	ResultInvalid       = "invalid"
	ResultError         = "error"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	SessionCreateAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_create_attempts_total",
			Help: "Session creation attempts by outcome.",
		},
		[]string{"result"},
	)

	AuthenticationAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authentication_attempts_total",
			Help: "Bearer token checks by result.",
		},
		[]string{"result"},
	)

	SessionEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "session_evictions_total",
			Help: "Sessions ended to make room for a new one.",
		},
	)

	SessionsTerminatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_terminated_total",
			Help: "Sessions ended explicitly by their owner.",
		},
	)

	SessionsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_expired_total",
			Help: "Sessions deactivated by the expiry sweep.",
		},
	)
)

// MustRegister registers every collector with reg, tagging all series with
// the service name. Call once at startup.
func MustRegister(reg prometheus.Registerer, serviceName string) {
	prometheus.WrapRegistererWith(prometheus.Labels{"service": serviceName}, reg).MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDurationSeconds,
		SessionCreateAttemptsTotal,
		AuthenticationAttemptsTotal,
		SessionEvictionsTotal,
		SessionsTerminatedTotal,
		SessionsExpiredTotal,
	)
}
