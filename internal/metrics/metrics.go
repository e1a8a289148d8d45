// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sppt_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
	authAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sppt_auth_attempts_total",
			Help: "Session protocol operations by principal kind, event and outcome",
		},
		[]string{"kind", "event", "success"},
	)
	sessionsRevoked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sppt_sessions_revoked_total",
			Help: "Refresh tokens revoked by principal kind and reason",
		},
		[]string{"kind", "reason"},
	)
	rateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sppt_rate_limited_total",
			Help: "Requests rejected by a rate limiter",
		},
		[]string{"limiter"},
	)
)

// RecordAuthAttempt counts a login/refresh/logout/password event.
func RecordAuthAttempt(kind, event string, success bool) {
	authAttempts.WithLabelValues(kind, event, strconv.FormatBool(success)).Inc()
}

// RecordRevoked adds n revoked refresh tokens.
func RecordRevoked(kind, reason string, n int64) {
	if n <= 0 {
		return
	}
	sessionsRevoked.WithLabelValues(kind, reason).Add(float64(n))
}

// RecordRateLimited counts a rejected request.
func RecordRateLimited(limiter string) {
	rateLimited.WithLabelValues(limiter).Inc()
}
