package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sutbot_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sutbot_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	UsageChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sutbot_usage_checks_total",
			Help: "Usage limit decisions by action and outcome.",
		},
		[]string{"action", "outcome"},
	)

	PersonaChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sutbot_persona_checks_total",
			Help: "Persona use decisions by action and outcome.",
		},
		[]string{"action", "outcome"},
	)

	DowngradesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sutbot_subscription_downgrades_total",
			Help: "Lazy downgrades applied on expired subscription reads.",
		},
	)

	PersonasBlockedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sutbot_personas_blocked_total",
			Help: "Custom personas soft-blocked by reconciliation.",
		},
	)

	PersonasUnblockedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sutbot_personas_unblocked_total",
			Help: "Custom personas unblocked by reconciliation.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		UsageChecksTotal,
		PersonaChecksTotal,
		DowngradesTotal,
		PersonasBlockedTotal,
		PersonasUnblockedTotal,
	)
}
