package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "hojaruta", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "hojaruta", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)

	// client core

	RefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "hojaruta", Subsystem: "client", Name: "refresh_total", Help: "Refresh calls by outcome (success|failure)."},
		[]string{"outcome"},
	)
	RefreshQueued = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "hojaruta", Subsystem: "client", Name: "refresh_queued_total", Help: "Requests parked while a refresh was in flight."},
	)
	Replays = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "hojaruta", Subsystem: "client", Name: "replays_total", Help: "Replayed requests after a 401, by reason (refreshed|rotated)."},
		[]string{"reason"},
	)
	ForcedLogouts = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "hojaruta", Subsystem: "client", Name: "forced_logouts_total", Help: "Sessions torn down after an unrecoverable refresh failure."},
	)
	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: "hojaruta", Subsystem: "client", Name: "breaker_state", Help: "Pipeline circuit breaker state (0=closed, 1=half-open, 2=open)."},
		[]string{"name"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
}

// RegisterClientCollectors registers the client-core collectors; embedders call it once.
func RegisterClientCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RefreshTotal, RefreshQueued, Replays, ForcedLogouts, BreakerState)
}
