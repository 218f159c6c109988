package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	LoginsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "xerosignup", Name: "logins_started_total", Help: "Number of authorization redirects issued."},
	)
	CallbacksSucceeded = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "xerosignup", Name: "callbacks_succeeded_total", Help: "Number of callbacks that completed the handshake."},
	)
	CallbacksFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "xerosignup", Name: "callbacks_failed_total", Help: "Number of failed callbacks by stage."},
		[]string{"stage"},
	)
	SignUpsCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "xerosignup", Name: "signups_completed_total", Help: "Number of supplementary sign-up forms submitted."},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "xerosignup", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "xerosignup", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(LoginsStarted)
	reg.MustRegister(CallbacksSucceeded)
	reg.MustRegister(CallbacksFailed)
	reg.MustRegister(SignUpsCompleted)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
}
