package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OTPIssuedTotal counts persisted codes by reason (register, resend, password).
	OTPIssuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "primetrade_otp_issued_total",
		Help: "One-time codes issued.",
	}, []string{"reason"})

	// OTPDeliveryFailuresTotal counts codes persisted but not delivered.
	OTPDeliveryFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "primetrade_otp_delivery_failures_total",
		Help: "One-time codes whose email could not be sent.",
	})

	// OTPChecksTotal counts verification attempts by outcome.
	OTPChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "primetrade_otp_checks_total",
		Help: "One-time code checks by outcome.",
	}, []string{"outcome"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "primetrade_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"method", "route", "status"})
)
