package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		chargesTotal,
		chargeDuration,
		paymentsRevenueTotal,
		breakerState,
	)
}

var (
	chargesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_charges_total",
			Help: "Charge attempts by provider and result (succeeded/declined/unavailable).",
		},
		[]string{"provider", "result"},
	)

	chargeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_charge_duration_seconds",
			Help:    "Latency of provider charge calls in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"provider", "result"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "The total captured amount in minor units, labeled by currency.",
		},
		[]string{"currency"},
	)

	breakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "payment_circuit_breaker_state",
			Help: "Circuit breaker state per provider: 0 closed, 1 half-open, 2 open.",
		},
		[]string{"provider"},
	)
)

func ObserveCharge(provider, result string, d time.Duration) {
	chargesTotal.WithLabelValues(norm(provider), norm(result)).Inc()
	chargeDuration.WithLabelValues(norm(provider), norm(result)).Observe(d.Seconds())
}

func AddPaymentRevenue(currency string, amount int64) {
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(float64(amount))
}

func SetBreakerState(provider string, state int) {
	breakerState.WithLabelValues(norm(provider)).Set(float64(state))
}
