package metrics

import (
	"time"

	"subscription-service/internal/domain/model"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		subscriptionsCreatedTotal,
		subscriptionFailuresTotal,
		subscriptionCreateDuration,
		reconciliationRequiredTotal,
		subscriptionsTotal,
	)
}

var (
	subscriptionsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscriptions_created_total",
			Help: "Subscriptions created, labeled by plan.",
		},
		[]string{"plan"},
	)

	subscriptionFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_create_failures_total",
			Help: "Failed creation attempts by pipeline step and error kind.",
		},
		[]string{"step", "kind"},
	)

	subscriptionCreateDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "subscription_create_duration_seconds",
			Help:    "End-to-end duration of the creation pipeline.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"result"},
	)

	// Charged but not recorded. Every increment needs an operator.
	reconciliationRequiredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_reconciliation_required_total",
			Help: "Captured charges whose subscription record could not be written.",
		},
		[]string{"provider"},
	)

	subscriptionsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "subscriptions_total",
			Help: "Current number of stored subscriptions by status.",
		},
		[]string{"status"},
	)
)

func IncSubscriptionCreated(plan string) {
	subscriptionsCreatedTotal.WithLabelValues(norm(plan)).Inc()
}

func IncSubscriptionFailure(step, kind string) {
	subscriptionFailuresTotal.WithLabelValues(norm(step), norm(kind)).Inc()
}

func ObserveCreateDuration(result string, d time.Duration) {
	subscriptionCreateDuration.WithLabelValues(norm(result)).Observe(d.Seconds())
}

func IncReconciliationRequired(provider string) {
	reconciliationRequiredTotal.WithLabelValues(norm(provider)).Inc()
}

func SetSubscriptionsTotal(counts map[model.SubscriptionStatus]int) {
	for status, count := range counts {
		subscriptionsTotal.WithLabelValues(string(status)).Set(float64(count))
	}
}
