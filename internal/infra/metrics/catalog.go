package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(catalogReloadsTotal, catalogPlans) }

var (
	catalogReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plan_catalog_reloads_total",
			Help: "Plan catalog reloads by result (ok/error).",
		},
		[]string{"result"},
	)

	catalogPlans = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "plan_catalog_plans",
			Help: "Number of plans in the current catalog snapshot.",
		},
	)
)

func IncCatalogReload(result string) {
	catalogReloadsTotal.WithLabelValues(norm(result)).Inc()
}

func SetCatalogPlans(n int) {
	catalogPlans.Set(float64(n))
}
