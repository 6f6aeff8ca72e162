package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	ReconcileOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_outcomes_total",
			Help: "Reconciliation runs by terminal state.",
		},
		[]string{"state"},
	)
	WasteTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waste_transitions_total",
			Help: "Waste report status transitions by chain-mirror outcome.",
		},
		[]string{"transition", "mirror"},
	)
	ChainDivergence = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "accounts_onchain_pending",
			Help: "Accounts currently flagged with on-chain divergence.",
		},
	)
)

func Register(registry *prometheus.Registry) {
	registry.MustRegister(RequestCount, ReconcileOutcomes, WasteTransitions, ChainDivergence)
}

func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
