package payment

import "github.com/prometheus/client_golang/prometheus"

var (
	transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_status_transitions_total",
			Help: "Committed payment status transitions, by new status and writer",
		},
		[]string{"status", "writer"},
	)

	rejectedWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_status_writes_rejected_total",
			Help: "Status writes dropped by the terminal lock or unknown-status rule",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(transitionsTotal)
	prometheus.MustRegister(rejectedWritesTotal)
}
