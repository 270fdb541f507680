package reconciliation

import "github.com/prometheus/client_golang/prometheus"

var (
	reconcileUnauditedDecisions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fraudguard",
		Subsystem: "reconciliation",
		Name:      "unaudited_decisions",
		Help:      "Number of settled returns without a matching audit entry in the last run.",
	})

	reconcileStuckPending = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fraudguard",
		Subsystem: "reconciliation",
		Name:      "stuck_pending_returns",
		Help:      "Number of returns stuck in pending beyond the age threshold in the last run.",
	})

	reconcileDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fraudguard",
		Subsystem: "reconciliation",
		Name:      "run_duration_seconds",
		Help:      "Duration of reconciliation runs in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	reconcileErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fraudguard",
		Subsystem: "reconciliation",
		Name:      "errors_total",
		Help:      "Total reconciliation check errors.",
	})
)

func init() {
	prometheus.MustRegister(
		reconcileUnauditedDecisions,
		reconcileStuckPending,
		reconcileDuration,
		reconcileErrors,
	)
}

// UnauditedDecisionsGauge exposes the gauge setter for Runner.Register.
func UnauditedDecisionsGauge(v float64) { reconcileUnauditedDecisions.Set(v) }

// StuckPendingGauge exposes the gauge setter for Runner.Register.
func StuckPendingGauge(v float64) { reconcileStuckPending.Set(v) }
