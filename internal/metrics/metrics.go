package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters exported on the web server's /metrics endpoint.
var (
	AlignmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alignmentvault_alignments_total",
		Help: "Completed liquidity alignments by kind.",
	}, []string{"kind"})

	ItemsConsumedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alignmentvault_items_consumed_total",
		Help: "Discrete items consumed into pool liquidity.",
	})

	ItemsTrackedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alignmentvault_items_tracked_total",
		Help: "Item ids inserted into the inventory ledger.",
	})

	YieldClaimsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alignmentvault_yield_claims_total",
		Help: "Completed yield claims.",
	})

	OperationErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alignmentvault_operation_errors_total",
		Help: "Failed operator entry points by operation.",
	}, []string{"operation"})
)
