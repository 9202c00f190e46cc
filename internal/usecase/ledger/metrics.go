package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "momentum_ledger_operations_total",
	Help: "Ledger operations by direction and outcome.",
}, []string{"direction", "outcome"})

const (
	outcomeApplied  = "applied"
	outcomeReplayed = "replayed"
	outcomeRejected = "rejected"
)
