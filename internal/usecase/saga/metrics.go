package saga

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transfersInitiated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "momentum_transfers_initiated_total",
		Help: "Transfers accepted by the orchestrator.",
	})

	transfersFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "momentum_transfers_finished_total",
		Help: "Transfers that reached a terminal status.",
	}, []string{"status"})

	duplicateResults = promauto.NewCounter(prometheus.CounterOpts{
		Name: "momentum_duplicate_results_total",
		Help: "Redelivered wallet results ignored by the saga.",
	})

	commandsReaped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "momentum_commands_redispatched_total",
		Help: "Stuck wallet commands re-published by the reaper.",
	})
)
