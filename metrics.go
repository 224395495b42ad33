package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "workshop_engine",
			Name:      "mutations_total",
			Help:      "Confirmed remote writes merged into the cache.",
		},
		[]string{"op"},
	)

	incomingSignals = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "workshop_engine",
			Name:      "incoming_request_signals_total",
			Help:      "Request inserts attributed to another actor.",
		},
	)
)
