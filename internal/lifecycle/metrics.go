package lifecycle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	phaseGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "workshop_engine",
			Name:      "lifecycle_phase",
			Help:      "Current lifecycle phase as an ordinal.",
		},
	)
	reconnectCycles = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "workshop_engine",
			Name:      "lifecycle_reconnect_cycles_total",
			Help:      "Full unsubscribe/resubscribe cycles.",
		},
	)
	identityDrifts = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "workshop_engine",
			Name:      "lifecycle_identity_drifts_total",
			Help:      "Foreground checks that found a different server identity.",
		},
	)
	hardResets = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "workshop_engine",
			Name:      "lifecycle_hard_resets_total",
			Help:      "Destructive client resets performed.",
		},
	)
	forcedLogouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "workshop_engine",
			Name:      "lifecycle_forced_logouts_total",
			Help:      "Logouts forced by calendar-day rollover.",
		},
	)
)
