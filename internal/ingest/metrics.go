package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "workshop_engine",
			Name:      "ingest_events_submitted_total",
			Help:      "Change events accepted into a table queue.",
		},
		[]string{"table"},
	)

	eventsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "workshop_engine",
			Name:      "ingest_events_applied_total",
			Help:      "Change events merged into the entity cache.",
		},
		[]string{"table"},
	)

	eventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "workshop_engine",
			Name:      "ingest_events_dropped_total",
			Help:      "Malformed or unmergeable change events dropped.",
		},
		[]string{"table"},
	)

	queueFullTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "workshop_engine",
			Name:      "ingest_queue_full_total",
			Help:      "Submissions rejected because a table queue was full.",
		},
		[]string{"table"},
	)

	queueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "workshop_engine",
			Name:      "ingest_queue_depth",
			Help:      "Current depth of each table queue.",
		},
		[]string{"table"},
	)
)
