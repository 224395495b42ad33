package search

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	searchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "workshop_engine",
			Name:      "search_queries_total",
			Help:      "Free-text searches executed.",
		},
	)
	shortCircuits = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "workshop_engine",
			Name:      "search_short_circuits_total",
			Help:      "Searches answered empty without the final request query.",
		},
	)
)
