package pager

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var pagesLoaded = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "workshop_engine",
		Name:      "pager_pages_loaded_total",
		Help:      "Request pages fetched from the remote service.",
	},
)
