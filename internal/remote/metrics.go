package remote

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var feedReconnects = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "workshop_engine",
		Name:      "feed_reconnects_total",
		Help:      "Change feed connection drops and failed dials per table.",
	},
	[]string{"table"},
)
