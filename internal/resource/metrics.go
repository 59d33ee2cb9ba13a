package resource

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_resource_fetch_total",
			Help: "Completed resource fetches by resource and outcome (loaded, timeout, other_error)",
		},
		[]string{"resource", "outcome"},
	)

	staleDiscards = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_resource_stale_discards_total",
			Help: "Fetch results dropped because a newer request or an unmount superseded them",
		},
		[]string{"resource"},
	)

	fetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portal_resource_fetch_duration_seconds",
			Help:    "Duration of resource fetches",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15, 30, 60, 120},
		},
		[]string{"resource"},
	)

	chainWins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_fallback_source_wins_total",
			Help: "Fallback chain resolutions by winning source",
		},
		[]string{"source"},
	)

	chainSkips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_fallback_source_skips_total",
			Help: "Fallback chain sources that failed or returned nothing usable",
		},
		[]string{"source"},
	)
)
