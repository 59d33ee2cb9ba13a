package portal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var surfacesMounted = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "portal_surfaces_mounted",
	Help: "Number of currently mounted surfaces",
})
