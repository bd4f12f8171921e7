package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestsTotal counts answered requests by kind and status class.
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wayfinder_requests_total",
		Help: "Requests answered by kind (flight, prefetch, bootstrap, mpa) and status code",
	}, []string{"kind", "code"})

	// renderDuration tracks time spent walking and rendering.
	renderDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wayfinder_render_duration_seconds",
		Help:    "Walk and render duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
	}, []string{"kind"})

	// renderDepth tracks how deep in the tree rendering started.
	renderDepth = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wayfinder_render_start_depth",
		Help:    "Number of hops from the root to the segment where rendering started",
		Buckets: []float64{0, 1, 2, 3, 4, 6, 8},
	})

	// manifestMisses counts paths that matched no route.
	manifestMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wayfinder_route_misses_total",
		Help: "Requests whose path matched no route in the manifest",
	})
)
