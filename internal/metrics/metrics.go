package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "truckplan",
			Name:      "http_requests_total",
			Help:      "Count of planner API requests by route and status code.",
		},
		[]string{"route", "code"},
	)

	rangeFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "truckplan",
			Name:      "range_fetch_total",
			Help:      "Count of planner range fetches by source and result.",
		},
		[]string{"source", "result"},
	)

	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "truckplan",
			Name:      "range_cache_lookups_total",
			Help:      "Count of range cache lookups by outcome (hit, stale, miss).",
		},
		[]string{"outcome"},
	)

	reassignments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "truckplan",
			Name:      "truckload_reassignments_total",
			Help:      "Count of truckload reassignments by result.",
		},
		[]string{"result"},
	)

	reorderSaves = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "truckplan",
			Name:      "driver_order_saves_total",
			Help:      "Count of driver order saves by result.",
		},
		[]string{"result"},
	)

	boardBuild = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "truckplan",
			Name:      "board_build_seconds",
			Help:      "Time spent laying out a planner board.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, rangeFetches, cacheLookups, reassignments, reorderSaves, boardBuild)
	})
}

func IncHTTPRequest(route, code string) {
	httpRequests.WithLabelValues(route, code).Inc()
}

func IncRangeFetch(source, result string) {
	rangeFetches.WithLabelValues(source, result).Inc()
}

func IncCacheLookup(outcome string) {
	cacheLookups.WithLabelValues(outcome).Inc()
}

func IncReassignment(result string) {
	reassignments.WithLabelValues(result).Inc()
}

func IncReorderSave(result string) {
	reorderSaves.WithLabelValues(result).Inc()
}

func ObserveBoardBuild(seconds float64) {
	boardBuild.Observe(seconds)
}
