package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	plannerOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planner_operations_total",
			Help: "Planner operations by name and outcome.",
		},
		[]string{"op", "outcome"},
	)

	plannerStageDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "planner_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"stage"},
	)

	upstreamLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of upstream calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"upstream"},
	)

	geocodeLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geocode_lookups_total",
			Help: "Geocoder lookups by direction and outcome.",
		},
		[]string{"direction", "outcome"},
	)

	storeOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trip_store_operations_total",
			Help: "Trip store operations by backend, op and outcome.",
		},
		[]string{"backend", "op", "outcome"},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

func ObservePlannerOp(op string, err error) {
	plannerOpsTotal.WithLabelValues(op, outcome(err)).Inc()
}

func ObserveStage(stage string, durationSeconds float64) {
	plannerStageDurationSeconds.WithLabelValues(stage).Observe(durationSeconds)
}

func ObserveUpstreamLatency(upstream string, durationSeconds float64) {
	upstreamLatencySeconds.WithLabelValues(upstream).Observe(durationSeconds)
}

func ObserveGeocode(direction string, err error) {
	geocodeLookupsTotal.WithLabelValues(direction, outcome(err)).Inc()
}

func ObserveStoreOp(backend, op string, err error) {
	storeOpsTotal.WithLabelValues(backend, op, outcome(err)).Inc()
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
