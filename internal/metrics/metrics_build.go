package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ModuleResolveCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "passctl_module_resolve_count_total",
			Help: "Total number of resolved modules",
		},
	)

	ModuleResolveFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "passctl_module_resolve_failed_total",
			Help: "Number of times a module has failed to resolve",
		},
		[]string{"module", "error_type"},
	)

	CompilerPassRegistered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "passctl_compiler_pass_registered_total",
			Help: "Number of registered compiler passes",
		},
		[]string{"driver"},
	)

	DriverSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "passctl_driver_skipped_total",
			Help: "Number of declared drivers skipped because their integration is not installed",
		},
		[]string{"driver"},
	)

	BuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "passctl_build_duration_seconds",
			Help:    "Container build plan duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	BuildFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "passctl_build_failed_total",
			Help: "Number of times the container build plan has failed",
		},
		[]string{"state"},
	)

	LastBuildStart = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "passctl_last_build_start_timestamp",
			Help: "Unix timestamp of when the last build started",
		},
	)

	LastBuildEnd = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "passctl_last_build_end_timestamp",
			Help: "Unix timestamp of when the last build ended",
		},
	)

	PlanPublishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "passctl_plan_publish_duration_seconds",
			Help:    "Plan upload duration in seconds",
			Buckets: []float64{0.1, 0.2, 0.5, 1, 1.5, 2, 5, 10, 30, 60},
		},
		[]string{"target"},
	)
)

func BuildStarted(start time.Time) {
	LastBuildStart.Set(float64(start.Unix()))
}

func BuildSucceeded(start time.Time) {
	BuildDuration.Observe(time.Since(start).Seconds())
	LastBuildEnd.Set(float64(time.Now().Unix()))
}

func BuildFailedWith(state string) {
	BuildFailed.WithLabelValues(state).Inc()
	LastBuildEnd.Set(float64(time.Now().Unix()))
}

func PlanPublished(target string, start time.Time) {
	PlanPublishDuration.WithLabelValues(target).Observe(time.Since(start).Seconds())
}
