package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

var (
	// request latency per rpc - histogram to track p50/p90/p99
	// everything is in-memory so buckets start at 50us
	// labels: method, code (grpc status code)
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "distlock_request_duration_seconds",
			Help:    "time taken to serve a distlock rpc",
			Buckets: prometheus.ExponentialBuckets(0.00005, 2, 12), // 50us to ~100ms
		},
		[]string{"method", "code"},
	)

	// lock acquisition counter - counts wins vs contended attempts
	// failure here means the lock was held, not an error
	// labels: status (success/failure)
	LockAcquireTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "distlock_lock_acquire_total",
			Help: "total number of lock acquisition attempts",
		},
		[]string{"status"},
	)

	// lock release counter - failure is a stale fencing token
	// labels: status (success/failure)
	LockReleaseTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "distlock_lock_release_total",
			Help: "total number of lock releases",
		},
		[]string{"status"},
	)

	// lock lifecycle counters
	LockCreateTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "distlock_lock_create_total",
			Help: "total number of locks created",
		},
	)

	LockDeleteTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "distlock_lock_delete_total",
			Help: "total number of locks deleted",
		},
	)

	// service uptime - always 1 when running
	// scrape failure = 0 in prometheus (service down)
	Up = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "distlock_up",
			Help: "whether the service is up (always 1 when running)",
		},
	)
)

func init() {
	// set uptime gauge to 1 on startup
	Up.Set(1)
}

// returns the status label for a boolean outcome
func Status(ok bool) string {
	if ok {
		return StatusSuccess
	}
	return StatusFailure
}
