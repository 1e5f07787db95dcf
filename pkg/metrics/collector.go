package metrics

import (
	"github.com/daniel-salmon/distlock/pkg/store"
	"github.com/prometheus/client_golang/prometheus"
)

// StoreCollector reads store stats at scrape time instead of
// updating gauges on every request.
type StoreCollector struct {
	store store.Store

	locks        *prometheus.Desc
	held         *prometheus.Desc
	acquisitions *prometheus.Desc
}

func NewStoreCollector(s store.Store) *StoreCollector {
	return &StoreCollector{
		store: s,
		// locks in the store
		locks: prometheus.NewDesc(
			"distlock_locks",
			"current number of locks in the store",
			nil, nil,
		),
		// acquired with a live lease, useful for detecting lock leaks
		held: prometheus.NewDesc(
			"distlock_locks_held",
			"current number of locks held with an unexpired lease",
			nil, nil,
		),
		// sum of all fencing-token increments since start
		acquisitions: prometheus.NewDesc(
			"distlock_acquisitions_total",
			"successful lock acquisitions since start",
			nil, nil,
		),
	}
}

func (c *StoreCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.locks
	ch <- c.held
	ch <- c.acquisitions
}

func (c *StoreCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.store.Stats()
	ch <- prometheus.MustNewConstMetric(c.locks, prometheus.GaugeValue, float64(stats.Locks))
	ch <- prometheus.MustNewConstMetric(c.held, prometheus.GaugeValue, float64(stats.Held))
	ch <- prometheus.MustNewConstMetric(c.acquisitions, prometheus.CounterValue, float64(stats.Acquisitions))
}
