package metrics

import (
	"github.com/navy-pdm/pdm-guardian/pkg/cache"
	"github.com/prometheus/client_golang/prometheus"
)

// StatsSource provides per-cache statistics keyed by cache name.
// *cache.Registry satisfies it.
type StatsSource interface {
	Snapshot() map[string]cache.Stats
}

// CacheCollector exports the statistics of named caches at scrape time
type CacheCollector struct {
	source StatsSource

	entries         *prometheus.Desc
	capacity        *prometheus.Desc
	hits            *prometheus.Desc
	misses          *prometheus.Desc
	evictions       *prometheus.Desc
	expirations     *prometheus.Desc
	averageAccesses *prometheus.Desc
}

// NewCacheCollector creates a collector for the caches in source
func NewCacheCollector(source StatsSource, opts ...ConfigOption) *CacheCollector {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(config)
	}

	name := func(metric string) string {
		return prometheus.BuildFQName(config.Namespace, "cache", metric)
	}
	labels := []string{"cache"}
	constLabels := prometheus.Labels(config.ConstLabels)

	return &CacheCollector{
		source:          source,
		entries:         prometheus.NewDesc(name("entries"), "Entries currently stored, including unswept expired ones", labels, constLabels),
		capacity:        prometheus.NewDesc(name("capacity"), "Configured maximum number of entries", labels, constLabels),
		hits:            prometheus.NewDesc(name("hits_total"), "Reads that found a live entry", labels, constLabels),
		misses:          prometheus.NewDesc(name("misses_total"), "Reads that found no live entry", labels, constLabels),
		evictions:       prometheus.NewDesc(name("evictions_total"), "Entries removed to make room", labels, constLabels),
		expirations:     prometheus.NewDesc(name("expirations_total"), "Entries removed after their TTL elapsed", labels, constLabels),
		averageAccesses: prometheus.NewDesc(name("average_accesses"), "Mean read count of stored entries", labels, constLabels),
	}
}

// Describe implements prometheus.Collector
func (c *CacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entries
	ch <- c.capacity
	ch <- c.hits
	ch <- c.misses
	ch <- c.evictions
	ch <- c.expirations
	ch <- c.averageAccesses
}

// Collect implements prometheus.Collector
func (c *CacheCollector) Collect(ch chan<- prometheus.Metric) {
	for name, s := range c.source.Snapshot() {
		ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(s.Size), name)
		ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(s.MaxSize), name)
		ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(s.Hits), name)
		ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(s.Misses), name)
		ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(s.Evictions), name)
		ch <- prometheus.MustNewConstMetric(c.expirations, prometheus.CounterValue, float64(s.Expirations), name)
		ch <- prometheus.MustNewConstMetric(c.averageAccesses, prometheus.GaugeValue, s.AverageAccesses, name)
	}
}
