// Package prom exports CHashMap statistics as Prometheus metrics.
//
// Usage:
//
//	m := chashmap.New[string, int]()
//	reg := prometheus.NewRegistry()
//	reg.MustRegister(prom.NewCollector("sessions", m))
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/llxisdsh/chashmap"
)

const namespace = "chashmap"

// StatsSource is anything that can report map statistics. Every
// *chashmap.CHashMap satisfies it regardless of its type parameters.
type StatsSource interface {
	Stats() *chashmap.MapStats
}

// Collector is a prometheus.Collector that scans a map on every scrape.
// Stats is O(capacity), so scrape intervals on very large maps should be
// chosen accordingly.
type Collector struct {
	src StatsSource

	entries    *prometheus.Desc
	capacity   *prometheus.Desc
	tombstones *prometheus.Desc
	loadFactor *prometheus.Desc
	maxProbe   *prometheus.Desc
	avgProbe   *prometheus.Desc
	growths    *prometheus.Desc
	shrinks    *prometheus.Desc
	rehashes   *prometheus.Desc
}

// NewCollector creates a Collector for src. name is attached as the
// "map" const label so several maps can share a registry.
func NewCollector(name string, src StatsSource) *Collector {
	labels := prometheus.Labels{"map": name}
	desc := func(metric, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", metric), help, nil, labels)
	}
	return &Collector{
		src:        src,
		entries:    desc("entries", "Number of live entries."),
		capacity:   desc("capacity_buckets", "Number of buckets in the current table."),
		tombstones: desc("tombstones", "Number of tombstoned buckets awaiting a rehash."),
		loadFactor: desc("load_factor", "Occupied plus tombstoned buckets over capacity."),
		maxProbe:   desc("probe_distance_max", "Longest distance of an entry from its home bucket."),
		avgProbe:   desc("probe_distance_avg", "Mean distance of entries from their home buckets."),
		growths:    desc("growths_total", "Table growths."),
		shrinks:    desc("shrinks_total", "Table shrinks."),
		rehashes:   desc("rehashes_total", "Table replacements, including same-size tombstone purges."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entries
	ch <- c.capacity
	ch <- c.tombstones
	ch <- c.loadFactor
	ch <- c.maxProbe
	ch <- c.avgProbe
	ch <- c.growths
	ch <- c.shrinks
	ch <- c.rehashes
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats()
	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v)
	}
	counter := func(d *prometheus.Desc, v uint32) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
	}
	gauge(c.entries, float64(s.Size))
	gauge(c.capacity, float64(s.Capacity))
	gauge(c.tombstones, float64(s.Tombstones))
	gauge(c.loadFactor, s.LoadFactor)
	gauge(c.maxProbe, float64(s.MaxProbe))
	gauge(c.avgProbe, s.AvgProbe)
	counter(c.growths, s.TotalGrowths)
	counter(c.shrinks, s.TotalShrinks)
	counter(c.rehashes, s.TotalRehashes)
}
