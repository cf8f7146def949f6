package metrics

import (
	"github.com/flightctl/gitlab-auth/internal/auth"
	"github.com/prometheus/client_golang/prometheus"
)

type CacheStatsSource interface {
	Stats() auth.CacheStats
}

// CacheCollector exports the in-memory principal cache statistics.
type CacheCollector struct {
	source     CacheStatsSource
	entries    *prometheus.Desc
	insertions *prometheus.Desc
	hits       *prometheus.Desc
	misses     *prometheus.Desc
	evictions  *prometheus.Desc
}

func NewCacheCollector(source CacheStatsSource) *CacheCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "principal_cache", name), help, nil, nil)
	}
	return &CacheCollector{
		source:     source,
		entries:    desc("entries", "Unexpired principals currently cached."),
		insertions: desc("insertions_total", "Principals written to the cache."),
		hits:       desc("hits_total", "Cache reads that found a principal."),
		misses:     desc("misses_total", "Cache reads that found nothing."),
		evictions:  desc("evictions_total", "Principals removed because they expired or the cache was full."),
	}
}

func (c *CacheCollector) MetricsName() string {
	return "principal-cache"
}

func (c *CacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entries
	ch <- c.insertions
	ch <- c.hits
	ch <- c.misses
	ch <- c.evictions
}

func (c *CacheCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.source.Stats()
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(stats.Entries))
	ch <- prometheus.MustNewConstMetric(c.insertions, prometheus.CounterValue, float64(stats.Insertions))
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(stats.Hits))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(stats.Misses))
	ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(stats.Evictions))
}
