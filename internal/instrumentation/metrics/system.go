package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/mackerelio/go-osstat/cpu"
	"github.com/mackerelio/go-osstat/memory"
	"github.com/prometheus/client_golang/prometheus"
)

const defaultSampleInterval = 10 * time.Second

// SystemCollector samples host CPU and memory utilization in the background.
type SystemCollector struct {
	cpuGauge prometheus.Gauge
	memGauge prometheus.Gauge

	lastIdle  uint64
	lastTotal uint64
	mu        sync.RWMutex
	interval  time.Duration
}

// NewSystemCollector starts sampling until ctx is cancelled.
func NewSystemCollector(ctx context.Context, interval time.Duration) *SystemCollector {
	if interval <= 0 {
		interval = defaultSampleInterval
	}
	c := &SystemCollector{
		cpuGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cpu_utilization",
			Help:      "Host CPU utilization between 0 and 1.",
		}),
		memGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "memory_utilization",
			Help:      "Host memory utilization between 0 and 1.",
		}),
		interval: interval,
	}

	go c.sample(ctx)
	return c
}

func (c *SystemCollector) MetricsName() string {
	return "system"
}

func (c *SystemCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.cpuGauge.Desc()
	ch <- c.memGauge.Desc()
}

func (c *SystemCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ch <- c.cpuGauge
	ch <- c.memGauge
}

func (c *SystemCollector) sample(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		c.sampleCPU()
		c.sampleMemory()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *SystemCollector) sampleCPU() {
	stats, err := cpu.Get()
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastTotal != 0 && stats.Total > c.lastTotal {
		deltaIdle := stats.Idle - c.lastIdle
		deltaTotal := stats.Total - c.lastTotal
		c.cpuGauge.Set(1.0 - float64(deltaIdle)/float64(deltaTotal))
	}
	c.lastIdle = stats.Idle
	c.lastTotal = stats.Total
}

func (c *SystemCollector) sampleMemory() {
	stats, err := memory.Get()
	if err != nil || stats.Total == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.memGauge.Set(float64(stats.Used) / float64(stats.Total))
}
