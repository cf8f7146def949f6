package metrics

import (
	"time"

	"github.com/flightctl/gitlab-auth/internal/auth"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gitlab_auth"

// AuthCollector counts authentication outcomes and times calls to GitLab.
// It is the auth.Observer of the service.
type AuthCollector struct {
	authentications *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	remoteCalls     *prometheus.HistogramVec
}

var _ auth.Observer = (*AuthCollector)(nil)

func NewAuthCollector() *AuthCollector {
	return &AuthCollector{
		authentications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authentications_total",
			Help:      "Authentication attempts by outcome.",
		}, []string{"outcome"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "principal_cache_lookups_total",
			Help:      "Principal cache lookups by result.",
		}, []string{"result"}),
		remoteCalls: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_call_duration_seconds",
			Help:      "Latency of GitLab API calls.",
			Buckets:   []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation", "status"}),
	}
}

func (c *AuthCollector) MetricsName() string {
	return "auth"
}

func (c *AuthCollector) Describe(ch chan<- *prometheus.Desc) {
	c.authentications.Describe(ch)
	c.cacheLookups.Describe(ch)
	c.remoteCalls.Describe(ch)
}

func (c *AuthCollector) Collect(ch chan<- prometheus.Metric) {
	c.authentications.Collect(ch)
	c.cacheLookups.Collect(ch)
	c.remoteCalls.Collect(ch)
}

func (c *AuthCollector) AuthenticationCompleted(outcome string) {
	c.authentications.WithLabelValues(outcome).Inc()
}

func (c *AuthCollector) CacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(result).Inc()
}

func (c *AuthCollector) RemoteCall(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.remoteCalls.WithLabelValues(operation, status).Observe(duration.Seconds())
}
