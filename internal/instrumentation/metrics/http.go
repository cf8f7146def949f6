package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
)

// HTTPMetricsCollector exposes the OpenTelemetry HTTP server metrics
// recorded by otelhttp through the Prometheus metrics server.
type HTTPMetricsCollector struct {
	registry      *prometheus.Registry
	meterProvider *metric.MeterProvider
	log           logrus.FieldLogger
}

// NewHTTPMetricsCollector installs a global meter provider backed by a
// private Prometheus registry.
func NewHTTPMetricsCollector(serviceName string, log logrus.FieldLogger) (*HTTPMetricsCollector, error) {
	registry := prometheus.NewRegistry()

	exporter, err := otelprometheus.New(
		otelprometheus.WithRegisterer(registry),
		otelprometheus.WithoutScopeInfo(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter for HTTP metrics: %w", err)
	}

	mp := metric.NewMeterProvider(
		metric.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
		)),
		metric.WithReader(exporter),
	)

	if _, ok := otel.GetMeterProvider().(*metric.MeterProvider); !ok {
		otel.SetMeterProvider(mp)
	} else {
		log.Warn("Global meter provider already set, using existing provider")
	}

	log.Debug("OpenTelemetry HTTP metrics collector initialized")
	return &HTTPMetricsCollector{
		registry:      registry,
		meterProvider: mp,
		log:           log,
	}, nil
}

func (c *HTTPMetricsCollector) MetricsName() string {
	return "http"
}

func (c *HTTPMetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	c.registry.Describe(ch)
}

func (c *HTTPMetricsCollector) Collect(ch chan<- prometheus.Metric) {
	c.registry.Collect(ch)
}

func (c *HTTPMetricsCollector) Shutdown(ctx context.Context) error {
	if err := c.meterProvider.Shutdown(ctx); err != nil {
		c.log.WithError(err).Error("Failed to shutdown OpenTelemetry HTTP metrics")
		return err
	}
	return nil
}
