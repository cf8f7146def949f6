package metrics

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/flightctl/gitlab-auth/internal/instrumentation/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

const (
	contentTypeHeader     = "Content-Type"
	contentEncodingHeader = "Content-Encoding"
	acceptEncodingHeader  = "Accept-Encoding"

	metricsPath = "/metrics"
	tracerName  = "gitlab-auth/metrics"
)

const (
	httpGracefulShutdownTimeout = 5 * time.Second
	httpReadHeaderTimeout       = 2 * time.Second
	httpReadTimeout             = 5 * time.Second
	httpWriteTimeout            = 10 * time.Second
	httpIdleTimeout             = 60 * time.Second
)

type MetricsServer struct {
	log        logrus.FieldLogger
	collectors []NamedCollector
}

type runOptions struct {
	listenAddr string
	listener   net.Listener
	wrap       func(http.Handler) http.Handler
}

type RunOption func(*runOptions)

func WithListenAddr(addr string) RunOption {
	return func(o *runOptions) { o.listenAddr = addr }
}

// WithListener serves on an already bound listener; it takes precedence over
// WithListenAddr.
func WithListener(l net.Listener) RunOption {
	return func(o *runOptions) { o.listener = l }
}

func WithHandlerWrapper(wrap func(http.Handler) http.Handler) RunOption {
	return func(o *runOptions) { o.wrap = wrap }
}

func NewMetricsServer(log logrus.FieldLogger, collectors ...NamedCollector) *MetricsServer {
	traced := make([]NamedCollector, 0, len(collectors))
	for i := range collectors {
		if collectors[i] != nil {
			traced = append(traced, WrapWithTrace(collectors[i]))
		}
	}
	return &MetricsServer{
		log:        log,
		collectors: traced,
	}
}

// Run serves /metrics until ctx is cancelled.
func (m *MetricsServer) Run(ctx context.Context, opts ...RunOption) error {
	o := runOptions{listenAddr: ":15690"}
	for _, opt := range opts {
		opt(&o)
	}

	var handler http.Handler = NewHandler(m.collectors...)
	if o.wrap != nil {
		handler = o.wrap(handler)
	}
	mux := http.NewServeMux()
	mux.Handle(metricsPath, handler)

	srv := &http.Server{
		Addr:              o.listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: httpReadHeaderTimeout,
		ReadTimeout:       httpReadTimeout,
		WriteTimeout:      httpWriteTimeout,
		IdleTimeout:       httpIdleTimeout,
	}

	go func() {
		<-ctx.Done()
		m.log.WithError(ctx.Err()).Info("Shutdown signal received")
		ctxTimeout, cancel := context.WithTimeout(context.Background(), httpGracefulShutdownTimeout)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		if err := srv.Shutdown(ctxTimeout); err != nil {
			m.log.WithError(err).Warn("Metrics server shutdown error")
		}
	}()

	var err error
	if o.listener != nil {
		m.log.Infof("Metrics server listening on %s", o.listener.Addr())
		err = srv.Serve(o.listener)
	} else {
		m.log.Infof("Metrics server listening on %s", o.listenAddr)
		err = srv.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// RunMetricsServer serves the collectors on addr and traces every scrape as a
// "metrics-http-server" span.
func RunMetricsServer(ctx context.Context, log logrus.FieldLogger, addr string, collectors ...NamedCollector) error {
	return NewMetricsServer(log, collectors...).Run(
		ctx,
		WithListenAddr(addr),
		WithHandlerWrapper(func(h http.Handler) http.Handler {
			return otelhttp.NewHandler(h, "metrics-http-server", otelhttp.WithPublicEndpoint())
		}),
	)
}

// NamedCollector is a Prometheus collector that also exposes a consistent name
// used for tracing purposes.
type NamedCollector interface {
	prometheus.Collector
	MetricsName() string
}

// ContextAwareCollector allows injecting context into a wrapped collector.
type ContextAwareCollector interface {
	prometheus.Collector
	WithContext(ctx context.Context) NamedCollector
}

// tracedCollector adds a span around every collection.
type tracedCollector struct {
	ctx         context.Context
	collector   NamedCollector
	metricNames []string
}

func (tc *tracedCollector) MetricsName() string {
	return tc.collector.MetricsName()
}

func (tc *tracedCollector) Describe(ch chan<- *prometheus.Desc) {
	tc.collector.Describe(ch)
}

func (tc *tracedCollector) Collect(ch chan<- prometheus.Metric) {
	ctx := ctxOrBackground(tc.ctx)
	_, span := tracing.StartSpan(ctx, tracerName, tc.collector.MetricsName())
	defer span.End()

	if len(tc.metricNames) > 20 {
		span.SetAttributes(attribute.Int("collector.metric_count", len(tc.metricNames)))
	} else {
		span.SetAttributes(attribute.StringSlice("collector.metrics", tc.metricNames))
	}

	tc.collector.Collect(ch)
}

func (tc *tracedCollector) WithContext(ctx context.Context) NamedCollector {
	return &tracedCollector{
		ctx:         ctxOrBackground(ctx),
		collector:   tc.collector,
		metricNames: tc.metricNames,
	}
}

// WrapWithTrace wraps a NamedCollector with tracing and precomputes metric descriptor names.
func WrapWithTrace(c NamedCollector) NamedCollector {
	descs := make(chan *prometheus.Desc)
	var metricNames []string
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for d := range descs {
			metricNames = append(metricNames, d.String())
		}
	}()

	c.Describe(descs)
	close(descs)
	wg.Wait()

	return &tracedCollector{
		collector:   c,
		metricNames: metricNames,
	}
}

// NewHandler gathers the collectors into a fresh registry on every request.
func NewHandler(collectors ...NamedCollector) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		registry := prometheus.NewRegistry()

		for _, c := range collectors {
			col := prometheus.Collector(c)
			if ctxAware, ok := c.(ContextAwareCollector); ok {
				col = ctxAware.WithContext(ctx)
			}
			if err := registry.Register(col); err != nil {
				http.Error(w, fmt.Sprintf("failed to register collector: %v", err), http.StatusInternalServerError)
				return
			}
		}

		families, err := registry.Gather()
		if err != nil {
			http.Error(w, fmt.Sprintf("failed to gather metrics: %v", err), http.StatusInternalServerError)
			return
		}

		contentType := expfmt.Negotiate(r.Header)
		w.Header().Set(contentTypeHeader, string(contentType))

		var writer io.Writer = w
		if acceptsGzip(r.Header) {
			w.Header().Set(contentEncodingHeader, "gzip")
			gzipWriter := gzip.NewWriter(w)
			defer gzipWriter.Close()
			writer = gzipWriter
		}

		encoder := expfmt.NewEncoder(writer, contentType)
		for _, mf := range families {
			if err := encoder.Encode(mf); err != nil {
				http.Error(w, fmt.Sprintf("failed to encode metrics: %v", err), http.StatusInternalServerError)
				return
			}
		}

		if closer, ok := encoder.(expfmt.Closer); ok {
			if err := closer.Close(); err != nil {
				http.Error(w, fmt.Sprintf("failed to flush metrics: %v", err), http.StatusInternalServerError)
			}
		}
	})
}

func ctxOrBackground(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func acceptsGzip(header http.Header) bool {
	for _, val := range strings.Split(header.Get(acceptEncodingHeader), ",") {
		if part := strings.TrimSpace(val); part == "gzip" || strings.HasPrefix(part, "gzip;") {
			return true
		}
	}
	return false
}
