package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
)

// RouteMetricAttributes labels otelhttp metrics with the matching chi route
// pattern instead of the raw path.
func RouteMetricAttributes(routes chi.Routes, component string) func(*http.Request) []attribute.KeyValue {
	return func(r *http.Request) []attribute.KeyValue {
		attrs := []attribute.KeyValue{attribute.String("http_component", component)}
		if route := matchRoutePattern(routes, r); route != "" {
			attrs = append(attrs, semconv.HTTPRoute(route))
		}
		return attrs
	}
}

// RouteSpanNameFormatter names server spans "METHOD /route/pattern" when the
// request matches a route.
func RouteSpanNameFormatter(routes chi.Routes) func(string, *http.Request) string {
	return func(operation string, r *http.Request) string {
		if route := matchRoutePattern(routes, r); route != "" {
			return r.Method + " " + route
		}
		return operation
	}
}

func matchRoutePattern(routes chi.Routes, r *http.Request) string {
	if r == nil || routes == nil {
		return ""
	}
	rctx := chi.NewRouteContext()
	if routes.Match(rctx, r.Method, r.URL.Path) {
		return rctx.RoutePattern()
	}
	return ""
}
