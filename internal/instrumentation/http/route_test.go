package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestRouteHelpers(t *testing.T) {
	router := chi.NewRouter()
	router.Post("/api/v1/authenticate", func(http.ResponseWriter, *http.Request) {})
	router.Get("/healthz", func(http.ResponseWriter, *http.Request) {})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/authenticate", nil)
	assert.Equal(t, "POST /api/v1/authenticate", RouteSpanNameFormatter(router)("fallback", req))

	attrs := RouteMetricAttributes(router, "api")(req)
	assert.Contains(t, attrs, attribute.String("http_component", "api"))
	assert.Contains(t, attrs, attribute.String("http.route", "/api/v1/authenticate"))

	unknown := httptest.NewRequest(http.MethodGet, "/nope", nil)
	assert.Equal(t, "fallback", RouteSpanNameFormatter(router)("fallback", unknown))
	assert.Len(t, RouteMetricAttributes(router, "api")(unknown), 1)
}
