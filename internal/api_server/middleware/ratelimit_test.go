package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimitedRouter(opts RateLimitOptions) *chi.Mux {
	router := chi.NewRouter()
	router.Group(func(r chi.Router) {
		InstallIPRateLimiter(r, opts)
		r.Post("/api/v1/authenticate", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(r.RemoteAddr))
		})
	})
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return router
}

func post(router http.Handler, remoteAddr string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/authenticate", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestIPRateLimiter(t *testing.T) {
	router := newLimitedRouter(RateLimitOptions{
		Requests: 2,
		Window:   time.Minute,
		Message:  "Login rate limit exceeded, please try again later",
	})

	for i := 0; i < 2; i++ {
		w := post(router, "192.0.2.10:40000", nil)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := post(router, "192.0.2.10:40001", nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var status Status
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, Status{
		Code:    http.StatusTooManyRequests,
		Reason:  ReasonTooManyRequests,
		Message: "Login rate limit exceeded, please try again later",
	}, status)

	// another client has its own budget
	w = post(router, "192.0.2.11:40000", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// routes outside the group are not limited
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "192.0.2.10:40000"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestTrustedRealIP(t *testing.T) {
	tests := []struct {
		name       string
		trusted    []string
		remoteAddr string
		headers    map[string]string
		expected   string
	}{
		{
			name:       "untrusted peer keeps remote addr",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "192.0.2.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.5"},
			expected:   "192.0.2.1:1234",
		},
		{
			name:       "trusted cidr uses forwarded for",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "10.1.2.3:1234",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.5, 10.1.2.3"},
			expected:   "203.0.113.5",
		},
		{
			name:       "trusted literal ip",
			trusted:    []string{"10.1.2.3"},
			remoteAddr: "10.1.2.3:1234",
			headers:    map[string]string{"X-Real-IP": "203.0.113.6"},
			expected:   "203.0.113.6",
		},
		{
			name:       "true client ip wins",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "10.1.2.3:1234",
			headers: map[string]string{
				"True-Client-IP":  "203.0.113.7",
				"X-Real-IP":       "203.0.113.6",
				"X-Forwarded-For": "203.0.113.5",
			},
			expected: "203.0.113.7",
		},
		{
			name:       "invalid header value falls through",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "10.1.2.3:1234",
			headers: map[string]string{
				"X-Real-IP":       "not-an-ip",
				"X-Forwarded-For": "203.0.113.5",
			},
			expected: "203.0.113.5",
		},
		{
			name:       "ipv6 proxy",
			trusted:    []string{"2001:db8::1", "garbage"},
			remoteAddr: "[2001:db8::1]:1234",
			headers:    map[string]string{"X-Real-IP": "2001:db8::42"},
			expected:   "2001:db8::42",
		},
		{
			name:       "trusted peer without headers",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "10.1.2.3:1234",
			expected:   "10.1.2.3:1234",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			handler := TrustedRealIP(tt.trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = r.RemoteAddr
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tt.expected, seen)
		})
	}
}

func TestRateLimitBehindTrustedProxy(t *testing.T) {
	router := newLimitedRouter(RateLimitOptions{
		Requests:       1,
		Window:         time.Minute,
		Message:        "slow down",
		TrustedProxies: []string{"10.0.0.0/8"},
	})

	w := post(router, "10.0.0.1:5000", map[string]string{"X-Forwarded-For": "203.0.113.1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "203.0.113.1", w.Body.String())

	// same proxy, different client
	w = post(router, "10.0.0.1:5000", map[string]string{"X-Forwarded-For": "203.0.113.2"})
	require.Equal(t, http.StatusOK, w.Code)

	w = post(router, "10.0.0.1:5000", map[string]string{"X-Forwarded-For": "203.0.113.1"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}
