package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

const ReasonTooManyRequests = "TooManyRequests"

// RateLimitOptions configures rate limiting behavior
type RateLimitOptions struct {
	Requests       int
	Window         time.Duration
	Message        string
	TrustedProxies []string
}

// getClientIPFromRequest returns the IP part of r.RemoteAddr, or RemoteAddr
// itself when it carries no port.
func getClientIPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// IPRateLimiter limits requests per client IP. Put TrustedRealIP in front of
// it when the service runs behind a proxy.
func IPRateLimiter(requests int, window time.Duration, message string) func(http.Handler) http.Handler {
	return httprate.Limit(
		requests,
		window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return getClientIPFromRequest(r), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
			WriteJSONError(w, http.StatusTooManyRequests, ReasonTooManyRequests, message)
		}),
	)
}

// InstallIPRateLimiter installs TrustedRealIP (when proxies are configured)
// followed by IPRateLimiter on r.
func InstallIPRateLimiter(r chi.Router, opts RateLimitOptions) {
	if len(opts.TrustedProxies) > 0 {
		r.Use(TrustedRealIP(opts.TrustedProxies))
	}
	r.Use(IPRateLimiter(opts.Requests, opts.Window, opts.Message))
}

// parseTrustedProxies accepts CIDRs and literal IPs. Unparsable entries are
// skipped.
func parseTrustedProxies(trustedProxies []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, entry := range trustedProxies {
		s := strings.TrimSpace(entry)
		if s == "" {
			continue
		}
		if strings.Contains(s, "/") {
			if _, n, err := net.ParseCIDR(s); err == nil {
				nets = append(nets, n)
			}
			continue
		}
		ip := net.ParseIP(s)
		if ip == nil {
			continue
		}
		bits := 128
		if ip.To4() != nil {
			bits = 32
		}
		nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return nets
}

// forwardedClientIP picks the client address from proxy headers.
// Priority: True-Client-IP > X-Real-IP > first X-Forwarded-For entry.
func forwardedClientIP(h http.Header) string {
	candidates := []string{
		h.Get("True-Client-IP"),
		h.Get("X-Real-IP"),
	}
	if xff := h.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		candidates = append(candidates, first)
	}
	for _, c := range candidates {
		if ip := net.ParseIP(strings.TrimSpace(c)); ip != nil {
			return ip.String()
		}
	}
	return ""
}

// TrustedRealIP rewrites r.RemoteAddr from True-Client-IP, X-Real-IP or
// X-Forwarded-For, but only when the immediate peer is one of
// trustedProxies. Headers from any other peer are ignored.
func TrustedRealIP(trustedProxies []string) func(http.Handler) http.Handler {
	trustedNets := parseTrustedProxies(trustedProxies)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if peerIP := net.ParseIP(getClientIPFromRequest(r)); peerIP != nil {
				for _, trustedNet := range trustedNets {
					if !trustedNet.Contains(peerIP) {
						continue
					}
					if ip := forwardedClientIP(r.Header); ip != "" {
						r.RemoteAddr = ip
					}
					break
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
