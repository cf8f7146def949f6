package apiserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	fcmiddleware "github.com/flightctl/gitlab-auth/internal/api_server/middleware"
	"github.com/flightctl/gitlab-auth/internal/config"
	fchttp "github.com/flightctl/gitlab-auth/internal/instrumentation/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	gracefulShutdownTimeout = 5 * time.Second
	requestTimeout          = 60 * time.Second
	readinessTimeout        = 2 * time.Second

	defaultRateLimitRequests = 60
	defaultRateLimitWindow   = time.Minute

	httpComponent = "gitlab-auth-api"
)

type Server struct {
	log           logrus.FieldLogger
	cfg           *config.Config
	authenticator Authenticator
	checks        []HealthChecker
	listener      net.Listener
}

// New returns a new instance of the authentication API server.
func New(
	log logrus.FieldLogger,
	cfg *config.Config,
	authenticator Authenticator,
	listener net.Listener,
	checks ...HealthChecker,
) *Server {
	return &Server{
		log:           log,
		cfg:           cfg,
		authenticator: authenticator,
		checks:        checks,
		listener:      listener,
	}
}

func (s *Server) rateLimitOptions() (fcmiddleware.RateLimitOptions, bool) {
	if s.cfg == nil || s.cfg.Service == nil {
		return fcmiddleware.RateLimitOptions{}, false
	}
	rl := s.cfg.Service.RateLimit
	if rl == nil || !rl.Enabled {
		return fcmiddleware.RateLimitOptions{}, false
	}
	opts := fcmiddleware.RateLimitOptions{
		Requests:       defaultRateLimitRequests,
		Window:         defaultRateLimitWindow,
		Message:        "Login rate limit exceeded, please try again later",
		TrustedProxies: rl.TrustedProxies,
	}
	if rl.Requests > 0 {
		opts.Requests = rl.Requests
	}
	if rl.Window > 0 {
		opts.Window = rl.Window.Duration()
	}
	return opts, true
}

// Handler builds the routed and instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()

	router.Use(
		middleware.RequestID,
		fcmiddleware.RequestLogger(s.log),
		middleware.Recoverer,
		middleware.Timeout(requestTimeout),
	)

	router.Method(http.MethodGet, "/healthz", HealthzHandler())
	router.Method(http.MethodGet, "/readyz", ReadyzHandler(readinessTimeout, s.checks...))

	router.Group(func(r chi.Router) {
		if opts, ok := s.rateLimitOptions(); ok {
			fcmiddleware.InstallIPRateLimiter(r, opts)
		}
		r.Method(http.MethodPost, AuthenticatePath, &authenticateHandler{
			log:           s.log,
			authenticator: s.authenticator,
		})
	})

	return otelhttp.NewHandler(router, httpComponent,
		otelhttp.WithSpanNameFormatter(fchttp.RouteSpanNameFormatter(router)),
		otelhttp.WithMetricAttributesFn(fchttp.RouteMetricAttributes(router, httpComponent)),
	)
}

func (s *Server) Run(ctx context.Context) error {
	s.log.Println("Initializing authentication API server")

	httpServer := &http.Server{
		Addr:              s.listener.Addr().String(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 32 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		<-ctx.Done()
		s.log.Println("Shutting down authentication API server")

		ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			s.log.Printf("HTTP server shutdown error: %v", err)
		}
		close(idleConnsClosed)
	}()

	s.log.Printf("Authentication API server listening on %s", s.listener.Addr().String())
	if err := httpServer.Serve(s.listener); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}

	<-idleConnsClosed
	s.log.Println("Authentication API server stopped")
	return nil
}
