package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	apiserver "github.com/flightctl/gitlab-auth/internal/api_server"
	"github.com/flightctl/gitlab-auth/internal/config"
	"github.com/flightctl/gitlab-auth/internal/instrumentation/metrics"
	"github.com/flightctl/gitlab-auth/internal/instrumentation/tracing"
	"github.com/flightctl/gitlab-auth/internal/realm"
	fclog "github.com/flightctl/gitlab-auth/pkg/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

const shutdownFlushTimeout = 5 * time.Second

type ServeOptions struct {
	GlobalOptions
}

func DefaultServeOptions() *ServeOptions {
	return &ServeOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdServe() *cobra.Command {
	o := DefaultServeOptions()
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the authentication API until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(cmd, args); err != nil {
				return err
			}
			if err := o.Validate(args); err != nil {
				return err
			}
			return o.Run(cmd.Context(), args)
		},
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *ServeOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)
}

func (o *ServeOptions) Run(ctx context.Context, args []string) error {
	cfg, err := config.NewFromFile(o.ConfigFilePath)
	if err != nil {
		return fmt.Errorf("reading configuration: %w", err)
	}

	log := fclog.InitLogs(cfg.Service.LogLevel)
	log.Println("Starting GitLab authentication service")
	defer log.Println("GitLab authentication service stopped")
	log.Printf("Using config: %s", cfg)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	tracerShutdown, err := tracing.InitTracer(log, cfg, appName)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownFlushTimeout)
		defer cancel()
		if err := tracerShutdown(flushCtx); err != nil {
			log.WithError(err).Error("Failed to shut down tracer")
		}
	}()

	// Installed before the API handler so its otelhttp meters bind to it.
	var collectors []metrics.NamedCollector
	if cfg.Metrics.Enabled {
		httpCollector, err := metrics.NewHTTPMetricsCollector(appName, log)
		if err != nil {
			log.WithError(err).Warn("HTTP metrics are unavailable")
		} else {
			collectors = append(collectors, httpCollector)
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), shutdownFlushTimeout)
				defer cancel()
				if err := httpCollector.Shutdown(flushCtx); err != nil {
					log.WithError(err).Warn("Failed to shut down HTTP metrics")
				}
			}()
		}
	}

	r, err := realm.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("initializing realm: %w", err)
	}
	defer func() {
		if err := r.Close(); err != nil {
			log.WithError(err).Warn("Failed to close principal cache")
		}
	}()

	listener, err := net.Listen("tcp", cfg.Service.Address)
	if err != nil {
		return fmt.Errorf("creating listener: %w", err)
	}
	server := apiserver.New(log, cfg, r.Service, listener, apiserver.HealthCheckFunc(r.Ping))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(ctx)
	})
	if cfg.Metrics.Enabled {
		collectors = append(slices.Clone(r.Collectors), collectors...)
		collectors = append(collectors, metrics.NewSystemCollector(ctx, 0))
		g.Go(func() error {
			return metrics.RunMetricsServer(ctx, log, cfg.Metrics.Address, collectors...)
		})
	}
	return g.Wait()
}
