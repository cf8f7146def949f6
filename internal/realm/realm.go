// Package realm assembles the authentication service from configuration.
package realm

import (
	"context"
	"errors"
	"fmt"

	"github.com/flightctl/gitlab-auth/internal/auth"
	"github.com/flightctl/gitlab-auth/internal/auth/provider"
	"github.com/flightctl/gitlab-auth/internal/config"
	"github.com/flightctl/gitlab-auth/internal/instrumentation/metrics"
	"github.com/flightctl/gitlab-auth/pkg/gitlab"
	"github.com/flightctl/gitlab-auth/pkg/kvconfig"
	"github.com/sirupsen/logrus"
)

// Realm is a ready to use authentication service plus the pieces the servers
// around it need.
type Realm struct {
	Service *auth.Service
	// Ping reports whether the principal cache backend is reachable.
	Ping func(ctx context.Context) error
	// Collectors expose the realm's metrics.
	Collectors []metrics.NamedCollector

	closers []func() error
}

type cacheBackend struct {
	cache        auth.PrincipalCache
	fingerprints *auth.Fingerprinter
	ping         func(ctx context.Context) error
	collectors   []metrics.NamedCollector
	close        func() error
}

// New builds the realm described by cfg. A memory cache runs its expiry loop
// until ctx is cancelled or Close is called.
func New(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*Realm, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	if cfg.GitLab.IgnoreCertificateErrors {
		log.Warn("TLS certificate verification for the GitLab API is disabled")
	}
	client, err := gitlab.NewClient(gitlab.ClientOptions{
		ApiUrl:             cfg.GitLab.ApiUrl,
		ApiKey:             cfg.GitLab.ApiKey.Value(),
		InsecureSkipVerify: cfg.GitLab.IgnoreCertificateErrors,
		Timeout:            cfg.GitLab.Timeout.Duration(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating GitLab client: %w", err)
	}

	backend, err := newCacheBackend(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	authCollector := metrics.NewAuthCollector()
	service := auth.NewService(
		provider.NewGitLab(client),
		backend.cache,
		backend.fingerprints,
		auth.RoleMapperConfig{
			DefaultRole:         cfg.GitLab.DefaultRole,
			AdminMappingEnabled: cfg.GitLab.AdminMappingEnabled,
			AdminRole:           cfg.GitLab.AdminRole,
		},
		log.WithField("component", "auth"),
		auth.WithObserver(authCollector),
	)

	log.WithFields(logrus.Fields{
		"apiUrl":       cfg.GitLab.ApiUrl,
		"cache":        cfg.Cache.Type,
		"ttl":          cfg.GitLab.PrincipalCacheTTL.String(),
		"defaultRole":  cfg.GitLab.DefaultRole,
		"adminMapping": cfg.GitLab.AdminMappingEnabled,
	}).Info("GitLab realm initialized")

	return &Realm{
		Service:    service,
		Ping:       backend.ping,
		Collectors: append([]metrics.NamedCollector{authCollector}, backend.collectors...),
		closers:    []func() error{backend.close},
	}, nil
}

func newCacheBackend(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*cacheBackend, error) {
	ttl := cfg.GitLab.PrincipalCacheTTL.Duration()
	cacheLog := log.WithField("component", "principal-cache")

	switch cfg.Cache.Type {
	case config.CacheTypeRedis:
		options, err := kvconfig.ConfigToRedisOptions(cfg.Cache.Redis)
		if err != nil {
			return nil, err
		}
		fingerprints, err := auth.NewFingerprinter([]byte(cfg.Cache.Redis.FingerprintKey.Value()))
		if err != nil {
			return nil, err
		}
		cache, err := auth.NewRedisPrincipalCache(ctx, options, ttl, cacheLog)
		if err != nil {
			return nil, err
		}
		return &cacheBackend{
			cache:        cache,
			fingerprints: fingerprints,
			ping:         cache.Ping,
			close:        cache.Close,
		}, nil

	case config.CacheTypeMemory, "":
		fingerprints, err := auth.NewRandomFingerprinter()
		if err != nil {
			return nil, err
		}
		cache, err := auth.NewMemoryPrincipalCache(ttl, cfg.Cache.Capacity, cacheLog)
		if err != nil {
			return nil, err
		}
		if err := cache.Start(ctx); err != nil {
			return nil, err
		}
		return &cacheBackend{
			cache:        cache,
			fingerprints: fingerprints,
			ping:         cache.Ping,
			collectors:   []metrics.NamedCollector{metrics.NewCacheCollector(cache)},
			close: func() error {
				cache.Stop()
				return nil
			},
		}, nil

	default:
		return nil, fmt.Errorf("unknown cache type %q", cfg.Cache.Type)
	}
}

// Close releases the cache backend.
func (r *Realm) Close() error {
	var errs []error
	for _, c := range r.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
