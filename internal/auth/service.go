package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flightctl/gitlab-auth/internal/instrumentation/tracing"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const tracerName = "gitlab-auth"

// Service decides whether a credential is valid for the identity it claims
// and which roles that identity gets. It is safe for concurrent use.
type Service struct {
	client       IdentityClient
	roles        *RoleMapper
	cache        PrincipalCache
	fingerprints *Fingerprinter
	observer     Observer
	log          logrus.FieldLogger

	// inflight coalesces concurrent misses for the same fingerprint.
	inflight singleflight.Group
}

type ServiceOption func(*Service)

func WithObserver(observer Observer) ServiceOption {
	return func(s *Service) {
		if observer != nil {
			s.observer = observer
		}
	}
}

func NewService(client IdentityClient, cache PrincipalCache, fingerprints *Fingerprinter, roles RoleMapperConfig, log logrus.FieldLogger, opts ...ServiceOption) *Service {
	s := &Service{
		cache:        cache,
		fingerprints: fingerprints,
		observer:     nopObserver{},
		log:          log,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.client = &observedClient{IdentityClient: client, observer: s.observer}
	s.roles = NewRoleMapper(s.client, roles)
	return s
}

// AuthenticatePassword is shorthand for Authenticate with a UsernamePassword.
func (s *Service) AuthenticatePassword(ctx context.Context, username string, secret []byte) (Principal, error) {
	return s.Authenticate(ctx, UsernamePassword{Username: username, Password: secret})
}

// Authenticate verifies cred and returns the principal it proves. Denials are
// *AuthenticationError; a credential of the wrong kind is reported as
// *UnsupportedCredentialError instead.
func (s *Service) Authenticate(ctx context.Context, cred Credential) (Principal, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "Authenticate")
	defer span.End()

	var up UsernamePassword
	switch c := cred.(type) {
	case UsernamePassword:
		up = c
	case *UsernamePassword:
		if c == nil {
			return s.unsupported(span, "")
		}
		up = *c
	default:
		scheme := ""
		if cred != nil {
			scheme = cred.Scheme()
		}
		return s.unsupported(span, scheme)
	}

	log := s.log.WithField("username", up.Username)
	span.SetAttributes(attribute.String("auth.username", up.Username))

	principal, cached, err := s.authenticate(ctx, up.Username, up.Password)
	if err != nil {
		reason := ReasonOf(err)
		s.observer.AuthenticationCompleted(string(reason))
		span.SetAttributes(attribute.String("auth.outcome", string(reason)))
		span.SetStatus(codes.Error, string(reason))
		log.WithError(err).WithField("reason", reason).Warn("Authentication failed")
		return Principal{}, err
	}

	s.observer.AuthenticationCompleted(OutcomeSuccess)
	span.SetAttributes(
		attribute.String("auth.outcome", OutcomeSuccess),
		attribute.Bool("auth.cache_hit", cached),
	)
	log.WithFields(logrus.Fields{
		"roles":  len(principal.roles),
		"cached": cached,
	}).Info("Authentication succeeded")
	return principal, nil
}

func (s *Service) unsupported(span trace.Span, scheme string) (Principal, error) {
	err := &UnsupportedCredentialError{Scheme: scheme}
	s.observer.AuthenticationCompleted(OutcomeUnsupported)
	span.SetStatus(codes.Error, OutcomeUnsupported)
	s.log.WithError(err).Error("Rejected credential the service cannot verify")
	return Principal{}, err
}

func (s *Service) authenticate(ctx context.Context, username string, secret []byte) (Principal, bool, error) {
	if username == "" || len(secret) == 0 {
		return Principal{}, false, &AuthenticationError{Reason: ReasonInvalidInput, Username: username, Err: ErrEmptyCredential}
	}

	key := s.fingerprints.Fingerprint(username, secret)
	if principal, ok := s.lookup(ctx, key); ok {
		return principal, true, nil
	}

	// The caller may clear its buffer as soon as it stops waiting.
	owned := bytes.Clone(secret)
	ch := s.inflight.DoChan(key, func() (any, error) {
		defer clear(owned)
		return s.verify(context.WithoutCancel(ctx), username, owned, key)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Principal{}, false, res.Err
		}
		return res.Val.(Principal), false, nil
	case <-ctx.Done():
		return Principal{}, false, &AuthenticationError{Reason: ReasonTransport, Username: username, Err: ctx.Err()}
	}
}

func (s *Service) lookup(ctx context.Context, key string) (Principal, bool) {
	principal, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.WithError(err).Warn("Principal cache lookup failed, treating as miss")
		ok = false
	}
	s.observer.CacheLookup(ok)
	if ok {
		s.log.Debug("Principal cache hit")
	} else {
		s.log.Debug("Principal cache miss")
	}
	return principal, ok
}

// verify asks the provider who owns secret, checks that it is the claimed
// username and derives the roles. Only successful outcomes are cached.
func (s *Service) verify(ctx context.Context, username string, secret []byte, key string) (Principal, error) {
	identity, err := s.client.ResolveIdentity(ctx, secret)
	if err != nil {
		return Principal{}, &AuthenticationError{Reason: ReasonTransport, Username: username, Err: fmt.Errorf("resolving identity: %w", err)}
	}
	if identity == nil {
		return Principal{}, &AuthenticationError{Reason: ReasonTransport, Username: username, Err: errors.New("provider returned no identity")}
	}

	if identity.Email != username {
		return Principal{}, &AuthenticationError{
			Reason:   ReasonIdentityMismatch,
			Username: username,
			Err:      fmt.Errorf("%w: token resolves to %q", ErrIdentityMismatch, identity.Email),
		}
	}

	roles, err := s.roles.DeriveRoles(ctx, *identity)
	if err != nil {
		return Principal{}, &AuthenticationError{Reason: ReasonRoleDerivation, Username: username, Err: fmt.Errorf("%w: %w", ErrRoleDerivation, err)}
	}

	principal := NewPrincipal(username, roles)
	if err := s.cache.Set(ctx, key, principal); err != nil {
		s.log.WithError(err).WithField("username", username).Warn("Failed to cache principal")
	}
	return principal, nil
}

// observedClient reports the latency and result of every remote call.
type observedClient struct {
	IdentityClient
	observer Observer
}

func (c *observedClient) ResolveIdentity(ctx context.Context, secret []byte) (*RemoteIdentity, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "ResolveIdentity")
	defer span.End()

	start := time.Now()
	identity, err := c.IdentityClient.ResolveIdentity(ctx, secret)
	c.observer.RemoteCall(OperationResolveIdentity, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve identity failed")
	}
	return identity, err
}

func (c *observedClient) ListGroups(ctx context.Context, loginName string) ([]Group, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "ListGroups")
	defer span.End()

	start := time.Now()
	groups, err := c.IdentityClient.ListGroups(ctx, loginName)
	c.observer.RemoteCall(OperationListGroups, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list groups failed")
	} else {
		span.SetAttributes(attribute.Int("auth.groups", len(groups)))
	}
	return groups, err
}
