package apiserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/flightctl/gitlab-auth/internal/api_server/middleware"
	"github.com/flightctl/gitlab-auth/internal/auth"
	fclog "github.com/flightctl/gitlab-auth/pkg/log"
	"github.com/sirupsen/logrus"
)

const (
	AuthenticatePath = "/api/v1/authenticate"

	ReasonUnauthorized          = "Unauthorized"
	ReasonUnsupportedCredential = "UnsupportedCredential"

	authenticationFailedMessage = "authentication failed"
	basicChallenge              = `Basic realm="gitlab"`
)

var errMissingCredential = errors.New("no credentials in request")

// Authenticator verifies a credential. *auth.Service implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, cred auth.Credential) (auth.Principal, error)
}

// schemeCredential stands for an Authorization scheme the service has no
// credential type for.
type schemeCredential struct {
	scheme string
}

func (c schemeCredential) Scheme() string {
	return c.scheme
}

type authenticateHandler struct {
	log           logrus.FieldLogger
	authenticator Authenticator
}

func (h *authenticateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := fclog.WithReqIDFromCtx(r.Context(), h.log)

	cred, err := credentialFromRequest(r)
	if err != nil {
		if errors.Is(err, errMissingCredential) {
			writeUnauthorized(w)
			return
		}
		log.WithError(err).Error("Rejected malformed Authorization header")
		middleware.WriteJSONError(w, http.StatusBadRequest, ReasonUnsupportedCredential, err.Error())
		return
	}
	if up, ok := cred.(*auth.UsernamePassword); ok {
		defer up.Zero()
	}

	principal, err := h.authenticator.Authenticate(r.Context(), cred)
	if err != nil {
		var unsupported *auth.UnsupportedCredentialError
		if errors.As(err, &unsupported) {
			middleware.WriteJSONError(w, http.StatusBadRequest, ReasonUnsupportedCredential, unsupported.Error())
			return
		}
		writeUnauthorized(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(principal); err != nil {
		log.WithError(err).Warn("Failed writing principal")
	}
}

// writeUnauthorized sends the same denial for every failure so callers
// cannot tell an unknown user from a wrong token.
func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", basicChallenge)
	middleware.WriteJSONError(w, http.StatusUnauthorized, ReasonUnauthorized, authenticationFailedMessage)
}

// credentialFromRequest maps the Authorization header to a credential. A
// Basic header yields *auth.UsernamePassword whose Password aliases a buffer
// the caller should clear with Zero.
func credentialFromRequest(r *http.Request) (auth.Credential, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return nil, errMissingCredential
	}
	scheme, value, _ := strings.Cut(header, " ")
	value = strings.TrimSpace(value)

	switch strings.ToLower(scheme) {
	case auth.SchemeBasic:
		return parseBasic(value)
	case auth.SchemeBearer:
		return auth.BearerToken{Token: value}, nil
	default:
		return schemeCredential{scheme: strings.ToLower(scheme)}, nil
	}
}

func parseBasic(value string) (*auth.UsernamePassword, error) {
	if value == "" {
		return nil, fmt.Errorf("malformed Basic credentials: empty value")
	}
	decoded, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("malformed Basic credentials: %w", err)
	}
	i := bytes.IndexByte(decoded, ':')
	if i < 0 {
		clear(decoded)
		return nil, fmt.Errorf("malformed Basic credentials: missing ':' separator")
	}
	return &auth.UsernamePassword{
		Username: string(decoded[:i]),
		Password: decoded[i+1:],
	}, nil
}
