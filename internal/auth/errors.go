package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthenticationFailed matches every *AuthenticationError.
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrIdentityMismatch     = errors.New("token belongs to a different identity")
	ErrRoleDerivation       = errors.New("role derivation failed")
	ErrEmptyCredential      = errors.New("username and secret must not be empty")
	// ErrUnsupportedCredential matches *UnsupportedCredentialError. It is an
	// integration error, never an authentication failure.
	ErrUnsupportedCredential = errors.New("unsupported credential type")
)

type FailureReason string

const (
	ReasonTransport        FailureReason = "transport"
	ReasonIdentityMismatch FailureReason = "identity_mismatch"
	ReasonRoleDerivation   FailureReason = "role_derivation"
	ReasonInvalidInput     FailureReason = "invalid_input"
)

// AuthenticationError is returned for every denied login. Err keeps the cause
// for operators; callers should only show a generic denial.
type AuthenticationError struct {
	Reason   FailureReason
	Username string
	Err      error
}

func (e *AuthenticationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("authentication failed for %q: %s", e.Username, e.Reason)
	}
	return fmt.Sprintf("authentication failed for %q: %s: %v", e.Username, e.Reason, e.Err)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

func (e *AuthenticationError) Is(target error) bool {
	return target == ErrAuthenticationFailed
}

type UnsupportedCredentialError struct {
	Scheme string
}

func (e *UnsupportedCredentialError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnsupportedCredential, e.Scheme)
}

func (e *UnsupportedCredentialError) Is(target error) bool {
	return target == ErrUnsupportedCredential
}

// ReasonOf returns the failure reason of err, or "" when err is not an
// authentication failure.
func ReasonOf(err error) FailureReason {
	var authErr *AuthenticationError
	if errors.As(err, &authErr) {
		return authErr.Reason
	}
	return ""
}
