package auth

import "time"

const (
	OperationResolveIdentity = "resolve_identity"
	OperationListGroups      = "list_groups"

	OutcomeSuccess     = "success"
	OutcomeUnsupported = "unsupported_credential"
)

// Observer receives authentication events, typically to export metrics.
type Observer interface {
	// AuthenticationCompleted is called once per Authenticate call with
	// OutcomeSuccess, OutcomeUnsupported or a FailureReason.
	AuthenticationCompleted(outcome string)
	CacheLookup(hit bool)
	RemoteCall(operation string, duration time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) AuthenticationCompleted(string)          {}
func (nopObserver) CacheLookup(bool)                        {}
func (nopObserver) RemoteCall(string, time.Duration, error) {}
