package auth

import "context"

// RemoteIdentity is the provider's view of whoever owns a secret.
type RemoteIdentity struct {
	Email    string
	Username string
	IsAdmin  bool
}

type Group struct {
	ID       int
	Name     string
	Path     string
	FullPath string
}

//go:generate mockgen -source=identity.go -destination=mock_identity_client.go -package=auth

// IdentityClient talks to the remote identity provider. Both calls block on
// the network and their errors are opaque to the service.
type IdentityClient interface {
	// ResolveIdentity returns the identity the secret authenticates as.
	ResolveIdentity(ctx context.Context, secret []byte) (*RemoteIdentity, error)
	// ListGroups returns every group loginName belongs to, acting on its behalf.
	ListGroups(ctx context.Context, loginName string) ([]Group, error)
}
