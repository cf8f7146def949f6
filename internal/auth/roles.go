package auth

import (
	"context"
	"fmt"

	"github.com/samber/lo"
)

// DefaultAdminRole is granted to GitLab administrators when admin mapping is
// enabled.
const DefaultAdminRole = "nx-admin"

type RoleMapperConfig struct {
	// DefaultRole, when set, is the only non-admin role and disables group
	// lookups.
	DefaultRole         string
	AdminMappingEnabled bool
	AdminRole           string
}

// RoleMapper turns a verified identity into a role set. The admin role is
// additive; otherwise either the default role or the identity's group paths
// are used, never both.
type RoleMapper struct {
	groups IdentityClient
	cfg    RoleMapperConfig
}

func NewRoleMapper(groups IdentityClient, cfg RoleMapperConfig) *RoleMapper {
	if cfg.AdminRole == "" {
		cfg.AdminRole = DefaultAdminRole
	}
	return &RoleMapper{groups: groups, cfg: cfg}
}

// DeriveRoles returns the roles for identity in ascending order. A failed
// group lookup is an error; it never yields an empty role set.
func (m *RoleMapper) DeriveRoles(ctx context.Context, identity RemoteIdentity) ([]string, error) {
	var roles []string
	if m.cfg.AdminMappingEnabled && identity.IsAdmin {
		roles = append(roles, m.cfg.AdminRole)
	}

	if m.cfg.DefaultRole != "" {
		roles = append(roles, m.cfg.DefaultRole)
		return NewPrincipal(identity.Username, roles).Roles(), nil
	}

	groups, err := m.groups.ListGroups(ctx, identity.Username)
	if err != nil {
		return nil, fmt.Errorf("listing groups of %q: %w", identity.Username, err)
	}
	roles = append(roles, lo.Map(groups, func(g Group, _ int) string {
		return g.Path
	})...)

	return NewPrincipal(identity.Username, roles).Roles(), nil
}
