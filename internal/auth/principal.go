package auth

import (
	"encoding/json"
	"slices"

	"github.com/samber/lo"
)

// Principal is an authenticated username and the roles derived for it.
// The zero value is not a valid principal. Principals are immutable.
type Principal struct {
	username string
	roles    []string
}

// NewPrincipal returns a principal with a sorted, de-duplicated copy of roles.
// Empty role names are dropped.
func NewPrincipal(username string, roles []string) Principal {
	set := lo.Uniq(lo.Compact(roles))
	slices.Sort(set)
	return Principal{username: username, roles: set}
}

func (p Principal) Username() string {
	return p.username
}

// Roles returns a copy of the role set in ascending order.
func (p Principal) Roles() []string {
	return slices.Clone(p.roles)
}

func (p Principal) HasRole(role string) bool {
	_, found := slices.BinarySearch(p.roles, role)
	return found
}

func (p Principal) IsZero() bool {
	return p.username == ""
}

func (p Principal) Equal(other Principal) bool {
	return p.username == other.username && slices.Equal(p.roles, other.roles)
}

func (p Principal) String() string {
	return p.username
}

type principalJSON struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

func (p Principal) MarshalJSON() ([]byte, error) {
	roles := p.roles
	if roles == nil {
		roles = []string{}
	}
	return json.Marshal(principalJSON{Username: p.username, Roles: roles})
}

func (p *Principal) UnmarshalJSON(data []byte) error {
	var raw principalJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = NewPrincipal(raw.Username, raw.Roles)
	return nil
}
