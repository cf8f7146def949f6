package auth

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPrincipalNormalizesRoles(t *testing.T) {
	p := NewPrincipal("alice@example.com", []string{"team-b", "team-a", "", "team-b"})

	assert.Equal(t, "alice@example.com", p.Username())
	assert.Equal(t, []string{"team-a", "team-b"}, p.Roles())
	assert.True(t, p.HasRole("team-a"))
	assert.False(t, p.HasRole("team-c"))
	assert.Equal(t, "alice@example.com", p.String())
	assert.Equal(t, "alice@example.com", fmt.Sprint(p))
}

func TestPrincipalIsImmutable(t *testing.T) {
	input := []string{"team-a", "team-b"}
	p := NewPrincipal("alice@example.com", input)

	input[0] = "mutated"
	roles := p.Roles()
	roles[1] = "mutated"

	assert.Equal(t, []string{"team-a", "team-b"}, p.Roles())
}

func TestPrincipalEmptyRoles(t *testing.T) {
	p := NewPrincipal("alice@example.com", nil)

	assert.False(t, p.IsZero())
	assert.Empty(t, p.Roles())
	assert.True(t, p.Equal(NewPrincipal("alice@example.com", []string{})))
	assert.True(t, Principal{}.IsZero())
}

func TestPrincipalJSON(t *testing.T) {
	out, err := json.Marshal(NewPrincipal("alice@example.com", nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"username":"alice@example.com","roles":[]}`, string(out))

	var decoded Principal
	require.NoError(t, json.Unmarshal([]byte(`{"username":"bob@example.com","roles":["b","a","a"]}`), &decoded))
	assert.True(t, decoded.Equal(NewPrincipal("bob@example.com", []string{"a", "b"})))
}
