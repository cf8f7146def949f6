package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/flightctl/gitlab-auth/internal/auth"
	"github.com/flightctl/gitlab-auth/pkg/gitlab"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGitLabServer(t *testing.T) *GitLab {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v4/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("PRIVATE-TOKEN") != "tok-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":       1,
			"username": "alice",
			"email":    "alice@example.com",
			"is_admin": true,
		})
	})
	mux.HandleFunc("/api/v4/groups", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "alice", r.Header.Get("Sudo"))
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"id": 1, "name": "Team A", "path": "team-a", "full_path": "org/team-a"},
			{"id": 2, "name": "Team B", "path": "team-b", "full_path": "org/team-b"},
		})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := gitlab.NewClient(gitlab.ClientOptions{ApiUrl: server.URL, ApiKey: "admin-key"})
	require.NoError(t, err)
	return NewGitLab(client)
}

func TestGitLabResolveIdentity(t *testing.T) {
	provider := newGitLabServer(t)

	identity, err := provider.ResolveIdentity(context.Background(), []byte("tok-123"))
	require.NoError(t, err)
	assert.Equal(t, &auth.RemoteIdentity{Email: "alice@example.com", Username: "alice", IsAdmin: true}, identity)

	_, err = provider.ResolveIdentity(context.Background(), []byte("other"))
	assert.ErrorIs(t, err, gitlab.ErrUnauthorized)
}

func TestGitLabListGroups(t *testing.T) {
	provider := newGitLabServer(t)

	groups, err := provider.ListGroups(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, []auth.Group{
		{ID: 1, Name: "Team A", Path: "team-a", FullPath: "org/team-a"},
		{ID: 2, Name: "Team B", Path: "team-b", FullPath: "org/team-b"},
	}, groups)
}
