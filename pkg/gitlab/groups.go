package gitlab

import (
	"context"
	"errors"
	"net/http"
)

type Group struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	FullPath string `json:"full_path,omitempty"`
}

// ListGroupsAsUser lists the groups visible to username, impersonating it
// with the client's administrator key.
//
// GET /api/v4/groups (Sudo: username)
func (c *Client) ListGroupsAsUser(ctx context.Context, username string) ([]*Group, error) {
	if c.apiKey == "" {
		return nil, errors.New("an administrator api key is required for sudo calls")
	}
	if username == "" {
		return nil, errors.New("username is required")
	}
	header := http.Header{}
	header.Set(privateTokenHeader, c.apiKey)
	header.Set(sudoHeader, username)
	return getWithPagination[Group](ctx, c, "/groups", nil, header)
}
