package gitlab

import (
	"context"
	"errors"
	"net/http"
)

type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	State    string `json:"state,omitempty"`
	IsAdmin  bool   `json:"is_admin,omitempty"`
}

// CurrentUser returns the user the given personal access token belongs to.
//
// GET /api/v4/user
func (c *Client) CurrentUser(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, errors.New("token is required")
	}
	header := http.Header{}
	header.Set(privateTokenHeader, token)
	return get[User](ctx, c, c.buildEndpoint("/user", nil), header)
}
