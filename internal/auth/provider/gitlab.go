package provider

import (
	"context"
	"errors"

	"github.com/flightctl/gitlab-auth/internal/auth"
	"github.com/flightctl/gitlab-auth/pkg/gitlab"
	"github.com/samber/lo"
)

// GitLab resolves identities and group memberships through the GitLab REST API.
type GitLab struct {
	client *gitlab.Client
}

var _ auth.IdentityClient = (*GitLab)(nil)

func NewGitLab(client *gitlab.Client) *GitLab {
	return &GitLab{client: client}
}

// ResolveIdentity treats secret as a personal access token and returns the
// user it belongs to.
func (g *GitLab) ResolveIdentity(ctx context.Context, secret []byte) (*auth.RemoteIdentity, error) {
	user, err := g.client.CurrentUser(ctx, string(secret))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.New("empty user in response")
	}
	return &auth.RemoteIdentity{
		Email:    user.Email,
		Username: user.Username,
		IsAdmin:  user.IsAdmin,
	}, nil
}

func (g *GitLab) ListGroups(ctx context.Context, loginName string) ([]auth.Group, error) {
	groups, err := g.client.ListGroupsAsUser(ctx, loginName)
	if err != nil {
		return nil, err
	}
	return lo.FilterMap(groups, func(group *gitlab.Group, _ int) (auth.Group, bool) {
		if group == nil {
			return auth.Group{}, false
		}
		return auth.Group{
			ID:       group.ID,
			Name:     group.Name,
			Path:     group.Path,
			FullPath: group.FullPath,
		}, true
	}), nil
}
