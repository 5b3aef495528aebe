package oauth

import (
	"context"
	"errors"

	"github.com/authgrid/oauth/storage"
)

// passwordGrant exchanges resource owner credentials for tokens.
// Retained for trusted first-party clients; unknown users and wrong
// passwords produce an identical error.
type passwordGrant struct {
	server *Server
}

func (g *passwordGrant) GrantType() string { return GrantTypePassword }

func (g *passwordGrant) Handle(ctx context.Context, client *storage.Client, req *TokenRequest) (*grantResult, error) {
	s := g.server

	if req.Username == "" || req.Password == "" {
		return nil, ErrInvalidRequest(`The request is missing the required parameter "username" or "password".`)
	}

	user, err := s.services.Users.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidCredentials) || errors.Is(err, storage.ErrUserNotFound) {
			s.auditor.LogAuthFailure(req.Username, client.ID, req.ClientIP, "invalid resource owner credentials")
			if s.inst != nil {
				s.inst.Metrics().RecordAuthFailure(ctx, "password")
			}
			return nil, ErrInvalidGrant("The resource owner credentials are invalid.")
		}
		return nil, ErrServerError("Failed to authenticate the resource owner.").WithCause(err)
	}

	scopes, oerr := narrowScopes(req.Scope, client.Scopes)
	if oerr != nil {
		return nil, oerr
	}

	return &grantResult{
		UserID:            user.ID,
		Scopes:            scopes,
		IssueRefreshToken: true,
	}, nil
}
