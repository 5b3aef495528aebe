package oauth

import (
	"context"
	"errors"

	"github.com/authgrid/oauth/storage"
)

// jwtBearerGrant implements the RFC 7523 authorization grant: the
// client presents an assertion it signed whose subject names the user
// the tokens are issued for. No refresh token is issued; the client is
// expected to mint a fresh assertion instead.
type jwtBearerGrant struct {
	server *Server
}

func (g *jwtBearerGrant) GrantType() string { return GrantTypeJWTBearer }

func (g *jwtBearerGrant) Handle(ctx context.Context, client *storage.Client, req *TokenRequest) (*grantResult, error) {
	s := g.server

	if req.Assertion == "" {
		return nil, ErrInvalidRequest(`The request is missing the required parameter "assertion".`)
	}

	claims, err := s.verifySignedAssertion(ctx, client, req.Assertion)
	if err != nil {
		return nil, ErrInvalidGrant("The assertion is invalid.").WithCause(err)
	}
	if claims.Subject == "" {
		return nil, ErrInvalidGrant("The assertion is missing the sub claim.")
	}

	user, err := s.services.Users.GetUser(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) || errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidGrant("The assertion subject is unknown.")
		}
		return nil, ErrServerError("Failed to resolve the assertion subject.").WithCause(err)
	}

	if oerr := s.markAssertion(ctx, client, claims, req.ClientIP); oerr != nil {
		return nil, oerr
	}

	scopes, oerr := narrowScopes(req.Scope, client.Scopes)
	if oerr != nil {
		return nil, oerr
	}

	return &grantResult{
		UserID:            user.ID,
		Scopes:            scopes,
		IssueRefreshToken: false,
	}, nil
}
