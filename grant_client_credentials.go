package oauth

import (
	"context"

	"github.com/authgrid/oauth/storage"
)

// clientCredentialsGrant issues tokens to the client itself. No
// resource owner is involved and no refresh token is issued.
type clientCredentialsGrant struct {
	server *Server
}

func (g *clientCredentialsGrant) GrantType() string { return GrantTypeClientCredentials }

func (g *clientCredentialsGrant) Handle(_ context.Context, client *storage.Client, req *TokenRequest) (*grantResult, error) {
	if client.IsPublic() {
		return nil, ErrUnauthorizedClient("Public clients cannot use the client credentials grant.")
	}

	scopes, err := narrowScopes(req.Scope, client.Scopes)
	if err != nil {
		return nil, err
	}

	return &grantResult{
		Scopes:            scopes,
		IssueRefreshToken: false,
	}, nil
}
