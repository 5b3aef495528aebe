package oauth

import (
	"context"
	"errors"
	"time"

	"github.com/authgrid/oauth/security"
	"github.com/authgrid/oauth/storage"
)

// refreshTokenGrant exchanges a refresh token for a new access token.
// With rotation enabled (the default) each use retires the presented
// token and issues a successor; presenting a retired token is treated
// as theft and revokes the whole chain.
type refreshTokenGrant struct {
	server *Server
}

func (g *refreshTokenGrant) GrantType() string { return GrantTypeRefreshToken }

func (g *refreshTokenGrant) Handle(ctx context.Context, client *storage.Client, req *TokenRequest) (*grantResult, error) {
	s := g.server

	if req.RefreshToken == "" {
		return nil, ErrInvalidRequest(`The request is missing the required parameter "refresh_token".`)
	}

	token, err := s.services.RefreshTokens.GetRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		return nil, ErrInvalidGrant("The refresh token is invalid.")
	}

	if !security.ConstantTimeEquals(token.ClientID, client.ID) {
		g.reportReuse(ctx, token, req.ClientIP)
		return nil, ErrInvalidGrant("The refresh token was issued to another client.")
	}
	if token.Revoked {
		g.reportReuse(ctx, token, req.ClientIP)
		return nil, ErrInvalidGrant("The refresh token has been revoked.")
	}
	if token.Expired(time.Now()) {
		return nil, ErrInvalidGrant("The refresh token has expired.")
	}

	// The new access token may carry a subset of the original grant,
	// never more.
	scopes, oerr := narrowScopes(req.Scope, token.Scopes)
	if oerr != nil {
		return nil, oerr
	}

	result := &grantResult{
		UserID: token.UserID,
		Scopes: scopes,
	}

	rotated := !s.settings.Security.DisableRefreshTokenRotation
	if rotated {
		// The successor keeps the full original scope set and the
		// absolute expiry; rotation never extends the token's life.
		successor := &storage.RefreshToken{
			Handle:      security.GenerateHandle(),
			ClientID:    token.ClientID,
			UserID:      token.UserID,
			Scopes:      token.Scopes,
			IssuedAt:    time.Now(),
			ExpiresAt:   token.ExpiresAt,
			RotatedFrom: token.Handle,
		}
		if err := s.rotator.RotateRefreshToken(ctx, token.Handle, successor); err != nil {
			if errors.Is(err, storage.ErrCodeConsumed) {
				// Lost a race with another use of the same token.
				g.reportReuse(ctx, token, req.ClientIP)
				return nil, ErrInvalidGrant("The refresh token has been revoked.")
			}
			if errors.Is(err, storage.ErrTokenNotFound) {
				return nil, ErrInvalidGrant("The refresh token is invalid.")
			}
			return nil, ErrServerError("Failed to rotate the refresh token.").WithCause(err)
		}
		result.RefreshTokenHandle = successor.Handle
	} else {
		result.RefreshTokenHandle = token.Handle
	}

	s.auditor.LogTokenRefreshed(token.UserID, client.ID, req.ClientIP, rotated)
	if s.inst != nil {
		s.inst.Metrics().RecordTokenRefreshed(ctx, rotated)
	}
	return result, nil
}

func (g *refreshTokenGrant) reportReuse(ctx context.Context, token *storage.RefreshToken, ip string) {
	s := g.server
	s.auditor.LogRefreshTokenReuse(token.UserID, token.ClientID, ip)
	if s.inst != nil {
		s.inst.Metrics().RecordTokenReuseDetected(ctx)
	}
	s.revokeAllForUserClient(ctx, token.UserID, token.ClientID, ip)
}
