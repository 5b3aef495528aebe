package oauth

import (
	"context"
	"time"

	"github.com/authgrid/oauth/security"
	"github.com/authgrid/oauth/storage"
)

// mintTokenResponse issues the access token (and refresh token when the
// grant allows one) and builds the wire response.
func (s *Server) mintTokenResponse(ctx context.Context, client *storage.Client, req *TokenRequest, result *grantResult) (*TokenResponse, error) {
	now := time.Now()

	accessToken := &storage.AccessToken{
		Handle:    security.GenerateHandle(),
		ClientID:  client.ID,
		UserID:    result.UserID,
		Scopes:    result.Scopes,
		Audiences: client.Audiences,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.settings.AccessTokenTTL),
	}
	if err := s.services.AccessTokens.SaveAccessToken(ctx, accessToken); err != nil {
		return nil, ErrServerError("Failed to store the access token.").WithCause(err)
	}

	resp := &TokenResponse{
		AccessToken: accessToken.Handle,
		TokenType:   TokenTypeBearer,
		ExpiresIn:   int64(s.settings.AccessTokenTTL.Seconds()),
		Scope:       joinScope(result.Scopes),
	}

	switch {
	case result.RefreshTokenHandle != "":
		resp.RefreshToken = result.RefreshTokenHandle

	case result.IssueRefreshToken &&
		s.settings.grantEnabled(GrantTypeRefreshToken) &&
		client.HasGrantType(GrantTypeRefreshToken):

		refreshToken := &storage.RefreshToken{
			Handle:   security.GenerateHandle(),
			ClientID: client.ID,
			UserID:   result.UserID,
			Scopes:   result.Scopes,
			IssuedAt: now,
		}
		if s.settings.RefreshTokenTTL > 0 {
			refreshToken.ExpiresAt = now.Add(s.settings.RefreshTokenTTL)
		}
		if err := s.services.RefreshTokens.SaveRefreshToken(ctx, refreshToken); err != nil {
			return nil, ErrServerError("Failed to store the refresh token.").WithCause(err)
		}
		resp.RefreshToken = refreshToken.Handle
	}

	s.auditor.LogTokenIssued(result.UserID, client.ID, req.ClientIP, req.GrantType, resp.Scope)
	if s.inst != nil {
		s.inst.Metrics().RecordTokenIssued(ctx, req.GrantType, resp.RefreshToken != "")
	}
	s.logger.Info("Access token issued",
		"client_id", client.ID,
		"grant_type", req.GrantType,
		"scope", resp.Scope,
		"refresh_token", resp.RefreshToken != "")

	return resp, nil
}

// lookupActiveAccessToken resolves a bearer token handle to an active
// token record. Inactive tokens of every flavor produce the same
// invalid_token error so callers cannot probe token state.
func (s *Server) lookupActiveAccessToken(ctx context.Context, handle string) (*storage.AccessToken, *OAuthError) {
	token, err := s.services.AccessTokens.GetAccessToken(ctx, handle)
	if err != nil {
		return nil, ErrInvalidToken("The access token is invalid.")
	}
	if !token.Active(time.Now()) {
		return nil, ErrInvalidToken("The access token is invalid.")
	}
	return token, nil
}

// RevokeAccessToken revokes an access token by handle. Unknown handles
// are not an error; revocation is idempotent.
func (s *Server) RevokeAccessToken(ctx context.Context, handle string) error {
	err := s.services.AccessTokens.RevokeAccessToken(ctx, handle)
	if err != nil {
		return err
	}
	if s.inst != nil {
		s.inst.Metrics().RecordTokenRevoked(ctx, "access_token")
	}
	return nil
}

// RevokeRefreshToken revokes a refresh token by handle.
func (s *Server) RevokeRefreshToken(ctx context.Context, handle string) error {
	if s.services.RefreshTokens == nil {
		return nil
	}
	err := s.services.RefreshTokens.RevokeRefreshToken(ctx, handle)
	if err != nil {
		return err
	}
	if s.inst != nil {
		s.inst.Metrics().RecordTokenRevoked(ctx, "refresh_token")
	}
	return nil
}

// revokeAllForUserClient performs bulk revocation after replay detection,
// when the backend supports it. Best effort: the triggering request fails
// regardless.
func (s *Server) revokeAllForUserClient(ctx context.Context, userID, clientID, ip string) {
	if s.revoker == nil {
		return
	}
	count, err := s.revoker.RevokeAllForUserClient(ctx, userID, clientID)
	if err != nil {
		s.logger.Error("Bulk token revocation failed",
			"client_id", clientID, "error", err)
		return
	}
	s.auditor.LogEvent(security.Event{
		Type:      security.EventAllTokensRevoked,
		UserID:    userID,
		ClientID:  clientID,
		IPAddress: ip,
		Details:   map[string]any{"revoked": count},
	})
	s.logger.Warn("Revoked all tokens after replay detection",
		"client_id", clientID, "revoked", count)
}
