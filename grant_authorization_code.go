package oauth

import (
	"context"
	"errors"
	"time"

	"github.com/authgrid/oauth/pkce"
	"github.com/authgrid/oauth/security"
	"github.com/authgrid/oauth/storage"
)

// authorizationCodeGrant exchanges a single-use authorization code for
// tokens, enforcing client binding, redirect URI binding, and PKCE.
type authorizationCodeGrant struct {
	server *Server
}

func (g *authorizationCodeGrant) GrantType() string { return GrantTypeAuthorizationCode }

func (g *authorizationCodeGrant) Handle(ctx context.Context, client *storage.Client, req *TokenRequest) (*grantResult, error) {
	s := g.server

	if req.Code == "" {
		return nil, ErrInvalidRequest(`The request is missing the required parameter "code".`)
	}

	code, err := s.services.AuthorizationCodes.ConsumeAuthorizationCode(ctx, req.Code)
	if err != nil {
		if errors.Is(err, storage.ErrCodeConsumed) {
			// Code replay. Revoke everything issued from this code's
			// session before failing the request.
			if consumed, gerr := s.services.AuthorizationCodes.GetAuthorizationCode(ctx, req.Code); gerr == nil {
				s.auditor.LogCodeReuse(consumed.UserID, consumed.ClientID, req.ClientIP)
				if s.inst != nil {
					s.inst.Metrics().RecordCodeReuseDetected(ctx)
				}
				s.revokeAllForUserClient(ctx, consumed.UserID, consumed.ClientID, req.ClientIP)
			}
			return nil, ErrInvalidGrant("The authorization code has already been used.")
		}
		return nil, ErrInvalidGrant("The authorization code is invalid.")
	}

	now := time.Now()
	if code.Revoked || code.Expired(now) {
		return nil, ErrInvalidGrant("The authorization code has expired.")
	}
	if !security.ConstantTimeEquals(code.ClientID, client.ID) {
		// A code presented by the wrong client is treated as stolen.
		s.auditor.LogCodeReuse(code.UserID, code.ClientID, req.ClientIP)
		s.revokeAllForUserClient(ctx, code.UserID, code.ClientID, req.ClientIP)
		return nil, ErrInvalidGrant("The authorization code was issued to another client.")
	}
	if code.RedirectURI != "" && code.RedirectURI != req.RedirectURI {
		return nil, ErrInvalidGrant(`The "redirect_uri" does not match the one used in the authorization request.`)
	}

	if oerr := g.verifyPKCE(ctx, client, code, req); oerr != nil {
		return nil, oerr
	}

	return &grantResult{
		UserID:            code.UserID,
		Scopes:            code.Scopes,
		IssueRefreshToken: true,
	}, nil
}

// verifyPKCE checks the code verifier against the challenge bound to
// the authorization code. Public clients must use PKCE unless the
// deployment explicitly opted out.
func (g *authorizationCodeGrant) verifyPKCE(ctx context.Context, client *storage.Client, code *storage.AuthorizationCode, req *TokenRequest) *OAuthError {
	s := g.server

	if code.CodeChallenge == "" {
		if req.CodeVerifier != "" {
			return ErrInvalidGrant(`The request includes a "code_verifier" but the authorization request had no "code_challenge".`)
		}
		if client.IsPublic() && !s.settings.Security.AllowPublicClientsWithoutPKCE {
			return ErrInvalidGrant("Public clients must use PKCE.")
		}
		return nil
	}

	method := code.CodeChallengeMethod
	if method == "" {
		method = "plain"
	}
	if req.CodeVerifier == "" {
		s.recordPKCEFailure(ctx, client, req, method)
		return ErrInvalidGrant(`The request is missing the required parameter "code_verifier".`)
	}
	if !pkce.ValidVerifierFormat(req.CodeVerifier) {
		s.recordPKCEFailure(ctx, client, req, method)
		return ErrInvalidGrant(`The "code_verifier" does not satisfy the RFC 7636 format rules.`)
	}
	verifier, ok := s.pkceRegistry.Get(method)
	if !ok {
		return ErrInvalidGrant(`The code challenge method "` + method + `" is not supported.`)
	}
	if !verifier.Verify(req.CodeVerifier, code.CodeChallenge) {
		s.recordPKCEFailure(ctx, client, req, method)
		return ErrInvalidGrant("The PKCE code verifier is invalid.")
	}
	return nil
}

func (s *Server) recordPKCEFailure(ctx context.Context, client *storage.Client, req *TokenRequest, method string) {
	s.auditor.LogEvent(security.Event{
		Type:      security.EventPKCEValidationFailed,
		ClientID:  client.ID,
		IPAddress: req.ClientIP,
	})
	if s.inst != nil {
		s.inst.Metrics().RecordPKCEValidationFailed(ctx, method)
	}
}
