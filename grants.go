package oauth

import (
	"context"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/authgrid/oauth/instrumentation"
	"github.com/authgrid/oauth/storage"
)

// TokenRequest carries the token endpoint parameters relevant to grant
// processing. Fields not used by the requested grant type are ignored.
type TokenRequest struct {
	GrantType string

	// authorization_code
	Code         string
	RedirectURI  string
	CodeVerifier string

	// refresh_token
	RefreshToken string

	// password
	Username string
	Password string

	// device_code
	DeviceCode string

	// jwt-bearer
	Assertion string

	// Scope narrows the issued token where the grant allows it
	Scope string

	// ClientIP is used for audit logging only
	ClientIP string
}

// TokenRequestFromForm extracts grant parameters from a parsed form.
func TokenRequestFromForm(form url.Values) *TokenRequest {
	return &TokenRequest{
		GrantType:    form.Get("grant_type"),
		Code:         form.Get("code"),
		RedirectURI:  form.Get("redirect_uri"),
		CodeVerifier: form.Get("code_verifier"),
		RefreshToken: form.Get("refresh_token"),
		Username:     form.Get("username"),
		Password:     form.Get("password"),
		DeviceCode:   form.Get("device_code"),
		Assertion:    form.Get("assertion"),
		Scope:        form.Get("scope"),
	}
}

// grantResult is what a grant handler hands back for token minting.
type grantResult struct {
	// UserID is empty for client-only grants
	UserID string

	// Scopes granted to the new access token
	Scopes []string

	// IssueRefreshToken mints a fresh refresh token alongside the
	// access token
	IssueRefreshToken bool

	// RefreshTokenHandle echoes a predetermined refresh token instead of
	// minting one. Used by the refresh grant for rotation and for the
	// non-rotating mode.
	RefreshTokenHandle string
}

// grantHandler processes one grant type.
type grantHandler interface {
	// GrantType returns the grant_type value this handler serves
	GrantType() string

	// Handle validates the request against the authenticated client and
	// returns the material for token minting. Errors are *OAuthError.
	Handle(ctx context.Context, client *storage.Client, req *TokenRequest) (*grantResult, error)
}

// Exchange processes a token endpoint request for an authenticated client.
// This is the single entry point for all grant types.
func (s *Server) Exchange(ctx context.Context, client *storage.Client, req *TokenRequest) (*TokenResponse, error) {
	ctx, span := s.tracer.Start(ctx, "oauth.exchange", trace.WithAttributes(
		attribute.String(instrumentation.AttrClientID, client.ID),
		attribute.String(instrumentation.AttrGrantType, req.GrantType),
	))
	var exchangeErr error
	defer func() { instrumentation.EndSpan(span, exchangeErr) }()

	resp, err := s.exchange(ctx, client, req)
	if err != nil {
		exchangeErr = err
		s.recordTokenRequest(ctx, req.GrantType, errorCode(err))
		return nil, err
	}

	s.recordTokenRequest(ctx, req.GrantType, "success")
	return resp, nil
}

func (s *Server) exchange(ctx context.Context, client *storage.Client, req *TokenRequest) (*TokenResponse, error) {
	if req.GrantType == "" {
		return nil, ErrInvalidRequest(`The request is missing the required parameter "grant_type".`)
	}

	handler, ok := s.grants[req.GrantType]
	if !ok {
		return nil, ErrUnsupportedGrantType(`The grant type "` + req.GrantType + `" is not supported by this Authorization Server.`)
	}

	// The client must have registered the grant type, even when the
	// server supports it globally
	if !client.HasGrantType(req.GrantType) {
		return nil, ErrUnauthorizedClient(`The client is not authorized to use the grant type "` + req.GrantType + `".`)
	}

	result, err := handler.Handle(ctx, client, req)
	if err != nil {
		return nil, err
	}

	return s.mintTokenResponse(ctx, client, req, result)
}

// recordTokenRequest updates the token request metric when instrumented.
func (s *Server) recordTokenRequest(ctx context.Context, grantType, result string) {
	if s.inst != nil {
		s.inst.Metrics().RecordTokenRequest(ctx, grantType, result)
	}
}

// errorCode extracts the protocol error code for metrics labels.
func errorCode(err error) string {
	if oe, ok := err.(*OAuthError); ok {
		return oe.Code
	}
	return ErrorCodeServerError
}

// parseScope splits a space-delimited scope string, dropping empties and
// duplicates while preserving order.
func parseScope(scope string) []string {
	if scope == "" {
		return nil
	}
	fields := strings.Fields(scope)
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// joinScope renders scopes in wire format.
func joinScope(scopes []string) string {
	return strings.Join(scopes, " ")
}

// scopeSubset reports whether every requested scope is in allowed, and if
// not, returns the first offender.
func scopeSubset(requested, allowed []string) (string, bool) {
	for _, r := range requested {
		found := false
		for _, a := range allowed {
			if r == a {
				found = true
				break
			}
		}
		if !found {
			return r, false
		}
	}
	return "", true
}

// narrowScopes resolves the scopes for a new token: an empty request
// yields the full grant, otherwise the request must be a subset.
func narrowScopes(requested string, granted []string) ([]string, *OAuthError) {
	scopes := parseScope(requested)
	if len(scopes) == 0 {
		return granted, nil
	}
	if offender, ok := scopeSubset(scopes, granted); !ok {
		return nil, ErrInvalidScope(`The scope "` + offender + `" exceeds the scope of the grant.`)
	}
	return scopes, nil
}
