package storage

import (
	"encoding/json"
	"time"
)

// Client is a registered OAuth client and its full RFC 7591 metadata.
//
// Secret holds the plaintext client secret when the client's authentication
// method needs a recoverable secret (client_secret_jwt computes an HMAC over
// it). SecretHash holds the bcrypt hash used for client_secret_basic and
// client_secret_post verification. Public clients carry neither.
type Client struct {
	// ID is the server-assigned client identifier
	ID string `json:"id"`

	// Secret is the plaintext secret, kept only for clients whose
	// authentication method requires HMAC computation
	Secret string `json:"secret,omitempty"`

	// SecretHash is the bcrypt hash of the client secret
	SecretHash string `json:"secret_hash,omitempty"`

	// SecretExpiresAt is when the secret stops being accepted.
	// The zero value means the secret never expires.
	SecretExpiresAt time.Time `json:"secret_expires_at,omitempty"`

	// RedirectURIs are the exact-match redirection endpoints
	RedirectURIs []string `json:"redirect_uris"`

	// ResponseTypes the client may use at the authorization endpoint
	ResponseTypes []string `json:"response_types"`

	// GrantTypes the client may use at the token endpoint
	GrantTypes []string `json:"grant_types"`

	// ApplicationType is "web" or "native"
	ApplicationType string `json:"application_type"`

	// AuthMethod is the token endpoint authentication method
	AuthMethod string `json:"token_endpoint_auth_method"`

	// AuthSigningAlg constrains the JWS algorithm of client
	// authentication assertions
	AuthSigningAlg string `json:"token_endpoint_auth_signing_alg,omitempty"`

	// Scopes the client is allowed to request
	Scopes []string `json:"scopes"`

	// Audiences the client may request tokens for
	Audiences []string `json:"audiences,omitempty"`

	// SubjectType is "public" or "pairwise"
	SubjectType string `json:"subject_type,omitempty"`

	// SectorIdentifierURI groups clients for pairwise subject calculation
	SectorIdentifierURI string `json:"sector_identifier_uri,omitempty"`

	// JWKSURI points at the client's key set. Mutually exclusive with JWKS.
	JWKSURI string `json:"jwks_uri,omitempty"`

	// JWKS is the client's key set by value
	JWKS json.RawMessage `json:"jwks,omitempty"`

	// IDTokenSignedResponseAlg is the requested ID Token JWS algorithm
	IDTokenSignedResponseAlg string `json:"id_token_signed_response_alg,omitempty"`

	// UserinfoSignedResponseAlg is the requested UserInfo JWS algorithm
	UserinfoSignedResponseAlg string `json:"userinfo_signed_response_alg,omitempty"`

	// RequestObjectSigningAlg constrains request object signatures
	RequestObjectSigningAlg string `json:"request_object_signing_alg,omitempty"`

	// PostLogoutRedirectURIs are accepted after RP-initiated logout
	PostLogoutRedirectURIs []string `json:"post_logout_redirect_uris,omitempty"`

	// Human-facing metadata
	Name      string   `json:"client_name,omitempty"`
	URI       string   `json:"client_uri,omitempty"`
	LogoURI   string   `json:"logo_uri,omitempty"`
	PolicyURI string   `json:"policy_uri,omitempty"`
	TOSURI    string   `json:"tos_uri,omitempty"`
	Contacts  []string `json:"contacts,omitempty"`

	// InitiateLoginURI triggers third-party initiated login
	InitiateLoginURI string `json:"initiate_login_uri,omitempty"`

	// DefaultMaxAge is the default max_age in seconds, 0 for none
	DefaultMaxAge int64 `json:"default_max_age,omitempty"`

	// RequireAuthTime forces the auth_time claim in ID Tokens
	RequireAuthTime bool `json:"require_auth_time,omitempty"`

	// SoftwareID and SoftwareVersion identify the client software
	SoftwareID      string `json:"software_id,omitempty"`
	SoftwareVersion string `json:"software_version,omitempty"`

	// CreatedAt is when the client was registered
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the client metadata last changed
	UpdatedAt time.Time `json:"updated_at"`
}

// IsPublic reports whether the client authenticates with no credentials.
func (c *Client) IsPublic() bool {
	return c.AuthMethod == "none"
}

// HasGrantType reports whether the client registered the given grant type.
func (c *Client) HasGrantType(grantType string) bool {
	for _, gt := range c.GrantTypes {
		if gt == grantType {
			return true
		}
	}
	return false
}

// HasScope reports whether the client registered the given scope.
func (c *Client) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// SecretExpired reports whether the client secret has passed its expiry.
func (c *Client) SecretExpired(now time.Time) bool {
	return !c.SecretExpiresAt.IsZero() && now.After(c.SecretExpiresAt)
}
