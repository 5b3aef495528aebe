package oauth

import "encoding/json"

// ErrorResponse represents an OAuth error response body
type ErrorResponse struct {
	// Error is the error code
	Error string `json:"error"`

	// ErrorDescription provides additional information
	ErrorDescription string `json:"error_description,omitempty"`

	// ErrorURI points to error documentation
	ErrorURI string `json:"error_uri,omitempty"`
}

// TokenResponse represents a successful token endpoint response (RFC 6749 5.1)
type TokenResponse struct {
	// AccessToken is the issued opaque access token
	AccessToken string `json:"access_token"`

	// TokenType is always "Bearer"
	TokenType string `json:"token_type"`

	// ExpiresIn is the access token lifetime in seconds
	ExpiresIn int64 `json:"expires_in"`

	// RefreshToken is present when the grant allows refresh
	RefreshToken string `json:"refresh_token,omitempty"`

	// Scope is the space-delimited granted scope. Always echoed so the
	// client can detect narrowing.
	Scope string `json:"scope,omitempty"`
}

// ClientMetadata represents RFC 7591 client metadata as presented on
// registration create and update requests.
type ClientMetadata struct {
	RedirectURIs []string `json:"redirect_uris"`

	ResponseTypes []string `json:"response_types,omitempty"`
	GrantTypes    []string `json:"grant_types,omitempty"`

	// ApplicationType defaults to "web" when absent
	ApplicationType string `json:"application_type,omitempty"`

	// TokenEndpointAuthMethod defaults to "client_secret_basic"
	TokenEndpointAuthMethod     string `json:"token_endpoint_auth_method,omitempty"`
	TokenEndpointAuthSigningAlg string `json:"token_endpoint_auth_signing_alg,omitempty"`
	IDTokenSignedResponseAlg    string `json:"id_token_signed_response_alg,omitempty"`
	UserinfoSignedResponseAlg   string `json:"userinfo_signed_response_alg,omitempty"`
	RequestObjectSigningAlg     string `json:"request_object_signing_alg,omitempty"`

	// Scope is the space-delimited scope the client wants to request
	Scope string `json:"scope,omitempty"`

	SubjectType         string `json:"subject_type,omitempty"`
	SectorIdentifierURI string `json:"sector_identifier_uri,omitempty"`

	// JWKSURI and JWKS are mutually exclusive
	JWKSURI string          `json:"jwks_uri,omitempty"`
	JWKS    json.RawMessage `json:"jwks,omitempty"`

	ClientName string   `json:"client_name,omitempty"`
	ClientURI  string   `json:"client_uri,omitempty"`
	LogoURI    string   `json:"logo_uri,omitempty"`
	PolicyURI  string   `json:"policy_uri,omitempty"`
	TOSURI     string   `json:"tos_uri,omitempty"`
	Contacts   []string `json:"contacts,omitempty"`

	InitiateLoginURI       string   `json:"initiate_login_uri,omitempty"`
	PostLogoutRedirectURIs []string `json:"post_logout_redirect_uris,omitempty"`

	DefaultMaxAge   int64 `json:"default_max_age,omitempty"`
	RequireAuthTime bool  `json:"require_auth_time,omitempty"`

	SoftwareID      string `json:"software_id,omitempty"`
	SoftwareVersion string `json:"software_version,omitempty"`
}

// ClientInformationResponse represents the RFC 7591 client information
// response returned from registration create, read, and update operations.
type ClientInformationResponse struct {
	ClientID string `json:"client_id"`

	// ClientSecret is only present on create, and only for clients whose
	// authentication method requires one
	ClientSecret string `json:"client_secret,omitempty"`

	// ClientIDIssuedAt is a Unix timestamp
	ClientIDIssuedAt int64 `json:"client_id_issued_at,omitempty"`

	// ClientSecretExpiresAt is a Unix timestamp, 0 means never expires.
	// Present whenever a secret was issued.
	ClientSecretExpiresAt *int64 `json:"client_secret_expires_at,omitempty"`

	// RegistrationAccessToken administers this registration. Only
	// returned on create.
	RegistrationAccessToken string `json:"registration_access_token,omitempty"`

	// RegistrationClientURI is the client configuration endpoint
	RegistrationClientURI string `json:"registration_client_uri,omitempty"`

	// The registered metadata, echoed back with defaults applied
	ClientMetadata
}

// ClientUpdateRequest is the registration update request body: the full
// replacement metadata plus the client identity fields echoed back.
type ClientUpdateRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret,omitempty"`
	ClientMetadata
}

// DeviceAuthorizationResponse represents an RFC 8628 device authorization
// response.
type DeviceAuthorizationResponse struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete,omitempty"`
	ExpiresIn               int64  `json:"expires_in"`
	Interval                int64  `json:"interval,omitempty"`
}

// AuthorizationServerMetadata represents OAuth 2.0 Authorization Server
// Metadata (RFC 8414) for the endpoints this library implements.
type AuthorizationServerMetadata struct {
	Issuer               string `json:"issuer"`
	TokenEndpoint        string `json:"token_endpoint"`
	RegistrationEndpoint string `json:"registration_endpoint,omitempty"`

	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported,omitempty"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported,omitempty"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported,omitempty"`
}
