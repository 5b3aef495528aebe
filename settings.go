package oauth

import (
	"log/slog"
	"time"
)

// Default lifetimes applied by applySecureDefaults.
const (
	DefaultAccessTokenTTL       = 1 * time.Hour
	DefaultRefreshTokenTTL      = 30 * 24 * time.Hour
	DefaultAuthorizationCodeTTL = 1 * time.Minute
	DefaultDeviceCodeTTL        = 15 * time.Minute
	DefaultDevicePollInterval   = 5 * time.Second
	DefaultAssertionMaxAge      = 5 * time.Minute
)

// Settings holds the authorization server configuration.
// The zero value is not usable directly; NewServer applies secure defaults
// and rejects contradictory combinations.
type Settings struct {
	// Issuer is the base URL of this authorization server, used for
	// registration_client_uri values and assertion audience checks
	Issuer string

	// SupportedScopes are the resource scopes clients may register and
	// request. Registration management scopes are always understood.
	SupportedScopes []string

	// GrantTypes enables grant processors. Empty means the default set:
	// authorization_code, client_credentials, refresh_token.
	GrantTypes []string

	// AuthMethods enables client authentication methods. Empty means
	// none, client_secret_basic, and client_secret_post.
	AuthMethods []string

	// PKCEMethods enables code_challenge methods. Empty means S256 only.
	// "plain" must be listed explicitly to be accepted.
	PKCEMethods []string

	// SupportedSigningAlgs bounds the signing algorithms clients may
	// register for ID tokens, userinfo responses, and request objects.
	// Empty means every HMAC and asymmetric JWS algorithm; "none" is
	// never accepted.
	SupportedSigningAlgs []string

	// Lifetimes. Zero values take the package defaults; RefreshTokenTTL
	// of zero means refresh tokens never expire (warned about).
	AccessTokenTTL       time.Duration
	RefreshTokenTTL      time.Duration
	AuthorizationCodeTTL time.Duration
	DeviceCodeTTL        time.Duration

	// ClientSecretTTL bounds issued client secrets. Zero means secrets
	// never expire.
	ClientSecretTTL time.Duration

	// AssertionMaxAge bounds how far in the future a client assertion's
	// exp claim may lie
	AssertionMaxAge time.Duration

	// DeviceVerificationURI is shown to device flow users
	DeviceVerificationURI string

	// DevicePollInterval is the minimum interval between device polls
	DevicePollInterval time.Duration

	// RateLimit holds rate limiting configuration
	RateLimit RateLimitSettings

	// Security holds settings that weaken protections when changed
	Security SecuritySettings

	// Logger for structured logging. Defaults to slog.Default().
	Logger *slog.Logger
}

// RateLimitSettings holds rate limiting configuration.
type RateLimitSettings struct {
	// Rate is requests per second allowed per IP. Zero disables limiting.
	Rate int

	// Burst is the maximum burst size allowed per IP.
	Burst int

	// RegistrationsPerWindow limits client registrations per IP per
	// RegistrationWindow. Zero applies the package default.
	RegistrationsPerWindow int

	// RegistrationWindow is the sliding window for registration limits.
	RegistrationWindow time.Duration

	// TrustProxy enables trusting X-Forwarded-For and X-Real-IP headers.
	// Only enable behind a trusted reverse proxy.
	TrustProxy bool

	// TrustedProxyCount is how many proxies to trust from the right of
	// X-Forwarded-For when TrustProxy is set
	TrustedProxyCount int
}

// SecuritySettings holds security settings (secure by default).
type SecuritySettings struct {
	// DisableRefreshTokenRotation disables refresh token rotation.
	// WARNING: violates OAuth 2.1. Stolen refresh tokens stay valid.
	DisableRefreshTokenRotation bool

	// AllowPublicClientsWithoutPKCE lets public clients redeem
	// authorization codes issued without a PKCE challenge.
	// WARNING: exposes public clients to code interception.
	AllowPublicClientsWithoutPKCE bool

	// AllowOpenRegistration permits registration create requests without
	// an initial access token.
	// WARNING: can enable DoS via mass registration.
	AllowOpenRegistration bool

	// EncryptionKey is the AES-256 key (32 bytes) for encrypting stored
	// client secrets in distributed backends. Nil disables encryption.
	EncryptionKey []byte

	// EnableAuditLogging enables security audit logging.
	// Logs auth events, token operations, and violations (PII hashed).
	EnableAuditLogging bool
}

// applySecureDefaults fills unset fields with safe values.
func (s *Settings) applySecureDefaults() {
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	if len(s.GrantTypes) == 0 {
		s.GrantTypes = []string{
			GrantTypeAuthorizationCode,
			GrantTypeClientCredentials,
			GrantTypeRefreshToken,
		}
	}
	if len(s.AuthMethods) == 0 {
		s.AuthMethods = []string{
			AuthMethodNone,
			AuthMethodClientSecretBasic,
			AuthMethodClientSecretPost,
		}
	}
	if len(s.PKCEMethods) == 0 {
		s.PKCEMethods = []string{"S256"}
	}
	if len(s.SupportedSigningAlgs) == 0 {
		s.SupportedSigningAlgs = append(append([]string{}, asymmetricAlgorithms...), hmacAlgorithms...)
	}
	if s.AccessTokenTTL <= 0 {
		s.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if s.AuthorizationCodeTTL <= 0 {
		s.AuthorizationCodeTTL = DefaultAuthorizationCodeTTL
	}
	if s.DeviceCodeTTL <= 0 {
		s.DeviceCodeTTL = DefaultDeviceCodeTTL
	}
	if s.DevicePollInterval <= 0 {
		s.DevicePollInterval = DefaultDevicePollInterval
	}
	if s.AssertionMaxAge <= 0 {
		s.AssertionMaxAge = DefaultAssertionMaxAge
	}
}

// logSecurityWarnings reports configurations that weaken protections.
// The server still starts; operators opted in explicitly.
func (s *Settings) logSecurityWarnings() {
	if s.Security.DisableRefreshTokenRotation {
		s.Logger.Warn("SECURITY: Refresh token rotation is DISABLED",
			"risk", "stolen refresh tokens remain valid until expiry",
			"recommendation", "enable rotation for OAuth 2.1 compliance")
	}
	if s.Security.AllowPublicClientsWithoutPKCE {
		s.Logger.Warn("SECURITY: Public clients may exchange codes WITHOUT PKCE",
			"risk", "authorization code interception",
			"recommendation", "require PKCE for all public clients")
	}
	if s.Security.AllowOpenRegistration {
		s.Logger.Warn("SECURITY: Open client registration is ENABLED",
			"risk", "mass registration can exhaust storage",
			"recommendation", "require initial access tokens for registration")
	}
	if s.RefreshTokenTTL == 0 && s.grantEnabled(GrantTypeRefreshToken) {
		s.Logger.Warn("SECURITY: Refresh tokens never expire",
			"risk", "long-lived credentials increase theft impact",
			"recommendation", "set RefreshTokenTTL to 30-90 days")
	}
	for _, m := range s.PKCEMethods {
		if m == "plain" {
			s.Logger.Warn("SECURITY: plain PKCE method is ENABLED",
				"risk", "challenge offers no protection if the authorization request leaks",
				"recommendation", "use S256 only")
		}
	}
}

// grantEnabled reports whether a grant type is in the configured set.
func (s *Settings) grantEnabled(grantType string) bool {
	for _, gt := range s.GrantTypes {
		if gt == grantType {
			return true
		}
	}
	return false
}

// authMethodEnabled reports whether a client auth method is configured.
func (s *Settings) authMethodEnabled(method string) bool {
	for _, m := range s.AuthMethods {
		if m == method {
			return true
		}
	}
	return false
}

// signingAlgSupported reports whether a JWS algorithm may be registered.
// "none" is rejected unconditionally.
func (s *Settings) signingAlgSupported(alg string) bool {
	if alg == "none" {
		return false
	}
	for _, a := range s.SupportedSigningAlgs {
		if a == alg {
			return true
		}
	}
	return false
}

// scopeSupported reports whether a scope may be registered or requested.
// Registration management scopes are always understood.
func (s *Settings) scopeSupported(scope string) bool {
	switch scope {
	case ScopeClientManage, ScopeClientCreate, ScopeClientRead, ScopeClientUpdate, ScopeClientDelete:
		return true
	}
	for _, sc := range s.SupportedScopes {
		if sc == scope {
			return true
		}
	}
	return false
}
