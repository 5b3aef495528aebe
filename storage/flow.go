package storage

import "time"

// AuthorizationCode is a single-use code issued by the authorization
// endpoint and redeemed at the token endpoint.
type AuthorizationCode struct {
	// Code is the opaque code value
	Code string `json:"code"`

	ClientID string `json:"client_id"`
	UserID   string `json:"user_id"`

	// RedirectURI the code was issued for, echoed back on redemption
	RedirectURI string `json:"redirect_uri"`

	// Scopes the resource owner consented to
	Scopes []string `json:"scopes"`

	// PKCE binding recorded at issuance
	CodeChallenge       string `json:"code_challenge,omitempty"`
	CodeChallengeMethod string `json:"code_challenge_method,omitempty"`

	// SessionID and ConsentID link the code back to the authentication
	// session and consent decision it was minted under
	SessionID string `json:"session_id,omitempty"`
	ConsentID string `json:"consent_id,omitempty"`

	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	ValidAfter time.Time `json:"valid_after,omitempty"`

	Revoked bool `json:"revoked"`
}

// Expired reports whether the code has passed its expiry.
func (c *AuthorizationCode) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// DeviceCode is a pending device authorization (RFC 8628).
type DeviceCode struct {
	// DeviceCode is the long opaque handle the device polls with
	DeviceCode string `json:"device_code"`

	// UserCode is the short code the user types on a secondary device
	UserCode string `json:"user_code"`

	ClientID string `json:"client_id"`

	// UserID is set when the user approves the request
	UserID string `json:"user_id,omitempty"`

	Scopes []string `json:"scopes"`

	// VerificationURI shown to the user
	VerificationURI string `json:"verification_uri"`

	// Interval is the minimum polling interval in seconds
	Interval int64 `json:"interval"`

	// Approved and Denied record the user's decision
	Approved bool `json:"approved"`
	Denied   bool `json:"denied"`

	// Consumed marks the device code as already exchanged
	Consumed bool `json:"consumed"`

	// LastPolledAt is the previous poll time, used to enforce Interval
	LastPolledAt time.Time `json:"last_polled_at,omitempty"`

	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`

	Revoked bool `json:"revoked"`
}

// Expired reports whether the device code has passed its expiry.
func (d *DeviceCode) Expired(now time.Time) bool {
	return !d.ExpiresAt.IsZero() && now.After(d.ExpiresAt)
}

// Consent records a resource owner's scope grant to a client.
type Consent struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	ClientID string `json:"client_id"`

	// Scopes the user granted
	Scopes []string `json:"scopes"`

	CreatedAt time.Time `json:"created_at"`
}

// HasScope reports whether the consent covers the given scope.
func (c *Consent) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Session is an authenticated end-user session at the authorization server.
type Session struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`

	// AuthenticatedAt is when the user last actively authenticated
	AuthenticatedAt time.Time `json:"authenticated_at"`

	// ACR and AMR describe how authentication happened
	ACR string   `json:"acr,omitempty"`
	AMR []string `json:"amr,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the session has passed its expiry.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// User is a resource owner known to the authorization server.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`

	// PasswordHash is the bcrypt hash of the user's password
	PasswordHash string `json:"password_hash,omitempty"`

	Email string `json:"email,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
