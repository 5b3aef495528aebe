package storage

import "time"

// AccessToken is an issued opaque access token.
//
// ClientID is empty for initial registration tokens that are provisioned
// out of band and not yet bound to a client. Registration access tokens
// carry the ID of the client they administer.
type AccessToken struct {
	// Handle is the opaque token value presented by the client
	Handle string `json:"handle"`

	// ClientID is the client the token is bound to
	ClientID string `json:"client_id,omitempty"`

	// UserID is the resource owner, empty for client-only tokens
	UserID string `json:"user_id,omitempty"`

	// Scopes granted to this token
	Scopes []string `json:"scopes"`

	// Audiences the token is valid for
	Audiences []string `json:"audiences,omitempty"`

	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`

	// ValidAfter delays token usability, zero for immediately valid
	ValidAfter time.Time `json:"valid_after,omitempty"`

	// Revoked marks the token dead regardless of expiry
	Revoked bool `json:"revoked"`
}

// Expired reports whether the token has passed its expiry.
func (t *AccessToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

// Active reports whether the token is usable at the given instant.
// A token is active when it is not revoked, not expired, and its
// validity window has started.
func (t *AccessToken) Active(now time.Time) bool {
	if t.Revoked || t.Expired(now) {
		return false
	}
	return t.ValidAfter.IsZero() || !now.Before(t.ValidAfter)
}

// HasScope reports whether the token carries the given scope.
func (t *AccessToken) HasScope(scope string) bool {
	for _, s := range t.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// RefreshToken is an issued opaque refresh token.
type RefreshToken struct {
	Handle   string `json:"handle"`
	ClientID string `json:"client_id"`
	UserID   string `json:"user_id,omitempty"`

	Scopes    []string `json:"scopes"`
	Audiences []string `json:"audiences,omitempty"`

	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	ValidAfter time.Time `json:"valid_after,omitempty"`

	Revoked bool `json:"revoked"`

	// RotatedFrom links a rotated token to its predecessor so reuse of
	// the retired handle can be detected as theft
	RotatedFrom string `json:"rotated_from,omitempty"`
}

// Expired reports whether the refresh token has passed its expiry.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

// Active reports whether the refresh token is usable at the given instant.
func (t *RefreshToken) Active(now time.Time) bool {
	if t.Revoked || t.Expired(now) {
		return false
	}
	return t.ValidAfter.IsZero() || !now.Before(t.ValidAfter)
}
