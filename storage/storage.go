// Package storage defines the persistence interfaces and entities for the
// authorization server: clients, tokens, authorization codes, device codes,
// consents, sessions, and users. Backends include in-memory and Redis.
package storage

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors returned by stores. Callers match with errors.Is and
// translate to protocol errors at the boundary.
var (
	// ErrNotFound is the generic absent-record error
	ErrNotFound = errors.New("storage: not found")

	// ErrClientNotFound is returned when a client ID is unknown
	ErrClientNotFound = errors.New("storage: client not found")

	// ErrTokenNotFound is returned when a token handle is unknown
	ErrTokenNotFound = errors.New("storage: token not found")

	// ErrUserNotFound is returned when a user is unknown
	ErrUserNotFound = errors.New("storage: user not found")

	// ErrCodeConsumed is returned when an authorization or device code
	// has already been exchanged
	ErrCodeConsumed = errors.New("storage: code already consumed")

	// ErrInvalidCredentials is returned when password verification fails
	ErrInvalidCredentials = errors.New("storage: invalid credentials")

	// ErrReplayed is returned when an assertion ID has been seen before
	ErrReplayed = errors.New("storage: assertion replayed")

	// ErrConflict is returned when creating a record whose key exists
	ErrConflict = errors.New("storage: already exists")
)

// ClientService persists registered clients.
// All methods accept context.Context for tracing and cancellation.
type ClientService interface {
	// CreateClient stores a new client. Returns ErrConflict on duplicate ID.
	CreateClient(ctx context.Context, client *Client) error

	// GetClient retrieves a client by ID. Returns ErrClientNotFound.
	GetClient(ctx context.Context, clientID string) (*Client, error)

	// UpdateClient replaces a stored client's metadata
	UpdateClient(ctx context.Context, client *Client) error

	// DeleteClient removes a client registration
	DeleteClient(ctx context.Context, clientID string) error
}

// AccessTokenService persists access tokens keyed by their opaque handle.
type AccessTokenService interface {
	// SaveAccessToken stores an issued access token
	SaveAccessToken(ctx context.Context, token *AccessToken) error

	// GetAccessToken retrieves a token by handle. Returns ErrTokenNotFound.
	GetAccessToken(ctx context.Context, handle string) (*AccessToken, error)

	// RevokeAccessToken marks a token revoked. Revocation is permanent:
	// a revoked token never becomes active again.
	RevokeAccessToken(ctx context.Context, handle string) error
}

// RefreshTokenService persists refresh tokens keyed by their opaque handle.
type RefreshTokenService interface {
	// SaveRefreshToken stores an issued refresh token
	SaveRefreshToken(ctx context.Context, token *RefreshToken) error

	// GetRefreshToken retrieves a token by handle. Returns ErrTokenNotFound.
	GetRefreshToken(ctx context.Context, handle string) (*RefreshToken, error)

	// RevokeRefreshToken marks a token revoked
	RevokeRefreshToken(ctx context.Context, handle string) error
}

// RefreshTokenRotator is an optional capability for stores that can retire
// a refresh token and store its successor in one step.
// SECURITY: the swap MUST be atomic so two concurrent redemptions of the
// same handle cannot both succeed.
type RefreshTokenRotator interface {
	// RotateRefreshToken atomically revokes the token with the given
	// handle and stores its successor. Returns ErrTokenNotFound if the
	// handle is unknown and ErrCodeConsumed if it was already rotated.
	RotateRefreshToken(ctx context.Context, handle string, successor *RefreshToken) error
}

// AuthorizationCodeService persists authorization codes.
type AuthorizationCodeService interface {
	// SaveAuthorizationCode stores an issued code
	SaveAuthorizationCode(ctx context.Context, code *AuthorizationCode) error

	// GetAuthorizationCode retrieves a code. Returns ErrNotFound.
	GetAuthorizationCode(ctx context.Context, code string) (*AuthorizationCode, error)

	// ConsumeAuthorizationCode atomically checks that the code is unused
	// and marks it consumed, returning the stored record.
	// Returns ErrCodeConsumed when the code was already redeemed.
	// SECURITY: MUST be atomic so concurrent redemptions cannot both succeed.
	ConsumeAuthorizationCode(ctx context.Context, code string) (*AuthorizationCode, error)

	// RevokeAuthorizationCode invalidates a code before redemption
	RevokeAuthorizationCode(ctx context.Context, code string) error
}

// DeviceCodeService persists device authorization requests.
type DeviceCodeService interface {
	// SaveDeviceCode stores a pending device authorization
	SaveDeviceCode(ctx context.Context, code *DeviceCode) error

	// GetDeviceCode retrieves a record by device code. Returns ErrNotFound.
	GetDeviceCode(ctx context.Context, deviceCode string) (*DeviceCode, error)

	// GetDeviceCodeByUserCode retrieves a record by user code
	GetDeviceCodeByUserCode(ctx context.Context, userCode string) (*DeviceCode, error)

	// UpdateDeviceCode replaces a stored record, used for approval,
	// denial, and poll bookkeeping
	UpdateDeviceCode(ctx context.Context, code *DeviceCode) error

	// ConsumeDeviceCode atomically marks an approved device code as
	// exchanged, returning the stored record.
	// Returns ErrCodeConsumed when the code was already redeemed.
	// SECURITY: MUST be atomic so concurrent polls cannot both succeed.
	ConsumeDeviceCode(ctx context.Context, deviceCode string) (*DeviceCode, error)
}

// ConsentService persists resource owner consent decisions.
type ConsentService interface {
	// SaveConsent stores a consent decision
	SaveConsent(ctx context.Context, consent *Consent) error

	// GetConsent retrieves a consent by ID. Returns ErrNotFound.
	GetConsent(ctx context.Context, id string) (*Consent, error)

	// FindConsent retrieves the consent for a user and client pair
	FindConsent(ctx context.Context, userID, clientID string) (*Consent, error)

	// DeleteConsent removes a consent decision
	DeleteConsent(ctx context.Context, id string) error
}

// SessionService persists end-user authentication sessions.
type SessionService interface {
	// SaveSession stores a session
	SaveSession(ctx context.Context, session *Session) error

	// GetSession retrieves a session by ID. Returns ErrNotFound.
	GetSession(ctx context.Context, id string) (*Session, error)

	// DeleteSession removes a session
	DeleteSession(ctx context.Context, id string) error
}

// UserService looks up and authenticates resource owners.
type UserService interface {
	// GetUser retrieves a user by ID. Returns ErrUserNotFound.
	GetUser(ctx context.Context, id string) (*User, error)

	// GetUserByUsername retrieves a user by login name
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// Authenticate verifies a username and password pair.
	// Returns ErrInvalidCredentials on mismatch and for unknown users,
	// so callers cannot distinguish the two.
	Authenticate(ctx context.Context, username, password string) (*User, error)
}

// AssertionReplayService is an optional capability that tracks JWT IDs so a
// client authentication assertion cannot be presented twice.
type AssertionReplayService interface {
	// MarkAssertion records a jti until expiresAt.
	// Returns ErrReplayed when the jti was already recorded.
	// SECURITY: MUST be atomic so concurrent presentations cannot both pass.
	MarkAssertion(ctx context.Context, jti string, expiresAt time.Time) error
}

// TokenRevocationService is an optional capability for bulk revocation of
// every token a user granted to one client. Used when token theft is
// detected, for example registration token misuse or refresh token replay.
type TokenRevocationService interface {
	// RevokeAllForUserClient revokes all access and refresh tokens for
	// the user and client pair, returning the number revoked.
	RevokeAllForUserClient(ctx context.Context, userID, clientID string) (int, error)
}

// Services bundles the stores the server operates on. Optional capability
// interfaces (RefreshTokenRotator, AssertionReplayService,
// TokenRevocationService) are discovered by type assertion against the
// corresponding field at construction time.
type Services struct {
	Clients            ClientService
	AccessTokens       AccessTokenService
	RefreshTokens      RefreshTokenService
	AuthorizationCodes AuthorizationCodeService
	DeviceCodes        DeviceCodeService
	Consents           ConsentService
	Sessions           SessionService
	Users              UserService
	Assertions         AssertionReplayService
}
