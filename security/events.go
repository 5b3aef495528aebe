package security

// Event type constants for security audit logging.
// These constants ensure consistency across the codebase and prevent typos
// when logging security-relevant events.
const (
	// Token lifecycle events

	// EventTokenIssued is logged when a new access token is issued to a client
	EventTokenIssued = "token_issued"

	// EventTokenRefreshed is logged when an access token is refreshed using a refresh token
	EventTokenRefreshed = "token_refreshed"

	// EventTokenRevoked is logged when a token is revoked
	EventTokenRevoked = "token_revoked"

	// EventAllTokensRevoked is logged when all tokens for a user and client are revoked
	EventAllTokensRevoked = "all_tokens_revoked" //nolint:gosec // G101: event type name, not a credential

	// Grant processing events

	// EventCodeIssued is logged when an authorization code is issued
	EventCodeIssued = "authorization_code_issued"

	// EventCodeReuseDetected is logged when an authorization code is redeemed twice (attack)
	EventCodeReuseDetected = "authorization_code_reuse_detected"

	// EventRefreshTokenReuseDetected is logged when a rotated refresh token handle is replayed
	EventRefreshTokenReuseDetected = "refresh_token_reuse_detected"

	// EventDeviceCodeApproved is logged when a user approves a device authorization
	EventDeviceCodeApproved = "device_code_approved"

	// EventDeviceCodeDenied is logged when a user denies a device authorization
	EventDeviceCodeDenied = "device_code_denied"

	// Client registration events

	// EventClientRegistered is logged when a new OAuth client is registered
	EventClientRegistered = "client_registered"

	// EventClientUpdated is logged when client metadata is replaced
	EventClientUpdated = "client_updated"

	// EventClientDeleted is logged when a client registration is removed
	EventClientDeleted = "client_deleted"

	// EventClientRegistrationRejected is logged when registration metadata is rejected
	EventClientRegistrationRejected = "client_registration_rejected"

	// EventClientRegistrationRateLimitExceeded is logged when registration rate limit is hit
	EventClientRegistrationRateLimitExceeded = "client_registration_rate_limit_exceeded"

	// EventRegistrationTokenMisuse is logged when a registration access token is
	// presented against a client it does not administer
	EventRegistrationTokenMisuse = "registration_token_misuse" //nolint:gosec // G101: event type name, not a credential

	// Authentication and violation events

	// EventAuthFailure is logged when client or user authentication fails
	EventAuthFailure = "auth_failure"

	// EventAssertionReplay is logged when a client assertion jti is presented twice
	EventAssertionReplay = "assertion_replay"

	// EventRateLimitExceeded is logged when a rate limit is exceeded
	EventRateLimitExceeded = "rate_limit_exceeded"

	// EventPKCEValidationFailed is logged when PKCE code_verifier validation fails
	EventPKCEValidationFailed = "pkce_validation_failed"

	// EventInvalidRedirect is logged when a redirect URI fails validation
	EventInvalidRedirect = "invalid_redirect"

	// EventScopeEscalationAttempt is logged when a client requests scopes beyond its grant
	EventScopeEscalationAttempt = "scope_escalation_attempt"

	// EventSuspiciousActivity is logged for general suspicious behavior
	EventSuspiciousActivity = "suspicious_activity"
)
