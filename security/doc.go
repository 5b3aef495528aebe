// Package security provides security-related functionality for the
// authorization server, including secret generation and verification,
// rate limiting, encryption at rest, IP extraction, and audit logging.
//
// # Rate Limiting
//
// RateLimiter provides per-identifier rate limiting using a token bucket
// per identifier with automatic memory management through LRU eviction.
// RegistrationRateLimiter adds a sliding-window limit on dynamic client
// registrations per IP.
//
//	limiter := security.NewRateLimiter(10, 20, logger)
//	defer limiter.Stop()
//
//	if !limiter.Allow(clientIP) {
//	    // rate limit exceeded
//	}
//
// # Secrets
//
// GenerateHandle produces the opaque values used for tokens, codes, and
// client secrets. Stored client secrets and passwords are bcrypt hashed;
// handle comparison uses constant-time equality.
//
// # Audit Logging
//
// Auditor emits structured security events through slog with user
// identifiers hashed before logging.
package security
