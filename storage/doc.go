// Package storage provides interfaces and entities for authorization server persistence.
//
// The storage package defines the core service interfaces used throughout the library:
//   - ClientService: registered OAuth clients and their RFC 7591 metadata
//   - AccessTokenService / RefreshTokenService: opaque token records
//   - AuthorizationCodeService / DeviceCodeService: single-use grant artifacts
//   - ConsentService / SessionService / UserService: resource owner state
//
// Optional capabilities (RefreshTokenRotator, AssertionReplayService,
// TokenRevocationService) are discovered by type assertion. A backend that
// lacks a capability required by the configured grant set is rejected at
// server construction, not at request time.
//
// Implementations are provided in subpackages:
//   - storage/memory: in-memory storage for development and testing
//   - storage/redis: Redis-backed distributed storage for production
package storage
