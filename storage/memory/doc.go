// Package memory provides an in-memory implementation of the OAuth
// storage services.
//
// The store implements every service interface, including the optional
// RefreshTokenRotator, AssertionReplayService, and TokenRevocationService
// capabilities, using maps behind a sync.RWMutex. Single-use artifacts
// (authorization codes, device codes, assertion jtis) are consumed under
// the write lock so concurrent redemptions have exactly one winner.
//
// Expired entries are collected by a background goroutine; call Close to
// stop it. For multi-instance deployments use storage/redis instead.
//
// Example usage:
//
//	store := memory.New()
//	defer store.Close()
//
//	server, err := oauth.NewServer(store.Services(), settings)
package memory
