// Package testutil provides shared fixtures for tests: stored clients
// and users, PKCE pairs, and signed client assertions.
package testutil
