// Package pkce implements Proof Key for Code Exchange (RFC 7636) challenge
// verification for the authorization code grant.
package pkce

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

// Method names registered per RFC 7636.
const (
	MethodS256  = "S256"
	MethodPlain = "plain"
)

// Verifier checks a code_verifier against the code_challenge recorded when
// the authorization code was issued.
type Verifier interface {
	// Method returns the code_challenge_method name this verifier handles
	Method() string

	// Verify reports whether the verifier matches the challenge.
	// Implementations compare in constant time.
	Verify(codeVerifier, codeChallenge string) bool
}

// S256 is the SHA-256 based challenge method. The challenge is the
// unpadded base64url encoding of the SHA-256 digest of the verifier.
type S256 struct{}

// Method implements Verifier.
func (S256) Method() string { return MethodS256 }

// Verify implements Verifier.
func (S256) Verify(codeVerifier, codeChallenge string) bool {
	sum := sha256.Sum256([]byte(codeVerifier))
	computed := base64.RawURLEncoding.EncodeToString(sum[:])
	return constantTimeEquals(computed, codeChallenge)
}

// Challenge derives the S256 challenge for a verifier. Exposed for clients
// and tests that need to build authorization requests.
func (S256) Challenge(codeVerifier string) string {
	sum := sha256.Sum256([]byte(codeVerifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// Plain is the downgrade method where the challenge is the verifier itself.
// OAuth 2.1 deprecates it; it is off by default and must be enabled
// explicitly in server settings.
type Plain struct{}

// Method implements Verifier.
func (Plain) Method() string { return MethodPlain }

// Verify implements Verifier.
func (Plain) Verify(codeVerifier, codeChallenge string) bool {
	return constantTimeEquals(codeVerifier, codeChallenge)
}

// Registry maps code_challenge_method names to verifiers. The zero value is
// unusable; build one with NewRegistry.
type Registry struct {
	verifiers map[string]Verifier
}

// NewRegistry builds a registry from the given verifiers.
// Duplicate method names are rejected.
func NewRegistry(verifiers ...Verifier) (*Registry, error) {
	r := &Registry{verifiers: make(map[string]Verifier, len(verifiers))}
	for _, v := range verifiers {
		if _, dup := r.verifiers[v.Method()]; dup {
			return nil, fmt.Errorf("pkce: duplicate method %q", v.Method())
		}
		r.verifiers[v.Method()] = v
	}
	return r, nil
}

// Get returns the verifier for a method name.
func (r *Registry) Get(method string) (Verifier, bool) {
	v, ok := r.verifiers[method]
	return v, ok
}

// Methods returns the registered method names.
func (r *Registry) Methods() []string {
	names := make([]string, 0, len(r.verifiers))
	for name := range r.verifiers {
		names = append(names, name)
	}
	return names
}

// ValidVerifierFormat reports whether s satisfies the RFC 7636 code_verifier
// grammar: 43 to 128 characters from the unreserved URI set.
func ValidVerifierFormat(s string) bool {
	if len(s) < 43 || len(s) > 128 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z':
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '.' || c == '_' || c == '~':
		default:
			return false
		}
	}
	return true
}

// constantTimeEquals compares two strings without leaking the position of
// the first mismatch. Length still leaks, which is acceptable for digests
// of fixed length.
func constantTimeEquals(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
