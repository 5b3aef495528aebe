package security

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
)

// GenerateHandle returns a new high-entropy opaque handle suitable for
// access tokens, refresh tokens, authorization codes, and client secrets.
// The value is 43 base64url characters (256 bits of entropy).
func GenerateHandle() string {
	return oauth2.GenerateVerifier()
}

// ConstantTimeEquals compares two strings without leaking the position of
// the first mismatch. The length difference still short-circuits, which is
// acceptable for fixed-length handles.
func ConstantTimeEquals(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// HashSecret hashes a client secret or password with bcrypt.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}
	return string(hash), nil
}

// VerifySecretHash checks a presented secret against a bcrypt hash.
func VerifySecretHash(hash, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
