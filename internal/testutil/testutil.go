package testutil

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/authgrid/oauth/pkce"
	"github.com/authgrid/oauth/storage"
	"github.com/authgrid/oauth/storage/memory"
)

// RandomString returns a URL-safe random string of n bytes of entropy.
func RandomString(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// PKCEPair is a code_verifier and its S256 code_challenge.
type PKCEPair struct {
	Verifier  string
	Challenge string
}

// NewPKCEPair generates a valid verifier and its S256 challenge.
func NewPKCEPair() PKCEPair {
	verifier := RandomString(32)
	return PKCEPair{
		Verifier:  verifier,
		Challenge: pkce.S256{}.Challenge(verifier),
	}
}

// NewStore builds an in-memory store and registers its cleanup.
func NewStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.New()
	t.Cleanup(store.Close)
	return store
}

// ConfidentialClient stores a client_secret_basic client. The returned
// secret is the plaintext the client authenticates with.
func ConfidentialClient(t *testing.T, store *memory.Store, id string, grantTypes []string) (*storage.Client, string) {
	t.Helper()

	secret := RandomString(32)
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash client secret: %v", err)
	}

	client := &storage.Client{
		ID:              id,
		SecretHash:      string(hash),
		RedirectURIs:    []string{"https://app.example.com/callback"},
		GrantTypes:      grantTypes,
		ApplicationType: "web",
		AuthMethod:      "client_secret_basic",
		Scopes:          []string{"openid", "profile", "email"},
		CreatedAt:       time.Now(),
	}
	if err := store.CreateClient(context.Background(), client); err != nil {
		t.Fatalf("failed to store client: %v", err)
	}
	return client, secret
}

// PublicClient stores a PKCE-only public client.
func PublicClient(t *testing.T, store *memory.Store, id string, grantTypes []string) *storage.Client {
	t.Helper()

	client := &storage.Client{
		ID:              id,
		RedirectURIs:    []string{"http://127.0.0.1:8765/callback"},
		GrantTypes:      grantTypes,
		ApplicationType: "native",
		AuthMethod:      "none",
		Scopes:          []string{"openid", "profile"},
		CreatedAt:       time.Now(),
	}
	if err := store.CreateClient(context.Background(), client); err != nil {
		t.Fatalf("failed to store client: %v", err)
	}
	return client
}

// HMACClient stores a client_secret_jwt client. The plaintext secret
// stays on the record so the server can verify the HMAC.
func HMACClient(t *testing.T, store *memory.Store, id string, grantTypes []string) (*storage.Client, string) {
	t.Helper()

	secret := RandomString(32)
	client := &storage.Client{
		ID:         id,
		Secret:     secret,
		GrantTypes: grantTypes,
		AuthMethod: "client_secret_jwt",
		Scopes:     []string{"openid", "profile"},
		CreatedAt:  time.Now(),
	}
	if err := store.CreateClient(context.Background(), client); err != nil {
		t.Fatalf("failed to store client: %v", err)
	}
	return client, secret
}

// User stores a resource owner with a bcrypt password hash.
func User(t *testing.T, store *memory.Store, id, username, password string) *storage.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	user := &storage.User{
		ID:           id,
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	if err := store.SaveUser(context.Background(), user); err != nil {
		t.Fatalf("failed to store user: %v", err)
	}
	return user
}

// AssertionSpec describes the client assertion to mint. Zero fields take
// defaults that produce a currently valid assertion.
type AssertionSpec struct {
	Issuer   string
	Subject  string
	Audience string
	JTI      string
	IssuedAt time.Time
	Expires  time.Time
}

// SignHMACAssertion mints an HS256 client assertion.
func SignHMACAssertion(t *testing.T, secret string, spec AssertionSpec) string {
	t.Helper()

	now := time.Now()
	if spec.IssuedAt.IsZero() {
		spec.IssuedAt = now
	}
	if spec.Expires.IsZero() {
		spec.Expires = now.Add(2 * time.Minute)
	}
	if spec.JTI == "" {
		spec.JTI = RandomString(16)
	}

	claims := jwt.RegisteredClaims{
		Issuer:    spec.Issuer,
		Subject:   spec.Subject,
		Audience:  jwt.ClaimStrings{spec.Audience},
		IssuedAt:  jwt.NewNumericDate(spec.IssuedAt),
		ExpiresAt: jwt.NewNumericDate(spec.Expires),
		ID:        spec.JTI,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign assertion: %v", err)
	}
	return signed
}

// AuthorizationCode stores a redeemable code bound to the client. A zero
// pair stores a code without a PKCE binding.
func AuthorizationCode(t *testing.T, store *memory.Store, client *storage.Client, userID string, pair PKCEPair) *storage.AuthorizationCode {
	t.Helper()

	code := &storage.AuthorizationCode{
		Code:        RandomString(24),
		ClientID:    client.ID,
		UserID:      userID,
		RedirectURI: client.RedirectURIs[0],
		Scopes:      []string{"openid", "profile"},
		IssuedAt:    time.Now(),
		ExpiresAt:   time.Now().Add(time.Minute),
	}
	if pair.Challenge != "" {
		code.CodeChallenge = pair.Challenge
		code.CodeChallengeMethod = "S256"
	}
	if err := store.SaveAuthorizationCode(context.Background(), code); err != nil {
		t.Fatalf("failed to store authorization code: %v", err)
	}
	return code
}
