package pkce

import (
	"testing"

	"golang.org/x/oauth2"
)

func TestS256Verify(t *testing.T) {
	tests := []struct {
		name      string
		verifier  string
		challenge string
		want      bool
	}{
		{
			name:      "known vector matches",
			verifier:  "abcxyz",
			challenge: "8xJ5XjIsh0YabzxJ4JiXxZyg1aNiRdKgDwjLxm7ul20",
			want:      true,
		},
		{
			name:      "wrong verifier rejected",
			verifier:  "abc123",
			challenge: "8xJ5XjIsh0YabzxJ4JiXxZyg1aNiRdKgDwjLxm7ul20",
			want:      false,
		},
		{
			name:      "empty verifier rejected",
			verifier:  "",
			challenge: "8xJ5XjIsh0YabzxJ4JiXxZyg1aNiRdKgDwjLxm7ul20",
			want:      false,
		},
		{
			name:      "challenge is not the verifier itself",
			verifier:  "8xJ5XjIsh0YabzxJ4JiXxZyg1aNiRdKgDwjLxm7ul20",
			challenge: "8xJ5XjIsh0YabzxJ4JiXxZyg1aNiRdKgDwjLxm7ul20",
			want:      false,
		},
	}

	var v S256
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := v.Verify(tt.verifier, tt.challenge); got != tt.want {
				t.Errorf("Verify(%q, %q) = %v, want %v", tt.verifier, tt.challenge, got, tt.want)
			}
		})
	}
}

func TestS256RoundTrip(t *testing.T) {
	var v S256
	verifier := oauth2.GenerateVerifier()
	challenge := v.Challenge(verifier)

	if !v.Verify(verifier, challenge) {
		t.Errorf("generated verifier did not verify against its own challenge")
	}
	if v.Verify(oauth2.GenerateVerifier(), challenge) {
		t.Errorf("unrelated verifier verified against challenge")
	}
}

func TestPlainVerify(t *testing.T) {
	var v Plain
	if !v.Verify("same-value", "same-value") {
		t.Errorf("identical verifier and challenge should verify")
	}
	if v.Verify("one-value", "another-val") {
		t.Errorf("different verifier and challenge should not verify")
	}
	if v.Verify("short", "much-longer-challenge-value") {
		t.Errorf("length mismatch should not verify")
	}
}

func TestRegistry(t *testing.T) {
	r, err := NewRegistry(S256{}, Plain{})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	if v, ok := r.Get(MethodS256); !ok || v.Method() != MethodS256 {
		t.Errorf("Get(S256) = %v, %v", v, ok)
	}
	if v, ok := r.Get(MethodPlain); !ok || v.Method() != MethodPlain {
		t.Errorf("Get(plain) = %v, %v", v, ok)
	}
	if _, ok := r.Get("S512"); ok {
		t.Errorf("Get(S512) should not resolve")
	}

	if len(r.Methods()) != 2 {
		t.Errorf("Methods() = %v, want 2 entries", r.Methods())
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	if _, err := NewRegistry(S256{}, S256{}); err == nil {
		t.Errorf("NewRegistry with duplicate methods should fail")
	}
}

func TestValidVerifierFormat(t *testing.T) {
	tests := []struct {
		name     string
		verifier string
		want     bool
	}{
		{"generated verifier", oauth2.GenerateVerifier(), true},
		{"too short", "abcxyz", false},
		{"minimum length", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", true},
		{"unreserved punctuation", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa-._~", true},
		{"illegal character", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa+", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidVerifierFormat(tt.verifier); got != tt.want {
				t.Errorf("ValidVerifierFormat(%q) = %v, want %v", tt.verifier, got, tt.want)
			}
		})
	}
}
