package security

import "testing"

func TestGenerateHandle(t *testing.T) {
	h1 := GenerateHandle()
	h2 := GenerateHandle()

	if h1 == "" || h2 == "" {
		t.Fatal("GenerateHandle() returned empty handle")
	}
	if h1 == h2 {
		t.Error("GenerateHandle() returned duplicate handles")
	}
	if len(h1) < 43 {
		t.Errorf("handle length = %d, want at least 43", len(h1))
	}
}

func TestConstantTimeEquals(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"equal", "handle-value", "handle-value", true},
		{"different", "handle-value", "other-value!", false},
		{"length mismatch", "short", "longer-value", false},
		{"both empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ConstantTimeEquals(tt.a, tt.b); got != tt.want {
				t.Errorf("ConstantTimeEquals(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestHashAndVerifySecret(t *testing.T) {
	hash, err := HashSecret("correct-secret")
	if err != nil {
		t.Fatalf("HashSecret() error = %v", err)
	}
	if hash == "correct-secret" {
		t.Fatal("HashSecret() returned the plaintext")
	}

	if !VerifySecretHash(hash, "correct-secret") {
		t.Error("VerifySecretHash() rejected the correct secret")
	}
	if VerifySecretHash(hash, "wrong-secret") {
		t.Error("VerifySecretHash() accepted a wrong secret")
	}
	if VerifySecretHash("not-a-bcrypt-hash", "correct-secret") {
		t.Error("VerifySecretHash() accepted a malformed hash")
	}
}
