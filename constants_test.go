package oauth

import (
	"testing"
	"time"
)

func TestTimeDefaults(t *testing.T) {
	tests := []struct {
		name     string
		constant time.Duration
		expected time.Duration
	}{
		{"DefaultAccessTokenTTL", DefaultAccessTokenTTL, 1 * time.Hour},
		{"DefaultRefreshTokenTTL", DefaultRefreshTokenTTL, 30 * 24 * time.Hour},
		{"DefaultAuthorizationCodeTTL", DefaultAuthorizationCodeTTL, 1 * time.Minute},
		{"DefaultDeviceCodeTTL", DefaultDeviceCodeTTL, 15 * time.Minute},
		{"DefaultDevicePollInterval", DefaultDevicePollInterval, 5 * time.Second},
		{"DefaultAssertionMaxAge", DefaultAssertionMaxAge, 5 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.constant != tt.expected {
				t.Errorf("%s = %v, want %v", tt.name, tt.constant, tt.expected)
			}
		})
	}
}

func TestGrantTypeConstants(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{GrantTypeAuthorizationCode, "authorization_code"},
		{GrantTypeClientCredentials, "client_credentials"},
		{GrantTypePassword, "password"},
		{GrantTypeRefreshToken, "refresh_token"},
		{GrantTypeDeviceCode, "urn:ietf:params:oauth:grant-type:device_code"},
		{GrantTypeJWTBearer, "urn:ietf:params:oauth:grant-type:jwt-bearer"},
		{GrantTypeImplicit, "implicit"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("grant type constant = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestAuthMethodConstants(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{AuthMethodNone, "none"},
		{AuthMethodClientSecretBasic, "client_secret_basic"},
		{AuthMethodClientSecretPost, "client_secret_post"},
		{AuthMethodClientSecretJWT, "client_secret_jwt"},
		{AuthMethodPrivateKeyJWT, "private_key_jwt"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("auth method constant = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestAssertionTypeConstant(t *testing.T) {
	if ClientAssertionTypeJWTBearer != "urn:ietf:params:oauth:client-assertion-type:jwt-bearer" {
		t.Errorf("ClientAssertionTypeJWTBearer = %q", ClientAssertionTypeJWTBearer)
	}
}

func TestRegistrationScopeConstants(t *testing.T) {
	got := []string{ScopeClientManage, ScopeClientCreate, ScopeClientRead, ScopeClientUpdate, ScopeClientDelete}
	want := []string{"client:manage", "client:create", "client:read", "client:update", "client:delete"}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("registration scope = %q, want %q", got[i], want[i])
		}
	}
}
