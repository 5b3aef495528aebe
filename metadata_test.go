package oauth

import (
	"encoding/json"
	"testing"

	"github.com/authgrid/oauth/internal/testutil"
)

func TestApplyMetadataDefaults(t *testing.T) {
	meta := &ClientMetadata{RedirectURIs: []string{"https://app.example.com/callback"}}
	applyMetadataDefaults(meta)

	if len(meta.ResponseTypes) != 1 || meta.ResponseTypes[0] != ResponseTypeCode {
		t.Errorf("response_types = %v, want [code]", meta.ResponseTypes)
	}
	if len(meta.GrantTypes) != 1 || meta.GrantTypes[0] != GrantTypeAuthorizationCode {
		t.Errorf("grant_types = %v, want [authorization_code]", meta.GrantTypes)
	}
	if meta.ApplicationType != ApplicationTypeWeb {
		t.Errorf("application_type = %q, want web", meta.ApplicationType)
	}
	if meta.TokenEndpointAuthMethod != AuthMethodClientSecretBasic {
		t.Errorf("token_endpoint_auth_method = %q, want client_secret_basic", meta.TokenEndpointAuthMethod)
	}
	if meta.SubjectType != SubjectTypePublic {
		t.Errorf("subject_type = %q, want public", meta.SubjectType)
	}
}

func TestValidateClientMetadata(t *testing.T) {
	store := testutil.NewStore(t)
	srv := newTestServer(t, store, func(s *Settings) {
		s.AuthMethods = []string{
			AuthMethodNone,
			AuthMethodClientSecretBasic,
			AuthMethodClientSecretPost,
			AuthMethodClientSecretJWT,
			AuthMethodPrivateKeyJWT,
		}
	})

	tests := []struct {
		name     string
		meta     *ClientMetadata
		wantCode string
		wantDesc string
	}{
		{
			name:     "missing redirect uris",
			meta:     &ClientMetadata{},
			wantCode: ErrorCodeInvalidRedirectURI,
			wantDesc: `The "redirect_uris" parameter is required.`,
		},
		{
			name:     "relative redirect uri",
			meta:     &ClientMetadata{RedirectURIs: []string{"/callback"}},
			wantCode: ErrorCodeInvalidRedirectURI,
			wantDesc: `The Redirect URI "/callback" must be an absolute URI.`,
		},
		{
			name:     "redirect uri with fragment",
			meta:     &ClientMetadata{RedirectURIs: []string{"https://app.example.com/cb#frag"}},
			wantCode: ErrorCodeInvalidRedirectURI,
			wantDesc: `The Redirect URI "https://app.example.com/cb#frag" must not contain a fragment component.`,
		},
		{
			name: "unknown response type",
			meta: &ClientMetadata{
				RedirectURIs:  []string{"https://app.example.com/cb"},
				ResponseTypes: []string{"code fragment"},
			},
			wantCode: ErrorCodeInvalidClientMetadata,
			wantDesc: `The Response Type "code fragment" is not supported.`,
		},
		{
			name: "unknown grant type",
			meta: &ClientMetadata{
				RedirectURIs: []string{"https://app.example.com/cb"},
				GrantTypes:   []string{"saml2-bearer"},
			},
			wantCode: ErrorCodeInvalidClientMetadata,
			wantDesc: `The Grant Type "saml2-bearer" is not supported.`,
		},
		{
			name: "code response without authorization_code grant",
			meta: &ClientMetadata{
				RedirectURIs:  []string{"https://app.example.com/cb"},
				ResponseTypes: []string{ResponseTypeCode},
				GrantTypes:    []string{GrantTypeClientCredentials},
			},
			wantCode: ErrorCodeInvalidClientMetadata,
			wantDesc: `The Response Type "code" requires the Grant Type "authorization_code".`,
		},
		{
			name: "authorization_code grant without code response",
			meta: &ClientMetadata{
				RedirectURIs:  []string{"https://app.example.com/cb"},
				ResponseTypes: []string{ResponseTypeToken},
				GrantTypes:    []string{GrantTypeAuthorizationCode, GrantTypeImplicit},
			},
			wantCode: ErrorCodeInvalidClientMetadata,
			wantDesc: `The Grant Type "authorization_code" requires a Response Type that includes "code".`,
		},
		{
			name: "token response without implicit grant",
			meta: &ClientMetadata{
				RedirectURIs:  []string{"https://app.example.com/cb"},
				ResponseTypes: []string{ResponseTypeCodeToken},
				GrantTypes:    []string{GrantTypeAuthorizationCode},
			},
			wantCode: ErrorCodeInvalidClientMetadata,
			wantDesc: `The Response Type "code token" requires the Grant Type "implicit".`,
		},
		{
			name: "web client with http redirect",
			meta: &ClientMetadata{
				RedirectURIs: []string{"http://app.example.com/cb"},
			},
			wantCode: ErrorCodeInvalidRedirectURI,
			wantDesc: `The Redirect URI "http://app.example.com/cb" must use the scheme "https" when the Application Type is "web".`,
		},
		{
			name: "web client targeting localhost",
			meta: &ClientMetadata{
				RedirectURIs: []string{"https://localhost/cb"},
			},
			wantCode: ErrorCodeInvalidRedirectURI,
			wantDesc: `The Redirect URI "https://localhost/cb" must not target the host "localhost" when the Application Type is "web".`,
		},
		{
			name: "web client targeting loopback by address",
			meta: &ClientMetadata{
				RedirectURIs: []string{"https://127.0.0.53/cb"},
			},
			wantCode: ErrorCodeInvalidRedirectURI,
			wantDesc: `The Redirect URI "https://127.0.0.53/cb" must not target the host "localhost" when the Application Type is "web".`,
		},
		{
			name: "native client with remote https redirect",
			meta: &ClientMetadata{
				RedirectURIs:    []string{"https://app.example.com/cb"},
				ApplicationType: ApplicationTypeNative,
			},
			wantCode: ErrorCodeInvalidRedirectURI,
			wantDesc: `The Redirect URI "https://app.example.com/cb" must target the host "localhost" when the Application Type is "native" and the scheme is "https".`,
		},
		{
			name: "unsupported scope",
			meta: &ClientMetadata{
				RedirectURIs: []string{"https://app.example.com/cb"},
				Scope:        "openid payments",
			},
			wantCode: ErrorCodeInvalidClientMetadata,
			wantDesc: `The scope "payments" is not supported by this Authorization Server.`,
		},
		{
			name: "jwks and jwks_uri together",
			meta: &ClientMetadata{
				RedirectURIs: []string{"https://app.example.com/cb"},
				JWKS:         json.RawMessage(`{"keys":[]}`),
				JWKSURI:      "https://app.example.com/jwks.json",
			},
			wantCode: ErrorCodeInvalidClientMetadata,
			wantDesc: `The "jwks" and "jwks_uri" parameters are mutually exclusive.`,
		},
		{
			name: "pairwise without sector identifier",
			meta: &ClientMetadata{
				RedirectURIs: []string{"https://app.example.com/cb"},
				SubjectType:  SubjectTypePairwise,
			},
			wantCode: ErrorCodeInvalidClientMetadata,
			wantDesc: `The Subject Type "pairwise" requires a "sector_identifier_uri".`,
		},
		{
			name: "sector identifier over http",
			meta: &ClientMetadata{
				RedirectURIs:        []string{"https://app.example.com/cb"},
				SubjectType:         SubjectTypePairwise,
				SectorIdentifierURI: "http://app.example.com/sector.json",
			},
			wantCode: ErrorCodeInvalidClientMetadata,
			wantDesc: `The "sector_identifier_uri" must use the scheme "https".`,
		},
		{
			name: "client_secret_jwt without HMAC alg",
			meta: &ClientMetadata{
				RedirectURIs:                []string{"https://app.example.com/cb"},
				TokenEndpointAuthMethod:     AuthMethodClientSecretJWT,
				TokenEndpointAuthSigningAlg: "RS256",
			},
			wantCode: ErrorCodeInvalidClientMetadata,
			wantDesc: `The Token Endpoint Auth Method "client_secret_jwt" requires an HMAC signing algorithm.`,
		},
		{
			name: "private_key_jwt with HMAC alg",
			meta: &ClientMetadata{
				RedirectURIs:                []string{"https://app.example.com/cb"},
				TokenEndpointAuthMethod:     AuthMethodPrivateKeyJWT,
				TokenEndpointAuthSigningAlg: "HS256",
			},
			wantCode: ErrorCodeInvalidClientMetadata,
			wantDesc: `The Token Endpoint Auth Method "private_key_jwt" requires an asymmetric signing algorithm.`,
		},
		{
			name: "private_key_jwt without keys",
			meta: &ClientMetadata{
				RedirectURIs:                []string{"https://app.example.com/cb"},
				TokenEndpointAuthMethod:     AuthMethodPrivateKeyJWT,
				TokenEndpointAuthSigningAlg: "ES256",
			},
			wantCode: ErrorCodeInvalidClientMetadata,
			wantDesc: `The Token Endpoint Auth Method "private_key_jwt" requires a "jwks" or "jwks_uri".`,
		},
		{
			name: "client_secret_jwt with unknown alg",
			meta: &ClientMetadata{
				RedirectURIs:                []string{"https://app.example.com/cb"},
				TokenEndpointAuthMethod:     AuthMethodClientSecretJWT,
				TokenEndpointAuthSigningAlg: "HS999-BOGUS",
			},
			wantCode: ErrorCodeInvalidClientMetadata,
			wantDesc: `The Token Endpoint Auth Method "client_secret_jwt" requires an HMAC signing algorithm.`,
		},
		{
			name: "id_token alg none",
			meta: &ClientMetadata{
				RedirectURIs:             []string{"https://app.example.com/cb"},
				IDTokenSignedResponseAlg: "none",
			},
			wantCode: ErrorCodeInvalidClientMetadata,
			wantDesc: `The "id_token_signed_response_alg" value "none" is not supported.`,
		},
		{
			name: "unknown userinfo alg",
			meta: &ClientMetadata{
				RedirectURIs:              []string{"https://app.example.com/cb"},
				UserinfoSignedResponseAlg: "XS256",
			},
			wantCode: ErrorCodeInvalidClientMetadata,
			wantDesc: `The "userinfo_signed_response_alg" value "XS256" is not supported.`,
		},
		{
			name: "unknown request object alg",
			meta: &ClientMetadata{
				RedirectURIs:            []string{"https://app.example.com/cb"},
				RequestObjectSigningAlg: "none",
			},
			wantCode: ErrorCodeInvalidClientMetadata,
			wantDesc: `The "request_object_signing_alg" value "none" is not supported.`,
		},
		{
			name: "relative optional uri",
			meta: &ClientMetadata{
				RedirectURIs: []string{"https://app.example.com/cb"},
				PolicyURI:    "/policy",
			},
			wantCode: ErrorCodeInvalidClientMetadata,
			wantDesc: `The "policy_uri" must be an absolute URI.`,
		},
		{
			name: "negative default_max_age",
			meta: &ClientMetadata{
				RedirectURIs:  []string{"https://app.example.com/cb"},
				DefaultMaxAge: -1,
			},
			wantCode: ErrorCodeInvalidClientMetadata,
			wantDesc: `The "default_max_age" must be a positive integer.`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			applyMetadataDefaults(tt.meta)
			err := srv.validateClientMetadata(tt.meta)
			if err == nil {
				t.Fatal("validation passed, want error")
			}
			if err.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", err.Code, tt.wantCode)
			}
			if err.Description != tt.wantDesc {
				t.Errorf("description = %q, want %q", err.Description, tt.wantDesc)
			}
		})
	}
}

func TestValidateClientMetadata_Valid(t *testing.T) {
	store := testutil.NewStore(t)
	srv := newTestServer(t, store, nil)

	tests := []struct {
		name string
		meta *ClientMetadata
	}{
		{
			name: "web confidential client",
			meta: &ClientMetadata{
				RedirectURIs: []string{"https://app.example.com/cb"},
				Scope:        "openid profile",
			},
		},
		{
			name: "native loopback client",
			meta: &ClientMetadata{
				RedirectURIs:            []string{"http://127.0.0.1:49152/cb"},
				ApplicationType:         ApplicationTypeNative,
				TokenEndpointAuthMethod: AuthMethodNone,
			},
		},
		{
			name: "native custom scheme client",
			meta: &ClientMetadata{
				RedirectURIs:            []string{"com.example.app:/callback"},
				ApplicationType:         ApplicationTypeNative,
				TokenEndpointAuthMethod: AuthMethodNone,
			},
		},
		{
			name: "registration management scope",
			meta: &ClientMetadata{
				RedirectURIs: []string{"https://app.example.com/cb"},
				Scope:        ScopeClientManage,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			applyMetadataDefaults(tt.meta)
			if err := srv.validateClientMetadata(tt.meta); err != nil {
				t.Errorf("validation failed: %v", err)
			}
		})
	}
}

func TestValidateClientMetadata_SigningAlgAllowList(t *testing.T) {
	store := testutil.NewStore(t)
	srv := newTestServer(t, store, func(s *Settings) {
		s.SupportedSigningAlgs = []string{"ES256"}
	})

	meta := &ClientMetadata{
		RedirectURIs:             []string{"https://app.example.com/cb"},
		IDTokenSignedResponseAlg: "ES256",
	}
	applyMetadataDefaults(meta)
	if err := srv.validateClientMetadata(meta); err != nil {
		t.Fatalf("listed algorithm rejected: %v", err)
	}

	meta = &ClientMetadata{
		RedirectURIs:             []string{"https://app.example.com/cb"},
		IDTokenSignedResponseAlg: "RS256",
	}
	applyMetadataDefaults(meta)
	err := srv.validateClientMetadata(meta)
	if err == nil {
		t.Fatal("unlisted algorithm accepted")
	}
	if err.Description != `The "id_token_signed_response_alg" value "RS256" is not supported.` {
		t.Errorf("description = %q", err.Description)
	}
}
