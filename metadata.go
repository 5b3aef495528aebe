package oauth

import (
	"net/url"
	"strings"

	"github.com/authgrid/oauth/internal/helpers"
)

// knownResponseTypes and knownGrantTypes are the registration-time
// vocabularies. Anything outside them is rejected before cross-field
// validation runs.
var knownResponseTypes = map[string]bool{
	ResponseTypeCode:             true,
	ResponseTypeToken:            true,
	ResponseTypeIDToken:          true,
	ResponseTypeIDTokenToken:     true,
	ResponseTypeCodeIDToken:      true,
	ResponseTypeCodeToken:        true,
	ResponseTypeCodeIDTokenToken: true,
}

var knownGrantTypes = map[string]bool{
	GrantTypeAuthorizationCode: true,
	GrantTypeImplicit:          true,
	GrantTypeClientCredentials: true,
	GrantTypePassword:          true,
	GrantTypeRefreshToken:      true,
	GrantTypeDeviceCode:        true,
	GrantTypeJWTBearer:         true,
}

// applyMetadataDefaults fills the RFC 7591 defaults before validation.
func applyMetadataDefaults(meta *ClientMetadata) {
	if len(meta.ResponseTypes) == 0 {
		meta.ResponseTypes = []string{ResponseTypeCode}
	}
	if len(meta.GrantTypes) == 0 {
		meta.GrantTypes = []string{GrantTypeAuthorizationCode}
	}
	if meta.ApplicationType == "" {
		meta.ApplicationType = ApplicationTypeWeb
	}
	if meta.TokenEndpointAuthMethod == "" {
		meta.TokenEndpointAuthMethod = AuthMethodClientSecretBasic
	}
	if meta.SubjectType == "" {
		meta.SubjectType = SubjectTypePublic
	}
}

// validateClientMetadata checks registration metadata in a fixed order
// so every invalid request fails with one deterministic first error.
// Structural errors come first, then cross-field rules, then policy.
func (s *Server) validateClientMetadata(meta *ClientMetadata) *OAuthError {
	if err := s.validateRedirectURIs(meta); err != nil {
		return err
	}
	if err := s.validateTypeVocabulary(meta); err != nil {
		return err
	}
	if err := s.validateTypeConsistency(meta); err != nil {
		return err
	}
	if err := s.validateRedirectURIPolicy(meta); err != nil {
		return err
	}
	if err := s.validateScopes(meta); err != nil {
		return err
	}
	if err := s.validateOptionalURIs(meta); err != nil {
		return err
	}
	if err := s.validateKeys(meta); err != nil {
		return err
	}
	if err := s.validateSubjectType(meta); err != nil {
		return err
	}
	if err := s.validateAuthMethod(meta); err != nil {
		return err
	}
	if err := s.validateSigningAlgs(meta); err != nil {
		return err
	}
	if meta.DefaultMaxAge < 0 {
		return ErrInvalidClientMetadata(`The "default_max_age" must be a positive integer.`)
	}
	return nil
}

func (s *Server) validateRedirectURIs(meta *ClientMetadata) *OAuthError {
	if len(meta.RedirectURIs) == 0 {
		return ErrInvalidRedirectURI(`The "redirect_uris" parameter is required.`)
	}
	for _, raw := range append(append([]string{}, meta.RedirectURIs...), meta.PostLogoutRedirectURIs...) {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" {
			return ErrInvalidRedirectURI(`The Redirect URI "` + raw + `" must be an absolute URI.`)
		}
		if u.Fragment != "" {
			return ErrInvalidRedirectURI(`The Redirect URI "` + raw + `" must not contain a fragment component.`)
		}
	}
	return nil
}

func (s *Server) validateTypeVocabulary(meta *ClientMetadata) *OAuthError {
	for _, rt := range meta.ResponseTypes {
		if !knownResponseTypes[rt] {
			return ErrInvalidClientMetadata(`The Response Type "` + rt + `" is not supported.`)
		}
	}
	for _, gt := range meta.GrantTypes {
		if !knownGrantTypes[gt] {
			return ErrInvalidClientMetadata(`The Grant Type "` + gt + `" is not supported.`)
		}
	}
	if meta.ApplicationType != ApplicationTypeWeb && meta.ApplicationType != ApplicationTypeNative {
		return ErrInvalidClientMetadata(`The Application Type must be "web" or "native".`)
	}
	return nil
}

// validateTypeConsistency enforces the RFC 7591 response_types and
// grant_types cross rules in both directions.
func (s *Server) validateTypeConsistency(meta *ClientMetadata) *OAuthError {
	hasGrant := func(gt string) bool {
		for _, g := range meta.GrantTypes {
			if g == gt {
				return true
			}
		}
		return false
	}

	var anyCode, anyImplicit bool
	for _, rt := range meta.ResponseTypes {
		needsCode, needsImplicit := responseTypeRequirements(rt)
		if needsCode {
			anyCode = true
			if !hasGrant(GrantTypeAuthorizationCode) {
				return ErrInvalidClientMetadata(`The Response Type "` + rt + `" requires the Grant Type "authorization_code".`)
			}
		}
		if needsImplicit {
			anyImplicit = true
			if !hasGrant(GrantTypeImplicit) {
				return ErrInvalidClientMetadata(`The Response Type "` + rt + `" requires the Grant Type "implicit".`)
			}
		}
	}

	if hasGrant(GrantTypeAuthorizationCode) && !anyCode {
		return ErrInvalidClientMetadata(`The Grant Type "authorization_code" requires a Response Type that includes "code".`)
	}
	if hasGrant(GrantTypeImplicit) && !anyImplicit {
		return ErrInvalidClientMetadata(`The Grant Type "implicit" requires a Response Type that includes "token" or "id_token".`)
	}
	return nil
}

// responseTypeRequirements maps a response type to the grant types it
// depends on. Hybrid types require both.
func responseTypeRequirements(rt string) (code, implicit bool) {
	for _, part := range strings.Fields(rt) {
		switch part {
		case "code":
			code = true
		case "token", "id_token":
			implicit = true
		}
	}
	return code, implicit
}

// validateRedirectURIPolicy applies the application_type rules: web
// clients must use https on a non-local host, native clients may only
// use http(s) against the loopback.
func (s *Server) validateRedirectURIPolicy(meta *ClientMetadata) *OAuthError {
	for _, raw := range meta.RedirectURIs {
		u, err := url.Parse(raw)
		if err != nil {
			return ErrInvalidRedirectURI(`The Redirect URI "` + raw + `" must be an absolute URI.`)
		}
		switch meta.ApplicationType {
		case ApplicationTypeWeb:
			if u.Scheme != "https" {
				return ErrInvalidRedirectURI(`The Redirect URI "` + raw + `" must use the scheme "https" when the Application Type is "web".`)
			}
			if helpers.IsLoopbackHostname(u.Hostname()) {
				return ErrInvalidRedirectURI(`The Redirect URI "` + raw + `" must not target the host "localhost" when the Application Type is "web".`)
			}
		case ApplicationTypeNative:
			if (u.Scheme == "http" || u.Scheme == "https") && !helpers.IsLoopbackHostname(u.Hostname()) {
				return ErrInvalidRedirectURI(`The Redirect URI "` + raw + `" must target the host "localhost" when the Application Type is "native" and the scheme is "` + u.Scheme + `".`)
			}
		}
	}
	return nil
}

func (s *Server) validateScopes(meta *ClientMetadata) *OAuthError {
	for _, scope := range parseScope(meta.Scope) {
		if !s.settings.scopeSupported(scope) {
			return ErrInvalidClientMetadata(`The scope "` + scope + `" is not supported by this Authorization Server.`)
		}
	}
	return nil
}

func (s *Server) validateOptionalURIs(meta *ClientMetadata) *OAuthError {
	optional := []struct {
		field string
		value string
	}{
		{"client_uri", meta.ClientURI},
		{"logo_uri", meta.LogoURI},
		{"policy_uri", meta.PolicyURI},
		{"tos_uri", meta.TOSURI},
		{"jwks_uri", meta.JWKSURI},
		{"sector_identifier_uri", meta.SectorIdentifierURI},
		{"initiate_login_uri", meta.InitiateLoginURI},
	}
	for _, f := range optional {
		if f.value == "" {
			continue
		}
		u, err := url.Parse(f.value)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return ErrInvalidClientMetadata(`The "` + f.field + `" must be an absolute URI.`)
		}
	}
	return nil
}

func (s *Server) validateKeys(meta *ClientMetadata) *OAuthError {
	if len(meta.JWKS) > 0 && meta.JWKSURI != "" {
		return ErrInvalidClientMetadata(`The "jwks" and "jwks_uri" parameters are mutually exclusive.`)
	}
	return nil
}

func (s *Server) validateSubjectType(meta *ClientMetadata) *OAuthError {
	switch meta.SubjectType {
	case SubjectTypePublic:
		return nil
	case SubjectTypePairwise:
		if meta.SectorIdentifierURI == "" {
			return ErrInvalidClientMetadata(`The Subject Type "pairwise" requires a "sector_identifier_uri".`)
		}
		u, err := url.Parse(meta.SectorIdentifierURI)
		if err != nil || u.Scheme != "https" {
			return ErrInvalidClientMetadata(`The "sector_identifier_uri" must use the scheme "https".`)
		}
		return nil
	default:
		return ErrInvalidClientMetadata(`The Subject Type must be "public" or "pairwise".`)
	}
}

func (s *Server) validateAuthMethod(meta *ClientMetadata) *OAuthError {
	method := meta.TokenEndpointAuthMethod
	if !s.settings.authMethodEnabled(method) {
		return ErrInvalidClientMetadata(`The Token Endpoint Auth Method "` + method + `" is not supported.`)
	}

	alg := meta.TokenEndpointAuthSigningAlg
	switch method {
	case AuthMethodClientSecretJWT:
		if !algInList(alg, hmacAlgorithms) {
			return ErrInvalidClientMetadata(`The Token Endpoint Auth Method "client_secret_jwt" requires an HMAC signing algorithm.`)
		}
	case AuthMethodPrivateKeyJWT:
		if !algInList(alg, asymmetricAlgorithms) {
			return ErrInvalidClientMetadata(`The Token Endpoint Auth Method "private_key_jwt" requires an asymmetric signing algorithm.`)
		}
		if len(meta.JWKS) == 0 && meta.JWKSURI == "" {
			return ErrInvalidClientMetadata(`The Token Endpoint Auth Method "private_key_jwt" requires a "jwks" or "jwks_uri".`)
		}
	}
	return nil
}

// validateSigningAlgs checks the registered response and request object
// algorithms against the server's allow-list.
func (s *Server) validateSigningAlgs(meta *ClientMetadata) *OAuthError {
	algs := []struct {
		field string
		value string
	}{
		{"id_token_signed_response_alg", meta.IDTokenSignedResponseAlg},
		{"userinfo_signed_response_alg", meta.UserinfoSignedResponseAlg},
		{"request_object_signing_alg", meta.RequestObjectSigningAlg},
	}
	for _, a := range algs {
		if a.value == "" {
			continue
		}
		if !s.settings.signingAlgSupported(a.value) {
			return ErrInvalidClientMetadata(`The "` + a.field + `" value "` + a.value + `" is not supported.`)
		}
	}
	return nil
}

func algInList(alg string, list []string) bool {
	for _, a := range list {
		if a == alg {
			return true
		}
	}
	return false
}
