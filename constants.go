package oauth

// Grant type identifiers accepted at the token endpoint.
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeClientCredentials = "client_credentials"
	GrantTypePassword          = "password"
	GrantTypeRefreshToken      = "refresh_token"
	GrantTypeDeviceCode        = "urn:ietf:params:oauth:grant-type:device_code"
	GrantTypeJWTBearer         = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	GrantTypeImplicit          = "implicit"
)

// Response type identifiers used at the authorization endpoint.
const (
	ResponseTypeCode             = "code"
	ResponseTypeToken            = "token"
	ResponseTypeIDToken          = "id_token"
	ResponseTypeIDTokenToken     = "id_token token"
	ResponseTypeCodeIDToken      = "code id_token"
	ResponseTypeCodeToken        = "code token"
	ResponseTypeCodeIDTokenToken = "code id_token token"
)

// Token endpoint authentication methods (RFC 7591, OIDC Core).
const (
	AuthMethodNone              = "none"
	AuthMethodClientSecretBasic = "client_secret_basic"
	AuthMethodClientSecretPost  = "client_secret_post"
	AuthMethodClientSecretJWT   = "client_secret_jwt"
	AuthMethodPrivateKeyJWT     = "private_key_jwt"
)

// Application types (RFC 7591).
const (
	ApplicationTypeWeb    = "web"
	ApplicationTypeNative = "native"
)

// Subject types (OIDC Core).
const (
	SubjectTypePublic   = "public"
	SubjectTypePairwise = "pairwise"
)

// ClientAssertionTypeJWTBearer is the client_assertion_type for JWT client
// authentication (RFC 7523).
const ClientAssertionTypeJWTBearer = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

// TokenTypeBearer is the token_type returned in successful token responses.
const TokenTypeBearer = "Bearer"

// Registration management scopes carried by initial and registration
// access tokens. client:manage implies the four operation scopes.
const (
	ScopeClientManage = "client:manage"
	ScopeClientCreate = "client:create"
	ScopeClientRead   = "client:read"
	ScopeClientUpdate = "client:update"
	ScopeClientDelete = "client:delete"
)
