package oauth

import (
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/authgrid/oauth/instrumentation"
	"github.com/authgrid/oauth/pkce"
	"github.com/authgrid/oauth/security"
	"github.com/authgrid/oauth/storage"
)

// Server implements the authorization server protocol logic: client
// authentication, grant processing, token lifecycle, and dynamic client
// registration. It is transport-agnostic; Handler adapts it to HTTP.
type Server struct {
	settings *Settings
	logger   *slog.Logger

	services storage.Services

	// Optional storage capabilities, resolved at construction
	rotator storage.RefreshTokenRotator
	revoker storage.TokenRevocationService

	grants       map[string]grantHandler
	pkceRegistry *pkce.Registry

	auditor *security.Auditor

	inst   *instrumentation.Instrumentation
	tracer trace.Tracer
}

// NewServer validates the settings against the provided services and
// builds a server. Every grant type and authentication method named in
// the settings must be fully supported by the services, otherwise
// construction fails. Capability gaps surface here, not at request time.
func NewServer(services storage.Services, settings *Settings) (*Server, error) {
	if settings == nil {
		return nil, fmt.Errorf("settings are required")
	}
	if settings.Issuer == "" {
		return nil, fmt.Errorf("settings: Issuer is required")
	}
	settings.applySecureDefaults()

	if services.Clients == nil {
		return nil, fmt.Errorf("storage: a client service is required")
	}
	if services.AccessTokens == nil {
		return nil, fmt.Errorf("storage: an access token service is required")
	}

	s := &Server{
		settings: settings,
		logger:   settings.Logger,
		services: services,
		auditor:  security.NewAuditor(settings.Logger, settings.Security.EnableAuditLogging),
		tracer:   tracenoop.NewTracerProvider().Tracer("oauth"),
	}

	registry, err := buildPKCERegistry(settings.PKCEMethods)
	if err != nil {
		return nil, err
	}
	s.pkceRegistry = registry

	if err := s.buildGrantHandlers(); err != nil {
		return nil, err
	}
	if err := s.validateAuthMethods(); err != nil {
		return nil, err
	}

	settings.logSecurityWarnings()

	return s, nil
}

// SetInstrumentation wires OpenTelemetry metrics and tracing.
// Call before serving traffic; the server is not instrumented by default.
func (s *Server) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.inst = inst
	if inst != nil {
		s.tracer = inst.Tracer("server")
	}
}

// Settings returns the normalized settings the server runs with.
func (s *Server) Settings() *Settings {
	return s.settings
}

// Metadata returns the RFC 8414 authorization server metadata for the
// endpoints this library serves.
func (s *Server) Metadata() *AuthorizationServerMetadata {
	return &AuthorizationServerMetadata{
		Issuer:                            s.settings.Issuer,
		TokenEndpoint:                     s.settings.Issuer + "/oauth/token",
		RegistrationEndpoint:              s.settings.Issuer + "/oauth/register",
		ScopesSupported:                   s.settings.SupportedScopes,
		ResponseTypesSupported:            []string{ResponseTypeCode},
		GrantTypesSupported:               s.settings.GrantTypes,
		TokenEndpointAuthMethodsSupported: s.settings.AuthMethods,
		CodeChallengeMethodsSupported:     s.settings.PKCEMethods,
	}
}

// buildPKCERegistry resolves configured challenge method names.
func buildPKCERegistry(methods []string) (*pkce.Registry, error) {
	verifiers := make([]pkce.Verifier, 0, len(methods))
	for _, m := range methods {
		switch m {
		case pkce.MethodS256:
			verifiers = append(verifiers, pkce.S256{})
		case pkce.MethodPlain:
			verifiers = append(verifiers, pkce.Plain{})
		default:
			return nil, fmt.Errorf("settings: unsupported PKCE method %q", m)
		}
	}
	return pkce.NewRegistry(verifiers...)
}

// buildGrantHandlers instantiates a handler per configured grant type,
// verifying that the storage services carry the capabilities each one needs.
func (s *Server) buildGrantHandlers() error {
	s.grants = make(map[string]grantHandler, len(s.settings.GrantTypes))

	for _, gt := range s.settings.GrantTypes {
		var h grantHandler

		switch gt {
		case GrantTypeAuthorizationCode:
			if s.services.AuthorizationCodes == nil {
				return fmt.Errorf("grant %q requires an authorization code service", gt)
			}
			h = &authorizationCodeGrant{server: s}

		case GrantTypeClientCredentials:
			h = &clientCredentialsGrant{server: s}

		case GrantTypePassword:
			if s.services.Users == nil {
				return fmt.Errorf("grant %q requires a user service", gt)
			}
			h = &passwordGrant{server: s}

		case GrantTypeRefreshToken:
			if s.services.RefreshTokens == nil {
				return fmt.Errorf("grant %q requires a refresh token service", gt)
			}
			if !s.settings.Security.DisableRefreshTokenRotation {
				rotator, ok := s.services.RefreshTokens.(storage.RefreshTokenRotator)
				if !ok {
					return fmt.Errorf("grant %q requires a refresh token service supporting atomic rotation", gt)
				}
				s.rotator = rotator
			}
			h = &refreshTokenGrant{server: s}

		case GrantTypeDeviceCode:
			if s.services.DeviceCodes == nil {
				return fmt.Errorf("grant %q requires a device code service", gt)
			}
			h = &deviceCodeGrant{server: s}

		case GrantTypeJWTBearer:
			if s.services.Users == nil {
				return fmt.Errorf("grant %q requires a user service", gt)
			}
			if s.services.Assertions == nil {
				return fmt.Errorf("grant %q requires an assertion replay service", gt)
			}
			h = &jwtBearerGrant{server: s}

		default:
			return fmt.Errorf("settings: unsupported grant type %q", gt)
		}

		s.grants[gt] = h
	}

	// Refresh token issuance uses these services even when redemption of
	// other grants triggers it
	if s.settings.grantEnabled(GrantTypeRefreshToken) && s.services.RefreshTokens == nil {
		return fmt.Errorf("refresh token issuance requires a refresh token service")
	}

	if revoker, ok := s.services.AccessTokens.(storage.TokenRevocationService); ok {
		s.revoker = revoker
	}

	return nil
}

// validateAuthMethods checks that configured client authentication methods
// are known and that assertion-based methods have replay protection.
func (s *Server) validateAuthMethods() error {
	for _, m := range s.settings.AuthMethods {
		switch m {
		case AuthMethodNone, AuthMethodClientSecretBasic, AuthMethodClientSecretPost:
		case AuthMethodClientSecretJWT, AuthMethodPrivateKeyJWT:
			if s.services.Assertions == nil {
				return fmt.Errorf("auth method %q requires an assertion replay service", m)
			}
		default:
			return fmt.Errorf("settings: unsupported client authentication method %q", m)
		}
	}
	return nil
}
