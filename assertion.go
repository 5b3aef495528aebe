package oauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/authgrid/oauth/security"
	"github.com/authgrid/oauth/storage"
)

// hmacAlgorithms and asymmetricAlgorithms are the signing algorithms
// accepted for client assertions when the client did not pin one at
// registration time.
var (
	hmacAlgorithms = []string{"HS256", "HS384", "HS512"}

	asymmetricAlgorithms = []string{
		"RS256", "RS384", "RS512",
		"ES256", "ES384", "ES512",
		"PS256", "PS384", "PS512",
	}
)

// authenticateWithAssertion completes client authentication for the
// client_secret_jwt and private_key_jwt methods. The client is
// identified by the assertion's issuer claim.
func (s *Server) authenticateWithAssertion(ctx context.Context, creds *clientCredentials, ip string) (*storage.Client, *OAuthError) {
	var unverified jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(creds.assertion, &unverified); err != nil {
		return nil, ErrInvalidClient("Client authentication failed.")
	}
	if unverified.Issuer == "" {
		return nil, ErrInvalidClient("Client authentication failed.")
	}
	if creds.clientID != "" && !security.ConstantTimeEquals(creds.clientID, unverified.Issuer) {
		return nil, ErrInvalidClient("Client authentication failed.")
	}

	client, err := s.services.Clients.GetClient(ctx, unverified.Issuer)
	if err != nil {
		s.recordAuthFailure(ctx, unverified.Issuer, ip, "client_assertion", "unknown client")
		return nil, ErrInvalidClient("Client authentication failed.")
	}
	if client.AuthMethod != AuthMethodClientSecretJWT && client.AuthMethod != AuthMethodPrivateKeyJWT {
		s.recordAuthFailure(ctx, client.ID, ip, "client_assertion", "auth method mismatch")
		return nil, ErrInvalidClient("Client authentication failed.")
	}

	claims, verr := s.verifySignedAssertion(ctx, client, creds.assertion)
	if verr != nil {
		s.recordAuthFailure(ctx, client.ID, ip, client.AuthMethod, verr.Error())
		return nil, ErrInvalidClient("Client authentication failed.").WithCause(verr)
	}

	// For client authentication the client vouches for itself.
	if !security.ConstantTimeEquals(claims.Subject, client.ID) {
		s.recordAuthFailure(ctx, client.ID, ip, client.AuthMethod, "subject mismatch")
		return nil, ErrInvalidClient("Client authentication failed.")
	}

	if oerr := s.markAssertion(ctx, client, claims, ip); oerr != nil {
		return nil, ErrInvalidClient("Client authentication failed.").WithCause(oerr)
	}
	return client, nil
}

// verifySignedAssertion verifies the assertion's signature and the
// claims every assertion must satisfy regardless of how it is used:
// issuer binding, audience, bounded lifetime, and a jti.
func (s *Server) verifySignedAssertion(ctx context.Context, client *storage.Client, assertion string) (*jwt.RegisteredClaims, error) {
	methods := asymmetricAlgorithms
	if client.AuthMethod == AuthMethodClientSecretJWT {
		methods = hmacAlgorithms
	}
	if client.AuthSigningAlg != "" {
		methods = []string{client.AuthSigningAlg}
	}

	keyfunc := func(t *jwt.Token) (any, error) {
		if client.AuthMethod == AuthMethodClientSecretJWT {
			if client.Secret == "" {
				return nil, errors.New("client has no secret on file")
			}
			return []byte(client.Secret), nil
		}
		return s.resolveClientKey(ctx, client, t)
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.NewParser(
		jwt.WithValidMethods(methods),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(security.DefaultClockSkewGracePeriod),
	).ParseWithClaims(assertion, claims, keyfunc)
	if err != nil {
		return nil, fmt.Errorf("assertion verification failed: %w", err)
	}

	if !security.ConstantTimeEquals(claims.Issuer, client.ID) {
		return nil, errors.New("assertion issuer does not match the client")
	}
	if !s.assertionAudienceOK(claims.Audience) {
		return nil, errors.New("assertion audience does not match this server")
	}
	if time.Until(claims.ExpiresAt.Time) > s.settings.AssertionMaxAge+security.DefaultClockSkewGracePeriod {
		return nil, errors.New("assertion lifetime exceeds the allowed maximum")
	}
	if claims.ID == "" {
		return nil, errors.New("assertion is missing the jti claim")
	}
	return claims, nil
}

// assertionAudienceOK accepts the issuer identifier or the token
// endpoint URL as the assertion audience.
func (s *Server) assertionAudienceOK(audience jwt.ClaimStrings) bool {
	for _, aud := range audience {
		if aud == s.settings.Issuer || aud == s.settings.Issuer+"/oauth/token" {
			return true
		}
	}
	return false
}

// markAssertion records the assertion's jti so a replay within its
// lifetime is detected.
func (s *Server) markAssertion(ctx context.Context, client *storage.Client, claims *jwt.RegisteredClaims, ip string) *OAuthError {
	err := s.services.Assertions.MarkAssertion(ctx, claims.ID, claims.ExpiresAt.Time)
	if err == nil {
		return nil
	}
	if errors.Is(err, storage.ErrReplayed) {
		s.auditor.LogAssertionReplay(client.ID, ip, claims.ID)
		return ErrInvalidGrant("The assertion has already been used.")
	}
	return ErrServerError("Failed to record the assertion.").WithCause(err)
}

// resolveClientKey finds the verification key for a private_key_jwt
// assertion in the client's registered key set.
func (s *Server) resolveClientKey(ctx context.Context, client *storage.Client, token *jwt.Token) (any, error) {
	var (
		set jwk.Set
		err error
	)
	switch {
	case len(client.JWKS) > 0:
		set, err = jwk.Parse(client.JWKS)
	case client.JWKSURI != "":
		fetchCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		set, err = jwk.Fetch(fetchCtx, client.JWKSURI)
	default:
		return nil, errors.New("client has no registered keys")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load the client key set: %w", err)
	}
	if set.Len() == 0 {
		return nil, errors.New("client key set is empty")
	}

	var key jwk.Key
	if kid, ok := token.Header["kid"].(string); ok && kid != "" {
		key, ok = set.LookupKeyID(kid)
		if !ok {
			return nil, fmt.Errorf("key %q not found in the client key set", kid)
		}
	} else {
		if set.Len() != 1 {
			return nil, errors.New("assertion has no kid and the client key set holds multiple keys")
		}
		key, _ = set.Key(0)
	}

	var raw any
	if err := jwk.Export(key, &raw); err != nil {
		return nil, fmt.Errorf("failed to export the client key: %w", err)
	}
	return raw, nil
}
