package oauth

import (
	"context"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/authgrid/oauth/security"
	"github.com/authgrid/oauth/storage"
)

// RegisterClient creates a client from the submitted metadata. Unless
// open registration is enabled the caller must present an initial
// access token scoped client:create or client:manage that is not yet
// bound to any client; the token is revoked on success (single use).
func (s *Server) RegisterClient(ctx context.Context, rawToken string, meta *ClientMetadata, ip string) (*ClientInformationResponse, error) {
	var initialToken *storage.AccessToken
	if !s.settings.Security.AllowOpenRegistration || rawToken != "" {
		token, oerr := s.lookupActiveAccessToken(ctx, rawToken)
		if oerr != nil {
			return nil, oerr
		}
		if token.ClientID != "" {
			s.auditor.LogRegistrationTokenMisuse(token.ClientID, "", ip)
			return nil, ErrInvalidToken("The token is not an initial access token.")
		}
		if !token.HasScope(ScopeClientCreate) && !token.HasScope(ScopeClientManage) {
			return nil, ErrInsufficientScope(`The token does not carry the scope "` + ScopeClientCreate + `".`)
		}
		initialToken = token
	}

	applyMetadataDefaults(meta)
	if oerr := s.validateClientMetadata(meta); oerr != nil {
		s.auditor.LogEvent(security.Event{
			Type:      security.EventClientRegistrationRejected,
			IPAddress: ip,
			Details:   map[string]any{"error": oerr.Code, "description": oerr.Description},
		})
		return nil, oerr
	}

	now := time.Now()
	client := clientFromMetadata(meta)
	client.ID = uuid.NewString()
	client.CreatedAt = now
	client.UpdatedAt = now

	var plainSecret string
	if authMethodNeedsSecret(client.AuthMethod) {
		plainSecret = security.GenerateHandle()
		hash, err := security.HashSecret(plainSecret)
		if err != nil {
			return nil, ErrServerError("Failed to hash the client secret.").WithCause(err)
		}
		client.SecretHash = hash
		if client.AuthMethod == AuthMethodClientSecretJWT {
			// HMAC verification needs the recoverable secret.
			client.Secret = plainSecret
		}
		if s.settings.ClientSecretTTL > 0 {
			client.SecretExpiresAt = now.Add(s.settings.ClientSecretTTL)
		}
	}

	if err := s.services.Clients.CreateClient(ctx, client); err != nil {
		return nil, ErrServerError("Failed to store the client.").WithCause(err)
	}

	registrationToken := &storage.AccessToken{
		Handle:   security.GenerateHandle(),
		ClientID: client.ID,
		Scopes:   []string{ScopeClientManage},
		IssuedAt: now,
	}
	if err := s.services.AccessTokens.SaveAccessToken(ctx, registrationToken); err != nil {
		return nil, ErrServerError("Failed to store the registration access token.").WithCause(err)
	}

	if initialToken != nil {
		if err := s.services.AccessTokens.RevokeAccessToken(ctx, initialToken.Handle); err != nil {
			s.logger.Error("Failed to revoke the initial access token",
				"client_id", client.ID, "error", err)
		}
	}

	s.auditor.LogClientRegistered(client.ID, client.ApplicationType, ip)
	if s.inst != nil {
		s.inst.Metrics().RecordClientRegistered(ctx, client.ApplicationType)
	}
	s.logger.Info("Client registered",
		"client_id", client.ID,
		"application_type", client.ApplicationType,
		"auth_method", client.AuthMethod)

	resp := s.clientInformation(client)
	resp.ClientSecret = plainSecret
	resp.RegistrationAccessToken = registrationToken.Handle
	if plainSecret != "" {
		expiresAt := int64(0)
		if !client.SecretExpiresAt.IsZero() {
			expiresAt = client.SecretExpiresAt.Unix()
		}
		resp.ClientSecretExpiresAt = &expiresAt
	}
	return resp, nil
}

// GetRegisteredClient returns the metadata of the client administered
// by the presented registration access token.
func (s *Server) GetRegisteredClient(ctx context.Context, rawToken, clientID, ip string) (*ClientInformationResponse, error) {
	if _, oerr := s.authenticateRegistrationToken(ctx, rawToken, ScopeClientRead, clientID, ip); oerr != nil {
		return nil, oerr
	}
	client, err := s.services.Clients.GetClient(ctx, clientID)
	if err != nil {
		return nil, ErrInvalidToken("The access token is invalid.")
	}
	return s.clientInformation(client), nil
}

// UpdateRegisteredClient replaces the client's metadata wholesale after
// re-running the full registration validation.
func (s *Server) UpdateRegisteredClient(ctx context.Context, rawToken, clientID string, req *ClientUpdateRequest, ip string) (*ClientInformationResponse, error) {
	if _, oerr := s.authenticateRegistrationToken(ctx, rawToken, ScopeClientUpdate, clientID, ip); oerr != nil {
		return nil, oerr
	}
	if !security.ConstantTimeEquals(req.ClientID, clientID) {
		return nil, ErrInvalidRequest(`The "client_id" in the request body does not match the one in the request URI.`)
	}

	client, err := s.services.Clients.GetClient(ctx, clientID)
	if err != nil {
		return nil, ErrInvalidToken("The access token is invalid.")
	}
	if req.ClientSecret != "" && !s.verifyClientSecret(client, req.ClientSecret) {
		return nil, ErrInvalidRequest(`The "client_secret" does not match the registered secret.`)
	}

	applyMetadataDefaults(&req.ClientMetadata)
	if oerr := s.validateClientMetadata(&req.ClientMetadata); oerr != nil {
		return nil, oerr
	}

	updated := clientFromMetadata(&req.ClientMetadata)
	updated.ID = client.ID
	updated.Secret = client.Secret
	updated.SecretHash = client.SecretHash
	updated.SecretExpiresAt = client.SecretExpiresAt
	updated.CreatedAt = client.CreatedAt
	updated.UpdatedAt = time.Now()

	if err := s.services.Clients.UpdateClient(ctx, updated); err != nil {
		return nil, ErrServerError("Failed to update the client.").WithCause(err)
	}

	s.auditor.LogEvent(security.Event{
		Type:      security.EventClientUpdated,
		ClientID:  client.ID,
		IPAddress: ip,
	})
	return s.clientInformation(updated), nil
}

// DeleteRegisteredClient removes the client and retires the presented
// registration access token.
func (s *Server) DeleteRegisteredClient(ctx context.Context, rawToken, clientID, ip string) error {
	token, oerr := s.authenticateRegistrationToken(ctx, rawToken, ScopeClientDelete, clientID, ip)
	if oerr != nil {
		return oerr
	}
	if err := s.services.Clients.DeleteClient(ctx, clientID); err != nil {
		return ErrServerError("Failed to delete the client.").WithCause(err)
	}
	if err := s.services.AccessTokens.RevokeAccessToken(ctx, token.Handle); err != nil {
		s.logger.Error("Failed to revoke the registration access token",
			"client_id", clientID, "error", err)
	}
	s.auditor.LogClientDeleted(clientID, ip)
	if s.inst != nil {
		s.inst.Metrics().RecordClientDeleted(ctx)
	}
	return nil
}

// authenticateRegistrationToken validates a registration access token
// and its binding to the administered client. A token presented against
// a different client than the one it administers is treated as stolen:
// it is revoked before the request fails.
func (s *Server) authenticateRegistrationToken(ctx context.Context, rawToken, requiredScope, clientID, ip string) (*storage.AccessToken, *OAuthError) {
	if rawToken == "" {
		return nil, ErrInvalidToken("The request is missing a bearer token.")
	}
	token, oerr := s.lookupActiveAccessToken(ctx, rawToken)
	if oerr != nil {
		return nil, oerr
	}
	if !token.HasScope(requiredScope) && !token.HasScope(ScopeClientManage) {
		return nil, ErrInsufficientScope(`The token does not carry the scope "` + requiredScope + `".`)
	}
	if !security.ConstantTimeEquals(token.ClientID, clientID) {
		if err := s.services.AccessTokens.RevokeAccessToken(ctx, token.Handle); err != nil {
			s.logger.Error("Failed to revoke a misused registration token", "error", err)
		}
		s.auditor.LogRegistrationTokenMisuse(token.ClientID, clientID, ip)
		return nil, ErrInsufficientScope(`The token is not bound to the client "` + clientID + `".`)
	}
	return token, nil
}

// authMethodNeedsSecret reports whether registration must issue a
// client secret for the given authentication method.
func authMethodNeedsSecret(method string) bool {
	switch method {
	case AuthMethodClientSecretBasic, AuthMethodClientSecretPost, AuthMethodClientSecretJWT:
		return true
	}
	return false
}

// clientFromMetadata maps validated registration metadata onto a
// storage client. Defaults are assumed to be applied already.
func clientFromMetadata(meta *ClientMetadata) *storage.Client {
	return &storage.Client{
		RedirectURIs:              meta.RedirectURIs,
		ResponseTypes:             meta.ResponseTypes,
		GrantTypes:                meta.GrantTypes,
		ApplicationType:           meta.ApplicationType,
		AuthMethod:                meta.TokenEndpointAuthMethod,
		AuthSigningAlg:            meta.TokenEndpointAuthSigningAlg,
		Scopes:                    parseScope(meta.Scope),
		SubjectType:               meta.SubjectType,
		SectorIdentifierURI:       meta.SectorIdentifierURI,
		JWKSURI:                   meta.JWKSURI,
		JWKS:                      meta.JWKS,
		IDTokenSignedResponseAlg:  meta.IDTokenSignedResponseAlg,
		UserinfoSignedResponseAlg: meta.UserinfoSignedResponseAlg,
		RequestObjectSigningAlg:   meta.RequestObjectSigningAlg,
		PostLogoutRedirectURIs:    meta.PostLogoutRedirectURIs,
		Name:                      meta.ClientName,
		URI:                       meta.ClientURI,
		LogoURI:                   meta.LogoURI,
		PolicyURI:                 meta.PolicyURI,
		TOSURI:                    meta.TOSURI,
		Contacts:                  meta.Contacts,
		InitiateLoginURI:          meta.InitiateLoginURI,
		DefaultMaxAge:             meta.DefaultMaxAge,
		RequireAuthTime:           meta.RequireAuthTime,
		SoftwareID:                meta.SoftwareID,
		SoftwareVersion:           meta.SoftwareVersion,
	}
}

// clientInformation builds the client information response from the
// stored client. The secret and registration token fields are filled in
// by the create path only.
func (s *Server) clientInformation(client *storage.Client) *ClientInformationResponse {
	return &ClientInformationResponse{
		ClientID:              client.ID,
		ClientIDIssuedAt:      client.CreatedAt.Unix(),
		RegistrationClientURI: s.settings.Issuer + "/oauth/register?client_id=" + url.QueryEscape(client.ID),
		ClientMetadata: ClientMetadata{
			RedirectURIs:                client.RedirectURIs,
			ResponseTypes:               client.ResponseTypes,
			GrantTypes:                  client.GrantTypes,
			ApplicationType:             client.ApplicationType,
			TokenEndpointAuthMethod:     client.AuthMethod,
			TokenEndpointAuthSigningAlg: client.AuthSigningAlg,
			IDTokenSignedResponseAlg:    client.IDTokenSignedResponseAlg,
			UserinfoSignedResponseAlg:   client.UserinfoSignedResponseAlg,
			RequestObjectSigningAlg:     client.RequestObjectSigningAlg,
			Scope:                       joinScope(client.Scopes),
			SubjectType:                 client.SubjectType,
			SectorIdentifierURI:         client.SectorIdentifierURI,
			JWKSURI:                     client.JWKSURI,
			JWKS:                        client.JWKS,
			ClientName:                  client.Name,
			ClientURI:                   client.URI,
			LogoURI:                     client.LogoURI,
			PolicyURI:                   client.PolicyURI,
			TOSURI:                      client.TOSURI,
			Contacts:                    client.Contacts,
			InitiateLoginURI:            client.InitiateLoginURI,
			PostLogoutRedirectURIs:      client.PostLogoutRedirectURIs,
			DefaultMaxAge:               client.DefaultMaxAge,
			RequireAuthTime:             client.RequireAuthTime,
			SoftwareID:                  client.SoftwareID,
			SoftwareVersion:             client.SoftwareVersion,
		},
	}
}
