package oauth

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/authgrid/oauth/security"
	"github.com/authgrid/oauth/storage"
)

// clientIP resolves the originating address honoring the configured
// proxy trust.
func clientIP(r *http.Request, rl *RateLimitSettings) string {
	return security.ClientIP(r, rl.TrustProxy, rl.TrustedProxyCount)
}

// clientCredentials holds the credentials extracted from a token
// endpoint request before they are verified.
type clientCredentials struct {
	clientID      string
	clientSecret  string
	assertion     string
	assertionType string

	// method is the authentication method implied by how the
	// credentials arrived, before the registered method is consulted.
	method string
}

// extractClientCredentials pulls client credentials out of the request.
// Exactly one mechanism must be used; presenting credentials through
// more than one is rejected outright per RFC 6749 section 2.3.
func extractClientCredentials(r *http.Request) (*clientCredentials, *OAuthError) {
	var mechanisms int
	creds := &clientCredentials{}

	if username, password, ok := r.BasicAuth(); ok {
		// Basic credentials are form-urlencoded before base64 encoding.
		clientID, err := url.QueryUnescape(username)
		if err != nil {
			return nil, ErrInvalidRequest("The Authorization header could not be decoded.")
		}
		clientSecret, err := url.QueryUnescape(password)
		if err != nil {
			return nil, ErrInvalidRequest("The Authorization header could not be decoded.")
		}
		creds.clientID = clientID
		creds.clientSecret = clientSecret
		creds.method = AuthMethodClientSecretBasic
		mechanisms++
	}

	if secret := r.PostFormValue("client_secret"); secret != "" {
		creds.clientID = r.PostFormValue("client_id")
		creds.clientSecret = secret
		creds.method = AuthMethodClientSecretPost
		mechanisms++
	}

	if assertion := r.PostFormValue("client_assertion"); assertion != "" {
		creds.assertion = assertion
		creds.assertionType = r.PostFormValue("client_assertion_type")
		creds.clientID = r.PostFormValue("client_id")
		creds.method = "" // determined by the assertion's signing algorithm
		mechanisms++
	}

	if mechanisms > 1 {
		return nil, ErrInvalidRequest("The request must not use more than one mechanism for authenticating the client.")
	}
	if mechanisms == 0 {
		creds.clientID = r.PostFormValue("client_id")
		creds.method = AuthMethodNone
	}
	return creds, nil
}

// AuthenticateClient authenticates the client for a token endpoint
// request. Public clients identify themselves with a bare client_id;
// confidential clients must present credentials matching their
// registered token_endpoint_auth_method.
func (s *Server) AuthenticateClient(ctx context.Context, r *http.Request) (*storage.Client, *OAuthError) {
	creds, oerr := extractClientCredentials(r)
	if oerr != nil {
		return nil, oerr
	}

	if creds.assertion != "" {
		if creds.assertionType != ClientAssertionTypeJWTBearer {
			return nil, ErrInvalidRequest(`The "client_assertion_type" must be "` + ClientAssertionTypeJWTBearer + `".`)
		}
		return s.authenticateWithAssertion(ctx, creds, clientIP(r, &s.settings.RateLimit))
	}

	if creds.clientID == "" {
		return nil, ErrInvalidClient("Client authentication failed.")
	}

	client, err := s.services.Clients.GetClient(ctx, creds.clientID)
	if err != nil {
		s.recordAuthFailure(ctx, creds.clientID, clientIP(r, &s.settings.RateLimit), creds.method, "unknown client")
		return nil, ErrInvalidClient("Client authentication failed.")
	}

	if client.AuthMethod != creds.method {
		s.recordAuthFailure(ctx, client.ID, clientIP(r, &s.settings.RateLimit), creds.method, "auth method mismatch")
		return nil, ErrInvalidClient("Client authentication failed.")
	}

	switch creds.method {
	case AuthMethodNone:
		if !client.IsPublic() {
			return nil, ErrInvalidClient("Client authentication failed.")
		}
		return client, nil

	case AuthMethodClientSecretBasic, AuthMethodClientSecretPost:
		if client.SecretExpired(time.Now()) {
			s.recordAuthFailure(ctx, client.ID, clientIP(r, &s.settings.RateLimit), creds.method, "secret expired")
			return nil, ErrInvalidClient("Client authentication failed.")
		}
		if !s.verifyClientSecret(client, creds.clientSecret) {
			s.recordAuthFailure(ctx, client.ID, clientIP(r, &s.settings.RateLimit), creds.method, "bad secret")
			return nil, ErrInvalidClient("Client authentication failed.")
		}
		return client, nil
	}

	return nil, ErrInvalidClient("Client authentication failed.")
}

// verifyClientSecret checks a presented secret against the stored
// credential. Hashed secrets are preferred; the plaintext copy only
// exists for clients registered with an HMAC assertion method.
func (s *Server) verifyClientSecret(client *storage.Client, presented string) bool {
	if presented == "" {
		return false
	}
	if client.SecretHash != "" {
		return security.VerifySecretHash(client.SecretHash, presented)
	}
	if client.Secret != "" {
		return security.ConstantTimeEquals(client.Secret, presented)
	}
	return false
}

func (s *Server) recordAuthFailure(ctx context.Context, clientID, ip, method, reason string) {
	s.auditor.LogAuthFailure("", clientID, ip, reason)
	if s.inst != nil {
		if method == "" {
			method = "unknown"
		}
		s.inst.Metrics().RecordAuthFailure(ctx, method)
	}
}
