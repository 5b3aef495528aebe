package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/authgrid/oauth/internal/testutil"
	"github.com/authgrid/oauth/security"
	"github.com/authgrid/oauth/storage"
	"github.com/authgrid/oauth/storage/memory"
)

// newTestHandler builds the full HTTP stack over an in-memory store.
func newTestHandler(t *testing.T, mutate func(*Settings)) (http.Handler, *memory.Store, *Server) {
	t.Helper()
	store := testutil.NewStore(t)
	srv := newTestServer(t, store, mutate)
	h := NewHandler(srv)
	t.Cleanup(h.Close)
	return h.Routes(), store, srv
}

func postForm(t *testing.T, handler http.Handler, path string, form url.Values, auth func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if auth != nil {
		auth(req)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp
}

func assertNoStore(t *testing.T, w *httptest.ResponseRecorder) {
	t.Helper()
	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", got)
	}
	if got := w.Header().Get("Pragma"); got != "no-cache" {
		t.Errorf("Pragma = %q, want no-cache", got)
	}
}

// --- /oauth/token ---

func TestServeToken_ClientCredentials(t *testing.T) {
	handler, store, _ := newTestHandler(t, nil)
	client, secret := testutil.ConfidentialClient(t, store, "client-1", []string{GrantTypeClientCredentials})

	w := postForm(t, handler, "/oauth/token", url.Values{
		"grant_type": {GrantTypeClientCredentials},
		"scope":      {"openid"},
	}, func(r *http.Request) {
		r.SetBasicAuth(client.ID, secret)
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	assertNoStore(t, w)
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected an X-Request-ID header")
	}

	var resp TokenResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode token response: %v", err)
	}
	if resp.AccessToken == "" || resp.TokenType != TokenTypeBearer {
		t.Errorf("unexpected token response: %+v", resp)
	}
}

func TestServeToken_MethodNotAllowed(t *testing.T) {
	handler, _, _ := newTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/oauth/token", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if resp := decodeError(t, w); resp.Error != ErrorCodeInvalidRequest {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestServeToken_BadSecret(t *testing.T) {
	handler, store, _ := newTestHandler(t, nil)
	client, _ := testutil.ConfidentialClient(t, store, "client-1", []string{GrantTypeClientCredentials})

	w := postForm(t, handler, "/oauth/token", url.Values{
		"grant_type": {GrantTypeClientCredentials},
	}, func(r *http.Request) {
		r.SetBasicAuth(client.ID, "wrong")
	})

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if wa := w.Header().Get("WWW-Authenticate"); !strings.Contains(wa, ErrorCodeInvalidClient) {
		t.Errorf("WWW-Authenticate = %q, want it to name invalid_client", wa)
	}
	if resp := decodeError(t, w); resp.Error != ErrorCodeInvalidClient {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestServeToken_AuthMethodMismatch(t *testing.T) {
	handler, store, _ := newTestHandler(t, nil)
	client, secret := testutil.ConfidentialClient(t, store, "client-1", []string{GrantTypeClientCredentials})

	// The client registered client_secret_basic but posts its secret.
	w := postForm(t, handler, "/oauth/token", url.Values{
		"grant_type":    {GrantTypeClientCredentials},
		"client_id":     {client.ID},
		"client_secret": {secret},
	}, nil)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestServeToken_MultipleAuthMechanisms(t *testing.T) {
	handler, store, _ := newTestHandler(t, nil)
	client, secret := testutil.ConfidentialClient(t, store, "client-1", []string{GrantTypeClientCredentials})

	w := postForm(t, handler, "/oauth/token", url.Values{
		"grant_type":    {GrantTypeClientCredentials},
		"client_id":     {client.ID},
		"client_secret": {secret},
	}, func(r *http.Request) {
		r.SetBasicAuth(client.ID, secret)
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if resp := decodeError(t, w); resp.Error != ErrorCodeInvalidRequest {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestServeToken_ClientSecretPost(t *testing.T) {
	handler, store, _ := newTestHandler(t, nil)

	secret := testutil.RandomString(32)
	hash, err := security.HashSecret(secret)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	client := &storage.Client{
		ID:         "post-client",
		SecretHash: hash,
		GrantTypes: []string{GrantTypeClientCredentials},
		AuthMethod: AuthMethodClientSecretPost,
		Scopes:     []string{"openid"},
		CreatedAt:  time.Now(),
	}
	if err := store.CreateClient(context.Background(), client); err != nil {
		t.Fatalf("CreateClient: %v", err)
	}

	w := postForm(t, handler, "/oauth/token", url.Values{
		"grant_type":    {GrantTypeClientCredentials},
		"client_id":     {client.ID},
		"client_secret": {secret},
	}, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestServeToken_PublicClientAuthorizationCode(t *testing.T) {
	handler, store, _ := newTestHandler(t, nil)
	client := testutil.PublicClient(t, store, "native-1", []string{GrantTypeAuthorizationCode})
	pair := testutil.NewPKCEPair()
	code := testutil.AuthorizationCode(t, store, client, "user-1", pair)

	w := postForm(t, handler, "/oauth/token", url.Values{
		"grant_type":    {GrantTypeAuthorizationCode},
		"client_id":     {client.ID},
		"code":          {code.Code},
		"redirect_uri":  {code.RedirectURI},
		"code_verifier": {pair.Verifier},
	}, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp TokenResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.AccessToken == "" {
		t.Error("expected an access token")
	}
}

func TestServeToken_AssertionAuthentication(t *testing.T) {
	handler, store, _ := newTestHandler(t, func(s *Settings) {
		s.AuthMethods = []string{
			AuthMethodNone,
			AuthMethodClientSecretBasic,
			AuthMethodClientSecretJWT,
		}
	})
	client, secret := testutil.HMACClient(t, store, "service-1", []string{GrantTypeClientCredentials})

	assertion := testutil.SignHMACAssertion(t, secret, testutil.AssertionSpec{
		Issuer:   client.ID,
		Subject:  client.ID,
		Audience: "https://auth.example.com/oauth/token",
	})

	w := postForm(t, handler, "/oauth/token", url.Values{
		"grant_type":            {GrantTypeClientCredentials},
		"client_assertion_type": {ClientAssertionTypeJWTBearer},
		"client_assertion":      {assertion},
	}, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestServeToken_RateLimited(t *testing.T) {
	handler, store, _ := newTestHandler(t, func(s *Settings) {
		s.RateLimit.Rate = 1
		s.RateLimit.Burst = 1
	})
	client, secret := testutil.ConfidentialClient(t, store, "client-1", []string{GrantTypeClientCredentials})

	form := url.Values{"grant_type": {GrantTypeClientCredentials}}
	auth := func(r *http.Request) { r.SetBasicAuth(client.ID, secret) }

	first := postForm(t, handler, "/oauth/token", form, auth)
	if first.Code != http.StatusOK {
		t.Fatalf("first request status = %d", first.Code)
	}

	second := postForm(t, handler, "/oauth/token", form, auth)
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", second.Code)
	}
	if resp := decodeError(t, second); resp.Error != ErrorCodeRateLimitExceeded {
		t.Errorf("error = %q", resp.Error)
	}
}

// --- /oauth/device_authorization ---

func TestServeDeviceAuthorization(t *testing.T) {
	handler, store, _ := newTestHandler(t, nil)
	client := testutil.PublicClient(t, store, "tv-1", []string{GrantTypeDeviceCode})

	w := postForm(t, handler, "/oauth/device_authorization", url.Values{
		"client_id": {client.ID},
		"scope":     {"openid"},
	}, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	assertNoStore(t, w)

	var resp DeviceAuthorizationResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.DeviceCode == "" || resp.UserCode == "" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.VerificationURI != "https://auth.example.com/oauth/device" {
		t.Errorf("verification_uri = %q", resp.VerificationURI)
	}
	if resp.Interval != int64(DefaultDevicePollInterval.Seconds()) {
		t.Errorf("interval = %d", resp.Interval)
	}
}

// --- /.well-known/oauth-authorization-server ---

func TestServeMetadata(t *testing.T) {
	handler, _, _ := newTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/.well-known/oauth-authorization-server", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var meta AuthorizationServerMetadata
	if err := json.NewDecoder(w.Body).Decode(&meta); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if meta.Issuer != "https://auth.example.com" {
		t.Errorf("issuer = %q", meta.Issuer)
	}
	if meta.TokenEndpoint != "https://auth.example.com/oauth/token" {
		t.Errorf("token_endpoint = %q", meta.TokenEndpoint)
	}
}

func TestServeMetadata_PostRejected(t *testing.T) {
	handler, _, _ := newTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/.well-known/oauth-authorization-server", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

// --- /oauth/register ---

func registerJSON(t *testing.T, handler http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestServeRegistration_Lifecycle(t *testing.T) {
	handler, _, _ := newTestHandler(t, func(s *Settings) {
		s.Security.AllowOpenRegistration = true
	})

	created := registerJSON(t, handler, http.MethodPost, "/oauth/register", webClientMetadata(), "")
	if created.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", created.Code, created.Body.String())
	}
	assertNoStore(t, created)

	var info ClientInformationResponse
	if err := json.NewDecoder(created.Body).Decode(&info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.ClientID == "" || info.RegistrationAccessToken == "" {
		t.Fatalf("unexpected create response: %+v", info)
	}

	path := "/oauth/register?client_id=" + url.QueryEscape(info.ClientID)

	read := registerJSON(t, handler, http.MethodGet, path, nil, info.RegistrationAccessToken)
	if read.Code != http.StatusOK {
		t.Fatalf("read status = %d, body = %s", read.Code, read.Body.String())
	}

	update := ClientUpdateRequest{
		ClientID: info.ClientID,
		ClientMetadata: ClientMetadata{
			RedirectURIs: []string{"https://app.example.com/callback"},
			ClientName:   "Renamed App",
		},
	}
	updated := registerJSON(t, handler, http.MethodPut, path, update, info.RegistrationAccessToken)
	if updated.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", updated.Code, updated.Body.String())
	}
	var updatedInfo ClientInformationResponse
	if err := json.NewDecoder(updated.Body).Decode(&updatedInfo); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if updatedInfo.ClientName != "Renamed App" {
		t.Errorf("client_name = %q after update", updatedInfo.ClientName)
	}

	deleted := registerJSON(t, handler, http.MethodDelete, path, nil, info.RegistrationAccessToken)
	if deleted.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, body = %s", deleted.Code, deleted.Body.String())
	}

	gone := registerJSON(t, handler, http.MethodGet, path, nil, info.RegistrationAccessToken)
	if gone.Code != http.StatusUnauthorized {
		t.Fatalf("read after delete status = %d, want 401", gone.Code)
	}
	if wa := gone.Header().Get("WWW-Authenticate"); !strings.Contains(wa, ErrorCodeInvalidToken) {
		t.Errorf("WWW-Authenticate = %q, want it to name invalid_token", wa)
	}
}

func TestServeRegistration_MissingClientID(t *testing.T) {
	handler, _, _ := newTestHandler(t, nil)

	w := registerJSON(t, handler, http.MethodGet, "/oauth/register", nil, "some-token")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestServeRegistration_BadJSON(t *testing.T) {
	handler, _, _ := newTestHandler(t, func(s *Settings) {
		s.Security.AllowOpenRegistration = true
	})

	req := httptest.NewRequest(http.MethodPost, "/oauth/register", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if resp := decodeError(t, w); resp.Error != ErrorCodeInvalidRequest {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestServeRegistration_RegistrationRateLimit(t *testing.T) {
	handler, _, _ := newTestHandler(t, func(s *Settings) {
		s.Security.AllowOpenRegistration = true
		s.RateLimit.RegistrationsPerWindow = 2
		s.RateLimit.RegistrationWindow = time.Hour
	})

	for i := 0; i < 2; i++ {
		w := registerJSON(t, handler, http.MethodPost, "/oauth/register", webClientMetadata(), "")
		if w.Code != http.StatusCreated {
			t.Fatalf("request %d status = %d", i+1, w.Code)
		}
	}

	w := registerJSON(t, handler, http.MethodPost, "/oauth/register", webClientMetadata(), "")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
}
