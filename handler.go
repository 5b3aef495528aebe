package oauth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/authgrid/oauth/security"
)

// Handler binds the protocol engine to HTTP. It owns the per-IP rate
// limiters; Close releases them.
type Handler struct {
	server *Server
	logger *slog.Logger

	rateLimiter *security.RateLimiter
	regLimiter  *security.RegistrationRateLimiter
}

// NewHandler wires the server's settings into an HTTP adapter.
func NewHandler(server *Server) *Handler {
	settings := server.Settings()
	h := &Handler{
		server: server,
		logger: settings.Logger,
	}
	if settings.RateLimit.Rate > 0 {
		h.rateLimiter = security.NewRateLimiter(settings.RateLimit.Rate, settings.RateLimit.Burst, settings.Logger)
	}
	h.regLimiter = security.NewRegistrationRateLimiter(
		settings.RateLimit.RegistrationsPerWindow,
		settings.RateLimit.RegistrationWindow,
		settings.Logger)
	return h
}

// Routes returns the handler's endpoints mounted on a mux, wrapped with
// request ID propagation.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", h.ServeToken)
	mux.HandleFunc("/oauth/register", h.ServeRegistration)
	mux.HandleFunc("/oauth/device_authorization", h.ServeDeviceAuthorization)
	mux.HandleFunc("/.well-known/oauth-authorization-server", h.ServeMetadata)
	return security.RequestIDMiddleware(mux)
}

// Close stops the rate limiter's background cleanup.
func (h *Handler) Close() {
	if h.rateLimiter != nil {
		h.rateLimiter.Stop()
	}
}

// ServeToken handles POST /oauth/token.
func (h *Handler) ServeToken(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	security.SetSecurityHeaders(w, h.server.Settings().Issuer)

	if r.Method != http.MethodPost {
		h.writeError(w, ErrInvalidRequest("The token endpoint only accepts POST requests."))
		h.recordHTTP(r, http.StatusBadRequest, start)
		return
	}
	ip := clientIP(r, &h.server.Settings().RateLimit)
	if !h.allow(r.Context(), ip) {
		h.writeRateLimited(w)
		h.recordHTTP(r, http.StatusTooManyRequests, start)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.writeError(w, ErrInvalidRequest("The request body could not be parsed as a form."))
		h.recordHTTP(r, http.StatusBadRequest, start)
		return
	}

	client, oerr := h.server.AuthenticateClient(r.Context(), r)
	if oerr != nil {
		h.writeError(w, oerr)
		h.recordHTTP(r, oerr.Status, start)
		return
	}

	req := TokenRequestFromForm(r.PostForm)
	req.ClientIP = ip

	resp, err := h.server.Exchange(r.Context(), client, req)
	if err != nil {
		h.writeOAuthError(w, err)
		h.recordHTTP(r, errorStatus(err), start)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
	h.recordHTTP(r, http.StatusOK, start)
}

// ServeRegistration handles the /oauth/register endpoint. POST creates
// a client; GET, PUT, and DELETE manage an existing one addressed by
// the client_id query parameter.
func (h *Handler) ServeRegistration(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	security.SetSecurityHeaders(w, h.server.Settings().Issuer)

	ip := clientIP(r, &h.server.Settings().RateLimit)
	if !h.allow(r.Context(), ip) {
		h.writeRateLimited(w)
		h.recordHTTP(r, http.StatusTooManyRequests, start)
		return
	}

	rawToken := bearerToken(r)

	switch r.Method {
	case http.MethodPost:
		h.serveRegistrationCreate(w, r, rawToken, ip, start)

	case http.MethodGet, http.MethodPut, http.MethodDelete:
		clientID := r.URL.Query().Get("client_id")
		if clientID == "" {
			h.writeError(w, ErrInvalidRequest(`The request is missing the required parameter "client_id".`))
			h.recordHTTP(r, http.StatusBadRequest, start)
			return
		}
		switch r.Method {
		case http.MethodGet:
			resp, err := h.server.GetRegisteredClient(r.Context(), rawToken, clientID, ip)
			h.finishRegistration(w, r, resp, err, http.StatusOK, start)
		case http.MethodPut:
			var req ClientUpdateRequest
			if jerr := json.NewDecoder(r.Body).Decode(&req); jerr != nil {
				h.writeError(w, ErrInvalidRequest("The request body could not be parsed as JSON."))
				h.recordHTTP(r, http.StatusBadRequest, start)
				return
			}
			resp, err := h.server.UpdateRegisteredClient(r.Context(), rawToken, clientID, &req, ip)
			h.finishRegistration(w, r, resp, err, http.StatusOK, start)
		case http.MethodDelete:
			if err := h.server.DeleteRegisteredClient(r.Context(), rawToken, clientID, ip); err != nil {
				h.writeOAuthError(w, err)
				h.recordHTTP(r, errorStatus(err), start)
				return
			}
			w.WriteHeader(http.StatusNoContent)
			h.recordHTTP(r, http.StatusNoContent, start)
		}

	default:
		h.writeError(w, ErrInvalidRequest("The registration endpoint does not support this method."))
		h.recordHTTP(r, http.StatusBadRequest, start)
	}
}

func (h *Handler) serveRegistrationCreate(w http.ResponseWriter, r *http.Request, rawToken, ip string, start time.Time) {
	if !h.regLimiter.Allow(ip) {
		h.server.auditor.LogEvent(security.Event{
			Type:      security.EventClientRegistrationRateLimitExceeded,
			IPAddress: ip,
		})
		h.writeRateLimited(w)
		h.recordHTTP(r, http.StatusTooManyRequests, start)
		return
	}

	var meta ClientMetadata
	if err := json.NewDecoder(r.Body).Decode(&meta); err != nil {
		h.writeError(w, ErrInvalidRequest("The request body could not be parsed as JSON."))
		h.recordHTTP(r, http.StatusBadRequest, start)
		return
	}

	resp, err := h.server.RegisterClient(r.Context(), rawToken, &meta, ip)
	h.finishRegistration(w, r, resp, err, http.StatusCreated, start)
}

func (h *Handler) finishRegistration(w http.ResponseWriter, r *http.Request, resp *ClientInformationResponse, err error, status int, start time.Time) {
	if err != nil {
		h.writeOAuthError(w, err)
		h.recordHTTP(r, errorStatus(err), start)
		return
	}
	h.writeJSON(w, status, resp)
	h.recordHTTP(r, status, start)
}

// ServeDeviceAuthorization handles POST /oauth/device_authorization.
func (h *Handler) ServeDeviceAuthorization(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	security.SetSecurityHeaders(w, h.server.Settings().Issuer)

	if r.Method != http.MethodPost {
		h.writeError(w, ErrInvalidRequest("The device authorization endpoint only accepts POST requests."))
		h.recordHTTP(r, http.StatusBadRequest, start)
		return
	}
	ip := clientIP(r, &h.server.Settings().RateLimit)
	if !h.allow(r.Context(), ip) {
		h.writeRateLimited(w)
		h.recordHTTP(r, http.StatusTooManyRequests, start)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.writeError(w, ErrInvalidRequest("The request body could not be parsed as a form."))
		h.recordHTTP(r, http.StatusBadRequest, start)
		return
	}

	client, oerr := h.server.AuthenticateClient(r.Context(), r)
	if oerr != nil {
		h.writeError(w, oerr)
		h.recordHTTP(r, oerr.Status, start)
		return
	}

	resp, err := h.server.StartDeviceAuthorization(r.Context(), client, r.PostFormValue("scope"))
	if err != nil {
		h.writeOAuthError(w, err)
		h.recordHTTP(r, errorStatus(err), start)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
	h.recordHTTP(r, http.StatusOK, start)
}

// ServeMetadata handles GET /.well-known/oauth-authorization-server.
func (h *Handler) ServeMetadata(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	security.SetSecurityHeaders(w, h.server.Settings().Issuer)

	if r.Method != http.MethodGet {
		h.writeError(w, ErrInvalidRequest("The metadata endpoint only accepts GET requests."))
		h.recordHTTP(r, http.StatusBadRequest, start)
		return
	}
	h.writeJSON(w, http.StatusOK, h.server.Metadata())
	h.recordHTTP(r, http.StatusOK, start)
}

func (h *Handler) allow(ctx context.Context, ip string) bool {
	if h.rateLimiter == nil {
		return true
	}
	if h.rateLimiter.Allow(ip) {
		return true
	}
	h.server.auditor.LogRateLimitExceeded(ip, "")
	if h.server.inst != nil {
		h.server.inst.Metrics().RecordRateLimitExceeded(ctx, "ip")
	}
	return false
}

// bearerToken extracts a bearer token from the Authorization header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// writeJSON serializes a success response.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}

// writeOAuthError is the single translation boundary between internal
// errors and the wire format. Non-protocol errors leave as server_error
// with the cause logged, never serialized.
func (h *Handler) writeOAuthError(w http.ResponseWriter, err error) {
	oerr, ok := err.(*OAuthError)
	if !ok {
		h.logger.Error("Unexpected error", "error", err)
		oerr = ErrServerError("An unexpected error occurred.")
	}
	h.writeError(w, oerr)
}

func (h *Handler) writeError(w http.ResponseWriter, oerr *OAuthError) {
	if cause := oerr.Unwrap(); cause != nil {
		h.logger.Debug("Request failed",
			"error", oerr.Code,
			"description", oerr.Description,
			"cause", cause)
	}
	if oerr.Status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer error="`+oerr.Code+`", error_description="`+oerr.Description+`"`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(oerr.Status)
	resp := ErrorResponse{Error: oerr.Code, ErrorDescription: oerr.Description}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("Failed to encode error response", "error", err)
	}
}

func (h *Handler) writeRateLimited(w http.ResponseWriter) {
	h.writeError(w, NewOAuthError(ErrorCodeRateLimitExceeded,
		"Too many requests. Please try again later.",
		http.StatusTooManyRequests))
}

// errorStatus maps an error to its HTTP status for metrics.
func errorStatus(err error) int {
	if oerr, ok := err.(*OAuthError); ok {
		return oerr.Status
	}
	return http.StatusInternalServerError
}

// recordHTTP updates the request metric when instrumentation is attached.
func (h *Handler) recordHTTP(r *http.Request, status int, start time.Time) {
	if h.server.inst == nil {
		return
	}
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0
	h.server.inst.Metrics().RecordHTTPRequest(r.Context(), r.Method, r.URL.Path, status, elapsed)
}
