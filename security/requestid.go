package security

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/http"
)

// RequestIDHeader carries the correlation ID on requests and responses.
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// NewRequestID returns a fresh 128-bit correlation ID as unpadded
// base64url. Panics if the system RNG is unavailable.
func NewRequestID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic("security: rand.Read: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// WithRequestID stores a correlation ID on the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the correlation ID set by
// RequestIDMiddleware, or "" when none is present.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// acceptableRequestID reports whether an upstream-supplied ID is safe to
// echo back in a response header. Only unreserved URL characters are
// allowed, capped at 128 bytes, which covers the formats common load
// balancers emit while ruling out CRLF injection.
func acceptableRequestID(id string) bool {
	if len(id) == 0 || len(id) > 128 {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return false
		}
	}
	return true
}

// RequestIDMiddleware assigns every request a correlation ID. A valid ID
// supplied by an upstream proxy is preserved so traces line up across
// tiers; anything missing or malformed is replaced. The ID is echoed in
// the response header and made available through the request context.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if !acceptableRequestID(id) {
			id = NewRequestID()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), id)))
	})
}
