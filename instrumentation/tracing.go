package instrumentation

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Common span attribute keys.
//
// SECURITY: never record actual credential values (tokens, codes, secrets,
// assertions) as span attributes. Only metadata such as grant type, method
// names, and validation results.
const (
	AttrClientID     = "oauth.client_id"
	AttrUserID       = "oauth.user_id"
	AttrScope        = "oauth.scope"
	AttrGrantType    = "oauth.grant_type"
	AttrAuthMethod   = "oauth.auth_method"
	AttrPKCEMethod   = "oauth.pkce.method"
	AttrTokenType    = "oauth.token_type" //nolint:gosec // attribute key, not a credential
	AttrExpiresIn    = "oauth.expires_in"
	AttrTokenRotated = "oauth.token.rotated" //nolint:gosec // attribute key, not a credential
	AttrCodeReuse    = "oauth.code.reuse"
	AttrError        = "oauth.error"

	AttrStorageOperation = "storage.operation"
	AttrStorageResult    = "storage.result"
	AttrStorageBackend   = "storage.backend"
)

// SpanAttributes builds a span attribute list from key-value pairs.
func SpanAttributes(kvs ...attribute.KeyValue) []attribute.KeyValue {
	return kvs
}

// RecordSpanError marks a span failed and records the error.
func RecordSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// EndSpan ends a span, recording err when non-nil.
func EndSpan(span trace.Span, err error) {
	RecordSpanError(span, err)
	span.End()
}
