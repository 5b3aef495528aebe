package oauth

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"net/url"
	"time"

	"github.com/authgrid/oauth/security"
	"github.com/authgrid/oauth/storage"
)

// userCodeCharset deliberately omits vowels and ambiguous characters so
// codes are easy to type and never spell anything.
const userCodeCharset = "BCDFGHJKLMNPQRSTVWXZ"

// deviceCodeGrant completes the RFC 8628 device authorization flow.
// The device polls the token endpoint with its device code until the
// resource owner approves or denies the request on another device.
type deviceCodeGrant struct {
	server *Server
}

func (g *deviceCodeGrant) GrantType() string { return GrantTypeDeviceCode }

func (g *deviceCodeGrant) Handle(ctx context.Context, client *storage.Client, req *TokenRequest) (*grantResult, error) {
	s := g.server

	if req.DeviceCode == "" {
		return nil, ErrInvalidRequest(`The request is missing the required parameter "device_code".`)
	}

	code, err := s.services.DeviceCodes.GetDeviceCode(ctx, req.DeviceCode)
	if err != nil {
		return nil, ErrInvalidGrant("The device code is invalid.")
	}
	if !security.ConstantTimeEquals(code.ClientID, client.ID) {
		return nil, ErrInvalidGrant("The device code was issued to another client.")
	}

	now := time.Now()
	if code.Revoked || code.Consumed {
		return nil, ErrInvalidGrant("The device code is invalid.")
	}
	if code.Expired(now) {
		return nil, ErrExpiredToken("The device code has expired.")
	}

	if oerr := g.pacePolling(ctx, code, now); oerr != nil {
		return nil, oerr
	}

	switch {
	case code.Denied:
		return nil, ErrAccessDenied("The resource owner denied the authorization request.")
	case !code.Approved:
		return nil, ErrAuthorizationPending("The authorization request is still pending.")
	}

	if _, err := s.services.DeviceCodes.ConsumeDeviceCode(ctx, code.DeviceCode); err != nil {
		if errors.Is(err, storage.ErrCodeConsumed) {
			return nil, ErrInvalidGrant("The device code has already been used.")
		}
		return nil, ErrServerError("Failed to consume the device code.").WithCause(err)
	}

	return &grantResult{
		UserID:            code.UserID,
		Scopes:            code.Scopes,
		IssueRefreshToken: true,
	}, nil
}

// pacePolling enforces the polling interval. A device polling too fast
// is told to slow down and its required interval grows by five seconds,
// per RFC 8628 section 3.5.
func (g *deviceCodeGrant) pacePolling(ctx context.Context, code *storage.DeviceCode, now time.Time) *OAuthError {
	s := g.server

	tooFast := !code.LastPolledAt.IsZero() &&
		now.Sub(code.LastPolledAt) < time.Duration(code.Interval)*time.Second

	code.LastPolledAt = now
	if tooFast {
		code.Interval += 5
	}
	if err := s.services.DeviceCodes.UpdateDeviceCode(ctx, code); err != nil {
		return ErrServerError("Failed to update the device code.").WithCause(err)
	}
	if tooFast {
		return ErrSlowDown("The client is polling too frequently.")
	}
	return nil
}

// StartDeviceAuthorization begins a device flow for an authenticated
// client and returns the codes the device displays to the user.
func (s *Server) StartDeviceAuthorization(ctx context.Context, client *storage.Client, scope string) (*DeviceAuthorizationResponse, error) {
	if !client.HasGrantType(GrantTypeDeviceCode) {
		return nil, ErrUnauthorizedClient(`The client is not authorized to use the grant type "` + GrantTypeDeviceCode + `".`)
	}
	scopes, oerr := narrowScopes(scope, client.Scopes)
	if oerr != nil {
		return nil, oerr
	}

	userCode, err := generateUserCode()
	if err != nil {
		return nil, ErrServerError("Failed to generate the user code.").WithCause(err)
	}

	verificationURI := s.settings.DeviceVerificationURI
	if verificationURI == "" {
		verificationURI = s.settings.Issuer + "/oauth/device"
	}

	now := time.Now()
	code := &storage.DeviceCode{
		DeviceCode:      security.GenerateHandle(),
		UserCode:        userCode,
		ClientID:        client.ID,
		Scopes:          scopes,
		VerificationURI: verificationURI,
		Interval:        int64(s.settings.DevicePollInterval.Seconds()),
		IssuedAt:        now,
		ExpiresAt:       now.Add(s.settings.DeviceCodeTTL),
	}
	if err := s.services.DeviceCodes.SaveDeviceCode(ctx, code); err != nil {
		return nil, ErrServerError("Failed to store the device code.").WithCause(err)
	}

	return &DeviceAuthorizationResponse{
		DeviceCode:              code.DeviceCode,
		UserCode:                code.UserCode,
		VerificationURI:         verificationURI,
		VerificationURIComplete: verificationURI + "?user_code=" + url.QueryEscape(userCode),
		ExpiresIn:               int64(s.settings.DeviceCodeTTL.Seconds()),
		Interval:                code.Interval,
	}, nil
}

// ApproveDeviceCode records the resource owner's approval for the
// device flow identified by the user code.
func (s *Server) ApproveDeviceCode(ctx context.Context, userCode, userID string) error {
	code, err := s.services.DeviceCodes.GetDeviceCodeByUserCode(ctx, userCode)
	if err != nil {
		return err
	}
	if code.Expired(time.Now()) || code.Revoked || code.Consumed || code.Denied {
		return storage.ErrNotFound
	}
	code.Approved = true
	code.UserID = userID
	if err := s.services.DeviceCodes.UpdateDeviceCode(ctx, code); err != nil {
		return err
	}
	s.auditor.LogEvent(security.Event{
		Type:     security.EventDeviceCodeApproved,
		UserID:   userID,
		ClientID: code.ClientID,
	})
	return nil
}

// DenyDeviceCode records the resource owner's refusal for the device
// flow identified by the user code.
func (s *Server) DenyDeviceCode(ctx context.Context, userCode, userID string) error {
	code, err := s.services.DeviceCodes.GetDeviceCodeByUserCode(ctx, userCode)
	if err != nil {
		return err
	}
	if code.Expired(time.Now()) || code.Revoked || code.Consumed {
		return storage.ErrNotFound
	}
	code.Denied = true
	if err := s.services.DeviceCodes.UpdateDeviceCode(ctx, code); err != nil {
		return err
	}
	s.auditor.LogEvent(security.Event{
		Type:     security.EventDeviceCodeDenied,
		UserID:   userID,
		ClientID: code.ClientID,
	})
	return nil
}

// generateUserCode produces a short code in the form XXXX-XXXX.
func generateUserCode() (string, error) {
	buf := make([]byte, 9)
	for i := range buf {
		if i == 4 {
			buf[i] = '-'
			continue
		}
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(userCodeCharset))))
		if err != nil {
			return "", err
		}
		buf[i] = userCodeCharset[n.Int64()]
	}
	return string(buf), nil
}
