package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/authgrid/oauth/storage"
)

// dummyPasswordHash is compared against when the username is unknown so
// missing users do not answer faster than wrong passwords.
const dummyPasswordHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// consumeScript marks a single-use code as redeemed and returns the
// stored record as it was before consumption. Only one concurrent
// redemption can receive the record.
//
// KEYS[1]  = record key
// KEYS[2]  = consumption marker key to set
// KEYS[3+] = additional marker keys that block redemption
//
// Returns the record JSON, "NOT_FOUND", or "CONSUMED".
var consumeScript = redis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then
	return 'NOT_FOUND'
end
for i = 2, #KEYS do
	if redis.call('EXISTS', KEYS[i]) == 1 then
		return 'CONSUMED'
	end
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl > 0 then
	redis.call('SET', KEYS[2], '1', 'PX', ttl)
else
	redis.call('SET', KEYS[2], '1')
end
return data
`)

// --- AuthorizationCodeService ---

// SaveAuthorizationCode stores an issued code.
func (s *Store) SaveAuthorizationCode(ctx context.Context, code *storage.AuthorizationCode) error {
	if code == nil || code.Code == "" {
		return fmt.Errorf("invalid authorization code")
	}

	data, err := json.Marshal(code)
	if err != nil {
		return fmt.Errorf("failed to marshal authorization code: %w", err)
	}

	key := s.codeKey(code.Code)
	if err := s.client.Set(ctx, key, data, ttlFor(code.ExpiresAt, time.Now())).Err(); err != nil {
		return fmt.Errorf("failed to save authorization code: %w", err)
	}
	return nil
}

// GetAuthorizationCode retrieves a code. A consumed or revoked code is
// returned with Revoked set so replays can be attributed.
func (s *Store) GetAuthorizationCode(ctx context.Context, code string) (*storage.AuthorizationCode, error) {
	key := s.codeKey(code)

	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get authorization code: %w", err)
	}

	var record storage.AuthorizationCode
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal authorization code: %w", err)
	}

	markers, err := s.client.Exists(ctx, usedMarkerKey(key), revokedMarkerKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to check code state: %w", err)
	}
	if markers > 0 {
		record.Revoked = true
	}

	return &record, nil
}

// ConsumeAuthorizationCode atomically redeems a code, returning its
// pre-consumption state. Returns storage.ErrCodeConsumed on replay.
func (s *Store) ConsumeAuthorizationCode(ctx context.Context, code string) (*storage.AuthorizationCode, error) {
	key := s.codeKey(code)

	// A revoked code blocks redemption the same way a used one does
	result, err := consumeScript.Run(ctx, s.client,
		[]string{key, usedMarkerKey(key), revokedMarkerKey(key)}).Text()
	if err != nil {
		return nil, fmt.Errorf("failed to consume authorization code: %w", err)
	}

	switch result {
	case "NOT_FOUND":
		return nil, storage.ErrNotFound
	case "CONSUMED":
		return nil, storage.ErrCodeConsumed
	}

	var record storage.AuthorizationCode
	if err := json.Unmarshal([]byte(result), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal authorization code: %w", err)
	}
	return &record, nil
}

// RevokeAuthorizationCode invalidates a code before redemption.
func (s *Store) RevokeAuthorizationCode(ctx context.Context, code string) error {
	key := s.codeKey(code)
	if _, err := revokeScript.Run(ctx, s.client, []string{key, revokedMarkerKey(key)}).Int(); err != nil {
		return fmt.Errorf("failed to revoke authorization code: %w", err)
	}
	return nil
}

// --- DeviceCodeService ---

// SaveDeviceCode stores a pending device authorization and the user code
// lookup entry pointing back at it.
func (s *Store) SaveDeviceCode(ctx context.Context, code *storage.DeviceCode) error {
	if code == nil || code.DeviceCode == "" {
		return fmt.Errorf("invalid device code")
	}

	data, err := json.Marshal(code)
	if err != nil {
		return fmt.Errorf("failed to marshal device code: %w", err)
	}

	ttl := ttlFor(code.ExpiresAt, time.Now())
	if err := s.client.Set(ctx, s.deviceCodeKey(code.DeviceCode), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save device code: %w", err)
	}
	if code.UserCode != "" {
		if err := s.client.Set(ctx, s.userCodeKey(code.UserCode), code.DeviceCode, ttl).Err(); err != nil {
			return fmt.Errorf("failed to save user code lookup: %w", err)
		}
	}
	return nil
}

// GetDeviceCode retrieves a record by device code.
func (s *Store) GetDeviceCode(ctx context.Context, deviceCode string) (*storage.DeviceCode, error) {
	key := s.deviceCodeKey(deviceCode)

	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get device code: %w", err)
	}

	var record storage.DeviceCode
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal device code: %w", err)
	}

	consumed, err := s.client.Exists(ctx, usedMarkerKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to check device code state: %w", err)
	}
	if consumed > 0 {
		record.Consumed = true
	}

	return &record, nil
}

// GetDeviceCodeByUserCode retrieves a record by the short user code.
func (s *Store) GetDeviceCodeByUserCode(ctx context.Context, userCode string) (*storage.DeviceCode, error) {
	deviceCode, err := s.client.Get(ctx, s.userCodeKey(userCode)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to resolve user code: %w", err)
	}
	return s.GetDeviceCode(ctx, deviceCode)
}

// UpdateDeviceCode replaces a stored record, keeping its TTL.
func (s *Store) UpdateDeviceCode(ctx context.Context, code *storage.DeviceCode) error {
	if code == nil || code.DeviceCode == "" {
		return fmt.Errorf("invalid device code")
	}

	key := s.deviceCodeKey(code.DeviceCode)
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to check device code: %w", err)
	}
	if exists == 0 {
		return storage.ErrNotFound
	}

	data, err := json.Marshal(code)
	if err != nil {
		return fmt.Errorf("failed to marshal device code: %w", err)
	}

	if err := s.client.Set(ctx, key, data, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("failed to update device code: %w", err)
	}
	return nil
}

// ConsumeDeviceCode atomically marks a device code as exchanged,
// returning its pre-consumption state.
func (s *Store) ConsumeDeviceCode(ctx context.Context, deviceCode string) (*storage.DeviceCode, error) {
	key := s.deviceCodeKey(deviceCode)

	result, err := consumeScript.Run(ctx, s.client, []string{key, usedMarkerKey(key)}).Text()
	if err != nil {
		return nil, fmt.Errorf("failed to consume device code: %w", err)
	}

	switch result {
	case "NOT_FOUND":
		return nil, storage.ErrNotFound
	case "CONSUMED":
		return nil, storage.ErrCodeConsumed
	}

	var record storage.DeviceCode
	if err := json.Unmarshal([]byte(result), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal device code: %w", err)
	}
	return &record, nil
}

// --- ConsentService ---

// SaveConsent stores a consent decision and its user-client lookup entry.
func (s *Store) SaveConsent(ctx context.Context, consent *storage.Consent) error {
	if consent == nil || consent.ID == "" {
		return fmt.Errorf("invalid consent")
	}

	data, err := json.Marshal(consent)
	if err != nil {
		return fmt.Errorf("failed to marshal consent: %w", err)
	}

	if err := s.client.Set(ctx, s.consentKey(consent.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save consent: %w", err)
	}
	pairKey := s.consentPairKey(consent.UserID, consent.ClientID)
	if err := s.client.Set(ctx, pairKey, consent.ID, 0).Err(); err != nil {
		return fmt.Errorf("failed to save consent lookup: %w", err)
	}
	return nil
}

// GetConsent retrieves a consent by ID.
func (s *Store) GetConsent(ctx context.Context, id string) (*storage.Consent, error) {
	data, err := s.client.Get(ctx, s.consentKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get consent: %w", err)
	}

	var consent storage.Consent
	if err := json.Unmarshal(data, &consent); err != nil {
		return nil, fmt.Errorf("failed to unmarshal consent: %w", err)
	}
	return &consent, nil
}

// FindConsent retrieves the consent for a user and client pair.
func (s *Store) FindConsent(ctx context.Context, userID, clientID string) (*storage.Consent, error) {
	id, err := s.client.Get(ctx, s.consentPairKey(userID, clientID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to resolve consent: %w", err)
	}
	return s.GetConsent(ctx, id)
}

// DeleteConsent removes a consent decision. Idempotent.
func (s *Store) DeleteConsent(ctx context.Context, id string) error {
	consent, err := s.GetConsent(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}

	if err := s.client.Del(ctx, s.consentKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete consent: %w", err)
	}
	_ = s.client.Del(ctx, s.consentPairKey(consent.UserID, consent.ClientID)).Err()
	return nil
}

// --- SessionService ---

// SaveSession stores a session.
func (s *Store) SaveSession(ctx context.Context, session *storage.Session) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("invalid session")
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := s.client.Set(ctx, s.sessionKey(session.ID), data, ttlFor(session.ExpiresAt, time.Now())).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID.
func (s *Store) GetSession(ctx context.Context, id string) (*storage.Session, error) {
	data, err := s.client.Get(ctx, s.sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session storage.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// DeleteSession removes a session. Idempotent.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// --- UserService ---

// SaveUser provisions a user. Not part of the UserService contract;
// deployments and tests use it to seed accounts.
func (s *Store) SaveUser(ctx context.Context, user *storage.User) error {
	if user == nil || user.ID == "" {
		return fmt.Errorf("invalid user")
	}

	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	if err := s.client.Set(ctx, s.userKey(user.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	if user.Username != "" {
		if err := s.client.Set(ctx, s.usernameKey(user.Username), user.ID, 0).Err(); err != nil {
			return fmt.Errorf("failed to save username lookup: %w", err)
		}
	}
	return nil
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (*storage.User, error) {
	data, err := s.client.Get(ctx, s.userKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	var user storage.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	return &user, nil
}

// GetUserByUsername retrieves a user by login name.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*storage.User, error) {
	id, err := s.client.Get(ctx, s.usernameKey(username)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to resolve username: %w", err)
	}
	return s.GetUser(ctx, id)
}

// Authenticate verifies a username and password pair. Unknown users and
// wrong passwords are indistinguishable to the caller.
func (s *Store) Authenticate(ctx context.Context, username, password string) (*storage.User, error) {
	user, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		// Burn comparable time so missing users do not answer faster
		// than wrong passwords.
		_ = bcrypt.CompareHashAndPassword([]byte(dummyPasswordHash), []byte(password))
		return nil, storage.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, storage.ErrInvalidCredentials
	}
	return user, nil
}

// --- AssertionReplayService ---

// MarkAssertion records a jti until it expires. The TTL makes redis
// forget the entry exactly when the assertion stops being acceptable.
func (s *Store) MarkAssertion(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		// Already expired, signature verification rejects it anyway
		return nil
	}

	ok, err := s.client.SetNX(ctx, s.assertionKey(jti), "1", ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to record assertion: %w", err)
	}
	if !ok {
		return storage.ErrReplayed
	}
	return nil
}
