package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/authgrid/oauth/storage"
)

// Revocation and consumption are recorded as marker keys next to the
// record instead of rewriting the stored JSON. The scripts below only
// touch markers, so concurrent redemptions race on a single SET and
// exactly one wins. Handles are base64url so the ":revoked" and ":used"
// suffixes cannot collide with a record key.

// revokedMarkerKey returns the revocation marker for a record key.
func revokedMarkerKey(recordKey string) string {
	return recordKey + ":revoked"
}

// usedMarkerKey returns the consumption marker for a record key.
func usedMarkerKey(recordKey string) string {
	return recordKey + ":used"
}

// revokeScript marks a record revoked. The marker inherits the record's
// TTL so it disappears together with the record.
//
// KEYS[1] = record key
// KEYS[2] = revocation marker key
//
// Returns -1 when the record does not exist, 0 when it was already
// revoked, 1 when this call revoked it.
var revokeScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
if redis.call('EXISTS', KEYS[2]) == 1 then
	return 0
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl > 0 then
	redis.call('SET', KEYS[2], '1', 'PX', ttl)
else
	redis.call('SET', KEYS[2], '1')
end
return 1
`)

// rotateScript retires a refresh token and stores its successor in one
// server-side step so two concurrent redemptions of the same handle
// cannot both succeed.
//
// KEYS[1] = old refresh token key
// KEYS[2] = old token's revocation marker key
// KEYS[3] = successor refresh token key
// ARGV[1] = successor JSON
// ARGV[2] = successor TTL in milliseconds, 0 for none
//
// Returns "OK", "NOT_FOUND", or "CONSUMED".
var rotateScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 'NOT_FOUND'
end
if redis.call('EXISTS', KEYS[2]) == 1 then
	return 'CONSUMED'
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl > 0 then
	redis.call('SET', KEYS[2], '1', 'PX', ttl)
else
	redis.call('SET', KEYS[2], '1')
end
local newTTL = tonumber(ARGV[2])
if newTTL > 0 then
	redis.call('SET', KEYS[3], ARGV[1], 'PX', newTTL)
else
	redis.call('SET', KEYS[3], ARGV[1])
end
return 'OK'
`)

// --- AccessTokenService ---

// SaveAccessToken stores an issued access token.
func (s *Store) SaveAccessToken(ctx context.Context, token *storage.AccessToken) error {
	if token == nil || token.Handle == "" {
		return fmt.Errorf("invalid access token")
	}

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal access token: %w", err)
	}

	now := time.Now()
	key := s.accessTokenKey(token.Handle)
	ttl := ttlFor(token.ExpiresAt, now)
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save access token: %w", err)
	}

	s.indexUserClientToken(ctx, token.UserID, token.ClientID, key, ttl)
	return nil
}

// GetAccessToken retrieves a token by handle.
func (s *Store) GetAccessToken(ctx context.Context, handle string) (*storage.AccessToken, error) {
	key := s.accessTokenKey(handle)

	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get access token: %w", err)
	}

	var token storage.AccessToken
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to unmarshal access token: %w", err)
	}

	revoked, err := s.client.Exists(ctx, revokedMarkerKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to check revocation: %w", err)
	}
	if revoked > 0 {
		token.Revoked = true
	}

	return &token, nil
}

// RevokeAccessToken marks a token revoked. Unknown handles are not an
// error so revocation stays idempotent.
func (s *Store) RevokeAccessToken(ctx context.Context, handle string) error {
	key := s.accessTokenKey(handle)
	if _, err := revokeScript.Run(ctx, s.client, []string{key, revokedMarkerKey(key)}).Int(); err != nil {
		return fmt.Errorf("failed to revoke access token: %w", err)
	}
	return nil
}

// --- RefreshTokenService ---

// SaveRefreshToken stores an issued refresh token.
func (s *Store) SaveRefreshToken(ctx context.Context, token *storage.RefreshToken) error {
	if token == nil || token.Handle == "" {
		return fmt.Errorf("invalid refresh token")
	}

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal refresh token: %w", err)
	}

	now := time.Now()
	key := s.refreshTokenKey(token.Handle)
	ttl := ttlFor(token.ExpiresAt, now)
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save refresh token: %w", err)
	}

	s.indexUserClientToken(ctx, token.UserID, token.ClientID, key, ttl)
	return nil
}

// GetRefreshToken retrieves a token by handle.
func (s *Store) GetRefreshToken(ctx context.Context, handle string) (*storage.RefreshToken, error) {
	key := s.refreshTokenKey(handle)

	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}

	var token storage.RefreshToken
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to unmarshal refresh token: %w", err)
	}

	revoked, err := s.client.Exists(ctx, revokedMarkerKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to check revocation: %w", err)
	}
	if revoked > 0 {
		token.Revoked = true
	}

	return &token, nil
}

// RevokeRefreshToken marks a token revoked.
func (s *Store) RevokeRefreshToken(ctx context.Context, handle string) error {
	key := s.refreshTokenKey(handle)
	if _, err := revokeScript.Run(ctx, s.client, []string{key, revokedMarkerKey(key)}).Int(); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

// --- RefreshTokenRotator ---

// RotateRefreshToken atomically retires the token with the given handle
// and stores its successor. A second rotation of the same handle returns
// storage.ErrCodeConsumed, which the caller treats as token theft.
func (s *Store) RotateRefreshToken(ctx context.Context, handle string, successor *storage.RefreshToken) error {
	if successor == nil || successor.Handle == "" {
		return fmt.Errorf("invalid successor token")
	}

	data, err := json.Marshal(successor)
	if err != nil {
		return fmt.Errorf("failed to marshal successor token: %w", err)
	}

	now := time.Now()
	oldKey := s.refreshTokenKey(handle)
	newKey := s.refreshTokenKey(successor.Handle)
	ttl := ttlFor(successor.ExpiresAt, now)

	result, err := rotateScript.Run(ctx, s.client,
		[]string{oldKey, revokedMarkerKey(oldKey), newKey},
		data, ttl.Milliseconds(),
	).Text()
	if err != nil {
		return fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	switch result {
	case "OK":
		s.indexUserClientToken(ctx, successor.UserID, successor.ClientID, newKey, ttl)
		return nil
	case "NOT_FOUND":
		return storage.ErrTokenNotFound
	case "CONSUMED":
		return storage.ErrCodeConsumed
	default:
		return fmt.Errorf("unexpected rotation result %q", result)
	}
}

// --- TokenRevocationService ---

// RevokeAllForUserClient revokes every access and refresh token issued
// to the user and client pair, returning the number revoked.
func (s *Store) RevokeAllForUserClient(ctx context.Context, userID, clientID string) (int, error) {
	indexKey := s.userClientIndexKey(userID, clientID)

	keys, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("failed to list tokens for revocation: %w", err)
	}

	revoked := 0
	for _, key := range keys {
		result, err := revokeScript.Run(ctx, s.client, []string{key, revokedMarkerKey(key)}).Int()
		if err != nil {
			return revoked, fmt.Errorf("failed to revoke token: %w", err)
		}
		if result == 1 {
			revoked++
		}
	}

	// The markers outlive the index entry, so dropping the set is safe
	_ = s.client.Del(ctx, indexKey).Err()

	s.logger.Info("Revoked all tokens for user and client",
		"user_id", userID,
		"client_id", clientID,
		"revoked", revoked)
	return revoked, nil
}

// indexUserClientToken records the token key in the per-user-per-client
// set that backs bulk revocation. Client-only tokens are not indexed.
// Best effort: a failed index write degrades bulk revocation, not token
// issuance.
func (s *Store) indexUserClientToken(ctx context.Context, userID, clientID, key string, ttl time.Duration) {
	if userID == "" || clientID == "" {
		return
	}

	indexKey := s.userClientIndexKey(userID, clientID)
	if err := s.client.SAdd(ctx, indexKey, key).Err(); err != nil {
		s.logger.Warn("Failed to index token for bulk revocation",
			"user_id", userID,
			"client_id", clientID,
			"error", err)
		return
	}
	if ttl > 0 {
		// Only ever extend the index lifetime, so a short-lived access
		// token cannot expire the index under a live refresh token.
		// ExpireGT fails on keys without a TTL, hence the NX attempt.
		ok, err := s.client.ExpireNX(ctx, indexKey, ttl).Result()
		if err == nil && !ok {
			_ = s.client.ExpireGT(ctx, indexKey, ttl).Err()
		}
	}
}
