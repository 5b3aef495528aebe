package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/authgrid/oauth/security"
	"github.com/authgrid/oauth/storage"
)

// Default timeouts for Redis operations.
const (
	defaultDialTimeout  = 5 * time.Second
	defaultReadTimeout  = 3 * time.Second
	defaultWriteTimeout = 3 * time.Second

	// connectionVerifyTimeout bounds the initial ping
	connectionVerifyTimeout = 5 * time.Second

	// defaultKeyPrefix namespaces all keys written by the store
	defaultKeyPrefix = "oauth:"

	// expiredRetention keeps expired and consumed records readable for a
	// short window so replay attempts can still be attributed
	expiredRetention = 5 * time.Minute
)

// Config holds the Redis connection configuration.
type Config struct {
	// Address is the host:port of the Redis server
	Address string

	// Username and Password authenticate with the server.
	// Leave Username empty for password-only AUTH.
	Username string
	Password string

	// DB selects the logical database
	DB int

	// KeyPrefix namespaces keys for multi-tenant deployments.
	// Defaults to "oauth:".
	KeyPrefix string

	// TLSConfig enables TLS when non-nil
	TLSConfig *tls.Config

	// Timeouts (defaults: Dial=5s, Read=3s, Write=3s)
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Logger for store operations, defaults to slog.Default
	Logger *slog.Logger
}

// Store is a Redis-backed implementation of the storage services.
// It supports horizontal scaling: the single-use guarantees for
// authorization codes, device codes, refresh token rotation, and
// assertion IDs hold across server instances because they are enforced
// with server-side scripts.
type Store struct {
	client redis.UniversalClient
	prefix string
	logger *slog.Logger

	mu        sync.RWMutex
	encryptor *security.Encryptor
}

// Compile-time interface compliance checks
var (
	_ storage.ClientService            = (*Store)(nil)
	_ storage.AccessTokenService       = (*Store)(nil)
	_ storage.RefreshTokenService      = (*Store)(nil)
	_ storage.RefreshTokenRotator      = (*Store)(nil)
	_ storage.AuthorizationCodeService = (*Store)(nil)
	_ storage.DeviceCodeService        = (*Store)(nil)
	_ storage.ConsentService           = (*Store)(nil)
	_ storage.SessionService           = (*Store)(nil)
	_ storage.UserService              = (*Store)(nil)
	_ storage.AssertionReplayService   = (*Store)(nil)
	_ storage.TokenRevocationService   = (*Store)(nil)
)

// New connects to Redis and verifies the connection before returning.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = defaultKeyPrefix
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		TLSConfig:    cfg.TLSConfig,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, connectionVerifyTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Store{
		client: client,
		prefix: cfg.KeyPrefix,
		logger: cfg.Logger,
	}, nil
}

// NewWithClient wraps a pre-configured client. Used by tests with miniredis.
func NewWithClient(client redis.UniversalClient, keyPrefix string) *Store {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &Store{
		client: client,
		prefix: keyPrefix,
		logger: slog.Default(),
	}
}

// Close closes the underlying client connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping checks connectivity, used by health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// SetLogger replaces the store's logger.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetEncryptor enables encryption at rest for recoverable client secrets.
func (s *Store) SetEncryptor(enc *security.Encryptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.encryptor = enc
}

func (s *Store) getEncryptor() *security.Encryptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.encryptor
}

// Services returns the service bundle backed by this store.
func (s *Store) Services() storage.Services {
	return storage.Services{
		Clients:            s,
		AccessTokens:       s,
		RefreshTokens:      s,
		AuthorizationCodes: s,
		DeviceCodes:        s,
		Consents:           s,
		Sessions:           s,
		Users:              s,
		Assertions:         s,
	}
}

// ============================================================
// Key Helpers
// ============================================================

// clientKey returns the key for a client: {prefix}client:{clientID}
func (s *Store) clientKey(clientID string) string {
	return s.prefix + "client:" + clientID
}

// accessTokenKey returns the key for an access token: {prefix}at:{handle}
func (s *Store) accessTokenKey(handle string) string {
	return s.prefix + "at:" + handle
}

// refreshTokenKey returns the key for a refresh token: {prefix}rt:{handle}
func (s *Store) refreshTokenKey(handle string) string {
	return s.prefix + "rt:" + handle
}

// codeKey returns the key for an authorization code: {prefix}code:{code}
func (s *Store) codeKey(code string) string {
	return s.prefix + "code:" + code
}

// deviceCodeKey returns the key for a device code: {prefix}device:{code}
func (s *Store) deviceCodeKey(deviceCode string) string {
	return s.prefix + "device:" + deviceCode
}

// userCodeKey maps a user code to its device code: {prefix}usercode:{code}
func (s *Store) userCodeKey(userCode string) string {
	return s.prefix + "usercode:" + userCode
}

// consentKey returns the key for a consent: {prefix}consent:{id}
func (s *Store) consentKey(id string) string {
	return s.prefix + "consent:" + id
}

// consentPairKey maps a user and client pair to a consent ID
func (s *Store) consentPairKey(userID, clientID string) string {
	return s.prefix + "consent:pair:" + userID + ":" + clientID
}

// sessionKey returns the key for a session: {prefix}session:{id}
func (s *Store) sessionKey(id string) string {
	return s.prefix + "session:" + id
}

// userKey returns the key for a user: {prefix}user:{id}
func (s *Store) userKey(id string) string {
	return s.prefix + "user:" + id
}

// usernameKey maps a login name to a user ID: {prefix}username:{name}
func (s *Store) usernameKey(username string) string {
	return s.prefix + "username:" + username
}

// assertionKey returns the key for a seen jti: {prefix}jti:{jti}
func (s *Store) assertionKey(jti string) string {
	return s.prefix + "jti:" + jti
}

// userClientIndexKey returns the set of token keys issued to a user and
// client pair: {prefix}index:uc:{userID}:{clientID}
func (s *Store) userClientIndexKey(userID, clientID string) string {
	return s.prefix + "index:uc:" + userID + ":" + clientID
}

// ttlFor converts an absolute expiry into a key TTL. Records stay
// readable for expiredRetention past expiry so replayed artifacts can be
// attributed before they vanish. A zero expiry means no TTL.
func ttlFor(expiresAt time.Time, now time.Time) time.Duration {
	if expiresAt.IsZero() {
		return 0
	}
	ttl := expiresAt.Sub(now) + expiredRetention
	if ttl <= 0 {
		ttl = time.Second
	}
	return ttl
}
