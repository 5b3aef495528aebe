package memory

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/authgrid/oauth/instrumentation"
	"github.com/authgrid/oauth/security"
	"github.com/authgrid/oauth/storage"
)

// Store is an in-memory implementation of every storage service,
// including the optional rotation, replay, and bulk revocation
// capabilities. All entities are copied on the way in and out so callers
// never share memory with the store.
type Store struct {
	mu sync.RWMutex

	clients       map[string]*storage.Client
	accessTokens  map[string]*storage.AccessToken
	refreshTokens map[string]*storage.RefreshToken

	authCodes   map[string]*storage.AuthorizationCode
	deviceCodes map[string]*storage.DeviceCode
	userCodes   map[string]string // user code -> device code

	consents map[string]*storage.Consent
	sessions map[string]*storage.Session
	users    map[string]*storage.User
	userIDs  map[string]string // username -> user ID

	assertions map[string]time.Time // jti -> expiry

	// Lock-free counters for the observable gauges
	clientsCount      atomic.Int64
	accessTokenCount  atomic.Int64
	refreshTokenCount atomic.Int64
	codesCount        atomic.Int64

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
	logger          *slog.Logger
}

// Compile-time checks that Store satisfies every service contract,
// including the optional capabilities.
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

// New creates an in-memory store with the default cleanup interval of
// one minute.
func New() *Store {
	return NewWithInterval(time.Minute)
}

// NewWithInterval creates an in-memory store with a custom cleanup
// interval. Non-positive intervals fall back to one minute.
func NewWithInterval(cleanupInterval time.Duration) *Store {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	s := &Store{
		clients:         make(map[string]*storage.Client),
		accessTokens:    make(map[string]*storage.AccessToken),
		refreshTokens:   make(map[string]*storage.RefreshToken),
		authCodes:       make(map[string]*storage.AuthorizationCode),
		deviceCodes:     make(map[string]*storage.DeviceCode),
		userCodes:       make(map[string]string),
		consents:        make(map[string]*storage.Consent),
		sessions:        make(map[string]*storage.Session),
		users:           make(map[string]*storage.User),
		userIDs:         make(map[string]string),
		assertions:      make(map[string]time.Time),
		cleanupInterval: cleanupInterval,
		stopCleanup:     make(chan struct{}),
		logger:          slog.Default(),
	}
	go s.cleanupLoop()
	return s
}

// SetLogger sets a custom logger.
func (s *Store) SetLogger(logger *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
}

// SetInstrumentation registers the storage size gauges.
func (s *Store) SetInstrumentation(inst *instrumentation.Instrumentation) {
	if inst == nil {
		return
	}
	s.mu.RLock()
	s.clientsCount.Store(int64(len(s.clients)))
	s.accessTokenCount.Store(int64(len(s.accessTokens)))
	s.refreshTokenCount.Store(int64(len(s.refreshTokens)))
	s.codesCount.Store(int64(len(s.authCodes) + len(s.deviceCodes)))
	s.mu.RUnlock()

	err := inst.RegisterStorageSizeCallbacks(
		func() int64 { return s.clientsCount.Load() },
		func() int64 { return s.accessTokenCount.Load() },
		func() int64 { return s.refreshTokenCount.Load() },
		func() int64 { return s.codesCount.Load() },
	)
	if err != nil {
		s.logger.Warn("Failed to register storage size gauges", "error", err)
	}
}

// Services returns the store wired into a service bundle.
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

// Close stops the background cleanup goroutine.
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.stopCleanup) })
}

// --- ClientService ---

func (s *Store) CreateClient(_ context.Context, client *storage.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.clients[client.ID]; exists {
		return storage.ErrConflict
	}
	c := *client
	s.clients[client.ID] = &c
	s.clientsCount.Store(int64(len(s.clients)))
	return nil
}

func (s *Store) GetClient(_ context.Context, clientID string) (*storage.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	client, ok := s.clients[clientID]
	if !ok {
		return nil, storage.ErrClientNotFound
	}
	c := *client
	return &c, nil
}

func (s *Store) UpdateClient(_ context.Context, client *storage.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[client.ID]; !ok {
		return storage.ErrClientNotFound
	}
	c := *client
	s.clients[client.ID] = &c
	return nil
}

func (s *Store) DeleteClient(_ context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[clientID]; !ok {
		return storage.ErrClientNotFound
	}
	delete(s.clients, clientID)
	s.clientsCount.Store(int64(len(s.clients)))
	return nil
}

// --- AccessTokenService ---

func (s *Store) SaveAccessToken(_ context.Context, token *storage.AccessToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := *token
	s.accessTokens[token.Handle] = &t
	s.accessTokenCount.Store(int64(len(s.accessTokens)))
	return nil
}

func (s *Store) GetAccessToken(_ context.Context, handle string) (*storage.AccessToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.accessTokens[handle]
	if !ok {
		return nil, storage.ErrTokenNotFound
	}
	t := *token
	return &t, nil
}

func (s *Store) RevokeAccessToken(_ context.Context, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token, ok := s.accessTokens[handle]; ok {
		token.Revoked = true
	}
	return nil
}

// --- RefreshTokenService / RefreshTokenRotator ---

func (s *Store) SaveRefreshToken(_ context.Context, token *storage.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := *token
	s.refreshTokens[token.Handle] = &t
	s.refreshTokenCount.Store(int64(len(s.refreshTokens)))
	return nil
}

func (s *Store) GetRefreshToken(_ context.Context, handle string) (*storage.RefreshToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.refreshTokens[handle]
	if !ok {
		return nil, storage.ErrTokenNotFound
	}
	t := *token
	return &t, nil
}

func (s *Store) RevokeRefreshToken(_ context.Context, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token, ok := s.refreshTokens[handle]; ok {
		token.Revoked = true
	}
	return nil
}

// RotateRefreshToken retires the presented handle and stores its
// successor under the same lock, so two concurrent redemptions of the
// same handle cannot both succeed.
func (s *Store) RotateRefreshToken(_ context.Context, handle string, successor *storage.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.refreshTokens[handle]
	if !ok {
		return storage.ErrTokenNotFound
	}
	if token.Revoked {
		return storage.ErrCodeConsumed
	}
	token.Revoked = true
	t := *successor
	s.refreshTokens[successor.Handle] = &t
	s.refreshTokenCount.Store(int64(len(s.refreshTokens)))
	return nil
}

// --- AuthorizationCodeService ---

func (s *Store) SaveAuthorizationCode(_ context.Context, code *storage.AuthorizationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *code
	s.authCodes[code.Code] = &c
	s.codesCount.Store(int64(len(s.authCodes) + len(s.deviceCodes)))
	return nil
}

func (s *Store) GetAuthorizationCode(_ context.Context, code string) (*storage.AuthorizationCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.authCodes[code]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := *stored
	return &c, nil
}

// ConsumeAuthorizationCode marks the code used exactly once. The code
// record survives so a replay can be attributed to its owner.
func (s *Store) ConsumeAuthorizationCode(_ context.Context, code string) (*storage.AuthorizationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.authCodes[code]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if stored.Revoked {
		return nil, storage.ErrCodeConsumed
	}
	stored.Revoked = true
	c := *stored
	c.Revoked = false
	return &c, nil
}

func (s *Store) RevokeAuthorizationCode(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stored, ok := s.authCodes[code]; ok {
		stored.Revoked = true
	}
	return nil
}

// --- DeviceCodeService ---

func (s *Store) SaveDeviceCode(_ context.Context, code *storage.DeviceCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *code
	s.deviceCodes[code.DeviceCode] = &c
	s.userCodes[code.UserCode] = code.DeviceCode
	s.codesCount.Store(int64(len(s.authCodes) + len(s.deviceCodes)))
	return nil
}

func (s *Store) GetDeviceCode(_ context.Context, deviceCode string) (*storage.DeviceCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.deviceCodes[deviceCode]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := *stored
	return &c, nil
}

func (s *Store) GetDeviceCodeByUserCode(_ context.Context, userCode string) (*storage.DeviceCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	deviceCode, ok := s.userCodes[userCode]
	if !ok {
		return nil, storage.ErrNotFound
	}
	stored, ok := s.deviceCodes[deviceCode]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := *stored
	return &c, nil
}

func (s *Store) UpdateDeviceCode(_ context.Context, code *storage.DeviceCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.deviceCodes[code.DeviceCode]; !ok {
		return storage.ErrNotFound
	}
	c := *code
	s.deviceCodes[code.DeviceCode] = &c
	return nil
}

func (s *Store) ConsumeDeviceCode(_ context.Context, deviceCode string) (*storage.DeviceCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.deviceCodes[deviceCode]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if stored.Consumed {
		return nil, storage.ErrCodeConsumed
	}
	stored.Consumed = true
	c := *stored
	return &c, nil
}

// --- ConsentService ---

func (s *Store) SaveConsent(_ context.Context, consent *storage.Consent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *consent
	s.consents[consent.ID] = &c
	return nil
}

func (s *Store) GetConsent(_ context.Context, id string) (*storage.Consent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	consent, ok := s.consents[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := *consent
	return &c, nil
}

func (s *Store) FindConsent(_ context.Context, userID, clientID string) (*storage.Consent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, consent := range s.consents {
		if consent.UserID == userID && consent.ClientID == clientID {
			c := *consent
			return &c, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) DeleteConsent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.consents, id)
	return nil
}

// --- SessionService ---

func (s *Store) SaveSession(_ context.Context, session *storage.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := *session
	s.sessions[session.ID] = &sess
	return nil
}

func (s *Store) GetSession(_ context.Context, id string) (*storage.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	sess := *session
	return &sess, nil
}

func (s *Store) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// --- UserService ---

// SaveUser provisions a user. Not part of the UserService contract;
// deployments and tests use it to seed accounts.
func (s *Store) SaveUser(_ context.Context, user *storage.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := *user
	s.users[user.ID] = &u
	s.userIDs[user.Username] = user.ID
	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (*storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	u := *user
	return &u, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.userIDs[username]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	u := *s.users[id]
	return &u, nil
}

// Authenticate verifies the password against the stored bcrypt hash.
// Unknown users and wrong passwords are indistinguishable to the caller.
func (s *Store) Authenticate(ctx context.Context, username, password string) (*storage.User, error) {
	user, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		// Burn comparable time so missing users do not answer faster
		// than wrong passwords.
		_ = bcrypt.CompareHashAndPassword(
			[]byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"),
			[]byte(password))
		return nil, storage.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, storage.ErrInvalidCredentials
	}
	return user, nil
}

// --- AssertionReplayService ---

func (s *Store) MarkAssertion(_ context.Context, jti string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if expiry, seen := s.assertions[jti]; seen && time.Now().Before(expiry) {
		return storage.ErrReplayed
	}
	s.assertions[jti] = expiresAt
	return nil
}

// --- TokenRevocationService ---

func (s *Store) RevokeAllForUserClient(_ context.Context, userID, clientID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, token := range s.accessTokens {
		if token.UserID == userID && token.ClientID == clientID && !token.Revoked {
			token.Revoked = true
			count++
		}
	}
	for _, token := range s.refreshTokens {
		if token.UserID == userID && token.ClientID == clientID && !token.Revoked {
			token.Revoked = true
			count++
		}
	}
	return count, nil
}

// --- cleanup ---

func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCleanup:
			return
		}
	}
}

// cleanup drops entries that expired long enough ago that no grace
// period can resurrect them. Revoked-but-unexpired tokens are kept so
// replay detection keeps working.
func (s *Store) cleanup() {
	const retention = 5 * time.Minute
	gone := func(expiresAt time.Time) bool {
		return !expiresAt.IsZero() && security.IsExpiredWithGracePeriod(expiresAt, retention)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for handle, token := range s.accessTokens {
		if gone(token.ExpiresAt) {
			delete(s.accessTokens, handle)
			removed++
		}
	}
	for handle, token := range s.refreshTokens {
		if gone(token.ExpiresAt) {
			delete(s.refreshTokens, handle)
			removed++
		}
	}
	for code, ac := range s.authCodes {
		if gone(ac.ExpiresAt) {
			delete(s.authCodes, code)
			removed++
		}
	}
	for code, dc := range s.deviceCodes {
		if gone(dc.ExpiresAt) {
			delete(s.userCodes, dc.UserCode)
			delete(s.deviceCodes, code)
			removed++
		}
	}
	for jti, expiry := range s.assertions {
		if gone(expiry) {
			delete(s.assertions, jti)
			removed++
		}
	}
	for id, session := range s.sessions {
		if gone(session.ExpiresAt) {
			delete(s.sessions, id)
			removed++
		}
	}

	s.accessTokenCount.Store(int64(len(s.accessTokens)))
	s.refreshTokenCount.Store(int64(len(s.refreshTokens)))
	s.codesCount.Store(int64(len(s.authCodes) + len(s.deviceCodes)))

	if removed > 0 {
		s.logger.Debug("Cleaned up expired entries", "removed", removed)
	}
}
