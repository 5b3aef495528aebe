package security

import (
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultMaxRegistrationsPerWindow limits client registrations per IP
	DefaultMaxRegistrationsPerWindow = 10

	// DefaultRegistrationWindow is the sliding window for registration limits
	DefaultRegistrationWindow = time.Hour
)

// RegistrationRateLimiter enforces a sliding-window limit on dynamic client
// registrations per IP address. Repeated register/delete cycles would
// otherwise let a single caller exhaust storage.
type RegistrationRateLimiter struct {
	mu           sync.Mutex
	attempts     map[string][]time.Time
	maxPerWindow int
	window       time.Duration
	logger       *slog.Logger
}

// NewRegistrationRateLimiter creates a registration limiter. Zero or
// negative arguments fall back to the defaults.
func NewRegistrationRateLimiter(maxPerWindow int, window time.Duration, logger *slog.Logger) *RegistrationRateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	if maxPerWindow <= 0 {
		maxPerWindow = DefaultMaxRegistrationsPerWindow
	}
	if window <= 0 {
		window = DefaultRegistrationWindow
	}
	return &RegistrationRateLimiter{
		attempts:     make(map[string][]time.Time),
		maxPerWindow: maxPerWindow,
		window:       window,
		logger:       logger,
	}
}

// Allow records a registration attempt from ip and reports whether it is
// within the window limit.
func (rl *RegistrationRateLimiter) Allow(ip string) bool {
	now := time.Now()
	cutoff := now.Add(-rl.window)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	recent := rl.attempts[ip][:0]
	for _, t := range rl.attempts[ip] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= rl.maxPerWindow {
		rl.attempts[ip] = recent
		rl.logger.Warn("Client registration rate limit exceeded",
			"ip", ip,
			"attempts_in_window", len(recent),
			"max_per_window", rl.maxPerWindow)
		return false
	}

	rl.attempts[ip] = append(recent, now)
	return true
}

// Cleanup drops IPs whose every attempt has left the window.
func (rl *RegistrationRateLimiter) Cleanup() {
	cutoff := time.Now().Add(-rl.window)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for ip, times := range rl.attempts {
		live := false
		for _, t := range times {
			if t.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(rl.attempts, ip)
		}
	}
}
