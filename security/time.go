package security

import "time"

const (
	// DefaultClockSkewGracePeriod is the default grace period applied to
	// expiry checks. It prevents false expiration errors from minor time
	// differences between cooperating systems. Tokens may be honored up
	// to this long past their nominal expiry.
	DefaultClockSkewGracePeriod = 5 * time.Second
)

// IsExpiredWithGracePeriod checks expiry with a custom grace period.
// A zero expiresAt means no expiration.
func IsExpiredWithGracePeriod(expiresAt time.Time, gracePeriod time.Duration) bool {
	if expiresAt.IsZero() {
		return false
	}
	return time.Now().After(expiresAt.Add(gracePeriod))
}

