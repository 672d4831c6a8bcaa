package security

import "time"

const (
	// DefaultClockSkewGracePeriod is the grace period applied to expiry
	// checks so minor clock drift between systems does not cause false
	// expirations. 5 seconds covers typical NTP drift.
	DefaultClockSkewGracePeriod = 5 * time.Second
)

// IsTokenExpired checks if an expiry has passed, with the default clock skew
// grace period applied.
func IsTokenExpired(expiresAt time.Time) bool {
	return IsTokenExpiredWithGracePeriod(expiresAt, DefaultClockSkewGracePeriod)
}

// IsTokenExpiredWithGracePeriod checks if an expiry has passed by more than
// the given grace period. A zero time never expires.
func IsTokenExpiredWithGracePeriod(expiresAt time.Time, gracePeriod time.Duration) bool {
	if expiresAt.IsZero() {
		return false
	}
	return time.Now().After(expiresAt.Add(gracePeriod))
}

// IsTokenExpiringSoon checks if an expiry falls within the given threshold
// from now. Callers use it to refresh or re-mint ahead of expiry.
func IsTokenExpiringSoon(expiresAt time.Time, threshold time.Duration) bool {
	if expiresAt.IsZero() {
		return false
	}
	return time.Now().Add(threshold).After(expiresAt)
}
