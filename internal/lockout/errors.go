package lockout

import (
	"errors"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")
	ErrStoreUnavailable   = errors.New("credential store unavailable")
	ErrContention         = errors.New("lockout update contention")
)

// LockedError carries the lock deadline.
type LockedError struct {
	Until time.Time
}

// Error implements error.
func (e *LockedError) Error() string {
	return "account locked until " + e.Until.UTC().Format(time.RFC3339)
}

// Unwrap lets errors.Is match ErrAccountLocked.
func (e *LockedError) Unwrap() error { return ErrAccountLocked }

// RetryAfter is the time left on the lock at now.
func (e *LockedError) RetryAfter(now time.Time) time.Duration {
	if d := e.Until.Sub(now); d > 0 {
		return d
	}
	return 0
}
