package lockout

import (
	"errors"
	"time"

	"github.com/civicpulse/authcore/internal/accounts"
)

// Policy bounds failed credential checks per lockout window.
type Policy struct {
	Threshold int
	Duration  time.Duration
}

// DefaultPolicy locks after five failures for two hours.
func DefaultPolicy() Policy {
	return Policy{Threshold: 5, Duration: 120 * time.Minute}
}

// Validate rejects a zero threshold or a non-positive duration.
func (p Policy) Validate() error {
	if p.Threshold < 1 {
		return errors.New("lockout threshold must be >= 1")
	}
	if p.Duration <= 0 {
		return errors.New("lockout duration must be > 0")
	}
	return nil
}

// IsLocked reports whether a lock is in force at now.
func IsLocked(st accounts.LockoutState, now time.Time) bool {
	return st.LockedUntil != nil && now.Before(*st.LockedUntil)
}

// Settle resets an elapsed lock to unlocked(0). Other states pass through.
func Settle(st accounts.LockoutState, now time.Time) accounts.LockoutState {
	if st.LockedUntil != nil && !now.Before(*st.LockedUntil) {
		st.FailedAttempts = 0
		st.LockedUntil = nil
	}
	return st
}

// ApplyLockedHit counts an attempt against a locked account without moving
// the lock deadline.
func ApplyLockedHit(st accounts.LockoutState) accounts.LockoutState {
	st.FailedAttempts++
	return st
}

// ApplyFailure records a wrong secret and locks once the threshold is
// reached.
func ApplyFailure(st accounts.LockoutState, now time.Time, p Policy) accounts.LockoutState {
	st = Settle(st, now)
	st.FailedAttempts++
	if st.FailedAttempts >= p.Threshold && !IsLocked(st, now) {
		until := now.Add(p.Duration)
		st.LockedUntil = &until
	}
	return st
}

// ApplySuccess resets the state and stamps LastAuthenticatedAt.
func ApplySuccess(st accounts.LockoutState, now time.Time) accounts.LockoutState {
	at := now
	return accounts.LockoutState{LastAuthenticatedAt: &at}
}

// ApplyUnlock clears counters and lock without touching LastAuthenticatedAt.
func ApplyUnlock(st accounts.LockoutState) accounts.LockoutState {
	st.FailedAttempts = 0
	st.LockedUntil = nil
	return st
}
