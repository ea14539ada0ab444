package otp

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound          = errors.New("no active code")
	ErrExpired           = errors.New("code expired")
	ErrAttemptsExhausted = errors.New("code attempts exhausted")
	ErrInvalidCode       = errors.New("invalid code")
	ErrRateLimited       = errors.New("code issuance rate limited")
	ErrStoreUnavailable  = errors.New("otp store unavailable")
	ErrInvalidPurpose    = errors.New("invalid code purpose")
	ErrInvalidIdentity   = errors.New("invalid code identity")
)

// MismatchError is returned for a wrong code while attempts remain.
type MismatchError struct {
	Remaining int
}

// Error implements error.
func (e *MismatchError) Error() string {
	return fmt.Sprintf("invalid code: %d attempt(s) remaining", e.Remaining)
}

// Unwrap lets errors.Is match ErrInvalidCode.
func (e *MismatchError) Unwrap() error { return ErrInvalidCode }

// RateLimitError is returned by Issue while the resend cooldown is running.
type RateLimitError struct {
	Wait time.Duration
}

// Error implements error.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("code issuance rate limited: retry in %ds", e.WaitSeconds())
}

// Unwrap lets errors.Is match ErrRateLimited.
func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// WaitSeconds rounds Wait up to whole seconds, never below one.
func (e *RateLimitError) WaitSeconds() int {
	secs := int((e.Wait + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

// CooldownError is returned by Store.Create when the existing record is
// newer than the requested notBefore bound. Nothing is written.
type CooldownError struct {
	CreatedAt time.Time
}

// Error implements error.
func (e *CooldownError) Error() string {
	return "code created at " + e.CreatedAt.Format(time.RFC3339) + " is inside the cooldown window"
}
