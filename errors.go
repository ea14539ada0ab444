package authcore

import (
	"errors"
	"fmt"
	"time"

	"github.com/civicpulse/authcore/internal/accounts"
	"github.com/civicpulse/authcore/internal/lockout"
	"github.com/civicpulse/authcore/internal/otp"
	"github.com/civicpulse/authcore/internal/rate"
	"github.com/civicpulse/authcore/password"
)

var (
	// Code outcomes.
	ErrCodeNotFound      = errors.New("no active code, request a new one")
	ErrCodeExpired       = errors.New("code expired")
	ErrAttemptsExhausted = errors.New("code attempts exhausted")
	ErrInvalidCode       = errors.New("invalid code")
	ErrRateLimited       = errors.New("rate limited")

	// Credential outcomes.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")
	ErrAlreadyVerified    = errors.New("account already verified")
	ErrAccountUnverified  = errors.New("account unverified")
	ErrAccountNotFound    = errors.New("account not found")
	ErrIdentityTaken      = errors.New("identity already registered")

	// Validation.
	ErrInvalidIdentity    = errors.New("invalid identity")
	ErrInvalidDisplayName = errors.New("invalid display name")
	ErrInvalidPurpose     = errors.New("invalid code purpose")
	ErrPasswordPolicy     = errors.New("password policy violation")

	// Infrastructure and collaborators.
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrDeliveryFailed   = errors.New("notification delivery failed")
	ErrSessionIssuance  = errors.New("session issuance failed")
	ErrEngineNotReady   = errors.New("engine not initialized")
)

// CodeMismatchError is a wrong code with attempts left.
type CodeMismatchError struct {
	Remaining int
}

// Error implements error.
func (e *CodeMismatchError) Error() string {
	return fmt.Sprintf("invalid code: %d attempt(s) remaining", e.Remaining)
}

// Unwrap lets errors.Is match ErrInvalidCode.
func (e *CodeMismatchError) Unwrap() error { return ErrInvalidCode }

// RateLimitError reports how long to wait before asking again.
type RateLimitError struct {
	Wait time.Duration
}

// Error implements error.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: retry in %ds", e.WaitSeconds())
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

// Error codes returned by ErrorCode.
const (
	CodeNotFound           = "NOT_FOUND"
	CodeExpired            = "EXPIRED"
	CodeAttemptsExhausted  = "ATTEMPTS_EXHAUSTED"
	CodeInvalidCode        = "INVALID_CODE"
	CodeRateLimited        = "RATE_LIMITED"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeAccountLocked      = "ACCOUNT_LOCKED"
	CodeAlreadyVerified    = "ALREADY_VERIFIED"
	CodeUnverified         = "UNVERIFIED"
	CodeConflict           = "CONFLICT"
	CodeValidation         = "VALIDATION"
	CodeDeliveryFailed     = "DELIVERY_FAILED"
	CodeStoreUnavailable   = "STORE_UNAVAILABLE"
	CodeInternal           = "INTERNAL"
)

// ErrorCode maps err onto the stable error taxonomy. nil maps to "".
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCodeNotFound), errors.Is(err, ErrAccountNotFound):
		return CodeNotFound
	case errors.Is(err, ErrCodeExpired):
		return CodeExpired
	case errors.Is(err, ErrAttemptsExhausted):
		return CodeAttemptsExhausted
	case errors.Is(err, ErrInvalidCode):
		return CodeInvalidCode
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimited
	case errors.Is(err, ErrInvalidCredentials):
		return CodeInvalidCredentials
	case errors.Is(err, ErrAccountLocked):
		return CodeAccountLocked
	case errors.Is(err, ErrAlreadyVerified):
		return CodeAlreadyVerified
	case errors.Is(err, ErrAccountUnverified):
		return CodeUnverified
	case errors.Is(err, ErrIdentityTaken):
		return CodeConflict
	case errors.Is(err, ErrInvalidIdentity),
		errors.Is(err, ErrInvalidDisplayName),
		errors.Is(err, ErrInvalidPurpose),
		errors.Is(err, ErrPasswordPolicy):
		return CodeValidation
	case errors.Is(err, ErrDeliveryFailed):
		return CodeDeliveryFailed
	case errors.Is(err, ErrStoreUnavailable):
		return CodeStoreUnavailable
	default:
		return CodeInternal
	}
}

// mapOTPError translates internal/otp errors to façade errors.
func mapOTPError(err error) error {
	var (
		mismatch *otp.MismatchError
		limited  *otp.RateLimitError
	)
	switch {
	case err == nil:
		return nil
	case errors.As(err, &mismatch):
		return &CodeMismatchError{Remaining: mismatch.Remaining}
	case errors.As(err, &limited):
		return &RateLimitError{Wait: limited.Wait}
	case errors.Is(err, otp.ErrNotFound):
		return ErrCodeNotFound
	case errors.Is(err, otp.ErrExpired):
		return ErrCodeExpired
	case errors.Is(err, otp.ErrAttemptsExhausted):
		return ErrAttemptsExhausted
	case errors.Is(err, otp.ErrInvalidPurpose):
		return ErrInvalidPurpose
	case errors.Is(err, otp.ErrInvalidIdentity):
		return ErrInvalidIdentity
	case errors.Is(err, otp.ErrStoreUnavailable):
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	default:
		return err
	}
}

// mapLockoutError translates internal/lockout and account store errors.
func mapLockoutError(err error) error {
	var locked *lockout.LockedError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &locked):
		return &LockedError{Until: locked.Until}
	case errors.Is(err, lockout.ErrInvalidCredentials):
		return ErrInvalidCredentials
	case errors.Is(err, accounts.ErrNotFound):
		return ErrAccountNotFound
	case errors.Is(err, accounts.ErrIdentityTaken):
		return ErrIdentityTaken
	case errors.Is(err, password.ErrPasswordTooShort), errors.Is(err, password.ErrPasswordTooLong):
		return fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
	case errors.Is(err, lockout.ErrStoreUnavailable),
		errors.Is(err, lockout.ErrContention),
		errors.Is(err, accounts.ErrStoreUnavailable):
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	default:
		return err
	}
}

// mapThrottleError translates internal/rate errors.
func mapThrottleError(err error) error {
	var limited *rate.LimitError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &limited):
		return &RateLimitError{Wait: limited.RetryAfter}
	case errors.Is(err, rate.ErrRedisUnavailable):
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	default:
		return err
	}
}
