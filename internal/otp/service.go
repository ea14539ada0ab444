package otp

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/civicpulse/authcore/internal"
	"github.com/google/uuid"
)

// Config controls code shape and lifetime.
type Config struct {
	Length      int
	Expiry      time.Duration
	MaxAttempts int
	Cooldown    time.Duration
}

// DefaultConfig returns six-digit codes valid for ten minutes, three attempts
// and a one-minute resend cooldown.
func DefaultConfig() Config {
	return Config{
		Length:      6,
		Expiry:      10 * time.Minute,
		MaxAttempts: 3,
		Cooldown:    60 * time.Second,
	}
}

// Validate rejects configurations no code could satisfy.
func (c Config) Validate() error {
	switch {
	case c.Length < 4 || c.Length > 10:
		return errors.New("otp length must be between 4 and 10")
	case c.Expiry <= 0:
		return errors.New("otp expiry must be > 0")
	case c.MaxAttempts < 1:
		return errors.New("otp max attempts must be >= 1")
	case c.Cooldown < 0:
		return errors.New("otp cooldown must be >= 0")
	}
	return nil
}

// Issued carries the plaintext code exactly once.
type Issued struct {
	Code   string
	Record Record
}

// Verified is the success outcome of Verify.
type Verified struct {
	CodeID   string
	Identity string
	Purpose  Purpose
	IssuedAt time.Time
	Metadata Metadata
}

// Service issues and verifies codes against a Store.
type Service struct {
	store   Store
	cfg     Config
	now     func() time.Time
	newCode func(digits int) (string, error)
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithCodeSource overrides code generation. Tests use it to make codes
// predictable.
func WithCodeSource(fn func(digits int) (string, error)) Option {
	return func(s *Service) { s.newCode = fn }
}

// NewService validates cfg and binds it to store.
func NewService(store Store, cfg Config, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("otp store is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Service{
		store:   store,
		cfg:     cfg,
		now:     time.Now,
		newCode: internal.NewNumericCode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Config returns the validated configuration.
func (s *Service) Config() Config { return s.cfg }

// Issue generates a new code for (identity, purpose), replacing any
// previous one. Within the cooldown it returns *RateLimitError.
func (s *Service) Issue(ctx context.Context, identity string, purpose Purpose, meta Metadata) (Issued, error) {
	identity, err := checkKey(identity, purpose)
	if err != nil {
		return Issued{}, err
	}
	now := s.clock()

	code, err := s.newCode(s.cfg.Length)
	if err != nil {
		return Issued{}, fmt.Errorf("generate code: %w", err)
	}

	rec := Record{
		ID:        uuid.NewString(),
		Identity:  identity,
		Purpose:   purpose,
		CodeHash:  internal.HashSecret(code),
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.Expiry),
		Metadata:  meta,
	}

	err = s.store.Create(ctx, rec, now.Add(-s.cfg.Cooldown))
	var cooldown *CooldownError
	switch {
	case errors.As(err, &cooldown):
		wait := cooldownRemaining(cooldown.CreatedAt, now, s.cfg.Cooldown)
		if wait <= 0 {
			// Store and service clocks disagree; report the smallest wait.
			wait = time.Second
		}
		return Issued{}, &RateLimitError{Wait: wait}
	case err != nil:
		return Issued{}, storeErr(err)
	}

	return Issued{Code: code, Record: rec}, nil
}

// CanIssue reports how long the caller must wait before Issue would succeed.
// Zero means now. It never mutates state.
func (s *Service) CanIssue(ctx context.Context, identity string, purpose Purpose) (time.Duration, error) {
	identity, err := checkKey(identity, purpose)
	if err != nil {
		return 0, err
	}
	rec, err := s.store.Current(ctx, identity, purpose)
	if err != nil {
		return 0, storeErr(err)
	}
	if rec == nil {
		return 0, nil
	}
	return cooldownRemaining(rec.CreatedAt, s.clock(), s.cfg.Cooldown), nil
}

// FindLive returns the pair's record if it can still be verified.
func (s *Service) FindLive(ctx context.Context, identity string, purpose Purpose) (*Record, error) {
	identity, err := checkKey(identity, purpose)
	if err != nil {
		return nil, err
	}
	rec, err := s.store.Current(ctx, identity, purpose)
	if err != nil {
		return nil, storeErr(err)
	}
	if rec == nil || !IsLive(*rec, s.clock(), s.cfg.MaxAttempts) {
		return nil, nil
	}
	return rec, nil
}

// Verify consumes the code if it matches. The attempt is recorded before the
// comparison; a match then deletes the record, so at most one caller
// succeeds per issued code.
func (s *Service) Verify(ctx context.Context, identity, code string, purpose Purpose) (Verified, error) {
	identity, err := checkKey(identity, purpose)
	if err != nil {
		return Verified{}, err
	}

	res, err := s.store.RegisterAttempt(ctx, identity, purpose, s.clock(), s.cfg.MaxAttempts)
	if err != nil {
		return Verified{}, storeErr(err)
	}
	switch res.Outcome {
	case AttemptAbsent:
		return Verified{}, ErrNotFound
	case AttemptExpired:
		return Verified{}, ErrExpired
	case AttemptExhausted:
		return Verified{}, ErrAttemptsExhausted
	}

	rec := res.Record
	submitted := internal.HashSecret(normalizeCode(code))
	if subtle.ConstantTimeCompare(submitted[:], rec.CodeHash[:]) != 1 {
		// The spent record stays behind as a non-live tombstone: FindLive
		// ignores it, the next Verify deletes it, and its CreatedAt still
		// drives the cooldown.
		left := RemainingAttempts(rec, s.cfg.MaxAttempts)
		if left == 0 {
			return Verified{}, ErrAttemptsExhausted
		}
		return Verified{}, &MismatchError{Remaining: left}
	}

	deleted, err := s.store.Delete(ctx, identity, purpose, rec.ID)
	if err != nil {
		return Verified{}, storeErr(err)
	}
	if !deleted {
		return Verified{}, ErrNotFound
	}
	return Verified{CodeID: rec.ID, Identity: identity, Purpose: purpose, IssuedAt: rec.CreatedAt, Metadata: rec.Metadata}, nil
}

// clock truncates to milliseconds, the resolution every store keeps.
func (s *Service) clock() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func checkKey(identity string, purpose Purpose) (string, error) {
	if !purpose.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPurpose, purpose)
	}
	identity = NormalizeIdentity(identity)
	if identity == "" {
		return "", ErrInvalidIdentity
	}
	return identity, nil
}

// NormalizeIdentity is the key form of an identity.
func NormalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

func normalizeCode(code string) string {
	return strings.TrimSpace(code)
}

func storeErr(err error) error {
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
