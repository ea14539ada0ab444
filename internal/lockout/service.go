package lockout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/civicpulse/authcore/internal/accounts"
	"github.com/civicpulse/authcore/password"
)

const maxCASRetries = 16

// Service authenticates secrets and owns every write to lockout fields and
// credential hashes.
type Service struct {
	store  accounts.Store
	hasher password.Hasher
	policy Policy
	now    func() time.Time
	logger *slog.Logger
	onLock func(ctx context.Context, accountID string, until time.Time)

	dummyOnce sync.Once
	dummyHash string
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger used for lock transitions.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithOnLock registers fn to run whenever a failure locks an account.
func WithOnLock(fn func(ctx context.Context, accountID string, until time.Time)) Option {
	return func(s *Service) { s.onLock = fn }
}

// NewService validates policy and wires the account store and hasher.
func NewService(store accounts.Store, hasher password.Hasher, policy Policy, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("account store is required")
	}
	if hasher == nil {
		return nil, errors.New("password hasher is required")
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	s := &Service{
		store:  store,
		hasher: hasher,
		policy: policy,
		now:    time.Now,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Policy returns the active policy.
func (s *Service) Policy() Policy { return s.policy }

// Authenticate checks secret against the stored hash of identity's account.
// Unknown identities and wrong secrets both return ErrInvalidCredentials. A
// locked account returns *LockedError and the attempt is still counted.
func (s *Service) Authenticate(ctx context.Context, identity, secret string) (accounts.Account, error) {
	acct, err := s.store.GetByIdentity(ctx, identity)
	if errors.Is(err, accounts.ErrNotFound) {
		s.burn(secret)
		return accounts.Account{}, ErrInvalidCredentials
	}
	if err != nil {
		return accounts.Account{}, storeErr(err)
	}

	var (
		checkedHash string
		matched     bool
	)
	for i := 0; i < maxCASRetries; i++ {
		now := s.clock()
		st := acct.Lockout()

		if IsLocked(st, now) {
			until := *st.LockedUntil
			_, err := s.store.UpdateLockout(ctx, acct.ID, acct.Version, ApplyLockedHit(st))
			if errors.Is(err, accounts.ErrVersionConflict) {
				if acct, err = s.reload(ctx, acct.ID); err != nil {
					return accounts.Account{}, err
				}
				continue
			}
			if err != nil {
				return accounts.Account{}, storeErr(err)
			}
			return accounts.Account{}, &LockedError{Until: until}
		}

		if checkedHash != acct.CredentialHash {
			ok, err := s.hasher.Verify(secret, acct.CredentialHash)
			if err != nil && !errors.Is(err, password.ErrPasswordTooLong) {
				return accounts.Account{}, fmt.Errorf("verify credential: %w", err)
			}
			checkedHash, matched = acct.CredentialHash, ok
		}

		next := ApplySuccess(st, now)
		if !matched {
			next = ApplyFailure(st, now, s.policy)
		}
		updated, err := s.store.UpdateLockout(ctx, acct.ID, acct.Version, next)
		if errors.Is(err, accounts.ErrVersionConflict) {
			if acct, err = s.reload(ctx, acct.ID); err != nil {
				return accounts.Account{}, err
			}
			continue
		}
		if err != nil {
			return accounts.Account{}, storeErr(err)
		}

		if !matched {
			if IsLocked(next, now) && !IsLocked(st, now) {
				s.logger.WarnContext(ctx, "account locked",
					"account_id", acct.ID,
					"failed_attempts", next.FailedAttempts,
					"locked_until", next.LockedUntil.Format(time.RFC3339),
				)
				if s.onLock != nil {
					s.onLock(ctx, acct.ID, *next.LockedUntil)
				}
			}
			return accounts.Account{}, ErrInvalidCredentials
		}

		s.maybeRehash(ctx, updated, secret)
		return updated, nil
	}
	return accounts.Account{}, ErrContention
}

// Reset clears failures and any lock after a successful out-of-band proof
// (code login, password reset) and stamps LastAuthenticatedAt.
func (s *Service) Reset(ctx context.Context, accountID string) (accounts.Account, error) {
	return s.transition(ctx, accountID, func(st accounts.LockoutState, now time.Time) accounts.LockoutState {
		return ApplySuccess(st, now)
	})
}

// Unlock clears failures and any lock. It is the operator override.
func (s *Service) Unlock(ctx context.Context, accountID string) (accounts.Account, error) {
	return s.transition(ctx, accountID, func(st accounts.LockoutState, _ time.Time) accounts.LockoutState {
		return ApplyUnlock(st)
	})
}

// HashSecret hashes plaintext with the configured hasher.
func (s *Service) HashSecret(plaintext string) (string, error) {
	return s.hasher.Hash(plaintext)
}

// SetSecret hashes plaintext and stores it as the account's credential.
func (s *Service) SetSecret(ctx context.Context, accountID, plaintext string) error {
	hash, err := s.hasher.Hash(plaintext)
	if err != nil {
		return err
	}
	return s.SetSecretHash(ctx, accountID, hash)
}

// SetSecretHash stores a hash previously produced by HashSecret. Callers use
// it to check policy before consuming a code.
func (s *Service) SetSecretHash(ctx context.Context, accountID, hash string) error {
	if !password.LooksHashed(hash) {
		return accounts.ErrUnhashedCredential
	}
	if err := s.store.SetCredentialHash(ctx, accountID, hash); err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return err
		}
		return storeErr(err)
	}
	return nil
}

func (s *Service) transition(ctx context.Context, accountID string, fn func(accounts.LockoutState, time.Time) accounts.LockoutState) (accounts.Account, error) {
	acct, err := s.reload(ctx, accountID)
	if err != nil {
		return accounts.Account{}, err
	}
	for i := 0; i < maxCASRetries; i++ {
		updated, err := s.store.UpdateLockout(ctx, acct.ID, acct.Version, fn(acct.Lockout(), s.clock()))
		if errors.Is(err, accounts.ErrVersionConflict) {
			if acct, err = s.reload(ctx, accountID); err != nil {
				return accounts.Account{}, err
			}
			continue
		}
		if err != nil {
			return accounts.Account{}, storeErr(err)
		}
		return updated, nil
	}
	return accounts.Account{}, ErrContention
}

func (s *Service) reload(ctx context.Context, id string) (accounts.Account, error) {
	acct, err := s.store.GetByID(ctx, id)
	if errors.Is(err, accounts.ErrNotFound) {
		return accounts.Account{}, err
	}
	if err != nil {
		return accounts.Account{}, storeErr(err)
	}
	return acct, nil
}

func (s *Service) maybeRehash(ctx context.Context, acct accounts.Account, secret string) {
	up, err := s.hasher.NeedsUpgrade(acct.CredentialHash)
	if err != nil || !up {
		return
	}
	hash, err := s.hasher.Hash(secret)
	if err == nil {
		err = s.store.SetCredentialHash(ctx, acct.ID, hash)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "credential rehash failed",
			"account_id", acct.ID,
			"error", err,
		)
	}
}

// burn spends roughly one verification worth of work so unknown identities
// answer in about the same time as wrong secrets.
func (s *Service) burn(secret string) {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("timing-equalizer-secret")
		if err == nil {
			s.dummyHash = h
		}
	})
	if s.dummyHash != "" {
		_, _ = s.hasher.Verify(secret, s.dummyHash)
	}
}

func (s *Service) clock() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func storeErr(err error) error {
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
