package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// AccountStore exposes removal of stale unverified accounts.
type AccountStore interface {
	DeleteUnverifiedBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// CodeStore exposes purging of expired codes. otp.MemoryStore and the
// Postgres code store implement it; the Redis store relies on key TTLs.
type CodeStore interface {
	PurgeExpired(ctx context.Context, before time.Time) (int, error)
}

// Result summarizes one sweep.
type Result struct {
	DeletedAccounts int
	PurgedCodes     int
}

// Service periodically sweeps the stores.
type Service struct {
	accounts      AccountStore
	codes         CodeStore
	unverifiedTTL time.Duration
	codeGrace     time.Duration
	interval      time.Duration
	now           func() time.Time
	logger        *slog.Logger
	onSweep       func(Result)
}

// Option customizes the sweeper.
type Option func(*Service)

// WithInterval overrides the sweep interval when greater than zero.
func WithInterval(interval time.Duration) Option {
	return func(s *Service) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithCodeStore enables code purging.
func WithCodeStore(codes CodeStore) Option {
	return func(s *Service) { s.codes = codes }
}

// WithCodeGrace keeps expired codes around for grace so a late verify still
// reports EXPIRED rather than NOT_FOUND.
func WithCodeGrace(grace time.Duration) Option {
	return func(s *Service) {
		if grace >= 0 {
			s.codeGrace = grace
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the sweeper's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithOnSweep registers fn to receive the result of every successful sweep.
func WithOnSweep(fn func(Result)) Option {
	return func(s *Service) { s.onSweep = fn }
}

// New requires an account store and a positive unverified-account TTL.
func New(accounts AccountStore, unverifiedTTL time.Duration, opts ...Option) (*Service, error) {
	if accounts == nil {
		return nil, errors.New("account store is required")
	}
	if unverifiedTTL <= 0 {
		return nil, fmt.Errorf("unverified TTL must be > 0, got %s", unverifiedTTL)
	}
	s := &Service{
		accounts:      accounts,
		unverifiedTTL: unverifiedTTL,
		codeGrace:     time.Hour,
		interval:      10 * time.Minute,
		now:           time.Now,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Start sweeps every interval until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.ErrorContext(ctx, "retention sweep failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce performs a single sweep. Errors from each store are joined; a
// failing store does not stop the others.
func (s *Service) RunOnce(ctx context.Context) (Result, error) {
	now := s.now().UTC()
	var (
		res  Result
		errs []error
	)

	n, err := s.accounts.DeleteUnverifiedBefore(ctx, now.Add(-s.unverifiedTTL))
	if err != nil {
		errs = append(errs, fmt.Errorf("delete unverified accounts: %w", err))
	} else {
		res.DeletedAccounts = n
	}

	if s.codes != nil {
		n, err := s.codes.PurgeExpired(ctx, now.Add(-s.codeGrace))
		if err != nil {
			errs = append(errs, fmt.Errorf("purge expired codes: %w", err))
		} else {
			res.PurgedCodes = n
		}
	}

	if len(errs) > 0 {
		return res, errors.Join(errs...)
	}
	if res.DeletedAccounts > 0 || res.PurgedCodes > 0 {
		s.logger.InfoContext(ctx, "retention sweep",
			"deleted_accounts", res.DeletedAccounts,
			"purged_codes", res.PurgedCodes,
		)
	}
	if s.onSweep != nil {
		s.onSweep(res)
	}
	return res, nil
}
