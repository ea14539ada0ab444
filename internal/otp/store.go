package otp

import (
	"context"
	"time"
)

// AttemptOutcome classifies the result of Store.RegisterAttempt.
type AttemptOutcome int

const (
	// AttemptAbsent means no record exists for the pair.
	AttemptAbsent AttemptOutcome = iota
	// AttemptExpired means the record had expired and was deleted.
	AttemptExpired
	// AttemptExhausted means the attempt budget was already spent and the
	// record was deleted.
	AttemptExhausted
	// AttemptCounted means the counter was incremented and persisted.
	AttemptCounted
)

// String names the outcome for logs.
func (o AttemptOutcome) String() string {
	switch o {
	case AttemptAbsent:
		return "absent"
	case AttemptExpired:
		return "expired"
	case AttemptExhausted:
		return "exhausted"
	case AttemptCounted:
		return "counted"
	}
	return "unknown"
}

// AttemptResult is what RegisterAttempt saw and, for AttemptCounted, the
// record after the increment.
type AttemptResult struct {
	Outcome AttemptOutcome
	// Record is the post-increment record when Outcome is AttemptCounted.
	Record Record
}

// Store persists at most one record per (identity, purpose). Every method
// must be atomic with respect to the other methods for the same pair.
// Infrastructure failures wrap ErrStoreUnavailable.
type Store interface {
	// Create replaces the pair's record with rec unless the existing record
	// was created after notBefore, in which case it returns *CooldownError.
	Create(ctx context.Context, rec Record, notBefore time.Time) error
	// Current returns the pair's record in whatever state it is, or nil.
	Current(ctx context.Context, identity string, purpose Purpose) (*Record, error)
	// RegisterAttempt checks expiry, then exhaustion, deleting the record on
	// either, and otherwise increments Attempts and stamps LastAttemptAt.
	RegisterAttempt(ctx context.Context, identity string, purpose Purpose, now time.Time, maxAttempts int) (AttemptResult, error)
	// Delete removes the pair's record only if its ID is id.
	Delete(ctx context.Context, identity string, purpose Purpose, id string) (bool, error)
}

// Sweeper is implemented by stores that need an explicit purge of records
// past their expiry. Stores with native TTLs do not.
type Sweeper interface {
	PurgeExpired(ctx context.Context, before time.Time) (int, error)
}
