package accounts

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound           = errors.New("account not found")
	ErrIdentityTaken      = errors.New("identity already registered")
	ErrVersionConflict    = errors.New("account version conflict")
	ErrUnhashedCredential = errors.New("credential is not an encoded hash")
	ErrStoreUnavailable   = errors.New("account store unavailable")
)

// Store is the Credential Store. Implementations must be safe for
// concurrent use; identity lookups are case-insensitive. Infrastructure
// failures wrap ErrStoreUnavailable.
type Store interface {
	Create(ctx context.Context, acct Account) error
	GetByIdentity(ctx context.Context, identity string) (Account, error)
	GetByID(ctx context.Context, id string) (Account, error)
	// MarkVerified flips Verified to true and reports whether this call did
	// the flip.
	MarkVerified(ctx context.Context, id string) (bool, error)
	SetCredentialHash(ctx context.Context, id, hash string) error
	// UpdateLockout writes st only if the stored version equals
	// expectedVersion, returning the updated account or ErrVersionConflict.
	UpdateLockout(ctx context.Context, id string, expectedVersion int64, st LockoutState) (Account, error)
	ChangeIdentity(ctx context.Context, id, newIdentity string) error
	// DeleteUnverifiedBefore removes unverified accounts created before
	// cutoff and returns how many were removed.
	DeleteUnverifiedBefore(ctx context.Context, cutoff time.Time) (int, error)
}
