package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/civicpulse/authcore/internal/accounts"
	"github.com/civicpulse/authcore/password"
)

const accountColumns = `id, identity, display_name, credential_hash, verified, role,
       failed_attempts, locked_until, last_authenticated_at, created_at, version`

// AccountStore implements accounts.Store.
type AccountStore struct {
	db DBTX
}

// NewAccountStore runs its queries on db.
func NewAccountStore(db DBTX) *AccountStore {
	return &AccountStore{db: db}
}

// Create stores a new record.
func (s *AccountStore) Create(ctx context.Context, acct accounts.Account) error {
	if !password.LooksHashed(acct.CredentialHash) {
		return accounts.ErrUnhashedCredential
	}
	role := acct.Role
	if role == "" {
		role = accounts.RoleStandard
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (id, identity, display_name, credential_hash, verified, role, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		acct.ID,
		accounts.NormalizeIdentity(acct.Identity),
		acct.DisplayName,
		acct.CredentialHash,
		acct.Verified,
		string(role),
		acct.CreatedAt,
	)
	if isUniqueViolation(err) {
		return accounts.ErrIdentityTaken
	}
	if err != nil {
		return dbErr(err)
	}
	return nil
}

// GetByIdentity looks an account up by normalized identity.
func (s *AccountStore) GetByIdentity(ctx context.Context, identity string) (accounts.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE lower(identity) = $1`,
		accounts.NormalizeIdentity(identity),
	)
	return scanAccount(row)
}

// GetByID looks an account up by ID.
func (s *AccountStore) GetByID(ctx context.Context, id string) (accounts.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

// MarkVerified sets Verified and reports whether it changed.
func (s *AccountStore) MarkVerified(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET verified = TRUE, version = version + 1 WHERE id = $1 AND NOT verified`, id)
	if err != nil {
		return false, dbErr(err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return true, nil
	}
	if err := s.mustExist(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// SetCredentialHash replaces the stored password hash.
func (s *AccountStore) SetCredentialHash(ctx context.Context, id, hash string) error {
	if !password.LooksHashed(hash) {
		return accounts.ErrUnhashedCredential
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET credential_hash = $2, version = version + 1 WHERE id = $1`, id, hash)
	if err != nil {
		return dbErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return accounts.ErrNotFound
	}
	return nil
}

// UpdateLockout writes st if the account is still at expectedVersion.
func (s *AccountStore) UpdateLockout(ctx context.Context, id string, expectedVersion int64, st accounts.LockoutState) (accounts.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE accounts
		 SET failed_attempts = $3, locked_until = $4, last_authenticated_at = $5, version = version + 1
		 WHERE id = $1 AND version = $2
		 RETURNING `+accountColumns,
		id, expectedVersion, st.FailedAttempts, nullTime(st.LockedUntil), nullTime(st.LastAuthenticatedAt),
	)
	acct, err := scanAccount(row)
	if errors.Is(err, accounts.ErrNotFound) {
		if err := s.mustExist(ctx, id); err != nil {
			return accounts.Account{}, err
		}
		return accounts.Account{}, accounts.ErrVersionConflict
	}
	return acct, err
}

// ChangeIdentity re-keys the account to newIdentity.
func (s *AccountStore) ChangeIdentity(ctx context.Context, id, newIdentity string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET identity = $2, version = version + 1 WHERE id = $1`,
		id, accounts.NormalizeIdentity(newIdentity))
	if isUniqueViolation(err) {
		return accounts.ErrIdentityTaken
	}
	if err != nil {
		return dbErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return accounts.ErrNotFound
	}
	return nil
}

// DeleteUnverifiedBefore removes unverified accounts created before cutoff.
func (s *AccountStore) DeleteUnverifiedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM accounts WHERE NOT verified AND created_at < $1`, cutoff)
	if err != nil {
		return 0, dbErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, dbErr(err)
	}
	return int(n), nil
}

func (s *AccountStore) mustExist(ctx context.Context, id string) error {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, id).Scan(&exists); err != nil {
		return dbErr(err)
	}
	if !exists {
		return accounts.ErrNotFound
	}
	return nil
}

func scanAccount(row *sql.Row) (accounts.Account, error) {
	var (
		a          accounts.Account
		role       string
		locked     sql.NullTime
		lastAuthed sql.NullTime
	)
	err := row.Scan(&a.ID, &a.Identity, &a.DisplayName, &a.CredentialHash, &a.Verified, &role,
		&a.FailedAttempts, &locked, &lastAuthed, &a.CreatedAt, &a.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return accounts.Account{}, accounts.ErrNotFound
	}
	if err != nil {
		return accounts.Account{}, dbErr(err)
	}
	a.Role = accounts.Role(role)
	a.CreatedAt = a.CreatedAt.UTC()
	a.LockedUntil = timePtr(locked)
	a.LastAuthenticatedAt = timePtr(lastAuthed)
	return a, nil
}

func dbErr(err error) error {
	return fmt.Errorf("%w: %v", accounts.ErrStoreUnavailable, err)
}
