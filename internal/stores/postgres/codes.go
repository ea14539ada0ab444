package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/civicpulse/authcore/internal/otp"
)

const codeColumns = `id, identity, purpose, code_hash, attempts, created_at, expires_at,
       last_attempt_at, origin_address, client_descriptor, requested_by`

// CodeStore implements otp.Store and otp.Sweeper.
type CodeStore struct {
	db *sql.DB
}

// NewCodeStore needs a *sql.DB because attempts run in their own transaction.
func NewCodeStore(db *sql.DB) *CodeStore {
	return &CodeStore{db: db}
}

// Create upserts the pair's row. The WHERE on the conflict branch is the
// cooldown guard, evaluated under the row lock the upsert takes.
func (s *CodeStore) Create(ctx context.Context, rec otp.Record, notBefore time.Time) error {
	for i := 0; i < 3; i++ {
		var id string
		err := s.db.QueryRowContext(ctx,
			`INSERT INTO one_time_codes
			   (identity, purpose, id, code_hash, attempts, created_at, expires_at, last_attempt_at, origin_address, client_descriptor, requested_by)
			 VALUES ($1, $2, $3, $4, 0, $5, $6, NULL, $7, $8, $9)
			 ON CONFLICT (identity, purpose) DO UPDATE SET
			   id = EXCLUDED.id,
			   code_hash = EXCLUDED.code_hash,
			   attempts = 0,
			   created_at = EXCLUDED.created_at,
			   expires_at = EXCLUDED.expires_at,
			   last_attempt_at = NULL,
			   origin_address = EXCLUDED.origin_address,
			   client_descriptor = EXCLUDED.client_descriptor,
			   requested_by = EXCLUDED.requested_by
			 WHERE one_time_codes.created_at <= $10
			 RETURNING id`,
			rec.Identity, string(rec.Purpose), rec.ID, rec.CodeHash[:],
			rec.CreatedAt, rec.ExpiresAt,
			rec.Metadata.OriginAddress, rec.Metadata.ClientDescriptor, rec.Metadata.RequestedBy,
			notBefore,
		).Scan(&id)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return codeErr(err)
		}

		var created time.Time
		err = s.db.QueryRowContext(ctx,
			`SELECT created_at FROM one_time_codes WHERE identity = $1 AND purpose = $2`,
			rec.Identity, string(rec.Purpose),
		).Scan(&created)
		if errors.Is(err, sql.ErrNoRows) {
			// Deleted between the two statements; try the upsert again.
			continue
		}
		if err != nil {
			return codeErr(err)
		}
		return &otp.CooldownError{CreatedAt: created.UTC()}
	}
	return fmt.Errorf("%w: code row churned during create", otp.ErrStoreUnavailable)
}

// Current returns the pair's record in any state, or nil.
func (s *CodeStore) Current(ctx context.Context, identity string, purpose otp.Purpose) (*otp.Record, error) {
	rec, err := scanCode(s.db.QueryRowContext(ctx,
		`SELECT `+codeColumns+` FROM one_time_codes WHERE identity = $1 AND purpose = $2`,
		identity, string(purpose),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, codeErr(err)
	}
	return &rec, nil
}

// RegisterAttempt counts one verification attempt atomically.
func (s *CodeStore) RegisterAttempt(ctx context.Context, identity string, purpose otp.Purpose, now time.Time, maxAttempts int) (otp.AttemptResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return otp.AttemptResult{}, codeErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	rec, err := scanCode(tx.QueryRowContext(ctx,
		`SELECT `+codeColumns+` FROM one_time_codes WHERE identity = $1 AND purpose = $2 FOR UPDATE`,
		identity, string(purpose),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return otp.AttemptResult{Outcome: otp.AttemptAbsent}, nil
	}
	if err != nil {
		return otp.AttemptResult{}, codeErr(err)
	}

	outcome := otp.AttemptCounted
	switch {
	case otp.IsExpired(rec, now):
		outcome = otp.AttemptExpired
	case otp.IsExhausted(rec, maxAttempts):
		outcome = otp.AttemptExhausted
	}

	if outcome != otp.AttemptCounted {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM one_time_codes WHERE identity = $1 AND purpose = $2`,
			identity, string(purpose)); err != nil {
			return otp.AttemptResult{}, codeErr(err)
		}
		if err := tx.Commit(); err != nil {
			return otp.AttemptResult{}, codeErr(err)
		}
		return otp.AttemptResult{Outcome: outcome}, nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE one_time_codes SET attempts = attempts + 1, last_attempt_at = $3
		 WHERE identity = $1 AND purpose = $2`,
		identity, string(purpose), now); err != nil {
		return otp.AttemptResult{}, codeErr(err)
	}
	if err := tx.Commit(); err != nil {
		return otp.AttemptResult{}, codeErr(err)
	}

	rec.Attempts++
	at := now
	rec.LastAttemptAt = &at
	return otp.AttemptResult{Outcome: otp.AttemptCounted, Record: rec}, nil
}

// Delete removes the pair's record if its ID is still id.
func (s *CodeStore) Delete(ctx context.Context, identity string, purpose otp.Purpose, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM one_time_codes WHERE identity = $1 AND purpose = $2 AND id = $3`,
		identity, string(purpose), id)
	if err != nil {
		return false, codeErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, codeErr(err)
	}
	return n == 1, nil
}

// PurgeExpired deletes rows that expired before the cutoff.
func (s *CodeStore) PurgeExpired(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM one_time_codes WHERE expires_at < $1`, before)
	if err != nil {
		return 0, codeErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, codeErr(err)
	}
	return int(n), nil
}

func scanCode(row *sql.Row) (otp.Record, error) {
	var (
		rec     otp.Record
		purpose string
		hash    []byte
		last    sql.NullTime
	)
	err := row.Scan(&rec.ID, &rec.Identity, &purpose, &hash, &rec.Attempts, &rec.CreatedAt, &rec.ExpiresAt,
		&last, &rec.Metadata.OriginAddress, &rec.Metadata.ClientDescriptor, &rec.Metadata.RequestedBy)
	if err != nil {
		return otp.Record{}, err
	}
	if len(hash) != len(rec.CodeHash) {
		return otp.Record{}, fmt.Errorf("code hash has %d bytes", len(hash))
	}
	copy(rec.CodeHash[:], hash)
	rec.Purpose = otp.Purpose(purpose)
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.ExpiresAt = rec.ExpiresAt.UTC()
	rec.LastAttemptAt = timePtr(last)
	return rec, nil
}

func codeErr(err error) error {
	return fmt.Errorf("%w: %v", otp.ErrStoreUnavailable, err)
}
