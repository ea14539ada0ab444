// Package otptest holds the behavioural suite every otp.Store must pass.
package otptest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/civicpulse/authcore/internal"
	"github.com/civicpulse/authcore/internal/otp"
)

// Base is the fixed instant records in the suite are created at.
var Base = time.Date(2026, 3, 14, 9, 26, 53, 589_000_000, time.UTC)

// Factory returns an empty store. It may register cleanup on t.
type Factory func(t *testing.T) otp.Store

// NewRecord builds a record for identity/purpose created at Base+offset
// with a ten minute lifetime.
func NewRecord(id, identity string, purpose otp.Purpose, code string, offset time.Duration) otp.Record {
	created := Base.Add(offset)
	return otp.Record{
		ID:        id,
		Identity:  identity,
		Purpose:   purpose,
		CodeHash:  internal.HashSecret(code),
		CreatedAt: created,
		ExpiresAt: created.Add(10 * time.Minute),
		Metadata:  otp.Metadata{OriginAddress: "203.0.113.7", ClientDescriptor: "Firefox 128 / Linux", RequestedBy: "acct-7"},
	}
}

// Run executes the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("CreateThenCurrent", func(t *testing.T) { testCreateThenCurrent(t, newStore(t)) })
	t.Run("CreateSupersedes", func(t *testing.T) { testCreateSupersedes(t, newStore(t)) })
	t.Run("CreateRefusedInsideCooldown", func(t *testing.T) { testCreateCooldown(t, newStore(t)) })
	t.Run("RegisterAttemptOutcomes", func(t *testing.T) { testRegisterAttempt(t, newStore(t)) })
	t.Run("ExpiryCheckedBeforeExhaustion", func(t *testing.T) { testExpiryBeforeExhaustion(t, newStore(t)) })
	t.Run("DeleteMatchesID", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("PurposesIsolated", func(t *testing.T) { testPurposeIsolation(t, newStore(t)) })
	t.Run("ConcurrentAttemptsNeverExceedBudget", func(t *testing.T) { testConcurrentAttempts(t, newStore(t)) })
	t.Run("ConcurrentDeleteOnce", func(t *testing.T) { testConcurrentDelete(t, newStore(t)) })
}

func mustCreate(t *testing.T, s otp.Store, rec otp.Record) {
	t.Helper()
	if err := s.Create(context.Background(), rec, rec.CreatedAt.Add(-time.Minute)); err != nil {
		t.Fatalf("Create(%s): %v", rec.ID, err)
	}
}

func testCreateThenCurrent(t *testing.T, s otp.Store) {
	ctx := context.Background()
	rec := NewRecord("c1", "a@b.com", otp.PurposeSignup, "123456", 0)
	mustCreate(t, s, rec)

	got, err := s.Current(ctx, "a@b.com", otp.PurposeSignup)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if got == nil {
		t.Fatal("expected a record")
	}
	if got.ID != rec.ID || got.Identity != rec.Identity || got.Purpose != rec.Purpose {
		t.Fatalf("identity fields mismatch: %+v", got)
	}
	if got.CodeHash != rec.CodeHash {
		t.Fatal("code hash not preserved")
	}
	if !got.CreatedAt.Equal(rec.CreatedAt) || !got.ExpiresAt.Equal(rec.ExpiresAt) {
		t.Fatalf("timestamps mismatch: created=%v expires=%v", got.CreatedAt, got.ExpiresAt)
	}
	if got.Attempts != 0 || got.LastAttemptAt != nil {
		t.Fatalf("fresh record must have no attempts: %+v", got)
	}
	if got.Metadata != rec.Metadata {
		t.Fatalf("metadata mismatch: %+v", got.Metadata)
	}

	missing, err := s.Current(ctx, "nobody@b.com", otp.PurposeSignup)
	if err != nil || missing != nil {
		t.Fatalf("Current(missing) = %+v, %v", missing, err)
	}
}

func testCreateSupersedes(t *testing.T, s otp.Store) {
	ctx := context.Background()
	first := NewRecord("old", "a@b.com", otp.PurposeLogin, "111111", 0)
	mustCreate(t, s, first)
	if _, err := s.RegisterAttempt(ctx, "a@b.com", otp.PurposeLogin, Base.Add(time.Second), 3); err != nil {
		t.Fatalf("RegisterAttempt: %v", err)
	}

	second := NewRecord("new", "a@b.com", otp.PurposeLogin, "222222", 2*time.Minute)
	if err := s.Create(ctx, second, second.CreatedAt.Add(-time.Minute)); err != nil {
		t.Fatalf("Create(second): %v", err)
	}

	got, err := s.Current(ctx, "a@b.com", otp.PurposeLogin)
	if err != nil || got == nil {
		t.Fatalf("Current = %+v, %v", got, err)
	}
	if got.ID != "new" || got.Attempts != 0 {
		t.Fatalf("expected fresh superseding record, got %+v", got)
	}
	if ok, _ := s.Delete(ctx, "a@b.com", otp.PurposeLogin, "old"); ok {
		t.Fatal("superseded record must not be deletable")
	}
}

func testCreateCooldown(t *testing.T, s otp.Store) {
	ctx := context.Background()
	first := NewRecord("first", "a@b.com", otp.PurposeSignup, "111111", 0)
	mustCreate(t, s, first)

	second := NewRecord("second", "a@b.com", otp.PurposeSignup, "222222", 30*time.Second)
	err := s.Create(ctx, second, second.CreatedAt.Add(-time.Minute))
	var cd *otp.CooldownError
	if !errors.As(err, &cd) {
		t.Fatalf("expected *CooldownError, got %v", err)
	}
	if !cd.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("cooldown CreatedAt = %v, want %v", cd.CreatedAt, first.CreatedAt)
	}
	got, _ := s.Current(ctx, "a@b.com", otp.PurposeSignup)
	if got == nil || got.ID != "first" {
		t.Fatalf("refused create must not write, got %+v", got)
	}

	// notBefore equal to CreatedAt is outside the window.
	third := NewRecord("third", "a@b.com", otp.PurposeSignup, "333333", time.Minute)
	if err := s.Create(ctx, third, first.CreatedAt); err != nil {
		t.Fatalf("Create at window edge: %v", err)
	}
}

func testRegisterAttempt(t *testing.T, s otp.Store) {
	ctx := context.Background()
	res, err := s.RegisterAttempt(ctx, "a@b.com", otp.PurposeSignup, Base, 3)
	if err != nil || res.Outcome != otp.AttemptAbsent {
		t.Fatalf("absent: %v, %v", res.Outcome, err)
	}

	mustCreate(t, s, NewRecord("r", "a@b.com", otp.PurposeSignup, "123456", 0))
	for i := 1; i <= 3; i++ {
		at := Base.Add(time.Duration(i) * time.Second)
		res, err := s.RegisterAttempt(ctx, "a@b.com", otp.PurposeSignup, at, 3)
		if err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
		if res.Outcome != otp.AttemptCounted {
			t.Fatalf("attempt %d outcome = %v", i, res.Outcome)
		}
		if res.Record.Attempts != i {
			t.Fatalf("attempt %d stored count = %d", i, res.Record.Attempts)
		}
		if res.Record.LastAttemptAt == nil || !res.Record.LastAttemptAt.Equal(at) {
			t.Fatalf("attempt %d LastAttemptAt = %v", i, res.Record.LastAttemptAt)
		}
		if res.Record.CodeHash != internal.HashSecret("123456") {
			t.Fatalf("attempt %d lost the code hash", i)
		}
	}

	res, err = s.RegisterAttempt(ctx, "a@b.com", otp.PurposeSignup, Base.Add(5*time.Second), 3)
	if err != nil || res.Outcome != otp.AttemptExhausted {
		t.Fatalf("exhausted: %v, %v", res.Outcome, err)
	}
	if got, _ := s.Current(ctx, "a@b.com", otp.PurposeSignup); got != nil {
		t.Fatal("exhausted record must be deleted")
	}
}

func testExpiryBeforeExhaustion(t *testing.T, s otp.Store) {
	ctx := context.Background()
	rec := NewRecord("e", "a@b.com", otp.PurposePasswordReset, "123456", 0)
	mustCreate(t, s, rec)

	res, err := s.RegisterAttempt(ctx, "a@b.com", otp.PurposePasswordReset, rec.ExpiresAt, 3)
	if err != nil || res.Outcome != otp.AttemptExpired {
		t.Fatalf("at ExpiresAt: %v, %v", res.Outcome, err)
	}
	if got, _ := s.Current(ctx, "a@b.com", otp.PurposePasswordReset); got != nil {
		t.Fatal("expired record must be deleted on discovery")
	}
}

func testDelete(t *testing.T, s otp.Store) {
	ctx := context.Background()
	mustCreate(t, s, NewRecord("d", "a@b.com", otp.PurposeEmailChange, "123456", 0))

	if ok, err := s.Delete(ctx, "a@b.com", otp.PurposeEmailChange, "other"); err != nil || ok {
		t.Fatalf("Delete(wrong id) = %v, %v", ok, err)
	}
	if ok, err := s.Delete(ctx, "a@b.com", otp.PurposeEmailChange, "d"); err != nil || !ok {
		t.Fatalf("Delete(id) = %v, %v", ok, err)
	}
	if ok, err := s.Delete(ctx, "a@b.com", otp.PurposeEmailChange, "d"); err != nil || ok {
		t.Fatalf("second Delete = %v, %v", ok, err)
	}
}

func testPurposeIsolation(t *testing.T, s otp.Store) {
	ctx := context.Background()
	mustCreate(t, s, NewRecord("s", "a@b.com", otp.PurposeSignup, "111111", 0))
	mustCreate(t, s, NewRecord("l", "a@b.com", otp.PurposeLogin, "222222", 0))

	if ok, _ := s.Delete(ctx, "a@b.com", otp.PurposeLogin, "s"); ok {
		t.Fatal("delete crossed purposes")
	}
	s1, _ := s.Current(ctx, "a@b.com", otp.PurposeSignup)
	l1, _ := s.Current(ctx, "a@b.com", otp.PurposeLogin)
	if s1 == nil || l1 == nil || s1.ID != "s" || l1.ID != "l" {
		t.Fatalf("purposes not isolated: %+v %+v", s1, l1)
	}
}

func testConcurrentAttempts(t *testing.T, s otp.Store) {
	ctx := context.Background()
	mustCreate(t, s, NewRecord("c", "race@b.com", otp.PurposeSignup, "123456", 0))

	const workers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		counted int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.RegisterAttempt(ctx, "race@b.com", otp.PurposeSignup, Base.Add(time.Second), 3)
			if err != nil {
				t.Errorf("RegisterAttempt: %v", err)
				return
			}
			if res.Outcome == otp.AttemptCounted {
				mu.Lock()
				counted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if counted != 3 {
		t.Fatalf("counted attempts = %d, want 3", counted)
	}
}

func testConcurrentDelete(t *testing.T, s otp.Store) {
	ctx := context.Background()
	mustCreate(t, s, NewRecord("once", "race@b.com", otp.PurposeLogin, "123456", 0))

	const workers = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Delete(ctx, "race@b.com", otp.PurposeLogin, "once")
			if err != nil {
				t.Errorf("Delete: %v", err)
				return
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("successful deletes = %d, want 1", wins)
	}
}
