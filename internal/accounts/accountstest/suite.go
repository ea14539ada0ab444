// Package accountstest holds the behavioural suite every accounts.Store
// must pass.
package accountstest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/civicpulse/authcore/internal/accounts"
)

// Hash is a syntactically valid argon2id encoding for fixtures.
const Hash = "$argon2id$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5a2V5a2V5a2V5a2V5a2V5a2V5a2V5a2V5a2U"

// OtherHash differs from Hash.
const OtherHash = "$argon2id$v=19$m=8192,t=1,p=1$b3RoZXJzYWx0b3RoZXJzYQ$b3RoZXJrZXlvdGhlcmtleW90aGVya2V5b3RoZXI"

// Created is the creation time every fixture account gets.
var Created = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

// Factory returns an empty store for one subtest.
type Factory func(t *testing.T) accounts.Store

// NewAccount returns an unverified standard account fixture.
func NewAccount(id, identity string) accounts.Account {
	return accounts.Account{
		ID:             id,
		Identity:       identity,
		DisplayName:    "Jordan Rivera",
		CredentialHash: Hash,
		Role:           accounts.RoleStandard,
		CreatedAt:      Created,
	}
}

// Run checks newStore against the accounts.Store contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("CreateAndLookup", func(t *testing.T) { testCreateAndLookup(t, newStore(t)) })
	t.Run("RejectsDuplicateIdentity", func(t *testing.T) { testDuplicate(t, newStore(t)) })
	t.Run("RejectsPlaintextCredential", func(t *testing.T) { testPlaintext(t, newStore(t)) })
	t.Run("MarkVerifiedOnce", func(t *testing.T) { testMarkVerified(t, newStore(t)) })
	t.Run("UpdateLockoutCAS", func(t *testing.T) { testUpdateLockout(t, newStore(t)) })
	t.Run("ConcurrentCASNeverLosesIncrements", func(t *testing.T) { testConcurrentCAS(t, newStore(t)) })
	t.Run("SetCredentialHash", func(t *testing.T) { testSetCredential(t, newStore(t)) })
	t.Run("ChangeIdentity", func(t *testing.T) { testChangeIdentity(t, newStore(t)) })
	t.Run("DeleteUnverifiedBefore", func(t *testing.T) { testDeleteUnverified(t, newStore(t)) })
}

func mustCreate(t *testing.T, s accounts.Store, a accounts.Account) {
	t.Helper()
	if err := s.Create(context.Background(), a); err != nil {
		t.Fatalf("Create(%s): %v", a.ID, err)
	}
}

func testCreateAndLookup(t *testing.T, s accounts.Store) {
	ctx := context.Background()
	mustCreate(t, s, NewAccount("acct-1", "Jordan@Example.org"))

	byIdentity, err := s.GetByIdentity(ctx, "JORDAN@example.ORG")
	if err != nil {
		t.Fatalf("GetByIdentity: %v", err)
	}
	if byIdentity.ID != "acct-1" || byIdentity.Identity != "jordan@example.org" {
		t.Fatalf("unexpected account %+v", byIdentity)
	}
	if byIdentity.Verified || byIdentity.Role != accounts.RoleStandard || byIdentity.CredentialHash != Hash {
		t.Fatalf("fields not persisted: %+v", byIdentity)
	}
	if !byIdentity.CreatedAt.Equal(Created) || byIdentity.Version < 1 {
		t.Fatalf("CreatedAt/Version not persisted: %+v", byIdentity)
	}

	byID, err := s.GetByID(ctx, "acct-1")
	if err != nil || byID.Identity != "jordan@example.org" {
		t.Fatalf("GetByID = %+v, %v", byID, err)
	}

	if _, err := s.GetByIdentity(ctx, "missing@example.org"); !errors.Is(err, accounts.ErrNotFound) {
		t.Fatalf("missing identity err = %v", err)
	}
	if _, err := s.GetByID(ctx, "missing"); !errors.Is(err, accounts.ErrNotFound) {
		t.Fatalf("missing id err = %v", err)
	}
}

func testDuplicate(t *testing.T, s accounts.Store) {
	mustCreate(t, s, NewAccount("acct-1", "dup@example.org"))
	err := s.Create(context.Background(), NewAccount("acct-2", "DUP@example.org"))
	if !errors.Is(err, accounts.ErrIdentityTaken) {
		t.Fatalf("duplicate err = %v", err)
	}
}

func testPlaintext(t *testing.T, s accounts.Store) {
	a := NewAccount("acct-1", "plain@example.org")
	a.CredentialHash = "hunter2hunter2"
	if err := s.Create(context.Background(), a); !errors.Is(err, accounts.ErrUnhashedCredential) {
		t.Fatalf("plaintext create err = %v", err)
	}
	mustCreate(t, s, NewAccount("acct-2", "ok@example.org"))
	if err := s.SetCredentialHash(context.Background(), "acct-2", "hunter2hunter2"); !errors.Is(err, accounts.ErrUnhashedCredential) {
		t.Fatalf("plaintext set err = %v", err)
	}
}

func testMarkVerified(t *testing.T, s accounts.Store) {
	ctx := context.Background()
	mustCreate(t, s, NewAccount("acct-1", "verify@example.org"))

	flipped, err := s.MarkVerified(ctx, "acct-1")
	if err != nil || !flipped {
		t.Fatalf("first MarkVerified = %v, %v", flipped, err)
	}
	flipped, err = s.MarkVerified(ctx, "acct-1")
	if err != nil || flipped {
		t.Fatalf("second MarkVerified = %v, %v", flipped, err)
	}
	got, _ := s.GetByID(ctx, "acct-1")
	if !got.Verified {
		t.Fatal("account not verified")
	}
	if _, err := s.MarkVerified(ctx, "missing"); !errors.Is(err, accounts.ErrNotFound) {
		t.Fatalf("missing MarkVerified err = %v", err)
	}
}

func testUpdateLockout(t *testing.T, s accounts.Store) {
	ctx := context.Background()
	mustCreate(t, s, NewAccount("acct-1", "lock@example.org"))
	cur, _ := s.GetByID(ctx, "acct-1")

	until := Created.Add(2 * time.Hour)
	updated, err := s.UpdateLockout(ctx, "acct-1", cur.Version, accounts.LockoutState{FailedAttempts: 5, LockedUntil: &until})
	if err != nil {
		t.Fatalf("UpdateLockout: %v", err)
	}
	if updated.FailedAttempts != 5 || updated.LockedUntil == nil || !updated.LockedUntil.Equal(until) {
		t.Fatalf("lockout not applied: %+v", updated)
	}
	if updated.Version <= cur.Version {
		t.Fatalf("version not advanced: %d -> %d", cur.Version, updated.Version)
	}

	if _, err := s.UpdateLockout(ctx, "acct-1", cur.Version, accounts.LockoutState{}); !errors.Is(err, accounts.ErrVersionConflict) {
		t.Fatalf("stale version err = %v", err)
	}

	reread, _ := s.GetByID(ctx, "acct-1")
	if reread.FailedAttempts != 5 || reread.LockedUntil == nil {
		t.Fatalf("stale write leaked: %+v", reread)
	}

	seen := Created.Add(3 * time.Hour)
	cleared, err := s.UpdateLockout(ctx, "acct-1", reread.Version, accounts.LockoutState{LastAuthenticatedAt: &seen})
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if cleared.FailedAttempts != 0 || cleared.LockedUntil != nil || cleared.LastAuthenticatedAt == nil || !cleared.LastAuthenticatedAt.Equal(seen) {
		t.Fatalf("clear not applied: %+v", cleared)
	}
}

func testConcurrentCAS(t *testing.T, s accounts.Store) {
	ctx := context.Background()
	mustCreate(t, s, NewAccount("acct-1", "race@example.org"))

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				cur, err := s.GetByID(ctx, "acct-1")
				if err != nil {
					t.Errorf("GetByID: %v", err)
					return
				}
				st := cur.Lockout()
				st.FailedAttempts++
				_, err = s.UpdateLockout(ctx, "acct-1", cur.Version, st)
				if errors.Is(err, accounts.ErrVersionConflict) {
					continue
				}
				if err != nil {
					t.Errorf("UpdateLockout: %v", err)
				}
				return
			}
		}()
	}
	wg.Wait()

	got, _ := s.GetByID(ctx, "acct-1")
	if got.FailedAttempts != workers {
		t.Fatalf("FailedAttempts = %d, want %d", got.FailedAttempts, workers)
	}
}

func testSetCredential(t *testing.T, s accounts.Store) {
	ctx := context.Background()
	mustCreate(t, s, NewAccount("acct-1", "cred@example.org"))
	if err := s.SetCredentialHash(ctx, "acct-1", OtherHash); err != nil {
		t.Fatalf("SetCredentialHash: %v", err)
	}
	got, _ := s.GetByID(ctx, "acct-1")
	if got.CredentialHash != OtherHash {
		t.Fatal("credential not replaced")
	}
	if err := s.SetCredentialHash(ctx, "missing", OtherHash); !errors.Is(err, accounts.ErrNotFound) {
		t.Fatalf("missing SetCredentialHash err = %v", err)
	}
}

func testChangeIdentity(t *testing.T, s accounts.Store) {
	ctx := context.Background()
	mustCreate(t, s, NewAccount("acct-1", "old@example.org"))
	mustCreate(t, s, NewAccount("acct-2", "taken@example.org"))

	if err := s.ChangeIdentity(ctx, "acct-1", "taken@example.org"); !errors.Is(err, accounts.ErrIdentityTaken) {
		t.Fatalf("taken identity err = %v", err)
	}
	if err := s.ChangeIdentity(ctx, "acct-1", "New@Example.org"); err != nil {
		t.Fatalf("ChangeIdentity: %v", err)
	}
	if _, err := s.GetByIdentity(ctx, "old@example.org"); !errors.Is(err, accounts.ErrNotFound) {
		t.Fatalf("old identity still resolves: %v", err)
	}
	got, err := s.GetByIdentity(ctx, "new@example.org")
	if err != nil || got.ID != "acct-1" {
		t.Fatalf("new identity lookup = %+v, %v", got, err)
	}
}

func testDeleteUnverified(t *testing.T, s accounts.Store) {
	ctx := context.Background()
	stale := NewAccount("stale", "stale@example.org")
	fresh := NewAccount("fresh", "fresh@example.org")
	fresh.CreatedAt = Created.Add(48 * time.Hour)
	verified := NewAccount("verified", "verified@example.org")
	for _, a := range []accounts.Account{stale, fresh, verified} {
		mustCreate(t, s, a)
	}
	if _, err := s.MarkVerified(ctx, "verified"); err != nil {
		t.Fatalf("MarkVerified: %v", err)
	}

	n, err := s.DeleteUnverifiedBefore(ctx, Created.Add(24*time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("DeleteUnverifiedBefore = %d, %v", n, err)
	}
	if _, err := s.GetByIdentity(ctx, "stale@example.org"); !errors.Is(err, accounts.ErrNotFound) {
		t.Fatal("stale unverified account survived")
	}
	for _, id := range []string{"fresh", "verified"} {
		if _, err := s.GetByID(ctx, id); err != nil {
			t.Fatalf("%s removed: %v", id, err)
		}
	}
}
