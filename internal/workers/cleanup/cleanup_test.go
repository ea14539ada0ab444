package cleanup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicpulse/authcore/internal/accounts"
	"github.com/civicpulse/authcore/internal/accounts/accountstest"
	"github.com/civicpulse/authcore/internal/otp"
)

var base = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func TestRunOnceRemovesStaleUnverifiedAccounts(t *testing.T) {
	ctx := context.Background()
	store := accounts.NewMemoryStore()

	require.NoError(t, store.Create(ctx, accounts.Account{
		ID: "stale", Identity: "stale@example.com", DisplayName: "Stale",
		CredentialHash: accountstest.Hash, Role: accounts.RoleStandard, CreatedAt: base.Add(-25 * time.Hour),
	}))
	require.NoError(t, store.Create(ctx, accounts.Account{
		ID: "fresh", Identity: "fresh@example.com", DisplayName: "Fresh",
		CredentialHash: accountstest.Hash, Role: accounts.RoleStandard, CreatedAt: base.Add(-time.Hour),
	}))
	require.NoError(t, store.Create(ctx, accounts.Account{
		ID: "old-verified", Identity: "old@example.com", DisplayName: "Old",
		CredentialHash: accountstest.Hash, Role: accounts.RoleStandard, Verified: true, CreatedAt: base.Add(-30 * 24 * time.Hour),
	}))

	svc, err := New(store, 24*time.Hour, WithClock(func() time.Time { return base }))
	require.NoError(t, err)

	res, err := svc.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.DeletedAccounts)

	_, err = store.GetByID(ctx, "stale")
	assert.ErrorIs(t, err, accounts.ErrNotFound)
	_, err = store.GetByID(ctx, "fresh")
	assert.NoError(t, err)
	_, err = store.GetByID(ctx, "old-verified")
	assert.NoError(t, err)
}

func TestRunOnceKeepsRecentlyExpiredCodes(t *testing.T) {
	ctx := context.Background()
	codes := otp.NewMemoryStore()
	long := otp.Record{ID: "c1", Identity: "a@example.com", Purpose: otp.PurposeLogin,
		CreatedAt: base.Add(-3 * time.Hour), ExpiresAt: base.Add(-2 * time.Hour)}
	recent := otp.Record{ID: "c2", Identity: "b@example.com", Purpose: otp.PurposeLogin,
		CreatedAt: base.Add(-20 * time.Minute), ExpiresAt: base.Add(-10 * time.Minute)}
	require.NoError(t, codes.Create(ctx, long, long.CreatedAt))
	require.NoError(t, codes.Create(ctx, recent, recent.CreatedAt))

	var seen []Result
	svc, err := New(accounts.NewMemoryStore(), time.Hour,
		WithCodeStore(codes),
		WithCodeGrace(time.Hour),
		WithClock(func() time.Time { return base }),
		WithOnSweep(func(r Result) { seen = append(seen, r) }),
	)
	require.NoError(t, err)

	res, err := svc.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.PurgedCodes)
	require.Len(t, seen, 1)

	got, err := codes.Current(ctx, "b@example.com", otp.PurposeLogin)
	require.NoError(t, err)
	assert.NotNil(t, got)
	got, err = codes.Current(ctx, "a@example.com", otp.PurposeLogin)
	require.NoError(t, err)
	assert.Nil(t, got)
}

type failingCodes struct{}

func (failingCodes) PurgeExpired(context.Context, time.Time) (int, error) {
	return 0, errors.New("connection reset")
}

func TestRunOnceJoinsErrorsAndContinues(t *testing.T) {
	ctx := context.Background()
	store := accounts.NewMemoryStore()
	require.NoError(t, store.Create(ctx, accounts.Account{
		ID: "stale", Identity: "stale@example.com", DisplayName: "Stale",
		CredentialHash: accountstest.Hash, Role: accounts.RoleStandard, CreatedAt: base.Add(-48 * time.Hour),
	}))

	svc, err := New(store, 24*time.Hour, WithCodeStore(failingCodes{}), WithClock(func() time.Time { return base }))
	require.NoError(t, err)

	res, err := svc.RunOnce(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "purge expired codes")
	assert.Equal(t, 1, res.DeletedAccounts)
}

func TestNewValidates(t *testing.T) {
	_, err := New(nil, time.Hour)
	assert.Error(t, err)
	_, err = New(accounts.NewMemoryStore(), 0)
	assert.Error(t, err)
}

func TestStartStopsOnCancel(t *testing.T) {
	svc, err := New(accounts.NewMemoryStore(), time.Hour, WithInterval(5*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Start(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
