package stores

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/civicpulse/authcore/internal/accounts"
	"github.com/civicpulse/authcore/internal/accounts/accountstest"
	"github.com/civicpulse/authcore/internal/otp"
	"github.com/civicpulse/authcore/internal/otp/otptest"
	"github.com/redis/go-redis/v9"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisCodeStoreConformance(t *testing.T) {
	otptest.Run(t, func(t *testing.T) otp.Store {
		_, rdb := newRedis(t)
		return NewRedisCodeStore(rdb, "test")
	})
}

func TestRedisAccountStoreConformance(t *testing.T) {
	accountstest.Run(t, func(t *testing.T) accounts.Store {
		_, rdb := newRedis(t)
		return NewRedisAccountStore(rdb, "test")
	})
}

func TestRedisCodeStoreKeyTTLCoversRetention(t *testing.T) {
	mr, rdb := newRedis(t)
	store := NewRedisCodeStore(rdb, "ttl", WithCodeRetention(30*time.Minute))
	rec := otptest.NewRecord("ttl", "a@b.com", otp.PurposeSignup, "123456", 0)
	if err := store.Create(context.Background(), rec, rec.CreatedAt.Add(-time.Minute)); err != nil {
		t.Fatalf("Create: %v", err)
	}

	key := "ttl:otp:signup:a@b.com"
	if got := mr.TTL(key); got != 40*time.Minute {
		t.Fatalf("TTL = %v, want 40m", got)
	}
	mr.FastForward(41 * time.Minute)
	cur, err := store.Current(context.Background(), "a@b.com", otp.PurposeSignup)
	if err != nil || cur != nil {
		t.Fatalf("Current after TTL = %+v, %v", cur, err)
	}
}

func TestRedisCodeStoreNeverStoresPlaintext(t *testing.T) {
	mr, rdb := newRedis(t)
	store := NewRedisCodeStore(rdb, "")
	rec := otptest.NewRecord("plain", "a@b.com", otp.PurposeLogin, "739104", 0)
	if err := store.Create(context.Background(), rec, rec.CreatedAt.Add(-time.Minute)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, field := range []string{"id", "identity", "purpose", "hash", "attempts", "created", "expires", "ip", "ua"} {
		if v := mr.HGet("ac:otp:login:a@b.com", field); v == "739104" {
			t.Fatalf("field %s holds the plaintext code", field)
		}
	}
}

func TestRedisStoresReportUnavailable(t *testing.T) {
	mr, rdb := newRedis(t)
	codes := NewRedisCodeStore(rdb, "down")
	accts := NewRedisAccountStore(rdb, "down")
	mr.Close()

	ctx := context.Background()
	_, err := codes.RegisterAttempt(ctx, "a@b.com", otp.PurposeSignup, time.Now(), 3)
	if !errors.Is(err, otp.ErrStoreUnavailable) {
		t.Fatalf("code store err = %v", err)
	}
	_, err = accts.GetByIdentity(ctx, "a@b.com")
	if !errors.Is(err, accounts.ErrStoreUnavailable) {
		t.Fatalf("account store err = %v", err)
	}
}

func TestRedisAccountStoreUnverifiedIndex(t *testing.T) {
	mr, rdb := newRedis(t)
	store := NewRedisAccountStore(rdb, "idx")
	ctx := context.Background()

	if err := store.Create(ctx, accountstest.NewAccount("a1", "one@example.org")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if members, _ := mr.ZMembers("{idx:acct}:unverified"); len(members) != 1 {
		t.Fatalf("unverified index = %v", members)
	}
	if _, err := store.MarkVerified(ctx, "a1"); err != nil {
		t.Fatalf("MarkVerified: %v", err)
	}
	if members, _ := mr.ZMembers("{idx:acct}:unverified"); len(members) != 0 {
		t.Fatalf("verified account still indexed: %v", members)
	}
}

func TestRedisAccountKeysShareOneSlot(t *testing.T) {
	mr, rdb := newRedis(t)
	store := NewRedisAccountStore(rdb, "slot")
	ctx := context.Background()

	if err := store.Create(ctx, accountstest.NewAccount("a1", "one@example.org")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.ChangeIdentity(ctx, "a1", "two@example.org"); err != nil {
		t.Fatalf("ChangeIdentity: %v", err)
	}

	keys := mr.Keys()
	if len(keys) != 3 {
		t.Fatalf("keys = %v, want account, identity and unverified index", keys)
	}
	for _, k := range keys {
		if !strings.HasPrefix(k, "{slot:acct}:") {
			t.Fatalf("key %q is outside the account hash tag", k)
		}
	}
	if mr.Exists("{slot:acct}:ident:one@example.org") {
		t.Fatal("old identity key left behind")
	}
}

func TestRedisAccountStoreSweepsDanglingIndexEntries(t *testing.T) {
	mr, rdb := newRedis(t)
	store := NewRedisAccountStore(rdb, "dang")
	if _, err := mr.ZAdd("{dang:acct}:unverified", 1, "ghost"); err != nil {
		t.Fatalf("ZAdd: %v", err)
	}

	n, err := store.DeleteUnverifiedBefore(context.Background(), time.Now())
	if err != nil || n != 0 {
		t.Fatalf("DeleteUnverifiedBefore = %d, %v", n, err)
	}
	if members, _ := mr.ZMembers("{dang:acct}:unverified"); len(members) != 0 {
		t.Fatalf("dangling entry kept: %v", members)
	}
}
