package lockout_test

import (
	"context"
	"testing"
	"time"

	"github.com/civicpulse/authcore/internal/accounts"
	"github.com/civicpulse/authcore/internal/lockout"
	"github.com/civicpulse/authcore/password"
)

func BenchmarkAuthenticate(b *testing.B) {
	hasher, err := password.NewBcrypt(4)
	if err != nil {
		b.Fatalf("NewBcrypt: %v", err)
	}
	store := accounts.NewMemoryStore()
	hash, err := hasher.Hash(secret)
	if err != nil {
		b.Fatalf("Hash: %v", err)
	}
	ctx := context.Background()
	if err := store.Create(ctx, accounts.Account{
		ID: "bench", Identity: "bench@example.com", DisplayName: "Bench",
		CredentialHash: hash, Verified: true, Role: accounts.RoleStandard, CreatedAt: time.Now(),
	}); err != nil {
		b.Fatalf("Create: %v", err)
	}
	svc, err := lockout.NewService(store, hasher, lockout.DefaultPolicy())
	if err != nil {
		b.Fatalf("NewService: %v", err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := svc.Authenticate(ctx, "bench@example.com", secret); err != nil {
			b.Fatalf("Authenticate: %v", err)
		}
	}
}
