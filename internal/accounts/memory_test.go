package accounts_test

import (
	"testing"

	"github.com/civicpulse/authcore/internal/accounts"
	"github.com/civicpulse/authcore/internal/accounts/accountstest"
)

func TestMemoryStoreConformance(t *testing.T) {
	accountstest.Run(t, func(*testing.T) accounts.Store { return accounts.NewMemoryStore() })
}
