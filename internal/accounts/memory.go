package accounts

import (
	"context"
	"sync"
	"time"

	"github.com/civicpulse/authcore/password"
)

// MemoryStore keeps accounts in process memory.
type MemoryStore struct {
	mu         sync.RWMutex
	byID       map[string]Account
	byIdentity map[string]string
}

// NewMemoryStore returns an empty single-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:       make(map[string]Account),
		byIdentity: make(map[string]string),
	}
}

// Create stores a new record.
func (m *MemoryStore) Create(_ context.Context, acct Account) error {
	if !password.LooksHashed(acct.CredentialHash) {
		return ErrUnhashedCredential
	}
	acct.Identity = NormalizeIdentity(acct.Identity)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byIdentity[acct.Identity]; ok {
		return ErrIdentityTaken
	}
	if _, ok := m.byID[acct.ID]; ok {
		return ErrIdentityTaken
	}
	acct.Version = 1
	m.byID[acct.ID] = acct.Clone()
	m.byIdentity[acct.Identity] = acct.ID
	return nil
}

// GetByIdentity looks an account up by normalized identity.
func (m *MemoryStore) GetByIdentity(_ context.Context, identity string) (Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byIdentity[NormalizeIdentity(identity)]
	if !ok {
		return Account{}, ErrNotFound
	}
	return m.byID[id].Clone(), nil
}

// GetByID looks an account up by ID.
func (m *MemoryStore) GetByID(_ context.Context, id string) (Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	acct, ok := m.byID[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return acct.Clone(), nil
}

// MarkVerified sets Verified and reports whether it changed.
func (m *MemoryStore) MarkVerified(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.byID[id]
	if !ok {
		return false, ErrNotFound
	}
	if acct.Verified {
		return false, nil
	}
	acct.Verified = true
	acct.Version++
	m.byID[id] = acct
	return true, nil
}

// SetCredentialHash replaces the stored password hash.
func (m *MemoryStore) SetCredentialHash(_ context.Context, id, hash string) error {
	if !password.LooksHashed(hash) {
		return ErrUnhashedCredential
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	acct.CredentialHash = hash
	acct.Version++
	m.byID[id] = acct
	return nil
}

// UpdateLockout writes st if the account is still at expectedVersion.
func (m *MemoryStore) UpdateLockout(_ context.Context, id string, expectedVersion int64, st LockoutState) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.byID[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	if acct.Version != expectedVersion {
		return Account{}, ErrVersionConflict
	}
	acct = acct.WithLockout(st)
	acct.Version++
	m.byID[id] = acct
	return acct.Clone(), nil
}

// ChangeIdentity re-keys the account to newIdentity.
func (m *MemoryStore) ChangeIdentity(_ context.Context, id, newIdentity string) error {
	newIdentity = NormalizeIdentity(newIdentity)
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	if owner, taken := m.byIdentity[newIdentity]; taken && owner != id {
		return ErrIdentityTaken
	}
	delete(m.byIdentity, acct.Identity)
	acct.Identity = newIdentity
	acct.Version++
	m.byID[id] = acct
	m.byIdentity[newIdentity] = id
	return nil
}

// DeleteUnverifiedBefore removes unverified accounts created before cutoff.
func (m *MemoryStore) DeleteUnverifiedBefore(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, acct := range m.byID {
		if !acct.Verified && acct.CreatedAt.Before(cutoff) {
			delete(m.byID, id)
			delete(m.byIdentity, acct.Identity)
			n++
		}
	}
	return n, nil
}
