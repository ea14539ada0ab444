package otp

import (
	"context"
	"sync"
	"time"
)

type memoryKey struct {
	identity string
	purpose  Purpose
}

// MemoryStore is a process-local Store for tests and single-node use.
type MemoryStore struct {
	mu      sync.Mutex
	records map[memoryKey]Record
}

// NewMemoryStore returns an empty single-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[memoryKey]Record)}
}

// Create supersedes the pair's record unless it is newer than notBefore.
func (m *MemoryStore) Create(_ context.Context, rec Record, notBefore time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := memoryKey{rec.Identity, rec.Purpose}
	if cur, ok := m.records[k]; ok && cur.CreatedAt.After(notBefore) {
		return &CooldownError{CreatedAt: cur.CreatedAt}
	}
	m.records[k] = cloneRecord(rec)
	return nil
}

// Current returns the pair's record in any state, or nil.
func (m *MemoryStore) Current(_ context.Context, identity string, purpose Purpose) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[memoryKey{identity, purpose}]
	if !ok {
		return nil, nil
	}
	out := cloneRecord(rec)
	return &out, nil
}

// RegisterAttempt counts one verification attempt atomically.
func (m *MemoryStore) RegisterAttempt(_ context.Context, identity string, purpose Purpose, now time.Time, maxAttempts int) (AttemptResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := memoryKey{identity, purpose}
	rec, ok := m.records[k]
	switch {
	case !ok:
		return AttemptResult{Outcome: AttemptAbsent}, nil
	case IsExpired(rec, now):
		delete(m.records, k)
		return AttemptResult{Outcome: AttemptExpired}, nil
	case IsExhausted(rec, maxAttempts):
		delete(m.records, k)
		return AttemptResult{Outcome: AttemptExhausted}, nil
	}

	rec.Attempts++
	at := now
	rec.LastAttemptAt = &at
	m.records[k] = rec
	return AttemptResult{Outcome: AttemptCounted, Record: cloneRecord(rec)}, nil
}

// Delete removes the pair's record if its ID is still id.
func (m *MemoryStore) Delete(_ context.Context, identity string, purpose Purpose, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := memoryKey{identity, purpose}
	if rec, ok := m.records[k]; ok && rec.ID == id {
		delete(m.records, k)
		return true, nil
	}
	return false, nil
}

// PurgeExpired drops records whose expiry is before the cutoff.
func (m *MemoryStore) PurgeExpired(_ context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for k, rec := range m.records {
		if rec.ExpiresAt.Before(before) {
			delete(m.records, k)
			n++
		}
	}
	return n, nil
}

func cloneRecord(r Record) Record {
	if r.LastAttemptAt != nil {
		t := *r.LastAttemptAt
		r.LastAttemptAt = &t
	}
	return r
}
