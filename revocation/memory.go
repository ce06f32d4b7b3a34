package revocation

import (
	"context"
	"sync"
	"time"
)

type subjectEntry struct {
	cutoff    int64
	expiresAt time.Time
}

// Memory is a process-local Registry. Entries do not survive a restart.
type Memory struct {
	mu       sync.RWMutex
	tokens   map[string]Entry
	subjects map[string]subjectEntry
	now      func() time.Time
}

// NewMemory returns an empty registry. now stamps RevokedAt; nil means
// time.Now.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{
		tokens:   make(map[string]Entry),
		subjects: make(map[string]subjectEntry),
		now:      now,
	}
}

func (m *Memory) Revoke(_ context.Context, tokenID string, expiresAt time.Time) error {
	if !validID(tokenID) {
		return ErrInvalidEntry
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.tokens[tokenID]; ok {
		if expiresAt.After(existing.ExpiresAt) {
			existing.ExpiresAt = expiresAt
			m.tokens[tokenID] = existing
		}
		return nil
	}
	m.tokens[tokenID] = Entry{TokenID: tokenID, RevokedAt: m.now(), ExpiresAt: expiresAt}
	return nil
}

func (m *Memory) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.RLock()
	_, ok := m.tokens[tokenID]
	m.mu.RUnlock()
	return ok, nil
}

func (m *Memory) RevokeSubject(_ context.Context, subject string, cutoff, expiresAt time.Time) error {
	if !validID(subject) {
		return ErrInvalidEntry
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.subjects[subject]
	if !ok || cutoff.Unix() > entry.cutoff {
		entry.cutoff = cutoff.Unix()
	}
	if expiresAt.After(entry.expiresAt) {
		entry.expiresAt = expiresAt
	}
	m.subjects[subject] = entry
	return nil
}

func (m *Memory) Revoked(_ context.Context, tokenID, subject string, issuedAt time.Time) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.tokens[tokenID]; ok {
		return true, nil
	}
	if entry, ok := m.subjects[subject]; ok && coveredByCutoff(issuedAt, entry.cutoff) {
		return true, nil
	}
	return false, nil
}

func (m *Memory) Sweep(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, entry := range m.tokens {
		if !now.Before(entry.ExpiresAt) {
			delete(m.tokens, id)
			removed++
		}
	}
	for subject, entry := range m.subjects {
		if !now.Before(entry.expiresAt) {
			delete(m.subjects, subject)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of live token and subject entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tokens) + len(m.subjects)
}
