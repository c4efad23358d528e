package store

import (
	"context"
	"sync"

	"github.com/adverge/pipeline/internal/schema"
)

// MemoryStore is a mutex-guarded map implementation for tests and local runs.
type MemoryStore struct {
	mu   sync.Mutex
	rows map[string]schema.Opportunity
}

// NewMemoryStore constructs an empty in-memory opportunity store.
func NewMemoryStore() *MemoryStore {
	m := new(MemoryStore)
	m.rows = make(map[string]schema.Opportunity)
	return m
}

// Get returns the stored opportunity for the key, if any.
func (m *MemoryStore) Get(_ context.Context, opportunityKey string) (schema.Opportunity, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	opp, ok := m.rows[opportunityKey]
	return opp, ok, nil
}

// PutIfAbsent inserts the opportunity unless its key is already present.
func (m *MemoryStore) PutIfAbsent(_ context.Context, opp schema.Opportunity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.rows[opp.OpportunityKey]; exists {
		return ErrDuplicateKey
	}
	m.rows[opp.OpportunityKey] = opp
	return nil
}

// Len reports the number of stored opportunities.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}
