package store

import (
	"context"
	"sync"

	"github.com/lorem111/claerdex/internal/model"
)

// MemoryStore implements Store with an in-memory map. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*model.Account
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*model.Account),
	}
}

func (s *MemoryStore) LoadAccount(_ context.Context, address string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[address]
	if !ok {
		return nil, ErrNotFound
	}
	return a.Clone(), nil
}

func (s *MemoryStore) SaveAccount(_ context.Context, acct *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.accounts[acct.Address]
	if ok {
		if existing.Version != acct.Version {
			return ErrConflict
		}
	} else if acct.Version != 0 {
		return ErrConflict
	}

	acct.Version++
	s.accounts[acct.Address] = acct.Clone()
	return nil
}
