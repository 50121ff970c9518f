package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driven"
)

// Ensure SecureStore implements the interface.
var _ driven.SecureStore = (*SecureStore)(nil)

// SecureStore is an in-memory implementation of driven.SecureStore.
// Used for tests and the "memory" secrets backend.
type SecureStore struct {
	mu      sync.RWMutex
	secrets map[string]string
}

// NewSecureStore creates a new in-memory secure store.
func NewSecureStore() *SecureStore {
	return &SecureStore{
		secrets: make(map[string]string),
	}
}

// Get retrieves the secret stored under key.
func (s *SecureStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.secrets[key]
	if !ok {
		return "", domain.ErrNotFound
	}
	return v, nil
}

// Save stores or replaces the secret under key.
func (s *SecureStore) Save(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[key] = value
	return nil
}

// Remove deletes key.
func (s *SecureStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.secrets, key)
	return nil
}
