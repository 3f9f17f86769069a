package store

import (
	"context"
	"sync"

	"github.com/layer-3/nftgate/core"
	"github.com/layer-3/nftgate/ports"
)

// MemoryStore is an in-memory implementation of the CredentialStore interface.
// It is primarily intended for tests and single-run CLI sessions.
type MemoryStore struct {
	token string
	mu    sync.RWMutex
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() ports.CredentialStore {
	return &MemoryStore{}
}

// Load returns the stored credential
func (s *MemoryStore) Load(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == "" {
		return "", core.ErrNoCredential
	}
	return s.token, nil
}

// Save replaces the stored credential
func (s *MemoryStore) Save(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
	return nil
}

// Clear removes the stored credential
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = ""
	return nil
}
