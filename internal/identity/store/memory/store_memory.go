package memory

import (
	"context"
	"fmt"
	"sync"

	"identity-proxy/internal/identity/models"
	"identity-proxy/pkg/platform/sentinel"
)

// InMemoryIdentityStore stores identities in memory for tests/dev.
type InMemoryIdentityStore struct {
	mu         sync.RWMutex
	identities map[string]*models.Identity
}

// New constructs an empty in-memory identity store.
func New() *InMemoryIdentityStore {
	return &InMemoryIdentityStore{identities: make(map[string]*models.Identity)}
}

func (s *InMemoryIdentityStore) Create(_ context.Context, identity *models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.identities[identity.Address]; taken {
		return fmt.Errorf("identity address already in use: %w", sentinel.ErrConflict)
	}
	stored := *identity
	s.identities[stored.Address] = &stored
	return nil
}

func (s *InMemoryIdentityStore) FindByAddress(_ context.Context, address string) (*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if identity, ok := s.identities[address]; ok {
		copied := *identity
		return &copied, nil
	}
	return nil, fmt.Errorf("identity not found: %w", sentinel.ErrNotFound)
}

func (s *InMemoryIdentityStore) UpdateSecret(_ context.Context, address, pinHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity, ok := s.identities[address]
	if !ok {
		return fmt.Errorf("identity not found: %w", sentinel.ErrNotFound)
	}
	identity.PinHash = pinHash
	return nil
}
