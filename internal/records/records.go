// Package records defines the port to the record collaborator that keeps
// attribute records (primary_email and friends) for each identity. The
// exchange service only seeds and lists records; validation and the full
// record lifecycle live with the collaborator.
package records

import (
	"context"
	"sync"
)

// Record is a single typed attribute attached to an identity.
type Record struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Store is implemented by the record collaborator.
type Store interface {
	// UpdateRecords upserts the given records for the identity address.
	UpdateRecords(ctx context.Context, identityAddress string, records []Record) error

	// RecordsList returns all records for the identity address. A missing
	// identity yields an empty list, not an error.
	RecordsList(ctx context.Context, identityAddress string) ([]Record, error)
}

// InMemoryStore is a map-backed record store used in tests and in
// deployments where the record collaborator is not wired.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]map[string]string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]map[string]string)}
}

func (s *InMemoryStore) UpdateRecords(ctx context.Context, identityAddress string, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byKey, ok := s.records[identityAddress]
	if !ok {
		byKey = make(map[string]string)
		s.records[identityAddress] = byKey
	}
	for _, record := range records {
		byKey[record.Key] = record.Value
	}
	return nil
}

func (s *InMemoryStore) RecordsList(ctx context.Context, identityAddress string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byKey := s.records[identityAddress]
	list := make([]Record, 0, len(byKey))
	for key, value := range byKey {
		list = append(list, Record{Key: key, Value: value})
	}
	return list, nil
}
