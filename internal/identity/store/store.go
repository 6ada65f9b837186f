// Package store defines the persistence contract for identities.
//
// Error Contract:
// All store methods follow this error pattern:
//   - Return sentinel.ErrNotFound (wrapped) when the identity does not exist
//   - Return sentinel.ErrConflict (wrapped) from Create on a duplicate address
//   - Return wrapped errors with context for infrastructure failures
package store

import (
	"context"

	"identity-proxy/internal/identity/models"
)

type Store interface {
	Create(ctx context.Context, identity *models.Identity) error
	FindByAddress(ctx context.Context, address string) (*models.Identity, error)
	// UpdateSecret replaces the stored PIN hash. Verification of the old
	// secret is the service's job; the store just persists.
	UpdateSecret(ctx context.Context, address, pinHash string) error
}
