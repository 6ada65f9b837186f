// Package store defines the persistence contract for proxies.
//
// Error Contract:
// All store methods follow this error pattern:
//   - Return sentinel.ErrNotFound (wrapped) when the requested proxy does not exist,
//     including when the exchange token exists under a different type
//   - Return sentinel.ErrConflict (wrapped) from Create when the exchange or access
//     token is already taken anywhere in the store
//   - Return sentinel.ErrInvalidState / sentinel.ErrExpired (wrapped) from Exchange
//   - Return wrapped errors with context for infrastructure failures
package store

import (
	"context"
	"time"

	"identity-proxy/internal/proxy/models"
)

// Store persists proxies. Implementations must make Create an atomic
// insert-if-unique and Exchange an atomic conditional update; the lifecycle
// service never holds a lock between steps.
type Store interface {
	// Create inserts the proxy only if both its exchange token and access
	// token are unused across the whole store.
	Create(ctx context.Context, proxy *models.Proxy) error

	FindByID(ctx context.Context, id string) (*models.Proxy, error)

	// FindByExchangeToken looks a proxy up by (exchange token, type). A token
	// stored under a different type is a miss, not a type error.
	FindByExchangeToken(ctx context.Context, typ models.Type, exchangeToken string) (*models.Proxy, error)

	FindByAccessToken(ctx context.Context, accessToken string) (*models.Proxy, error)

	// Exchange atomically transitions the proxy pending -> active when it is
	// still pending and unexpired at the given time, binding identityAddress
	// when non-empty. Under concurrent redemption of the same token exactly
	// one caller wins; the rest observe ErrInvalidState.
	Exchange(ctx context.Context, typ models.Type, exchangeToken, identityAddress string, now time.Time) (*models.Proxy, error)
}
