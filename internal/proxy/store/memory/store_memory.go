package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"identity-proxy/internal/proxy/models"
	"identity-proxy/pkg/platform/sentinel"
)

// translateExchangeError converts domain errors from ValidateForExchange to sentinel errors.
func translateExchangeError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "expired"):
		return fmt.Errorf("%s: %w", msg, sentinel.ErrExpired)
	case strings.Contains(msg, "already used"):
		return fmt.Errorf("%s: %w", msg, sentinel.ErrInvalidState)
	default:
		return fmt.Errorf("%s: %w", msg, sentinel.ErrInvalidState)
	}
}

// InMemoryProxyStore stores proxies in memory for tests/dev.
//
// Exchange tokens index the proxy regardless of type so global uniqueness can
// be checked with one lookup; the type filter is applied on read.
type InMemoryProxyStore struct {
	mu         sync.RWMutex
	byID       map[string]*models.Proxy
	byExchange map[string]*models.Proxy
	byAccess   map[string]*models.Proxy
}

// New constructs an empty in-memory proxy store.
func New() *InMemoryProxyStore {
	return &InMemoryProxyStore{
		byID:       make(map[string]*models.Proxy),
		byExchange: make(map[string]*models.Proxy),
		byAccess:   make(map[string]*models.Proxy),
	}
}

// Create inserts the proxy only if both tokens are globally unused. The check
// and insert happen under one lock, making it the atomic conditional write the
// lifecycle retry loop relies on.
func (s *InMemoryProxyStore) Create(_ context.Context, proxy *models.Proxy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byExchange[proxy.ExchangeToken]; taken {
		return fmt.Errorf("exchange token already in use: %w", sentinel.ErrConflict)
	}
	if _, taken := s.byAccess[proxy.AccessToken]; taken {
		return fmt.Errorf("access token already in use: %w", sentinel.ErrConflict)
	}
	if _, taken := s.byID[proxy.ID]; taken {
		return fmt.Errorf("proxy id already in use: %w", sentinel.ErrConflict)
	}

	stored := *proxy
	s.byID[stored.ID] = &stored
	s.byExchange[stored.ExchangeToken] = &stored
	s.byAccess[stored.AccessToken] = &stored
	return nil
}

func (s *InMemoryProxyStore) FindByID(_ context.Context, id string) (*models.Proxy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if proxy, ok := s.byID[id]; ok {
		copied := *proxy
		return &copied, nil
	}
	return nil, fmt.Errorf("proxy not found: %w", sentinel.ErrNotFound)
}

func (s *InMemoryProxyStore) FindByExchangeToken(_ context.Context, typ models.Type, exchangeToken string) (*models.Proxy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if proxy, ok := s.byExchange[exchangeToken]; ok && proxy.Type == typ {
		copied := *proxy
		return &copied, nil
	}
	return nil, fmt.Errorf("proxy not found: %w", sentinel.ErrNotFound)
}

func (s *InMemoryProxyStore) FindByAccessToken(_ context.Context, accessToken string) (*models.Proxy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if proxy, ok := s.byAccess[accessToken]; ok {
		copied := *proxy
		return &copied, nil
	}
	return nil, fmt.Errorf("proxy not found: %w", sentinel.ErrNotFound)
}

// Exchange transitions the proxy pending -> active if still valid at now.
// Validation and mutation run under one lock so concurrent redemptions of the
// same token produce exactly one winner.
func (s *InMemoryProxyStore) Exchange(_ context.Context, typ models.Type, exchangeToken, identityAddress string, now time.Time) (*models.Proxy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	proxy, ok := s.byExchange[exchangeToken]
	if !ok || proxy.Type != typ {
		return nil, fmt.Errorf("proxy not found: %w", sentinel.ErrNotFound)
	}

	if err := proxy.ValidateForExchange(now); err != nil {
		return nil, translateExchangeError(err)
	}

	proxy.Activate(identityAddress)
	copied := *proxy
	return &copied, nil
}
