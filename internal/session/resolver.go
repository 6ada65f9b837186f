// Package session resolves bearer access tokens back to the proxy and
// identity they belong to. Resolution is a pure read through the proxy store
// with a short-lived positive cache in front of it, so the hot path of every
// authenticated request does not hammer the store.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"identity-proxy/internal/proxy/models"
	"identity-proxy/internal/proxy/store"
	dErrors "identity-proxy/pkg/domain-errors"
	"identity-proxy/pkg/platform/sentinel"
)

// cacheTTL bounds staleness. An access token has no TTL of its own, it lives
// and dies with its proxy, so a few seconds of positive caching only delays
// external revocation by that much.
const cacheTTL = 5 * time.Second

// Session is the resolved authentication context of a bearer token.
type Session struct {
	ProxyID         string
	ProxyType       models.Type
	IdentityAddress string
}

// Resolver maps access tokens to sessions.
type Resolver struct {
	proxies store.Store
	cache   *ristretto.Cache[string, Session]
}

func NewResolver(proxies store.Store) (*Resolver, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, Session]{
		NumCounters: 100_000,
		MaxCost:     10_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Resolver{proxies: proxies, cache: cache}, nil
}

// Resolve looks up the session for an access token. Only an active proxy
// bound to an identity authenticates; pending and unbound proxies are
// reported as not found, the same answer an unknown token gets.
func (r *Resolver) Resolve(ctx context.Context, accessToken string) (Session, error) {
	if accessToken == "" {
		return Session{}, dErrors.New(dErrors.CodeUnauthorized, "access token is required")
	}
	if session, ok := r.cache.Get(accessToken); ok {
		return session, nil
	}

	proxy, err := r.proxies.FindByAccessToken(ctx, accessToken)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Session{}, dErrors.New(dErrors.CodeNotFound, "no session for token")
		}
		return Session{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve token")
	}
	if proxy.State != models.StateActive || proxy.IdentityAddress == "" {
		return Session{}, dErrors.New(dErrors.CodeNotFound, "no session for token")
	}

	session := Session{
		ProxyID:         proxy.ID,
		ProxyType:       proxy.Type,
		IdentityAddress: proxy.IdentityAddress,
	}
	r.cache.SetWithTTL(accessToken, session, 1, cacheTTL)
	return session, nil
}

// ResolveIdentity is the public resolve surface: token in, address out.
func (r *Resolver) ResolveIdentity(ctx context.Context, accessToken string) (string, error) {
	session, err := r.Resolve(ctx, accessToken)
	if err != nil {
		return "", err
	}
	return session.IdentityAddress, nil
}

// Close releases the cache's background goroutines.
func (r *Resolver) Close() {
	r.cache.Close()
}
