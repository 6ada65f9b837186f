package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"identity-proxy/internal/proxy/models"
	"identity-proxy/pkg/platform/sentinel"
)

const (
	proxyKeyPrefix    = "proxy:id:"
	exchangeKeyPrefix = "proxy:exchange:"
	accessKeyPrefix   = "proxy:access:"

	// casRetries bounds optimistic-lock retries on WATCH conflicts before the
	// exchange is reported as lost to a concurrent redemption.
	casRetries = 3
)

// RedisProxyStore persists proxies in Redis.
//
// Layout: the proxy record lives as JSON under proxy:id:<id>; the exchange and
// access tokens are secondary index keys holding the id. Index keys are claimed
// with SETNX so creation stays an atomic insert-if-unique, and the pending ->
// active transition runs under WATCH on the record key so concurrent
// redemptions produce exactly one winner.
//
// Records carry no TTL: expired unredeemed proxies stay behind as inert
// history, matching the other store implementations.
type RedisProxyStore struct {
	client *redis.Client
}

// New constructs a Redis-backed proxy store.
func New(client *redis.Client) *RedisProxyStore {
	return &RedisProxyStore{client: client}
}

func marshalProxy(proxy *models.Proxy) (string, error) {
	raw, err := json.Marshal(proxy)
	if err != nil {
		return "", fmt.Errorf("marshal proxy: %w", err)
	}
	return string(raw), nil
}

func unmarshalProxy(raw string) (*models.Proxy, error) {
	var proxy models.Proxy
	if err := json.Unmarshal([]byte(raw), &proxy); err != nil {
		return nil, fmt.Errorf("unmarshal proxy: %w", err)
	}
	return &proxy, nil
}

func (s *RedisProxyStore) Create(ctx context.Context, proxy *models.Proxy) error {
	raw, err := marshalProxy(proxy)
	if err != nil {
		return err
	}

	claimed, err := s.client.SetNX(ctx, exchangeKeyPrefix+proxy.ExchangeToken, proxy.ID, 0).Result()
	if err != nil {
		return fmt.Errorf("claim exchange token: %w", err)
	}
	if !claimed {
		return fmt.Errorf("exchange token already in use: %w", sentinel.ErrConflict)
	}

	claimed, err = s.client.SetNX(ctx, accessKeyPrefix+proxy.AccessToken, proxy.ID, 0).Result()
	if err == nil && !claimed {
		err = fmt.Errorf("access token already in use: %w", sentinel.ErrConflict)
	}
	if err != nil {
		// Release the exchange claim so the token space is not burned by a
		// half-finished create.
		s.client.Del(ctx, exchangeKeyPrefix+proxy.ExchangeToken)
		if errors.Is(err, sentinel.ErrConflict) {
			return err
		}
		return fmt.Errorf("claim access token: %w", err)
	}

	if err := s.client.Set(ctx, proxyKeyPrefix+proxy.ID, raw, 0).Err(); err != nil {
		s.client.Del(ctx, exchangeKeyPrefix+proxy.ExchangeToken, accessKeyPrefix+proxy.AccessToken)
		return fmt.Errorf("store proxy: %w", err)
	}
	return nil
}

func (s *RedisProxyStore) FindByID(ctx context.Context, id string) (*models.Proxy, error) {
	raw, err := s.client.Get(ctx, proxyKeyPrefix+id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("proxy not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find proxy by id: %w", err)
	}
	return unmarshalProxy(raw)
}

func (s *RedisProxyStore) findByIndex(ctx context.Context, indexKey string) (*models.Proxy, error) {
	id, err := s.client.Get(ctx, indexKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("proxy not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("resolve proxy index: %w", err)
	}
	return s.FindByID(ctx, id)
}

func (s *RedisProxyStore) FindByExchangeToken(ctx context.Context, typ models.Type, exchangeToken string) (*models.Proxy, error) {
	proxy, err := s.findByIndex(ctx, exchangeKeyPrefix+exchangeToken)
	if err != nil {
		return nil, err
	}
	if proxy.Type != typ {
		return nil, fmt.Errorf("proxy not found: %w", sentinel.ErrNotFound)
	}
	return proxy, nil
}

func (s *RedisProxyStore) FindByAccessToken(ctx context.Context, accessToken string) (*models.Proxy, error) {
	return s.findByIndex(ctx, accessKeyPrefix+accessToken)
}

// Exchange runs the pending -> active transition under WATCH on the record key.
// A WATCH conflict means another request touched the record between read and
// write; after a bounded number of retries the proxy is re-read and the
// failure reported from its then-current state.
func (s *RedisProxyStore) Exchange(ctx context.Context, typ models.Type, exchangeToken, identityAddress string, now time.Time) (*models.Proxy, error) {
	id, err := s.client.Get(ctx, exchangeKeyPrefix+exchangeToken).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("proxy not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("resolve proxy index: %w", err)
	}

	recordKey := proxyKeyPrefix + id

	var exchanged *models.Proxy
	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, recordKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return fmt.Errorf("proxy not found: %w", sentinel.ErrNotFound)
			}
			return fmt.Errorf("read proxy: %w", err)
		}
		proxy, err := unmarshalProxy(raw)
		if err != nil {
			return err
		}
		if proxy.Type != typ {
			return fmt.Errorf("proxy not found: %w", sentinel.ErrNotFound)
		}
		if proxy.State != models.StatePending {
			return fmt.Errorf("proxy already used: %w", sentinel.ErrInvalidState)
		}
		if proxy.Expired(now) {
			return fmt.Errorf("proxy expired: %w", sentinel.ErrExpired)
		}

		proxy.Activate(identityAddress)
		updated, err := marshalProxy(proxy)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, recordKey, updated, 0)
			return nil
		})
		if err != nil {
			return err
		}
		exchanged = proxy
		return nil
	}

	for attempt := 0; attempt < casRetries; attempt++ {
		err := s.client.Watch(ctx, txn, recordKey)
		if err == nil {
			return exchanged, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}

	// Retries exhausted: another request won the record. Report from its
	// current state, which in practice is the replay case.
	proxy, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if proxy.State != models.StatePending {
		return nil, fmt.Errorf("proxy already used: %w", sentinel.ErrInvalidState)
	}
	return nil, fmt.Errorf("exchange contention: %w", sentinel.ErrUnavailable)
}
