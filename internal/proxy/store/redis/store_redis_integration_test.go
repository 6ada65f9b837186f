//go:build integration

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"identity-proxy/internal/proxy/models"
	"identity-proxy/pkg/platform/sentinel"
	"identity-proxy/pkg/testutil/containers"
)

type RedisProxyStoreSuite struct {
	suite.Suite
	container *containers.RedisContainer
	store     *RedisProxyStore
}

func TestRedisProxyStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	suite.Run(t, new(RedisProxyStoreSuite))
}

func (s *RedisProxyStoreSuite) SetupSuite() {
	s.container = containers.NewRedisContainer(s.T())
	s.store = New(s.container.Client)
}

func (s *RedisProxyStoreSuite) SetupTest() {
	s.Require().NoError(s.container.FlushAll(context.Background()))
}

func (s *RedisProxyStoreSuite) newProxy(typ models.Type, expiresIn int64) *models.Proxy {
	id := uuid.NewString()
	return &models.Proxy{
		ID:            id,
		ExchangeToken: "exchange-" + id,
		AccessToken:   "access-" + id,
		Type:          typ,
		ExpiresIn:     expiresIn,
		State:         models.StatePending,
		CreatedAt:     time.Now().UTC(),
	}
}

func (s *RedisProxyStoreSuite) TestCreateAndFind() {
	ctx := context.Background()
	proxy := s.newProxy(models.TypePinCode, 600)
	s.Require().NoError(s.store.Create(ctx, proxy))

	byID, err := s.store.FindByID(ctx, proxy.ID)
	s.Require().NoError(err)
	s.Equal(proxy.ExchangeToken, byID.ExchangeToken)

	byExchange, err := s.store.FindByExchangeToken(ctx, models.TypePinCode, proxy.ExchangeToken)
	s.Require().NoError(err)
	s.Equal(proxy.ID, byExchange.ID)

	byAccess, err := s.store.FindByAccessToken(ctx, proxy.AccessToken)
	s.Require().NoError(err)
	s.Equal(proxy.ID, byAccess.ID)
}

func (s *RedisProxyStoreSuite) TestDuplicateTokenConflicts() {
	ctx := context.Background()
	first := s.newProxy(models.TypePinCode, 600)
	s.Require().NoError(s.store.Create(ctx, first))

	dup := s.newProxy(models.TypeQRCode, 3600)
	dup.ExchangeToken = first.ExchangeToken
	s.ErrorIs(s.store.Create(ctx, dup), sentinel.ErrConflict)

	// The failed create must not leave claims behind for its other tokens.
	fresh := s.newProxy(models.TypeQRCode, 3600)
	fresh.AccessToken = dup.AccessToken
	s.NoError(s.store.Create(ctx, fresh))
}

func (s *RedisProxyStoreSuite) TestExchange() {
	ctx := context.Background()
	proxy := s.newProxy(models.TypeQRCode, 3600)
	s.Require().NoError(s.store.Create(ctx, proxy))

	exchanged, err := s.store.Exchange(ctx, models.TypeQRCode, proxy.ExchangeToken, "addr123", time.Now().UTC())
	s.Require().NoError(err)
	s.Equal(models.StateActive, exchanged.State)
	s.Equal("addr123", exchanged.IdentityAddress)

	_, err = s.store.Exchange(ctx, models.TypeQRCode, proxy.ExchangeToken, "addr123", time.Now().UTC())
	s.ErrorIs(err, sentinel.ErrInvalidState)
}

func (s *RedisProxyStoreSuite) TestExchangeWrongType() {
	ctx := context.Background()
	proxy := s.newProxy(models.TypeQRCode, 3600)
	s.Require().NoError(s.store.Create(ctx, proxy))

	_, err := s.store.Exchange(ctx, models.TypeEmailCode, proxy.ExchangeToken, "", time.Now().UTC())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisProxyStoreSuite) TestExchangeExpired() {
	ctx := context.Background()
	proxy := s.newProxy(models.TypeShortToken, 60)
	proxy.CreatedAt = time.Now().UTC().Add(-2 * time.Minute)
	s.Require().NoError(s.store.Create(ctx, proxy))

	_, err := s.store.Exchange(ctx, models.TypeShortToken, proxy.ExchangeToken, "", time.Now().UTC())
	s.ErrorIs(err, sentinel.ErrExpired)
}

func (s *RedisProxyStoreSuite) TestConcurrentExchangeSingleWinner() {
	ctx := context.Background()
	proxy := s.newProxy(models.TypePinCode, 600)
	s.Require().NoError(s.store.Create(ctx, proxy))

	const racers = 10
	wins := make(chan struct{}, racers)
	var g errgroup.Group
	for i := 0; i < racers; i++ {
		g.Go(func() error {
			_, err := s.store.Exchange(ctx, models.TypePinCode, proxy.ExchangeToken, "addr123", time.Now().UTC())
			if err == nil {
				wins <- struct{}{}
			}
			return nil
		})
	}
	s.Require().NoError(g.Wait())
	close(wins)

	var count int
	for range wins {
		count++
	}
	s.Equal(1, count)
}
