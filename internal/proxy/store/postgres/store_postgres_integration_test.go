//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	platformpostgres "identity-proxy/internal/platform/postgres"
	"identity-proxy/internal/proxy/models"
	"identity-proxy/pkg/platform/sentinel"
	"identity-proxy/pkg/testutil/containers"
)

type PostgresProxyStoreSuite struct {
	suite.Suite
	container *containers.PostgresContainer
	store     *PostgresProxyStore
}

func TestPostgresProxyStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	suite.Run(t, new(PostgresProxyStoreSuite))
}

func (s *PostgresProxyStoreSuite) SetupSuite() {
	s.container = containers.NewPostgresContainer(s.T())
	s.Require().NoError(platformpostgres.Migrate(context.Background(), s.container.DB))
	s.store = New(s.container.DB)
}

func (s *PostgresProxyStoreSuite) SetupTest() {
	_, err := s.container.DB.Exec(`TRUNCATE identity_proxies`)
	s.Require().NoError(err)
}

func (s *PostgresProxyStoreSuite) newProxy(typ models.Type, expiresIn int64) *models.Proxy {
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

func (s *PostgresProxyStoreSuite) TestCreateAndFind() {
	ctx := context.Background()
	proxy := s.newProxy(models.TypePinCode, 600)
	s.Require().NoError(s.store.Create(ctx, proxy))

	byID, err := s.store.FindByID(ctx, proxy.ID)
	s.Require().NoError(err)
	s.Equal(proxy.ExchangeToken, byID.ExchangeToken)
	s.Equal(models.StatePending, byID.State)
	s.Empty(byID.IdentityAddress)

	byExchange, err := s.store.FindByExchangeToken(ctx, models.TypePinCode, proxy.ExchangeToken)
	s.Require().NoError(err)
	s.Equal(proxy.ID, byExchange.ID)

	byAccess, err := s.store.FindByAccessToken(ctx, proxy.AccessToken)
	s.Require().NoError(err)
	s.Equal(proxy.ID, byAccess.ID)
}

func (s *PostgresProxyStoreSuite) TestFindMissing() {
	ctx := context.Background()

	_, err := s.store.FindByID(ctx, "missing")
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.FindByExchangeToken(ctx, models.TypePinCode, "missing")
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.FindByAccessToken(ctx, "missing")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresProxyStoreSuite) TestDuplicateTokenConflictsAcrossTypes() {
	ctx := context.Background()
	first := s.newProxy(models.TypePinCode, 600)
	s.Require().NoError(s.store.Create(ctx, first))

	// Same exchange token under a different type still violates global
	// uniqueness.
	dup := s.newProxy(models.TypeQRCode, 3600)
	dup.ExchangeToken = first.ExchangeToken
	s.ErrorIs(s.store.Create(ctx, dup), sentinel.ErrConflict)

	dup = s.newProxy(models.TypeQRCode, 3600)
	dup.AccessToken = first.AccessToken
	s.ErrorIs(s.store.Create(ctx, dup), sentinel.ErrConflict)
}

func (s *PostgresProxyStoreSuite) TestExchange() {
	ctx := context.Background()
	proxy := s.newProxy(models.TypeQRCode, 3600)
	s.Require().NoError(s.store.Create(ctx, proxy))

	exchanged, err := s.store.Exchange(ctx, models.TypeQRCode, proxy.ExchangeToken, "addr123", time.Now().UTC())
	s.Require().NoError(err)
	s.Equal(models.StateActive, exchanged.State)
	s.Equal("addr123", exchanged.IdentityAddress)

	// Replay.
	_, err = s.store.Exchange(ctx, models.TypeQRCode, proxy.ExchangeToken, "addr123", time.Now().UTC())
	s.ErrorIs(err, sentinel.ErrInvalidState)
}

func (s *PostgresProxyStoreSuite) TestExchangeWrongType() {
	ctx := context.Background()
	proxy := s.newProxy(models.TypeQRCode, 3600)
	s.Require().NoError(s.store.Create(ctx, proxy))

	_, err := s.store.Exchange(ctx, models.TypeEmailCode, proxy.ExchangeToken, "", time.Now().UTC())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresProxyStoreSuite) TestExchangeExpired() {
	ctx := context.Background()
	proxy := s.newProxy(models.TypeShortToken, 60)
	proxy.CreatedAt = time.Now().UTC().Add(-2 * time.Minute)
	s.Require().NoError(s.store.Create(ctx, proxy))

	_, err := s.store.Exchange(ctx, models.TypeShortToken, proxy.ExchangeToken, "", time.Now().UTC())
	s.ErrorIs(err, sentinel.ErrExpired)
}

func (s *PostgresProxyStoreSuite) TestExchangePreservesExistingBinding() {
	ctx := context.Background()
	proxy := s.newProxy(models.TypeConfirmationCode, 2592000)
	proxy.IdentityAddress = "addr-original"
	s.Require().NoError(s.store.Create(ctx, proxy))

	exchanged, err := s.store.Exchange(ctx, models.TypeConfirmationCode, proxy.ExchangeToken, "", time.Now().UTC())
	s.Require().NoError(err)
	s.Equal("addr-original", exchanged.IdentityAddress)
}

func (s *PostgresProxyStoreSuite) TestConcurrentExchangeSingleWinner() {
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
