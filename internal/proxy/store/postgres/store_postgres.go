package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"identity-proxy/internal/proxy/models"
	"identity-proxy/pkg/platform/sentinel"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations.
const uniqueViolation = "23505"

// PostgresProxyStore persists proxies in PostgreSQL.
//
// Uniqueness of exchange and access tokens is enforced by unique indexes; a
// violation surfaces as sentinel.ErrConflict so the lifecycle retry loop treats
// the database exactly like the in-memory store. The pending -> active
// transition is a single conditional UPDATE, so concurrent redemptions race on
// the row, not in application code.
type PostgresProxyStore struct {
	db *sql.DB
}

// New constructs a PostgreSQL-backed proxy store.
func New(db *sql.DB) *PostgresProxyStore {
	return &PostgresProxyStore{db: db}
}

const proxyColumns = `id, COALESCE(identity_address, ''), exchange_token, access_token, type, expires_in, state, created_at`

func scanProxy(row interface{ Scan(...any) error }) (*models.Proxy, error) {
	var proxy models.Proxy
	err := row.Scan(
		&proxy.ID,
		&proxy.IdentityAddress,
		&proxy.ExchangeToken,
		&proxy.AccessToken,
		&proxy.Type,
		&proxy.ExpiresIn,
		&proxy.State,
		&proxy.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &proxy, nil
}

func (s *PostgresProxyStore) Create(ctx context.Context, proxy *models.Proxy) error {
	query := `
		INSERT INTO identity_proxies
			(id, identity_address, exchange_token, access_token, type, expires_in, state, created_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		proxy.ID,
		proxy.IdentityAddress,
		proxy.ExchangeToken,
		proxy.AccessToken,
		string(proxy.Type),
		proxy.ExpiresIn,
		string(proxy.State),
		proxy.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("token already in use: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create proxy: %w", err)
	}
	return nil
}

func (s *PostgresProxyStore) FindByID(ctx context.Context, id string) (*models.Proxy, error) {
	query := `SELECT ` + proxyColumns + ` FROM identity_proxies WHERE id = $1`
	proxy, err := scanProxy(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("proxy not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find proxy by id: %w", err)
	}
	return proxy, nil
}

func (s *PostgresProxyStore) FindByExchangeToken(ctx context.Context, typ models.Type, exchangeToken string) (*models.Proxy, error) {
	query := `SELECT ` + proxyColumns + ` FROM identity_proxies WHERE exchange_token = $1 AND type = $2`
	proxy, err := scanProxy(s.db.QueryRowContext(ctx, query, exchangeToken, string(typ)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("proxy not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find proxy by exchange token: %w", err)
	}
	return proxy, nil
}

func (s *PostgresProxyStore) FindByAccessToken(ctx context.Context, accessToken string) (*models.Proxy, error) {
	query := `SELECT ` + proxyColumns + ` FROM identity_proxies WHERE access_token = $1`
	proxy, err := scanProxy(s.db.QueryRowContext(ctx, query, accessToken))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("proxy not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find proxy by access token: %w", err)
	}
	return proxy, nil
}

// Exchange performs the pending -> active transition as one conditional UPDATE.
// When no row matches, a follow-up read discriminates not-found, replay and
// expiry; losing that race only changes which failure is reported, both
// outcomes being valid at some serialization point.
func (s *PostgresProxyStore) Exchange(ctx context.Context, typ models.Type, exchangeToken, identityAddress string, now time.Time) (*models.Proxy, error) {
	query := `
		UPDATE identity_proxies
		SET state = 'active',
			identity_address = COALESCE(NULLIF($3, ''), identity_address)
		WHERE exchange_token = $1
		  AND type = $2
		  AND state = 'pending'
		  AND created_at + make_interval(secs => expires_in) >= $4
		RETURNING ` + proxyColumns
	proxy, err := scanProxy(s.db.QueryRowContext(ctx, query, exchangeToken, string(typ), identityAddress, now))
	if err == nil {
		return proxy, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("exchange proxy: %w", err)
	}

	existing, err := s.FindByExchangeToken(ctx, typ, exchangeToken)
	if err != nil {
		return nil, err
	}
	if existing.State != models.StatePending {
		return nil, fmt.Errorf("proxy already used: %w", sentinel.ErrInvalidState)
	}
	return nil, fmt.Errorf("proxy expired: %w", sentinel.ErrExpired)
}
