// Package postgres opens and prepares the relational store.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"identity-proxy/internal/platform/config"
)

// Open connects to PostgreSQL and verifies the connection.
// Returns nil if the URL is empty (Postgres not configured).
func Open(ctx context.Context, cfg config.PostgresConfig) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return db, nil
}

// schema is applied at startup. Statements are idempotent so every boot can
// run them.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS identity_proxies (
		id               TEXT PRIMARY KEY,
		identity_address TEXT,
		exchange_token   TEXT NOT NULL,
		access_token     TEXT NOT NULL,
		type             TEXT NOT NULL,
		expires_in       BIGINT NOT NULL,
		state            TEXT NOT NULL DEFAULT 'pending',
		created_at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS identity_proxies_exchange_token_idx
		ON identity_proxies (exchange_token)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS identity_proxies_access_token_idx
		ON identity_proxies (access_token)`,
	`CREATE INDEX IF NOT EXISTS identity_proxies_identity_address_idx
		ON identity_proxies (identity_address)`,
	`CREATE TABLE IF NOT EXISTS identities (
		address    TEXT PRIMARY KEY,
		pin_hash   TEXT,
		created_at TIMESTAMPTZ NOT NULL
	)`,
}

// Migrate applies the schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, statement := range schema {
		if _, err := db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
