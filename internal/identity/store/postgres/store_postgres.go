package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"identity-proxy/internal/identity/models"
	"identity-proxy/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// PostgresIdentityStore persists identities in PostgreSQL.
type PostgresIdentityStore struct {
	db *sql.DB
}

// New constructs a PostgreSQL-backed identity store.
func New(db *sql.DB) *PostgresIdentityStore {
	return &PostgresIdentityStore{db: db}
}

func (s *PostgresIdentityStore) Create(ctx context.Context, identity *models.Identity) error {
	query := `
		INSERT INTO identities (address, pin_hash, created_at)
		VALUES ($1, NULLIF($2, ''), $3)
	`
	_, err := s.db.ExecContext(ctx, query, identity.Address, identity.PinHash, identity.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("identity address already in use: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create identity: %w", err)
	}
	return nil
}

func (s *PostgresIdentityStore) FindByAddress(ctx context.Context, address string) (*models.Identity, error) {
	query := `SELECT address, COALESCE(pin_hash, ''), created_at FROM identities WHERE address = $1`
	var identity models.Identity
	err := s.db.QueryRowContext(ctx, query, address).Scan(&identity.Address, &identity.PinHash, &identity.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("identity not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find identity: %w", err)
	}
	return &identity, nil
}

func (s *PostgresIdentityStore) UpdateSecret(ctx context.Context, address, pinHash string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE identities SET pin_hash = $2 WHERE address = $1`, address, pinHash)
	if err != nil {
		return fmt.Errorf("update secret: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update secret: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("identity not found: %w", sentinel.ErrNotFound)
	}
	return nil
}
