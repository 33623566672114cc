package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"custodia/internal/vault/models"
	"custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
)

// PostgresStore persists the registry in PostgreSQL: one singleton row for
// quorum and version, plus a positional table preserving the enumeration
// order (including duplicates) of the signer list.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed registry store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context) (*models.Registry, error) {
	var (
		quorum  int
		version int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT quorum, version FROM vault_registry`).Scan(&quorum, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT principal FROM vault_signers ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("load signers: %w", err)
	}
	defer rows.Close()

	members := make(map[domain.Principal]bool)
	var order []domain.Principal
	for rows.Next() {
		var principal uuid.UUID
		if err := rows.Scan(&principal); err != nil {
			return nil, fmt.Errorf("scan signer: %w", err)
		}
		p := domain.Principal(principal)
		members[p] = true
		order = append(order, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signers: %w", err)
	}

	return &models.Registry{
		Members: members,
		Order:   order,
		Quorum:  quorum,
		Version: version,
	}, nil
}

// Replace swaps the signer set and quorum atomically in one transaction.
func (s *PostgresStore) Replace(ctx context.Context, registry *models.Registry) error {
	txn, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin registry replace: %w", err)
	}
	defer txn.Rollback()

	if _, err := txn.ExecContext(ctx, `DELETE FROM vault_signers`); err != nil {
		return fmt.Errorf("clear signers: %w", err)
	}
	for position, principal := range registry.Order {
		if _, err := txn.ExecContext(ctx,
			`INSERT INTO vault_signers (position, principal) VALUES ($1, $2)`,
			position, uuid.UUID(principal)); err != nil {
			return fmt.Errorf("insert signer: %w", err)
		}
	}

	if _, err := txn.ExecContext(ctx, `
		INSERT INTO vault_registry (singleton, quorum, version, updated_at)
		VALUES (TRUE, $1, $2, now())
		ON CONFLICT (singleton)
		DO UPDATE SET quorum = EXCLUDED.quorum, version = EXCLUDED.version, updated_at = now()`,
		registry.Quorum, registry.Version); err != nil {
		return fmt.Errorf("upsert registry: %w", err)
	}

	if err := txn.Commit(); err != nil {
		return fmt.Errorf("commit registry replace: %w", err)
	}
	return nil
}
