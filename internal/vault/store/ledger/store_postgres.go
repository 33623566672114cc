package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"custodia/internal/vault/models"
	"custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
)

// PostgresStore persists the transfer ledger in PostgreSQL. Proposals live in
// vault_transfers; the per-proposal approver set lives in
// vault_transfer_approvals with a composite primary key, so a duplicate
// approval surfaces as a unique violation.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed ledger store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Append assigns the next dense id inside a transaction and stores the
// proposal together with its creator approval. The engine serializes mutating
// operations, so MAX(id)+1 cannot race with another append.
func (s *PostgresStore) Append(ctx context.Context, proposal *models.Proposal) (int64, error) {
	txn, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin append: %w", err)
	}
	defer txn.Rollback()

	var id int64
	if err := txn.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(id) + 1, 0) FROM vault_transfers`).Scan(&id); err != nil {
		return 0, fmt.Errorf("allocate transfer id: %w", err)
	}

	if _, err := txn.ExecContext(ctx, `
		INSERT INTO vault_transfers (id, recipient, amount, executed, created_at)
		VALUES ($1, $2, $3, FALSE, $4)`,
		id, uuid.UUID(proposal.Recipient), proposal.Amount, proposal.CreatedAt); err != nil {
		return 0, fmt.Errorf("insert transfer: %w", err)
	}

	for approver := range proposal.ApprovedBy {
		if _, err := txn.ExecContext(ctx, `
			INSERT INTO vault_transfer_approvals (transfer_id, approver)
			VALUES ($1, $2)`,
			id, uuid.UUID(approver)); err != nil {
			return 0, fmt.Errorf("insert creator approval: %w", err)
		}
	}

	if err := txn.Commit(); err != nil {
		return 0, fmt.Errorf("commit append: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (*models.Proposal, error) {
	proposal := &models.Proposal{ID: id, ApprovedBy: map[domain.Principal]bool{}}

	var recipient uuid.UUID
	err := s.db.QueryRowContext(ctx, `
		SELECT recipient, amount, executed, created_at
		FROM vault_transfers WHERE id = $1`, id).
		Scan(&recipient, &proposal.Amount, &proposal.Executed, &proposal.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load transfer: %w", err)
	}
	proposal.Recipient = domain.Principal(recipient)

	rows, err := s.db.QueryContext(ctx, `
		SELECT approver FROM vault_transfer_approvals WHERE transfer_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("load approvals: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var approver uuid.UUID
		if err := rows.Scan(&approver); err != nil {
			return nil, fmt.Errorf("scan approval: %w", err)
		}
		proposal.ApprovedBy[domain.Principal(approver)] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate approvals: %w", err)
	}
	proposal.Approvals = len(proposal.ApprovedBy)
	return proposal, nil
}

func (s *PostgresStore) AddApproval(ctx context.Context, id int64, approver domain.Principal) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO vault_transfer_approvals (transfer_id, approver)
		VALUES ($1, $2)`,
		id, uuid.UUID(approver))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Code.Name() {
			case "unique_violation":
				return sentinel.ErrAlreadyUsed
			case "foreign_key_violation":
				return sentinel.ErrNotFound
			}
		}
		return fmt.Errorf("insert approval: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) MarkExecuted(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE vault_transfers SET executed = TRUE
		WHERE id = $1 AND executed = FALSE`, id)
	if err != nil {
		return fmt.Errorf("mark executed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark executed rows: %w", err)
	}
	if n == 0 {
		var executed bool
		scanErr := s.db.QueryRowContext(ctx,
			`SELECT executed FROM vault_transfers WHERE id = $1`, id).Scan(&executed)
		if errors.Is(scanErr, sql.ErrNoRows) {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM vault_transfers`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count transfers: %w", err)
	}
	return count, nil
}
