package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"custodia/pkg/domain"
	audit "custodia/pkg/platform/audit"
)

// Store persists audit events in PostgreSQL. Events are append-only; nothing
// in the application deletes them.
type Store struct {
	db *sql.DB
}

// New constructs a PostgreSQL-backed audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	transferID := sql.NullInt64{}
	if event.TransferID != nil {
		transferID = sql.NullInt64{Int64: *event.TransferID, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vault_audit_events
			(category, occurred_at, action, actor, transfer_id, recipient, amount, quorum, request_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		string(event.Category),
		event.Timestamp,
		event.Action,
		uuid.UUID(event.Actor),
		transferID,
		uuid.UUID(event.Recipient),
		event.Amount,
		event.Quorum,
		event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *Store) ListByTransfer(ctx context.Context, transferID int64) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, occurred_at, action, actor, transfer_id, recipient, amount, quorum, request_id
		FROM vault_audit_events
		WHERE transfer_id = $1
		ORDER BY id`, transferID)
	if err != nil {
		return nil, fmt.Errorf("list audit events by transfer: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, occurred_at, action, actor, transfer_id, recipient, amount, quorum, request_id
		FROM (
			SELECT id, category, occurred_at, action, actor, transfer_id, recipient, amount, quorum, request_id
			FROM vault_audit_events
			ORDER BY id DESC
			LIMIT $1
		) recent
		ORDER BY id`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event
	for rows.Next() {
		var (
			e          audit.Event
			category   string
			actor      uuid.UUID
			recipient  uuid.UUID
			transferID sql.NullInt64
		)
		if err := rows.Scan(&category, &e.Timestamp, &e.Action, &actor,
			&transferID, &recipient, &e.Amount, &e.Quorum, &e.RequestID); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Category = audit.EventCategory(category)
		e.Actor = domain.Principal(actor)
		e.Recipient = domain.Principal(recipient)
		if transferID.Valid {
			id := transferID.Int64
			e.TransferID = &id
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
