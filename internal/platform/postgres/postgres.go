// Package postgres opens the shared database handle and bootstraps the schema
// the vault stores rely on.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate applies the vault schema. Statements are idempotent so the server
// can run them on every start.
func Migrate(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS vault_registry (
			singleton    BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (singleton),
			quorum       INTEGER NOT NULL CHECK (quorum > 0),
			version      BIGINT  NOT NULL,
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS vault_signers (
			position  INTEGER NOT NULL,
			principal UUID    NOT NULL,
			PRIMARY KEY (position)
		)`,
		`CREATE TABLE IF NOT EXISTS vault_transfers (
			id         BIGINT PRIMARY KEY,
			recipient  UUID        NOT NULL,
			amount     BIGINT      NOT NULL CHECK (amount > 0),
			executed   BOOLEAN     NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS vault_transfer_approvals (
			transfer_id BIGINT NOT NULL REFERENCES vault_transfers(id),
			approver    UUID   NOT NULL,
			approved_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (transfer_id, approver)
		)`,
		`CREATE TABLE IF NOT EXISTS vault_audit_events (
			id          BIGSERIAL PRIMARY KEY,
			category    TEXT        NOT NULL,
			occurred_at TIMESTAMPTZ NOT NULL,
			action      TEXT        NOT NULL,
			actor       UUID        NOT NULL,
			transfer_id BIGINT,
			recipient   UUID        NOT NULL,
			amount      BIGINT      NOT NULL DEFAULT 0,
			quorum      INTEGER     NOT NULL DEFAULT 0,
			request_id  TEXT        NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_vault_audit_transfer
			ON vault_audit_events (transfer_id) WHERE transfer_id IS NOT NULL`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
