package postgres

import (
	"context"
	"fmt"
)

// Schema statements, applied in order. Idempotent; migration tooling is out
// of scope for this service.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS tokens (
		id BIGSERIAL PRIMARY KEY,
		mint TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		symbol TEXT NOT NULL,
		decimals SMALLINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS pools (
		id BIGSERIAL PRIMARY KEY,
		pool_id TEXT NOT NULL,
		address TEXT NOT NULL UNIQUE,
		operator TEXT NOT NULL,
		token_id BIGINT NOT NULL REFERENCES tokens(id),
		fee_bps INTEGER NOT NULL CHECK (fee_bps BETWEEN 0 AND 10000),
		total_deposits BIGINT NOT NULL DEFAULT 0,
		total_withdrawals BIGINT NOT NULL DEFAULT 0,
		total_escrowed BIGINT NOT NULL DEFAULT 0,
		total_transfers_created BIGINT NOT NULL DEFAULT 0,
		total_transfers_resolved BIGINT NOT NULL DEFAULT 0,
		collected_fees BIGINT NOT NULL DEFAULT 0,
		is_paused BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS transfers (
		id BIGSERIAL PRIMARY KEY,
		address TEXT NOT NULL UNIQUE,
		sender TEXT NOT NULL,
		recipient TEXT NOT NULL,
		amount BIGINT NOT NULL,
		token_id BIGINT NOT NULL REFERENCES tokens(id),
		pool_id BIGINT NOT NULL REFERENCES pools(id),
		status TEXT NOT NULL CHECK (status IN (
			'PENDING','ACTIVE','CLAIMED','CANCELLED','REJECTED','DECLINED','EXPIRED'
		)),
		memo TEXT,
		create_op_id TEXT,
		claim_op_id TEXT,
		cancel_op_id TEXT,
		claimable_after TIMESTAMPTZ,
		claimable_until TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transfers_sender ON transfers (sender, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_transfers_recipient ON transfers (recipient, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_transfers_status ON transfers (status)`,
}

// EnsureSchema creates the mirror tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
