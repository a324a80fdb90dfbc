package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"escrowScope/internal/model"
	"escrowScope/internal/storage"
)

// Store provides Postgres persistence for the mirror.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// UpsertToken inserts the token if its mint is unseen. Placeholder metadata
// never overwrites curated metadata already in the row.
func (s *Store) UpsertToken(ctx context.Context, token model.Token) (model.Token, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO tokens (mint, name, symbol, decimals, created_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (mint) DO UPDATE SET
			name = CASE WHEN EXCLUDED.symbol <> $5 THEN EXCLUDED.name ELSE tokens.name END,
			symbol = CASE WHEN EXCLUDED.symbol <> $5 THEN EXCLUDED.symbol ELSE tokens.symbol END,
			decimals = CASE WHEN EXCLUDED.symbol <> $5 THEN EXCLUDED.decimals ELSE tokens.decimals END
		RETURNING id, mint, name, symbol, decimals, created_at
	`, token.Mint, token.Name, token.Symbol, int16(token.Decimals), model.PlaceholderTokenSymbol)
	return scanToken(row)
}

func (s *Store) GetTokenByMint(ctx context.Context, mint string) (model.Token, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, mint, name, symbol, decimals, created_at
		FROM tokens WHERE mint = $1
	`, mint)
	return scanToken(row)
}

func (s *Store) GetTokenBySymbol(ctx context.Context, symbol string) (model.Token, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, mint, name, symbol, decimals, created_at
		FROM tokens WHERE lower(symbol) = lower($1)
		ORDER BY id LIMIT 1
	`, symbol)
	return scanToken(row)
}

func (s *Store) ListTokens(ctx context.Context) ([]model.Token, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, mint, name, symbol, decimals, created_at
		FROM tokens ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []model.Token
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

// UpsertPool inserts or refreshes pool state by derived address. A fresh
// ledger read always supersedes the cached counters.
func (s *Store) UpsertPool(ctx context.Context, p model.Pool) (model.Pool, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO pools (
			pool_id, address, operator, token_id, fee_bps,
			total_deposits, total_withdrawals, total_escrowed,
			total_transfers_created, total_transfers_resolved, collected_fees,
			is_paused, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12, now(), now())
		ON CONFLICT (address) DO UPDATE SET
			operator = EXCLUDED.operator,
			fee_bps = EXCLUDED.fee_bps,
			total_deposits = EXCLUDED.total_deposits,
			total_withdrawals = EXCLUDED.total_withdrawals,
			total_escrowed = EXCLUDED.total_escrowed,
			total_transfers_created = EXCLUDED.total_transfers_created,
			total_transfers_resolved = EXCLUDED.total_transfers_resolved,
			collected_fees = EXCLUDED.collected_fees,
			is_paused = EXCLUDED.is_paused,
			updated_at = now()
		RETURNING id, pool_id, address, operator, token_id, fee_bps,
			total_deposits, total_withdrawals, total_escrowed,
			total_transfers_created, total_transfers_resolved, collected_fees,
			is_paused, created_at, updated_at
	`,
		p.PoolID, p.Address, p.Operator, p.TokenID, int32(p.FeeBps),
		int64(p.TotalDeposits), int64(p.TotalWithdrawals), int64(p.TotalEscrowed),
		int64(p.TotalTransfersCreated), int64(p.TotalTransfersResolved), int64(p.CollectedFees),
		p.IsPaused,
	)
	return scanPool(row)
}

func (s *Store) GetPoolByAddress(ctx context.Context, address string) (model.Pool, error) {
	row := s.pool.QueryRow(ctx, poolSelect+` WHERE address = $1`, address)
	return scanPool(row)
}

func (s *Store) GetPoolByTokenID(ctx context.Context, tokenID int64) (model.Pool, error) {
	row := s.pool.QueryRow(ctx, poolSelect+` WHERE token_id = $1 ORDER BY id LIMIT 1`, tokenID)
	return scanPool(row)
}

func (s *Store) FirstActivePool(ctx context.Context) (model.Pool, error) {
	row := s.pool.QueryRow(ctx, poolSelect+` WHERE NOT is_paused ORDER BY id LIMIT 1`)
	return scanPool(row)
}

// InsertPendingTransfer records the builder's optimistic row. Existing rows
// at the same address are left untouched.
func (s *Store) InsertPendingTransfer(ctx context.Context, t model.Transfer) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO transfers (
			address, sender, recipient, amount, token_id, pool_id, status, memo,
			claimable_after, claimable_until, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10, now(), now())
		ON CONFLICT (address) DO NOTHING
	`,
		t.Address, t.Sender, t.Recipient, int64(t.Amount), t.TokenID, t.PoolID,
		string(model.StatusPending), nullIfEmpty(t.Memo), t.ClaimableAfter, t.ClaimableUntil,
	)
	return err
}

// UpsertActiveTransfer inserts or promotes a transfer to ACTIVE. The status
// guard keeps terminal rows untouched: a retried create reconciliation can
// never resurrect a resolved transfer.
func (s *Store) UpsertActiveTransfer(ctx context.Context, t model.Transfer) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO transfers (
			address, sender, recipient, amount, token_id, pool_id, status, memo,
			create_op_id, claimable_after, claimable_until, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11, now(), now())
		ON CONFLICT (address) DO UPDATE SET
			sender = EXCLUDED.sender,
			recipient = EXCLUDED.recipient,
			amount = EXCLUDED.amount,
			token_id = EXCLUDED.token_id,
			pool_id = EXCLUDED.pool_id,
			status = EXCLUDED.status,
			memo = EXCLUDED.memo,
			create_op_id = COALESCE(EXCLUDED.create_op_id, transfers.create_op_id),
			claimable_after = EXCLUDED.claimable_after,
			claimable_until = EXCLUDED.claimable_until,
			updated_at = now()
		WHERE transfers.status IN ($12, $7)
	`,
		t.Address, t.Sender, t.Recipient, int64(t.Amount), t.TokenID, t.PoolID,
		string(model.StatusActive), nullIfEmpty(t.Memo), nullIfEmpty(t.CreateOpID),
		t.ClaimableAfter, t.ClaimableUntil,
		string(model.StatusPending),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkTransferTerminal applies a terminal transition exactly once. Rows that
// are already terminal are left as-is and reported unchanged.
func (s *Store) MarkTransferTerminal(ctx context.Context, address string, status model.TransferStatus, opID string) (bool, error) {
	if !status.Terminal() {
		return false, storage.ErrNonTerminalStatus
	}

	opColumn := "cancel_op_id"
	if status == model.StatusClaimed {
		opColumn = "claim_op_id"
	}

	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`
		UPDATE transfers SET
			status = $2,
			%s = $3,
			updated_at = now()
		WHERE address = $1 AND status IN ($4, $5)
	`, opColumn),
		address, string(status), opID,
		string(model.StatusPending), string(model.StatusActive),
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	// Nothing updated: either the row is already terminal (a no-op by
	// design) or it does not exist at all.
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM transfers WHERE address = $1)`, address).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, storage.ErrNotFound
	}
	return false, nil
}

func (s *Store) GetTransferByAddress(ctx context.Context, address string) (model.Transfer, error) {
	row := s.pool.QueryRow(ctx, transferSelect+` WHERE address = $1`, address)
	return scanTransfer(row)
}

func (s *Store) ListTransfersByWallet(ctx context.Context, wallet string, limit int) ([]model.Transfer, error) {
	rows, err := s.pool.Query(ctx, transferSelect+`
		WHERE sender = $1 OR recipient = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, wallet, normalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	return collectTransfers(rows)
}

func (s *Store) ListRecentTransfers(ctx context.Context, limit int) ([]model.Transfer, error) {
	rows, err := s.pool.Query(ctx, transferSelect+`
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, normalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	return collectTransfers(rows)
}

func (s *Store) DeleteStalePending(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM transfers WHERE status = $1 AND created_at < $2
	`, string(model.StatusPending), olderThan)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const poolSelect = `
	SELECT id, pool_id, address, operator, token_id, fee_bps,
		total_deposits, total_withdrawals, total_escrowed,
		total_transfers_created, total_transfers_resolved, collected_fees,
		is_paused, created_at, updated_at
	FROM pools`

const transferSelect = `
	SELECT id, address, sender, recipient, amount, token_id, pool_id, status,
		COALESCE(memo, ''), COALESCE(create_op_id, ''), COALESCE(claim_op_id, ''),
		COALESCE(cancel_op_id, ''), claimable_after, claimable_until,
		created_at, updated_at
	FROM transfers`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanToken(row rowScanner) (model.Token, error) {
	var token model.Token
	var decimals int16
	err := row.Scan(&token.ID, &token.Mint, &token.Name, &token.Symbol, &decimals, &token.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Token{}, storage.ErrNotFound
		}
		return model.Token{}, err
	}
	token.Decimals = uint8(decimals)
	return token, nil
}

func scanPool(row rowScanner) (model.Pool, error) {
	var p model.Pool
	var feeBps int32
	var deposits, withdrawals, escrowed, created, resolved, fees int64
	err := row.Scan(
		&p.ID, &p.PoolID, &p.Address, &p.Operator, &p.TokenID, &feeBps,
		&deposits, &withdrawals, &escrowed, &created, &resolved, &fees,
		&p.IsPaused, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Pool{}, storage.ErrNotFound
		}
		return model.Pool{}, err
	}
	p.FeeBps = uint16(feeBps)
	p.TotalDeposits = uint64(deposits)
	p.TotalWithdrawals = uint64(withdrawals)
	p.TotalEscrowed = uint64(escrowed)
	p.TotalTransfersCreated = uint64(created)
	p.TotalTransfersResolved = uint64(resolved)
	p.CollectedFees = uint64(fees)
	return p, nil
}

func scanTransfer(row rowScanner) (model.Transfer, error) {
	var t model.Transfer
	var amount int64
	var status string
	err := row.Scan(
		&t.ID, &t.Address, &t.Sender, &t.Recipient, &amount, &t.TokenID, &t.PoolID,
		&status, &t.Memo, &t.CreateOpID, &t.ClaimOpID, &t.CancelOpID,
		&t.ClaimableAfter, &t.ClaimableUntil, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Transfer{}, storage.ErrNotFound
		}
		return model.Transfer{}, err
	}
	t.Amount = uint64(amount)
	t.Status = model.TransferStatus(status)
	return t, nil
}

func collectTransfers(rows pgx.Rows) ([]model.Transfer, error) {
	defer rows.Close()

	var transfers []model.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	return limit
}
