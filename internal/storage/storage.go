package storage

import (
	"context"
	"errors"
	"time"

	"escrowScope/internal/model"
)

// ErrNotFound is returned when a mirror row does not exist.
var ErrNotFound = errors.New("not found")

// ErrNonTerminalStatus is returned when MarkTransferTerminal is called with
// a status that is not terminal.
var ErrNonTerminalStatus = errors.New("status is not terminal")

// Mirror is the queryable local cache of ledger-derived state. Transfer rows
// are written only by the reconciler and the builder's optimistic insert;
// readers never mutate them.
type Mirror interface {
	// UpsertToken materializes a token by mint, returning the stored row.
	// Existing metadata wins over placeholder metadata.
	UpsertToken(ctx context.Context, token model.Token) (model.Token, error)
	GetTokenByMint(ctx context.Context, mint string) (model.Token, error)
	// GetTokenBySymbol matches case-insensitively.
	GetTokenBySymbol(ctx context.Context, symbol string) (model.Token, error)
	ListTokens(ctx context.Context) ([]model.Token, error)

	// UpsertPool materializes or refreshes a pool by derived address.
	UpsertPool(ctx context.Context, pool model.Pool) (model.Pool, error)
	GetPoolByAddress(ctx context.Context, address string) (model.Pool, error)
	GetPoolByTokenID(ctx context.Context, tokenID int64) (model.Pool, error)
	// FirstActivePool returns any unpaused pool, oldest first.
	FirstActivePool(ctx context.Context) (model.Pool, error)

	// InsertPendingTransfer records the builder's optimistic row. A row that
	// already exists at the address is left untouched.
	InsertPendingTransfer(ctx context.Context, transfer model.Transfer) error
	// UpsertActiveTransfer inserts or promotes a transfer to ACTIVE. Rows
	// already in a terminal status are never downgraded; the call is then a
	// no-op and reports changed=false.
	UpsertActiveTransfer(ctx context.Context, transfer model.Transfer) (changed bool, err error)
	// MarkTransferTerminal moves a PENDING/ACTIVE row to a terminal status.
	// Terminal rows are never overwritten, not even with a different terminal
	// status; such calls are no-ops reporting changed=false. A missing row is
	// ErrNotFound.
	MarkTransferTerminal(ctx context.Context, address string, status model.TransferStatus, opID string) (changed bool, err error)

	GetTransferByAddress(ctx context.Context, address string) (model.Transfer, error)
	// ListTransfersByWallet returns transfers where wallet is sender or
	// recipient, newest first.
	ListTransfersByWallet(ctx context.Context, wallet string, limit int) ([]model.Transfer, error)
	ListRecentTransfers(ctx context.Context, limit int) ([]model.Transfer, error)

	// DeleteStalePending garbage-collects abandoned optimistic rows that
	// never confirmed.
	DeleteStalePending(ctx context.Context, olderThan time.Time) (int64, error)
}

// Journal is an append-only sink for reconciliation audit events.
type Journal interface {
	Append(events []model.ReconcileEvent) error
}
