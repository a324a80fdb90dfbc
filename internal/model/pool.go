package model

import "time"

// Pool is the mirror row for an on-chain fee-collecting vault.
//
// The aggregate counters are advisory: a fresh ledger read always supersedes
// them, so readers must not treat them as authoritative balances.
type Pool struct {
	ID       int64  `json:"id"`
	PoolID   string `json:"pool_id"`
	Address  string `json:"address"`
	Operator string `json:"operator"`
	TokenID  int64  `json:"token_id"`
	FeeBps   uint16 `json:"fee_bps"`

	TotalDeposits          uint64 `json:"total_deposits"`
	TotalWithdrawals       uint64 `json:"total_withdrawals"`
	TotalEscrowed          uint64 `json:"total_escrowed"`
	TotalTransfersCreated  uint64 `json:"total_transfers_created"`
	TotalTransfersResolved uint64 `json:"total_transfers_resolved"`
	CollectedFees          uint64 `json:"collected_fees"`

	IsPaused  bool      `json:"is_paused"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
