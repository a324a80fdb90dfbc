package model

import "time"

// Transfer is the mirror row for one escrowed payment.
//
// Rows are written only by the reconciler and by the builder's optimistic
// PENDING insert. Once Status is terminal it never changes again.
type Transfer struct {
	ID        int64          `json:"id"`
	Address   string         `json:"address"`
	Sender    string         `json:"sender"`
	Recipient string         `json:"recipient"`
	Amount    uint64         `json:"amount"`
	TokenID   int64          `json:"token_id"`
	PoolID    int64          `json:"pool_id"`
	Status    TransferStatus `json:"status"`
	Memo      string         `json:"memo,omitempty"`

	CreateOpID string `json:"create_op_id,omitempty"`
	ClaimOpID  string `json:"claim_op_id,omitempty"`
	CancelOpID string `json:"cancel_op_id,omitempty"`

	ClaimableAfter *time.Time `json:"claimable_after,omitempty"`
	ClaimableUntil *time.Time `json:"claimable_until,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
