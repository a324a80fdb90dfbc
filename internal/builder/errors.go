package builder

import "errors"

// Resolution errors: expected races or bad references, surfaced to the
// caller and never retried automatically.
var (
	ErrPoolNotFound  = errors.New("pool not found")
	ErrTokenNotFound = errors.New("token not found")
	ErrNoActivePool  = errors.New("no active pool")

	// ErrTransferNotFound on a claim/cancel build is the normal outcome of
	// racing a concurrent terminal operation: someone else already resolved
	// the transfer and the ledger reclaimed its record.
	ErrTransferNotFound = errors.New("transfer not found")
)

// Validation errors: caught before any network call.
var (
	ErrInvalidAmount = errors.New("amount must be positive")
	ErrMemoTooLong   = errors.New("memo exceeds 64 bytes")
)
