package model

// TransferStatus is the mirror-side lifecycle of an escrowed transfer.
//
// PENDING is mirror-only: the builder inserts it optimistically before the
// client has signed anything. On chain the record starts at ACTIVE and every
// other status coincides with the account being closed.
type TransferStatus string

const (
	StatusPending   TransferStatus = "PENDING"
	StatusActive    TransferStatus = "ACTIVE"
	StatusClaimed   TransferStatus = "CLAIMED"
	StatusCancelled TransferStatus = "CANCELLED"
	StatusRejected  TransferStatus = "REJECTED"
	StatusDeclined  TransferStatus = "DECLINED"
	StatusExpired   TransferStatus = "EXPIRED"
)

// Terminal reports whether no further transition is possible.
func (s TransferStatus) Terminal() bool {
	switch s {
	case StatusClaimed, StatusCancelled, StatusRejected, StatusDeclined, StatusExpired:
		return true
	}
	return false
}

// Valid reports whether s is a known status value.
func (s TransferStatus) Valid() bool {
	switch s {
	case StatusPending, StatusActive:
		return true
	}
	return s.Terminal()
}
