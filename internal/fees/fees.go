package fees

import (
	"errors"
	"math/bits"
)

// MaxBps is the full fee scale: 10_000 basis points = 100%.
const MaxBps = 10_000

var ErrInvalidFeeRate = errors.New("fee rate out of range")

// Compute splits a gross amount into fee and net payout.
//
//	fee = floor(amount * feeBps / 10000)
//	net = amount - fee
//
// The fee applies only on the claim path; every other resolution returns the
// full gross amount to the sender. Callers on the cancel/reject/decline/
// expire paths must not consult this function.
func Compute(amount uint64, feeBps uint16) (fee, net uint64) {
	if feeBps == 0 {
		return 0, amount
	}
	// 128-bit intermediate like the on-chain math, so amount*feeBps cannot wrap.
	hi, lo := bits.Mul64(amount, uint64(feeBps))
	fee, _ = bits.Div64(hi, lo, MaxBps)
	return fee, amount - fee
}

// ValidateRate rejects fee rates outside [0, 10000]. Rates are rejected at
// pool creation, never clamped silently.
func ValidateRate(feeBps int) error {
	if feeBps < 0 || feeBps > MaxBps {
		return ErrInvalidFeeRate
	}
	return nil
}
