// Package program contains the off-chain bindings for the handshake escrow
// program: address derivation, account decoding, and instruction builders.
package program

import (
	"crypto/sha256"

	"github.com/gagliardetto/solana-go"
)

// DefaultProgramID is the deployed handshake program.
var DefaultProgramID = solana.MustPublicKeyFromBase58("HZ8paEkYZ2hKBwHoVk23doSLEad9K5duASRTGaYogmfg")

// PDA seed constants. Must match the on-chain program byte for byte.
const (
	poolSeed      = "pool"
	senderSeed    = "sender"
	recipientSeed = "recipient"
	nonceSeed     = "nonce"
)

// MemoMaxLen is the program's fixed memo capacity in bytes.
const MemoMaxLen = 64

// Instruction names as they appear in anchor's execution logs.
const (
	IxCreateTransfer  = "CreateTransfer"
	IxClaimTransfer   = "ClaimTransfer"
	IxCancelTransfer  = "CancelTransfer"
	IxRejectTransfer  = "RejectTransfer"
	IxDeclineTransfer = "DeclineTransfer"
	IxExpireTransfer  = "ExpireTransfer"
)

// anchorSighash returns the 8-byte anchor dispatch discriminator for a
// namespaced identifier, e.g. "global:create_transfer" or "account:Pool".
func anchorSighash(namespace, name string) [8]byte {
	sum := sha256.Sum256([]byte(namespace + ":" + name))
	var out [8]byte
	copy(out[:], sum[:8])
	return out
}
