package program

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// DeriveTransferAddress computes the PDA for a transfer record. Deterministic
// in (sender, recipient, nonce); the seed tags keep the derivation
// domain-separated from pool addresses.
func DeriveTransferAddress(programID, sender, recipient solana.PublicKey, nonce uint64) (solana.PublicKey, uint8, error) {
	var nonceLE [8]byte
	binary.LittleEndian.PutUint64(nonceLE[:], nonce)

	addr, bump, err := solana.FindProgramAddress([][]byte{
		[]byte(senderSeed),
		sender.Bytes(),
		[]byte(recipientSeed),
		recipient.Bytes(),
		[]byte(nonceSeed),
		nonceLE[:],
	}, programID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("derive transfer address: %w", err)
	}
	return addr, bump, nil
}

// DerivePoolAddress computes the PDA for a pool record from its pool id.
func DerivePoolAddress(programID, poolID solana.PublicKey) (solana.PublicKey, uint8, error) {
	addr, bump, err := solana.FindProgramAddress([][]byte{
		[]byte(poolSeed),
		poolID.Bytes(),
	}, programID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("derive pool address: %w", err)
	}
	return addr, bump, nil
}

// NamedPoolID derives a stable pseudo pool id from a human-readable name, so
// operators can reference pools by name without a registry lookup.
func NamedPoolID(name string) solana.PublicKey {
	return solana.PublicKey(sha256.Sum256([]byte(name)))
}
