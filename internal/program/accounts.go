package program

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Account discriminators, fixed by anchor at build time.
var (
	poolDiscriminator     = anchorSighash("account", "Pool")
	transferDiscriminator = anchorSighash("account", "SecureTransfer")
)

// ErrWrongAccountKind is returned when raw account data does not carry the
// expected discriminator. Callers use it to probe "is this one of ours".
var ErrWrongAccountKind = errors.New("account discriminator mismatch")

// PoolAccount is the decoded on-chain pool record.
type PoolAccount struct {
	Version  uint8
	Bump     uint8
	PoolID   solana.PublicKey
	Operator solana.PublicKey
	Mint     solana.PublicKey
	FeeBps   uint16

	TotalDeposits          uint64
	TotalWithdrawals       uint64
	TotalEscrowed          uint64
	TotalTransfersCreated  uint64
	TotalTransfersResolved uint64
	CollectedFees          uint64

	IsPaused bool
}

// TransferState is the on-chain status enum, in declaration order.
type TransferState uint8

const (
	StateActive TransferState = iota
	StateClaimed
	StateCancelled
	StateRejected
	StateExpired
	StateDeclined
)

// TransferAccount is the decoded on-chain escrow record.
type TransferAccount struct {
	Version   uint8
	Bump      uint8
	Nonce     uint64
	Sender    solana.PublicKey
	Recipient solana.PublicKey
	Pool      solana.PublicKey
	Amount    uint64

	CreatedAt      int64
	ClaimableAfter int64
	ClaimableUntil int64

	State TransferState
	Memo  string
}

// DecodePool decodes raw account data as a Pool, validating the
// discriminator first.
func DecodePool(data []byte) (*PoolAccount, error) {
	dec, err := accountDecoder(data, poolDiscriminator)
	if err != nil {
		return nil, err
	}

	var acc PoolAccount
	if acc.Version, err = dec.ReadUint8(); err != nil {
		return nil, fmt.Errorf("decode pool version: %w", err)
	}
	if acc.Bump, err = dec.ReadUint8(); err != nil {
		return nil, fmt.Errorf("decode pool bump: %w", err)
	}
	if acc.PoolID, err = readPublicKey(dec); err != nil {
		return nil, fmt.Errorf("decode pool id: %w", err)
	}
	if acc.Operator, err = readPublicKey(dec); err != nil {
		return nil, fmt.Errorf("decode pool operator: %w", err)
	}
	if acc.Mint, err = readPublicKey(dec); err != nil {
		return nil, fmt.Errorf("decode pool mint: %w", err)
	}
	if acc.FeeBps, err = dec.ReadUint16(bin.LE); err != nil {
		return nil, fmt.Errorf("decode pool fee bps: %w", err)
	}
	counters := []*uint64{
		&acc.TotalDeposits,
		&acc.TotalWithdrawals,
		&acc.TotalEscrowed,
		&acc.TotalTransfersCreated,
		&acc.TotalTransfersResolved,
		&acc.CollectedFees,
	}
	for _, c := range counters {
		if *c, err = dec.ReadUint64(bin.LE); err != nil {
			return nil, fmt.Errorf("decode pool counters: %w", err)
		}
	}
	if acc.IsPaused, err = dec.ReadBool(); err != nil {
		return nil, fmt.Errorf("decode pool paused flag: %w", err)
	}
	return &acc, nil
}

// DecodeTransfer decodes raw account data as a SecureTransfer, validating
// the discriminator first.
func DecodeTransfer(data []byte) (*TransferAccount, error) {
	dec, err := accountDecoder(data, transferDiscriminator)
	if err != nil {
		return nil, err
	}

	var acc TransferAccount
	if acc.Version, err = dec.ReadUint8(); err != nil {
		return nil, fmt.Errorf("decode transfer version: %w", err)
	}
	if acc.Bump, err = dec.ReadUint8(); err != nil {
		return nil, fmt.Errorf("decode transfer bump: %w", err)
	}
	if acc.Nonce, err = dec.ReadUint64(bin.LE); err != nil {
		return nil, fmt.Errorf("decode transfer nonce: %w", err)
	}
	if acc.Sender, err = readPublicKey(dec); err != nil {
		return nil, fmt.Errorf("decode transfer sender: %w", err)
	}
	if acc.Recipient, err = readPublicKey(dec); err != nil {
		return nil, fmt.Errorf("decode transfer recipient: %w", err)
	}
	if acc.Pool, err = readPublicKey(dec); err != nil {
		return nil, fmt.Errorf("decode transfer pool: %w", err)
	}
	if acc.Amount, err = dec.ReadUint64(bin.LE); err != nil {
		return nil, fmt.Errorf("decode transfer amount: %w", err)
	}
	if acc.CreatedAt, err = dec.ReadInt64(bin.LE); err != nil {
		return nil, fmt.Errorf("decode transfer created_at: %w", err)
	}
	if acc.ClaimableAfter, err = dec.ReadInt64(bin.LE); err != nil {
		return nil, fmt.Errorf("decode transfer claimable_after: %w", err)
	}
	if acc.ClaimableUntil, err = dec.ReadInt64(bin.LE); err != nil {
		return nil, fmt.Errorf("decode transfer claimable_until: %w", err)
	}

	state, err := dec.ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("decode transfer status: %w", err)
	}
	if state > uint8(StateDeclined) {
		return nil, fmt.Errorf("unknown transfer status tag %d", state)
	}
	acc.State = TransferState(state)

	// release_conditions: Option<{ condition_type: enum, params: [64]u8 }>.
	// Parsed past, not surfaced; no live pool uses them yet.
	hasConditions, err := dec.ReadBool()
	if err != nil {
		return nil, fmt.Errorf("decode transfer conditions flag: %w", err)
	}
	if hasConditions {
		if _, err := dec.ReadNBytes(1 + 64); err != nil {
			return nil, fmt.Errorf("decode transfer conditions: %w", err)
		}
	}

	memo, err := dec.ReadNBytes(MemoMaxLen)
	if err != nil {
		return nil, fmt.Errorf("decode transfer memo: %w", err)
	}
	acc.Memo = decodeFixedMemo(memo)

	return &acc, nil
}

func accountDecoder(data []byte, want [8]byte) (*bin.Decoder, error) {
	if len(data) < 8 {
		return nil, ErrWrongAccountKind
	}
	if !bytes.Equal(data[:8], want[:]) {
		return nil, ErrWrongAccountKind
	}
	return bin.NewBorshDecoder(data[8:]), nil
}

func readPublicKey(dec *bin.Decoder) (solana.PublicKey, error) {
	b, err := dec.ReadNBytes(32)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return solana.PublicKeyFromBytes(b), nil
}

// decodeFixedMemo trims the NUL padding of the fixed-size on-chain memo.
func decodeFixedMemo(raw []byte) string {
	return strings.TrimRight(string(raw), "\x00")
}
