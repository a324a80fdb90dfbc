package program

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// CreateTransferArgs carries the borsh-encoded arguments of create_transfer.
type CreateTransferArgs struct {
	Recipient      solana.PublicKey
	Nonce          uint64
	Amount         uint64
	Memo           string
	ClaimableAfter int64
	ClaimableUntil int64
}

// NewCreateTransferInstruction assembles the create_transfer instruction.
// Token accounts are derived from the pool and mint; callers never name them.
func NewCreateTransferInstruction(
	programID solana.PublicKey,
	sender solana.PublicKey,
	pool solana.PublicKey,
	mint solana.PublicKey,
	transfer solana.PublicKey,
	args CreateTransferArgs,
) (solana.Instruction, error) {
	poolTokenAccount, err := associatedTokenAccount(pool, mint)
	if err != nil {
		return nil, err
	}
	senderTokenAccount, err := associatedTokenAccount(sender, mint)
	if err != nil {
		return nil, err
	}

	data, err := encodeInstruction("create_transfer", func(enc *bin.Encoder) error {
		if err := enc.WriteBytes(args.Recipient.Bytes(), false); err != nil {
			return err
		}
		if err := enc.WriteUint64(args.Nonce, bin.LE); err != nil {
			return err
		}
		if err := enc.WriteUint64(args.Amount, bin.LE); err != nil {
			return err
		}
		if err := enc.WriteString(args.Memo); err != nil {
			return err
		}
		if err := enc.WriteInt64(args.ClaimableAfter, bin.LE); err != nil {
			return err
		}
		return enc.WriteInt64(args.ClaimableUntil, bin.LE)
	})
	if err != nil {
		return nil, err
	}

	accounts := solana.AccountMetaSlice{
		solana.Meta(sender).WRITE().SIGNER(),
		solana.Meta(pool).WRITE(),
		solana.Meta(mint),
		solana.Meta(poolTokenAccount).WRITE(),
		solana.Meta(senderTokenAccount).WRITE(),
		solana.Meta(transfer).WRITE(),
		solana.Meta(solana.TokenProgramID),
		solana.Meta(solana.SystemProgramID),
		solana.Meta(solana.SPLAssociatedTokenAccountProgramID),
	}
	return solana.NewInstruction(programID, accounts, data), nil
}

// NewClaimTransferInstruction assembles the claim_transfer instruction. The
// sender account receives the rent refund when the record closes.
func NewClaimTransferInstruction(
	programID solana.PublicKey,
	recipient solana.PublicKey,
	pool solana.PublicKey,
	mint solana.PublicKey,
	transfer solana.PublicKey,
	sender solana.PublicKey,
) (solana.Instruction, error) {
	poolTokenAccount, err := associatedTokenAccount(pool, mint)
	if err != nil {
		return nil, err
	}
	recipientTokenAccount, err := associatedTokenAccount(recipient, mint)
	if err != nil {
		return nil, err
	}

	data, err := encodeInstruction("claim_transfer", nil)
	if err != nil {
		return nil, err
	}

	accounts := solana.AccountMetaSlice{
		solana.Meta(recipient).WRITE().SIGNER(),
		solana.Meta(pool).WRITE(),
		solana.Meta(mint),
		solana.Meta(poolTokenAccount).WRITE(),
		solana.Meta(recipientTokenAccount).WRITE(),
		solana.Meta(transfer).WRITE(),
		solana.Meta(sender).WRITE(),
		solana.Meta(solana.TokenProgramID),
	}
	return solana.NewInstruction(programID, accounts, data), nil
}

// NewCancelTransferInstruction assembles the cancel_transfer instruction.
func NewCancelTransferInstruction(
	programID solana.PublicKey,
	sender solana.PublicKey,
	pool solana.PublicKey,
	mint solana.PublicKey,
	transfer solana.PublicKey,
) (solana.Instruction, error) {
	poolTokenAccount, err := associatedTokenAccount(pool, mint)
	if err != nil {
		return nil, err
	}
	senderTokenAccount, err := associatedTokenAccount(sender, mint)
	if err != nil {
		return nil, err
	}

	data, err := encodeInstruction("cancel_transfer", nil)
	if err != nil {
		return nil, err
	}

	accounts := solana.AccountMetaSlice{
		solana.Meta(sender).WRITE().SIGNER(),
		solana.Meta(pool).WRITE(),
		solana.Meta(mint),
		solana.Meta(poolTokenAccount).WRITE(),
		solana.Meta(senderTokenAccount).WRITE(),
		solana.Meta(transfer).WRITE(),
		solana.Meta(solana.TokenProgramID),
	}
	return solana.NewInstruction(programID, accounts, data), nil
}

func encodeInstruction(name string, writeArgs func(*bin.Encoder) error) ([]byte, error) {
	var buf bytes.Buffer
	sighash := anchorSighash("global", name)
	buf.Write(sighash[:])

	if writeArgs != nil {
		enc := bin.NewBorshEncoder(&buf)
		if err := writeArgs(enc); err != nil {
			return nil, fmt.Errorf("encode %s args: %w", name, err)
		}
	}
	return buf.Bytes(), nil
}

func associatedTokenAccount(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive associated token account: %w", err)
	}
	return ata, nil
}
