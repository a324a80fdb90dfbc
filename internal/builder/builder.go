// Package builder constructs unsigned operation batches against the
// handshake program. Builders read current ledger state for context but
// leave signing and submission to the caller.
package builder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"escrowScope/internal/chain"
	"escrowScope/internal/fees"
	"escrowScope/internal/model"
	"escrowScope/internal/program"
	"escrowScope/internal/storage"
)

// Ledger is the read surface the builder needs from the chain client.
type Ledger interface {
	FetchAccount(ctx context.Context, addr solana.PublicKey) ([]byte, error)
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
}

// Builder assembles unsigned transactions and keeps the mirror's optimistic
// view of work in flight.
type Builder struct {
	ledger    Ledger
	store     storage.Mirror
	programID solana.PublicKey
	logger    *zap.Logger

	// nonce source, replaceable in tests. Millisecond timestamps keep
	// nonces unique per (sender, recipient) pair in practice.
	nonceFn func() uint64
}

// New builds a Builder with its dependencies.
func New(ledger Ledger, store storage.Mirror, programID solana.PublicKey, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		ledger:    ledger,
		store:     store,
		programID: programID,
		logger:    logger,
		nonceFn:   func() uint64 { return uint64(time.Now().UnixMilli()) },
	}
}

// CreateParams describes a requested escrow creation. Exactly one of
// PoolAddress, Mint, or TokenSymbol may be set to pin the pool; all empty
// falls back to the first unpaused pool in the mirror.
type CreateParams struct {
	Sender      solana.PublicKey
	Recipient   solana.PublicKey
	PoolAddress string
	Mint        string
	TokenSymbol string

	// Amount is in raw token units.
	Amount uint64
	Memo   string

	// Claim window bounds as unix seconds; zero means unbounded.
	ClaimableAfter int64
	ClaimableUntil int64
}

// BuildResult is an unsigned operation batch plus the derived record address.
type BuildResult struct {
	// Address is the derived transfer record address. Zero for claim/cancel
	// builds, which reference an existing record.
	Address  solana.PublicKey
	Nonce    uint64
	FeePayer solana.PublicKey

	// ExpectedFee and NetToRecipient preview the pool's claim-time fee split
	// at the current rate. The program computes the authoritative split when
	// the claim executes. Zero on claim/cancel builds.
	ExpectedFee    uint64
	NetToRecipient uint64

	// TxBase64 is the unsigned transaction, ready for the caller to sign
	// and hand to the submission gateway.
	TxBase64 string
}

// BuildCreate assembles a create_transfer batch. It validates inputs before
// touching the network, resolves the pool, derives the transfer address with
// a fresh nonce, and optimistically inserts a PENDING mirror row so pending
// work is queryable before the operation confirms.
func (b *Builder) BuildCreate(ctx context.Context, params CreateParams) (*BuildResult, error) {
	if params.Amount == 0 {
		return nil, ErrInvalidAmount
	}
	if len(params.Memo) > program.MemoMaxLen {
		return nil, ErrMemoTooLong
	}

	poolAddr, err := b.resolvePoolAddress(ctx, params)
	if err != nil {
		return nil, err
	}

	// Mirror counters are advisory; the pool is always re-read from the
	// ledger before constructing against it.
	poolAcc, err := b.fetchPool(ctx, poolAddr)
	if err != nil {
		return nil, err
	}

	nonce := b.nonceFn()
	transferAddr, _, err := program.DeriveTransferAddress(b.programID, params.Sender, params.Recipient, nonce)
	if err != nil {
		return nil, err
	}

	ix, err := program.NewCreateTransferInstruction(
		b.programID, params.Sender, poolAddr, poolAcc.Mint, transferAddr,
		program.CreateTransferArgs{
			Recipient:      params.Recipient,
			Nonce:          nonce,
			Amount:         params.Amount,
			Memo:           params.Memo,
			ClaimableAfter: params.ClaimableAfter,
			ClaimableUntil: params.ClaimableUntil,
		},
	)
	if err != nil {
		return nil, err
	}

	txBase64, err := b.encodeUnsigned(ctx, ix, params.Sender)
	if err != nil {
		return nil, err
	}

	if err := b.insertPending(ctx, transferAddr, poolAddr, poolAcc, params, nonce); err != nil {
		// The pending row is a UI nicety; the reconciler self-heals the
		// mirror once the operation lands.
		b.logger.Warn("optimistic insert failed",
			zap.Error(err),
			zap.String("address", transferAddr.String()),
		)
	}

	fee, net := fees.Compute(params.Amount, poolAcc.FeeBps)

	return &BuildResult{
		Address:        transferAddr,
		Nonce:          nonce,
		FeePayer:       params.Sender,
		ExpectedFee:    fee,
		NetToRecipient: net,
		TxBase64:       txBase64,
	}, nil
}

// BuildClaim assembles a claim_transfer batch for the recipient. A missing
// record means the transfer was already resolved by someone else.
func (b *Builder) BuildClaim(ctx context.Context, claimer, transferAddr solana.PublicKey) (*BuildResult, error) {
	transferAcc, err := b.fetchTransfer(ctx, transferAddr)
	if err != nil {
		return nil, err
	}
	poolAcc, err := b.fetchPool(ctx, transferAcc.Pool)
	if err != nil {
		return nil, err
	}

	ix, err := program.NewClaimTransferInstruction(
		b.programID, claimer, transferAcc.Pool, poolAcc.Mint, transferAddr, transferAcc.Sender,
	)
	if err != nil {
		return nil, err
	}

	txBase64, err := b.encodeUnsigned(ctx, ix, claimer)
	if err != nil {
		return nil, err
	}
	return &BuildResult{FeePayer: claimer, TxBase64: txBase64}, nil
}

// BuildCancel assembles a cancel_transfer batch for the sender.
func (b *Builder) BuildCancel(ctx context.Context, canceller, transferAddr solana.PublicKey) (*BuildResult, error) {
	transferAcc, err := b.fetchTransfer(ctx, transferAddr)
	if err != nil {
		return nil, err
	}
	poolAcc, err := b.fetchPool(ctx, transferAcc.Pool)
	if err != nil {
		return nil, err
	}

	ix, err := program.NewCancelTransferInstruction(
		b.programID, canceller, transferAcc.Pool, poolAcc.Mint, transferAddr,
	)
	if err != nil {
		return nil, err
	}

	txBase64, err := b.encodeUnsigned(ctx, ix, canceller)
	if err != nil {
		return nil, err
	}
	return &BuildResult{FeePayer: canceller, TxBase64: txBase64}, nil
}

// resolvePoolAddress resolves the requested pool reference against the
// mirror only; no ledger call happens until the reference resolves.
func (b *Builder) resolvePoolAddress(ctx context.Context, params CreateParams) (solana.PublicKey, error) {
	if params.PoolAddress != "" {
		addr, err := solana.PublicKeyFromBase58(params.PoolAddress)
		if err != nil {
			return solana.PublicKey{}, fmt.Errorf("parse pool address: %w", err)
		}
		return addr, nil
	}

	var (
		token model.Token
		err   error
	)
	switch {
	case params.Mint != "":
		token, err = b.store.GetTokenByMint(ctx, params.Mint)
	case params.TokenSymbol != "":
		token, err = b.store.GetTokenBySymbol(ctx, params.TokenSymbol)
	default:
		pool, err := b.store.FirstActivePool(ctx)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return solana.PublicKey{}, ErrNoActivePool
			}
			return solana.PublicKey{}, err
		}
		return parseStoredAddress(pool.Address)
	}
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return solana.PublicKey{}, ErrTokenNotFound
		}
		return solana.PublicKey{}, err
	}

	pool, err := b.store.GetPoolByTokenID(ctx, token.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return solana.PublicKey{}, ErrPoolNotFound
		}
		return solana.PublicKey{}, err
	}
	return parseStoredAddress(pool.Address)
}

func (b *Builder) fetchPool(ctx context.Context, addr solana.PublicKey) (*program.PoolAccount, error) {
	data, err := b.ledger.FetchAccount(ctx, addr)
	if err != nil {
		if errors.Is(err, chain.ErrAccountNotFound) {
			return nil, ErrPoolNotFound
		}
		return nil, fmt.Errorf("fetch pool %s: %w", addr, err)
	}
	poolAcc, err := program.DecodePool(data)
	if err != nil {
		if errors.Is(err, program.ErrWrongAccountKind) {
			return nil, ErrPoolNotFound
		}
		return nil, fmt.Errorf("decode pool %s: %w", addr, err)
	}
	if err := fees.ValidateRate(int(poolAcc.FeeBps)); err != nil {
		return nil, fmt.Errorf("pool %s: %w", addr, err)
	}
	return poolAcc, nil
}

func (b *Builder) fetchTransfer(ctx context.Context, addr solana.PublicKey) (*program.TransferAccount, error) {
	data, err := b.ledger.FetchAccount(ctx, addr)
	if err != nil {
		if errors.Is(err, chain.ErrAccountNotFound) {
			return nil, ErrTransferNotFound
		}
		return nil, fmt.Errorf("fetch transfer %s: %w", addr, err)
	}
	transferAcc, err := program.DecodeTransfer(data)
	if err != nil {
		if errors.Is(err, program.ErrWrongAccountKind) {
			return nil, ErrTransferNotFound
		}
		return nil, fmt.Errorf("decode transfer %s: %w", addr, err)
	}
	return transferAcc, nil
}

func (b *Builder) encodeUnsigned(ctx context.Context, ix solana.Instruction, feePayer solana.PublicKey) (string, error) {
	blockhash, err := b.ledger.LatestBlockhash(ctx)
	if err != nil {
		return "", fmt.Errorf("latest blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{ix},
		blockhash,
		solana.TransactionPayer(feePayer),
	)
	if err != nil {
		return "", fmt.Errorf("assemble transaction: %w", err)
	}

	// Placeholder signatures so the wire format round-trips before signing.
	tx.Signatures = make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)

	encoded, err := tx.ToBase64()
	if err != nil {
		return "", fmt.Errorf("encode transaction: %w", err)
	}
	return encoded, nil
}

// insertPending mirrors the built-but-unconfirmed transfer so the query
// surface can show in-flight work. The sweep policy garbage-collects rows
// that never confirm.
func (b *Builder) insertPending(ctx context.Context, transferAddr, poolAddr solana.PublicKey, poolAcc *program.PoolAccount, params CreateParams, nonce uint64) error {
	token, err := b.store.UpsertToken(ctx, model.Token{
		Mint:     poolAcc.Mint.String(),
		Name:     model.PlaceholderTokenName,
		Symbol:   model.PlaceholderTokenSymbol,
		Decimals: model.PlaceholderTokenDecimals,
	})
	if err != nil {
		return err
	}

	pool, err := b.store.UpsertPool(ctx, model.Pool{
		PoolID:                 poolAcc.PoolID.String(),
		Address:                poolAddr.String(),
		Operator:               poolAcc.Operator.String(),
		TokenID:                token.ID,
		FeeBps:                 poolAcc.FeeBps,
		TotalDeposits:          poolAcc.TotalDeposits,
		TotalWithdrawals:       poolAcc.TotalWithdrawals,
		TotalEscrowed:          poolAcc.TotalEscrowed,
		TotalTransfersCreated:  poolAcc.TotalTransfersCreated,
		TotalTransfersResolved: poolAcc.TotalTransfersResolved,
		CollectedFees:          poolAcc.CollectedFees,
		IsPaused:               poolAcc.IsPaused,
	})
	if err != nil {
		return err
	}

	return b.store.InsertPendingTransfer(ctx, model.Transfer{
		Address:        transferAddr.String(),
		Sender:         params.Sender.String(),
		Recipient:      params.Recipient.String(),
		Amount:         params.Amount,
		TokenID:        token.ID,
		PoolID:         pool.ID,
		Memo:           params.Memo,
		ClaimableAfter: unixToTime(params.ClaimableAfter),
		ClaimableUntil: unixToTime(params.ClaimableUntil),
	})
}

func parseStoredAddress(address string) (solana.PublicKey, error) {
	addr, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("parse stored pool address %q: %w", address, err)
	}
	return addr, nil
}

func unixToTime(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}
