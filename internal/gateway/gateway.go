// Package gateway forwards signed operation batches to the ledger and
// triggers reconciliation once they confirm.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"escrowScope/internal/chain"
)

// ErrOutcomeUnknown is returned when the confirmation wait expires. The
// operation may or may not have landed; a later reconciliation pass is the
// recovery path. Callers must not re-sign and re-submit blindly.
var ErrOutcomeUnknown = errors.New("confirmation timed out, operation outcome unknown")

// Submitter is the write surface the gateway needs from the chain client.
type Submitter interface {
	SendEncodedTransaction(ctx context.Context, txBase64 string) (solana.Signature, error)
	SignatureStatus(ctx context.Context, sig solana.Signature) (confirmed bool, txErr error, err error)
}

// Reconciler is invoked after a submitted operation confirms.
type Reconciler interface {
	Reconcile(ctx context.Context, sig solana.Signature) error
}

// Config holds runtime settings for the gateway.
type Config struct {
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
}

// Gateway submits signed batches and waits for confirmation.
type Gateway struct {
	cfg        Config
	chain      Submitter
	reconciler Reconciler
	logger     *zap.Logger
}

// New builds a Gateway with its dependencies.
func New(cfg Config, chainClient Submitter, reconciler Reconciler, logger *zap.Logger) *Gateway {
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 60 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{cfg: cfg, chain: chainClient, reconciler: reconciler, logger: logger}
}

// Submit forwards a fully signed batch, waits for confirmed commitment, and
// runs reconciliation. Duplicate submission of an already-confirmed batch is
// success, not an error. The gateway never rebuilds or re-signs operations.
func (g *Gateway) Submit(ctx context.Context, signedTxBase64 string) (solana.Signature, error) {
	sig, err := g.chain.SendEncodedTransaction(ctx, signedTxBase64)
	if err != nil {
		if !chain.IsAlreadyProcessed(err) {
			return solana.Signature{}, fmt.Errorf("send transaction: %w", err)
		}
		// Already landed; recover the signature from the batch itself.
		sig, err = signatureFromEncoded(signedTxBase64)
		if err != nil {
			return solana.Signature{}, err
		}
		g.logger.Info("duplicate submission treated as success", zap.String("op_id", sig.String()))
	}

	if err := g.awaitConfirmation(ctx, sig); err != nil {
		return sig, err
	}

	if err := g.reconciler.Reconcile(ctx, sig); err != nil {
		// The operation is confirmed; a reconciliation hiccup must not look
		// like a submission failure. The mirror self-heals on the next pass.
		g.logger.Warn("post-submit reconciliation failed",
			zap.Error(err),
			zap.String("op_id", sig.String()),
		)
	}

	return sig, nil
}

// awaitConfirmation polls the signature status with a bounded wait. Only
// clearly transient transport failures are retried inside the window.
func (g *Gateway) awaitConfirmation(ctx context.Context, sig solana.Signature) error {
	waitCtx, cancel := context.WithTimeout(ctx, g.cfg.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(g.cfg.PollInterval)
	defer ticker.Stop()

	for {
		confirmed, txErr, err := g.chain.SignatureStatus(waitCtx, sig)
		if err != nil {
			// A poll cut short by the deadline is still an unknown outcome,
			// not a hard failure; classify before looking at transience.
			if waitCtx.Err() != nil {
				if errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
					return fmt.Errorf("%w: %s", ErrOutcomeUnknown, sig)
				}
				return waitCtx.Err()
			}
			if !chain.IsTransient(err) {
				return fmt.Errorf("confirmation poll: %w", err)
			}
			g.logger.Warn("transient confirmation poll failure", zap.Error(err), zap.String("op_id", sig.String()))
		} else if confirmed {
			if txErr != nil {
				return txErr
			}
			return nil
		}

		select {
		case <-waitCtx.Done():
			if errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: %s", ErrOutcomeUnknown, sig)
			}
			return waitCtx.Err()
		case <-ticker.C:
		}
	}
}

func signatureFromEncoded(txBase64 string) (solana.Signature, error) {
	tx, err := solana.TransactionFromBase64(txBase64)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("decode submitted transaction: %w", err)
	}
	if len(tx.Signatures) == 0 {
		return solana.Signature{}, fmt.Errorf("submitted transaction carries no signature")
	}
	return tx.Signatures[0], nil
}
