// Package reconcile maintains the mirror's convergence with ledger state.
//
// Reconciliation runs against a confirmed operation and must cope with the
// ledger's storage reclamation: a resolved transfer's account is already
// gone by the time we look, so its outcome is inferred from the operation's
// execution log rather than re-read.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"escrowScope/internal/chain"
	"escrowScope/internal/model"
	"escrowScope/internal/program"
	"escrowScope/internal/storage"
)

// Ledger is the read surface the reconciler needs from the chain client.
type Ledger interface {
	FetchAccount(ctx context.Context, addr solana.PublicKey) ([]byte, error)
	OperationResult(ctx context.Context, sig solana.Signature) (*chain.OpResult, error)
}

// Reconciler applies confirmed operations to the mirror.
type Reconciler struct {
	ledger    Ledger
	store     storage.Mirror
	journal   storage.Journal
	programID solana.PublicKey
	logger    *zap.Logger

	skip map[solana.PublicKey]struct{}
}

var computeBudgetProgramID = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")

// New builds a Reconciler with its dependencies.
func New(ledger Ledger, store storage.Mirror, journal storage.Journal, programID solana.PublicKey, logger *zap.Logger) *Reconciler {
	if journal == nil {
		journal = storage.NopJournal{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		ledger:    ledger,
		store:     store,
		journal:   journal,
		programID: programID,
		logger:    logger,
		skip: map[solana.PublicKey]struct{}{
			programID:                                 {},
			solana.SystemProgramID:                    {},
			solana.TokenProgramID:                     {},
			solana.SPLAssociatedTokenAccountProgramID: {},
			solana.SysVarRentPubkey:                   {},
			computeBudgetProgramID:                    {},
		},
	}
}

// Reconcile fetches the confirmed operation identified by sig and applies
// the inferred record transitions to the mirror. Reconciling the same
// operation twice converges to the same mirror state.
func (r *Reconciler) Reconcile(ctx context.Context, sig solana.Signature) error {
	res, err := r.ledger.OperationResult(ctx, sig)
	if err != nil {
		return fmt.Errorf("fetch operation %s: %w", sig, err)
	}

	opID := sig.String()
	terminalStatuses := TerminalStatusSet(res.Logs)
	terminalSeen := len(terminalStatuses) > 0

	var terminalStatus model.TransferStatus
	if terminalSeen {
		terminalStatus = terminalStatuses[0]
	}

	// Log inference cannot tell which terminal instruction touched which
	// address when a batch mixes them. The first marker wins, and every
	// affected journal entry carries the ambiguity.
	var mixedDetail string
	if len(terminalStatuses) > 1 {
		mixedDetail = "operation mixes terminal instructions: " + joinStatuses(terminalStatuses)
		r.logger.Warn("mixed terminal instructions in one operation",
			zap.String("op_id", opID),
			zap.String("statuses", joinStatuses(terminalStatuses)),
		)
	}

	var events []model.ReconcileEvent
	terminalApplied := false

	for _, addr := range res.Accounts {
		if _, ok := r.skip[addr]; ok {
			continue
		}

		data, err := r.ledger.FetchAccount(ctx, addr)
		switch {
		case err == nil:
			event, handled, err := r.reconcileLiveAccount(ctx, addr, data, opID)
			if err != nil {
				return err
			}
			if handled {
				events = append(events, event)
			}

		case errors.Is(err, chain.ErrAccountNotFound):
			event, applied, err := r.reconcileGoneAccount(ctx, addr, opID, terminalStatus, terminalSeen, mixedDetail)
			if err != nil {
				return err
			}
			if applied {
				terminalApplied = true
			}
			if event != nil {
				events = append(events, *event)
			}

		default:
			return fmt.Errorf("read account %s: %w", addr, err)
		}
	}

	// A terminal transition with no mirror row anywhere in the batch means
	// the destroyed record was never tracked. Its amount and parties are
	// unrecoverable from logs alone; surface the gap instead of fabricating
	// a row.
	if terminalSeen && !terminalApplied && !r.anyRowTouched(events) {
		r.logger.Warn("terminal transition for untracked transfer",
			zap.String("op_id", opID),
			zap.String("status", string(terminalStatus)),
			zap.Int("log_table_version", logTableVersion),
		)
		events = append(events, model.ReconcileEvent{
			OpID:       opID,
			Outcome:    model.OutcomeUntracked,
			Status:     terminalStatus,
			Detail:     "no mirror row matched any referenced address",
			RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
		})
	}

	if err := r.journal.Append(events); err != nil {
		// The journal is an audit aid; a failed append must not fail the
		// submission path.
		r.logger.Warn("journal append failed", zap.Error(err), zap.String("op_id", opID))
	}

	r.logger.Info("reconcile complete",
		zap.String("op_id", opID),
		zap.Int("events", len(events)),
		zap.Strings("instructions", InstructionMarkers(res.Logs)),
	)
	return nil
}

// reconcileLiveAccount handles an address whose account still exists. Only
// create leaves a transfer record alive, so a decodable transfer is upserted
// as ACTIVE. Pool accounts in the batch refresh the cached pool row.
func (r *Reconciler) reconcileLiveAccount(ctx context.Context, addr solana.PublicKey, data []byte, opID string) (model.ReconcileEvent, bool, error) {
	transferAcc, err := program.DecodeTransfer(data)
	if err != nil {
		if !errors.Is(err, program.ErrWrongAccountKind) {
			return model.ReconcileEvent{}, false, fmt.Errorf("decode transfer %s: %w", addr, err)
		}
		if poolAcc, perr := program.DecodePool(data); perr == nil {
			if _, uerr := r.upsertPoolFromChain(ctx, addr, poolAcc); uerr != nil {
				return model.ReconcileEvent{}, false, uerr
			}
		}
		return model.ReconcileEvent{}, false, nil
	}

	pool, err := r.ensurePool(ctx, transferAcc.Pool)
	if err != nil {
		return model.ReconcileEvent{}, false, fmt.Errorf("materialize pool %s: %w", transferAcc.Pool, err)
	}

	changed, err := r.store.UpsertActiveTransfer(ctx, model.Transfer{
		Address:        addr.String(),
		Sender:         transferAcc.Sender.String(),
		Recipient:      transferAcc.Recipient.String(),
		Amount:         transferAcc.Amount,
		TokenID:        pool.TokenID,
		PoolID:         pool.ID,
		Memo:           transferAcc.Memo,
		CreateOpID:     opID,
		ClaimableAfter: unixToTime(transferAcc.ClaimableAfter),
		ClaimableUntil: unixToTime(transferAcc.ClaimableUntil),
	})
	if err != nil {
		return model.ReconcileEvent{}, false, fmt.Errorf("upsert transfer %s: %w", addr, err)
	}

	outcome := model.OutcomeUpserted
	status := model.StatusActive
	if !changed {
		outcome = model.OutcomeNoop
	}
	return model.ReconcileEvent{
		OpID:       opID,
		Address:    addr.String(),
		Outcome:    outcome,
		Status:     status,
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}, true, nil
}

// reconcileGoneAccount handles an address the ledger no longer knows. If the
// mirror tracks a transfer there, the operation's log decides its terminal
// status; already-terminal rows converge as no-ops.
func (r *Reconciler) reconcileGoneAccount(ctx context.Context, addr solana.PublicKey, opID string, status model.TransferStatus, terminalSeen bool, mixedDetail string) (*model.ReconcileEvent, bool, error) {
	existing, err := r.store.GetTransferByAddress(ctx, addr.String())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("lookup transfer %s: %w", addr, err)
	}

	if !terminalSeen {
		// Tracked transfer gone but no terminal marker in this operation's
		// logs: some other operation resolved it. Leave it for that
		// operation's reconciliation.
		return nil, false, nil
	}

	changed, err := r.store.MarkTransferTerminal(ctx, addr.String(), status, opID)
	if err != nil {
		return nil, false, fmt.Errorf("mark transfer %s terminal: %w", addr, err)
	}

	event := model.ReconcileEvent{
		OpID:       opID,
		Address:    addr.String(),
		Status:     status,
		Detail:     mixedDetail,
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if changed {
		event.Outcome = model.OutcomeTerminal
		return &event, true, nil
	}

	event.Outcome = model.OutcomeNoop
	if existing.Status.Terminal() && existing.Status != status {
		// Converged to a different terminal outcome earlier. The first
		// reconciliation won; note the disagreement for the audit trail.
		event.Detail = fmt.Sprintf("row already terminal as %s", existing.Status)
		r.logger.Warn("conflicting terminal inference",
			zap.String("address", addr.String()),
			zap.String("existing", string(existing.Status)),
			zap.String("inferred", string(status)),
			zap.String("op_id", opID),
		)
	}
	return &event, true, nil
}

// ensurePool returns the mirror pool row for a pool address, materializing
// it (and its token) from the ledger when the cache has never seen it.
func (r *Reconciler) ensurePool(ctx context.Context, poolAddr solana.PublicKey) (model.Pool, error) {
	pool, err := r.store.GetPoolByAddress(ctx, poolAddr.String())
	if err == nil {
		return pool, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return model.Pool{}, err
	}

	data, err := r.ledger.FetchAccount(ctx, poolAddr)
	if err != nil {
		return model.Pool{}, fmt.Errorf("fetch pool %s: %w", poolAddr, err)
	}
	poolAcc, err := program.DecodePool(data)
	if err != nil {
		return model.Pool{}, fmt.Errorf("decode pool %s: %w", poolAddr, err)
	}
	return r.upsertPoolFromChain(ctx, poolAddr, poolAcc)
}

func (r *Reconciler) upsertPoolFromChain(ctx context.Context, poolAddr solana.PublicKey, poolAcc *program.PoolAccount) (model.Pool, error) {
	token, err := r.store.UpsertToken(ctx, model.Token{
		Mint:     poolAcc.Mint.String(),
		Name:     model.PlaceholderTokenName,
		Symbol:   model.PlaceholderTokenSymbol,
		Decimals: model.PlaceholderTokenDecimals,
	})
	if err != nil {
		return model.Pool{}, fmt.Errorf("materialize token %s: %w", poolAcc.Mint, err)
	}

	return r.store.UpsertPool(ctx, model.Pool{
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
}

func (r *Reconciler) anyRowTouched(events []model.ReconcileEvent) bool {
	for _, event := range events {
		if event.Address != "" {
			return true
		}
	}
	return false
}

func joinStatuses(statuses []model.TransferStatus) string {
	parts := make([]string, len(statuses))
	for i, status := range statuses {
		parts[i] = string(status)
	}
	return strings.Join(parts, ", ")
}

func unixToTime(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}
