package reconcile

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"

	"escrowScope/internal/chain"
	"escrowScope/internal/model"
	"escrowScope/internal/storage"
)

type fakeLedger struct {
	accounts map[solana.PublicKey][]byte
	result   *chain.OpResult
	fetches  int
}

func (f *fakeLedger) FetchAccount(_ context.Context, addr solana.PublicKey) ([]byte, error) {
	f.fetches++
	data, ok := f.accounts[addr]
	if !ok {
		return nil, chain.ErrAccountNotFound
	}
	return data, nil
}

func (f *fakeLedger) OperationResult(_ context.Context, _ solana.Signature) (*chain.OpResult, error) {
	return f.result, nil
}

type captureJournal struct {
	events []model.ReconcileEvent
}

func (j *captureJournal) Append(events []model.ReconcileEvent) error {
	j.events = append(j.events, events...)
	return nil
}

func key(fill byte) solana.PublicKey {
	var b [32]byte
	for i := range b {
		b[i] = fill
	}
	return solana.PublicKeyFromBytes(b[:])
}

func opSignature(fill byte) solana.Signature {
	var sig solana.Signature
	for i := range sig {
		sig[i] = fill
	}
	return sig
}

func discriminator(name string) []byte {
	sum := sha256.Sum256([]byte("account:" + name))
	return sum[:8]
}

func encodePoolAccount(poolID, operator, mint solana.PublicKey, feeBps uint16, paused bool) []byte {
	buf := append([]byte(nil), discriminator("Pool")...)
	buf = append(buf, 1, 255) // version, bump
	buf = append(buf, poolID.Bytes()...)
	buf = append(buf, operator.Bytes()...)
	buf = append(buf, mint.Bytes()...)
	buf = binary.LittleEndian.AppendUint16(buf, feeBps)
	for i := 0; i < 6; i++ {
		buf = binary.LittleEndian.AppendUint64(buf, 0)
	}
	if paused {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	return buf
}

func encodeTransferAccount(sender, recipient, pool solana.PublicKey, amount uint64, memo string) []byte {
	buf := append([]byte(nil), discriminator("SecureTransfer")...)
	buf = append(buf, 1, 254) // version, bump
	buf = binary.LittleEndian.AppendUint64(buf, 77)
	buf = append(buf, sender.Bytes()...)
	buf = append(buf, recipient.Bytes()...)
	buf = append(buf, pool.Bytes()...)
	buf = binary.LittleEndian.AppendUint64(buf, amount)
	for i := 0; i < 3; i++ { // created_at, claimable_after, claimable_until
		buf = binary.LittleEndian.AppendUint64(buf, 0)
	}
	buf = append(buf, 0, 0) // state active, no release conditions
	fixed := make([]byte, 64)
	copy(fixed, memo)
	return append(buf, fixed...)
}

func TestReconcileCreateUpsertsActive(t *testing.T) {
	programID := key(90)
	sender := key(1)
	recipient := key(2)
	mint := key(3)
	poolAddr := key(4)
	transferAddr := key(5)

	ledger := &fakeLedger{
		accounts: map[solana.PublicKey][]byte{
			poolAddr:     encodePoolAccount(key(40), key(41), mint, 250, false),
			transferAddr: encodeTransferAccount(sender, recipient, poolAddr, 10_000_000, "invoice 117"),
		},
		result: &chain.OpResult{
			Accounts: []solana.PublicKey{sender, poolAddr, mint, transferAddr, programID, solana.TokenProgramID},
			Logs:     []string{"Program log: Instruction: CreateTransfer"},
		},
	}
	store := storage.NewMemoryMirror()
	journal := &captureJournal{}
	rec := New(ledger, store, journal, programID, nil)

	sig := opSignature(7)
	if err := rec.Reconcile(context.Background(), sig); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	transfer, err := store.GetTransferByAddress(context.Background(), transferAddr.String())
	if err != nil {
		t.Fatalf("transfer not mirrored: %v", err)
	}
	if transfer.Status != model.StatusActive {
		t.Fatalf("status: got %s, want ACTIVE", transfer.Status)
	}
	if transfer.Amount != 10_000_000 || transfer.Memo != "invoice 117" {
		t.Fatalf("row mismatch: %+v", transfer)
	}
	if transfer.CreateOpID != sig.String() {
		t.Fatalf("create op id: got %q", transfer.CreateOpID)
	}

	// Pool and token rows self-heal from the ledger during the upsert.
	pool, err := store.GetPoolByAddress(context.Background(), poolAddr.String())
	if err != nil {
		t.Fatalf("pool not materialized: %v", err)
	}
	if pool.FeeBps != 250 {
		t.Fatalf("pool fee bps: got %d", pool.FeeBps)
	}
	if _, err := store.GetTokenByMint(context.Background(), mint.String()); err != nil {
		t.Fatalf("token not materialized: %v", err)
	}

	var upserts int
	for _, event := range journal.events {
		if event.Outcome == model.OutcomeUpserted && event.Address == transferAddr.String() {
			upserts++
		}
	}
	if upserts != 1 {
		t.Fatalf("expected one upsert event, journal: %+v", journal.events)
	}
}

func TestReconcileIdempotent(t *testing.T) {
	programID := key(90)
	poolAddr := key(4)
	transferAddr := key(5)

	ledger := &fakeLedger{
		accounts: map[solana.PublicKey][]byte{
			poolAddr:     encodePoolAccount(key(40), key(41), key(3), 100, false),
			transferAddr: encodeTransferAccount(key(1), key(2), poolAddr, 500, ""),
		},
		result: &chain.OpResult{
			Accounts: []solana.PublicKey{transferAddr},
			Logs:     []string{"Program log: Instruction: CreateTransfer"},
		},
	}
	store := storage.NewMemoryMirror()
	rec := New(ledger, store, nil, programID, nil)

	sig := opSignature(8)
	if err := rec.Reconcile(context.Background(), sig); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	first, err := store.GetTransferByAddress(context.Background(), transferAddr.String())
	if err != nil {
		t.Fatalf("first pass row: %v", err)
	}

	if err := rec.Reconcile(context.Background(), sig); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	second, err := store.GetTransferByAddress(context.Background(), transferAddr.String())
	if err != nil {
		t.Fatalf("second pass row: %v", err)
	}

	if first.ID != second.ID || first.Status != second.Status || first.Amount != second.Amount {
		t.Fatalf("reconcile not idempotent: %+v vs %+v", first, second)
	}
	if first.CreateOpID != second.CreateOpID {
		t.Fatalf("create op id drifted: %q vs %q", first.CreateOpID, second.CreateOpID)
	}
}

func TestReconcileCancelMarksTerminal(t *testing.T) {
	programID := key(90)
	transferAddr := key(5)

	store := storage.NewMemoryMirror()
	if _, err := store.UpsertActiveTransfer(context.Background(), model.Transfer{
		Address:   transferAddr.String(),
		Sender:    key(1).String(),
		Recipient: key(2).String(),
		Amount:    500,
	}); err != nil {
		t.Fatalf("seed transfer: %v", err)
	}

	ledger := &fakeLedger{
		result: &chain.OpResult{
			Accounts: []solana.PublicKey{key(1), transferAddr},
			Logs:     []string{"Program log: Instruction: CancelTransfer"},
		},
	}
	journal := &captureJournal{}
	rec := New(ledger, store, journal, programID, nil)

	sig := opSignature(9)
	if err := rec.Reconcile(context.Background(), sig); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	transfer, err := store.GetTransferByAddress(context.Background(), transferAddr.String())
	if err != nil {
		t.Fatalf("row lookup: %v", err)
	}
	if transfer.Status != model.StatusCancelled {
		t.Fatalf("status: got %s, want CANCELLED", transfer.Status)
	}
	if transfer.CancelOpID != sig.String() {
		t.Fatalf("cancel op id: got %q", transfer.CancelOpID)
	}
	if transfer.ClaimOpID != "" {
		t.Fatalf("claim op id must stay empty on cancel")
	}

	var terminals int
	for _, event := range journal.events {
		if event.Outcome == model.OutcomeTerminal {
			terminals++
		}
	}
	if terminals != 1 {
		t.Fatalf("expected one terminal event, journal: %+v", journal.events)
	}
}

func TestReconcileTerminalMonotonic(t *testing.T) {
	programID := key(90)
	transferAddr := key(5)
	claimOp := opSignature(3).String()

	store := storage.NewMemoryMirror()
	if _, err := store.UpsertActiveTransfer(context.Background(), model.Transfer{
		Address: transferAddr.String(),
		Amount:  500,
	}); err != nil {
		t.Fatalf("seed transfer: %v", err)
	}
	if _, err := store.MarkTransferTerminal(context.Background(), transferAddr.String(), model.StatusClaimed, claimOp); err != nil {
		t.Fatalf("seed terminal: %v", err)
	}

	ledger := &fakeLedger{
		result: &chain.OpResult{
			Accounts: []solana.PublicKey{transferAddr},
			Logs:     []string{"Program log: Instruction: CancelTransfer"},
		},
	}
	rec := New(ledger, store, nil, programID, nil)

	if err := rec.Reconcile(context.Background(), opSignature(4)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	transfer, err := store.GetTransferByAddress(context.Background(), transferAddr.String())
	if err != nil {
		t.Fatalf("row lookup: %v", err)
	}
	if transfer.Status != model.StatusClaimed {
		t.Fatalf("terminal row rewritten: got %s, want CLAIMED", transfer.Status)
	}
	if transfer.ClaimOpID != claimOp {
		t.Fatalf("claim op id lost: got %q", transfer.ClaimOpID)
	}
}

func TestReconcileMixedTerminalBatch(t *testing.T) {
	programID := key(90)
	claimedAddr := key(5)
	cancelledAddr := key(6)

	store := storage.NewMemoryMirror()
	for _, addr := range []solana.PublicKey{claimedAddr, cancelledAddr} {
		if _, err := store.UpsertActiveTransfer(context.Background(), model.Transfer{
			Address: addr.String(),
			Amount:  500,
		}); err != nil {
			t.Fatalf("seed transfer: %v", err)
		}
	}

	// One batch resolving two transfers with different terminal
	// instructions. Logs alone cannot attribute markers to addresses, so
	// both rows take the first status and the journal carries the ambiguity.
	ledger := &fakeLedger{
		result: &chain.OpResult{
			Accounts: []solana.PublicKey{claimedAddr, cancelledAddr},
			Logs: []string{
				"Program log: Instruction: ClaimTransfer",
				"Program log: Instruction: CancelTransfer",
			},
		},
	}
	journal := &captureJournal{}
	rec := New(ledger, store, journal, programID, nil)

	if err := rec.Reconcile(context.Background(), opSignature(11)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(journal.events) != 2 {
		t.Fatalf("expected two journal events, got %+v", journal.events)
	}
	for _, event := range journal.events {
		if event.Outcome != model.OutcomeTerminal || event.Status != model.StatusClaimed {
			t.Fatalf("event mismatch: %+v", event)
		}
		if !strings.Contains(event.Detail, "CLAIMED") || !strings.Contains(event.Detail, "CANCELLED") {
			t.Fatalf("ambiguity not journaled: %+v", event)
		}
	}
}

func TestReconcileUntrackedTerminal(t *testing.T) {
	programID := key(90)

	ledger := &fakeLedger{
		result: &chain.OpResult{
			Accounts: []solana.PublicKey{key(1), key(5)},
			Logs:     []string{"Program log: Instruction: ClaimTransfer"},
		},
	}
	store := storage.NewMemoryMirror()
	journal := &captureJournal{}
	rec := New(ledger, store, journal, programID, nil)

	if err := rec.Reconcile(context.Background(), opSignature(6)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Nothing may be fabricated from a log-only terminal transition.
	transfers, err := store.ListRecentTransfers(context.Background(), 10)
	if err != nil {
		t.Fatalf("list transfers: %v", err)
	}
	if len(transfers) != 0 {
		t.Fatalf("fabricated rows: %+v", transfers)
	}

	if len(journal.events) != 1 {
		t.Fatalf("expected one journal event, got %+v", journal.events)
	}
	event := journal.events[0]
	if event.Outcome != model.OutcomeUntracked || event.Status != model.StatusClaimed {
		t.Fatalf("event mismatch: %+v", event)
	}
}
