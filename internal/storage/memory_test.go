package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"escrowScope/internal/model"
)

func TestMarkTransferTerminal(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryMirror()

	if _, err := m.MarkTransferTerminal(ctx, "missing", model.StatusClaimed, "op-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing row: got %v, want ErrNotFound", err)
	}

	if _, err := m.MarkTransferTerminal(ctx, "addr", model.StatusActive, "op-1"); !errors.Is(err, ErrNonTerminalStatus) {
		t.Fatalf("non-terminal target: got %v, want ErrNonTerminalStatus", err)
	}

	if err := m.InsertPendingTransfer(ctx, model.Transfer{Address: "addr", Amount: 100}); err != nil {
		t.Fatalf("insert pending: %v", err)
	}

	changed, err := m.MarkTransferTerminal(ctx, "addr", model.StatusClaimed, "op-1")
	if err != nil || !changed {
		t.Fatalf("pending to terminal: changed=%v err=%v", changed, err)
	}
	row, err := m.GetTransferByAddress(ctx, "addr")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if row.Status != model.StatusClaimed || row.ClaimOpID != "op-1" || row.CancelOpID != "" {
		t.Fatalf("row after claim: %+v", row)
	}

	// Terminal rows never transition again, whatever the new inference says.
	changed, err = m.MarkTransferTerminal(ctx, "addr", model.StatusCancelled, "op-2")
	if err != nil || changed {
		t.Fatalf("terminal overwrite: changed=%v err=%v", changed, err)
	}
	row, _ = m.GetTransferByAddress(ctx, "addr")
	if row.Status != model.StatusClaimed || row.ClaimOpID != "op-1" {
		t.Fatalf("terminal row rewritten: %+v", row)
	}
}

func TestMarkTransferTerminalOpIDColumn(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryMirror()

	cases := []struct {
		status     model.TransferStatus
		wantClaim  string
		wantCancel string
	}{
		{model.StatusCancelled, "", "op-x"},
		{model.StatusRejected, "", "op-x"},
		{model.StatusExpired, "", "op-x"},
		{model.StatusDeclined, "", "op-x"},
		{model.StatusClaimed, "op-x", ""},
	}
	for i, tc := range cases {
		addr := string(rune('a' + i))
		if _, err := m.UpsertActiveTransfer(ctx, model.Transfer{Address: addr}); err != nil {
			t.Fatalf("seed %s: %v", addr, err)
		}
		if _, err := m.MarkTransferTerminal(ctx, addr, tc.status, "op-x"); err != nil {
			t.Fatalf("mark %s: %v", tc.status, err)
		}
		row, _ := m.GetTransferByAddress(ctx, addr)
		if row.ClaimOpID != tc.wantClaim || row.CancelOpID != tc.wantCancel {
			t.Fatalf("%s: claim=%q cancel=%q", tc.status, row.ClaimOpID, row.CancelOpID)
		}
	}
}

func TestUpsertActiveTransferGuards(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryMirror()

	if err := m.InsertPendingTransfer(ctx, model.Transfer{Address: "addr", Amount: 1, CreateOpID: ""}); err != nil {
		t.Fatalf("insert pending: %v", err)
	}

	// Confirmation promotes PENDING to ACTIVE and fills in ledger truth.
	changed, err := m.UpsertActiveTransfer(ctx, model.Transfer{Address: "addr", Amount: 100, CreateOpID: "op-1"})
	if err != nil || !changed {
		t.Fatalf("promote: changed=%v err=%v", changed, err)
	}
	row, _ := m.GetTransferByAddress(ctx, "addr")
	if row.Status != model.StatusActive || row.Amount != 100 || row.CreateOpID != "op-1" {
		t.Fatalf("promoted row: %+v", row)
	}

	if _, err := m.MarkTransferTerminal(ctx, "addr", model.StatusClaimed, "op-2"); err != nil {
		t.Fatalf("mark terminal: %v", err)
	}

	// A replayed create reconciliation must not resurrect the row.
	changed, err = m.UpsertActiveTransfer(ctx, model.Transfer{Address: "addr", Amount: 100, CreateOpID: "op-1"})
	if err != nil || changed {
		t.Fatalf("resurrect: changed=%v err=%v", changed, err)
	}
	row, _ = m.GetTransferByAddress(ctx, "addr")
	if row.Status != model.StatusClaimed {
		t.Fatalf("terminal row resurrected: %+v", row)
	}
}

func TestDeleteStalePending(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryMirror()

	if err := m.InsertPendingTransfer(ctx, model.Transfer{Address: "stale"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := m.InsertPendingTransfer(ctx, model.Transfer{Address: "confirmed"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := m.UpsertActiveTransfer(ctx, model.Transfer{Address: "confirmed"}); err != nil {
		t.Fatalf("promote: %v", err)
	}

	removed, err := m.DeleteStalePending(ctx, time.Now().UTC().Add(time.Minute))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed: got %d, want 1", removed)
	}

	if _, err := m.GetTransferByAddress(ctx, "stale"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("stale row survived the sweep: %v", err)
	}
	if _, err := m.GetTransferByAddress(ctx, "confirmed"); err != nil {
		t.Fatalf("active row swept: %v", err)
	}
}

func TestUpsertTokenKeepsCuratedMetadata(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryMirror()

	curated, err := m.UpsertToken(ctx, model.Token{Mint: "mint-1", Name: "USD Coin", Symbol: "USDC", Decimals: 6})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Reconciliation only knows the mint; its placeholder must not clobber
	// curated metadata.
	got, err := m.UpsertToken(ctx, model.Token{
		Mint:     "mint-1",
		Name:     model.PlaceholderTokenName,
		Symbol:   model.PlaceholderTokenSymbol,
		Decimals: model.PlaceholderTokenDecimals,
	})
	if err != nil {
		t.Fatalf("placeholder upsert: %v", err)
	}
	if got.ID != curated.ID || got.Symbol != "USDC" || got.Name != "USD Coin" || got.Decimals != 6 {
		t.Fatalf("curated metadata lost: %+v", got)
	}
}
