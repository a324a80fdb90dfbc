package reconcile

import (
	"reflect"
	"testing"

	"escrowScope/internal/model"
	"escrowScope/internal/program"
)

func TestInstructionMarkers(t *testing.T) {
	logs := []string{
		"Program HZ8paEkYZ2hKBwHoVk23doSLEad9K5duASRTGaYogmfg invoke [1]",
		"Program log: Instruction: CreateTransfer",
		"Program log: escrow seeded",
		"Program log: Instruction: ClaimTransfer",
		"Program HZ8paEkYZ2hKBwHoVk23doSLEad9K5duASRTGaYogmfg success",
	}

	got := InstructionMarkers(logs)
	want := []string{"CreateTransfer", "ClaimTransfer"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("InstructionMarkers = %v, want %v", got, want)
	}

	if markers := InstructionMarkers(nil); markers != nil {
		t.Fatalf("expected no markers for empty log, got %v", markers)
	}
}

func TestTerminalStatus(t *testing.T) {
	cases := []struct {
		instruction string
		want        model.TransferStatus
	}{
		{program.IxClaimTransfer, model.StatusClaimed},
		{program.IxCancelTransfer, model.StatusCancelled},
		{program.IxRejectTransfer, model.StatusRejected},
		{program.IxDeclineTransfer, model.StatusDeclined},
		{program.IxExpireTransfer, model.StatusExpired},
	}
	for _, tc := range cases {
		got, ok := TerminalStatus(tc.instruction)
		if !ok || got != tc.want {
			t.Fatalf("TerminalStatus(%q) = (%q, %v), want (%q, true)", tc.instruction, got, ok, tc.want)
		}
	}

	if _, ok := TerminalStatus(program.IxCreateTransfer); ok {
		t.Fatalf("CreateTransfer must not map to a terminal status")
	}
	if _, ok := TerminalStatus("InitializePool"); ok {
		t.Fatalf("unrelated instruction must not map to a terminal status")
	}
}

func TestTerminalStatusSet(t *testing.T) {
	logs := []string{
		"Program log: Instruction: CreateTransfer",
		"Program log: Instruction: ClaimTransfer",
		"Program log: Instruction: CancelTransfer",
		"Program log: Instruction: ClaimTransfer",
	}

	got := TerminalStatusSet(logs)
	want := []model.TransferStatus{model.StatusClaimed, model.StatusCancelled}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("TerminalStatusSet = %v, want %v", got, want)
	}

	if set := TerminalStatusSet([]string{"Program log: Instruction: CreateTransfer"}); set != nil {
		t.Fatalf("expected no terminal statuses, got %v", set)
	}
}

func TestInferTerminalStatus(t *testing.T) {
	cases := []struct {
		name string
		logs []string
		want model.TransferStatus
		ok   bool
	}{
		{
			name: "cancel",
			logs: []string{"Program log: Instruction: CancelTransfer"},
			want: model.StatusCancelled,
			ok:   true,
		},
		{
			name: "create only",
			logs: []string{"Program log: Instruction: CreateTransfer"},
		},
		{
			name: "first terminal marker wins",
			logs: []string{
				"Program log: Instruction: ClaimTransfer",
				"Program log: Instruction: CancelTransfer",
			},
			want: model.StatusClaimed,
			ok:   true,
		},
		{
			name: "unknown markers ignored",
			logs: []string{
				"Program log: Instruction: Settle",
				"Program log: Instruction: ExpireTransfer",
			},
			want: model.StatusExpired,
			ok:   true,
		},
		{
			name: "no markers",
			logs: []string{"Program log: fee charged"},
		},
	}

	for _, tc := range cases {
		got, ok := InferTerminalStatus(tc.logs)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("%s: InferTerminalStatus = (%q, %v), want (%q, %v)", tc.name, got, ok, tc.want, tc.ok)
		}
	}
}
