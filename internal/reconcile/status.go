package reconcile

import (
	"strings"

	"escrowScope/internal/model"
	"escrowScope/internal/program"
)

// The ledger destroys a transfer record the moment it resolves, so terminal
// outcomes can only be inferred from the anchor execution log. Anchor emits
// one "Program log: Instruction: <Name>" marker per dispatched instruction;
// the table below maps marker names to mirror statuses.
//
// This mapping is a contract with the on-chain program's log format, not
// incidental string matching. Any change to the program's instruction names
// or to anchor's log prefix requires a new table version here.
const logTableVersion = 1

const instructionMarkerPrefix = "Program log: Instruction: "

var terminalByInstruction = map[string]model.TransferStatus{
	program.IxClaimTransfer:   model.StatusClaimed,
	program.IxCancelTransfer:  model.StatusCancelled,
	program.IxRejectTransfer:  model.StatusRejected,
	program.IxDeclineTransfer: model.StatusDeclined,
	program.IxExpireTransfer:  model.StatusExpired,
}

// InstructionMarkers extracts the instruction names announced in the
// execution log, in emission order.
func InstructionMarkers(logs []string) []string {
	var names []string
	for _, line := range logs {
		if rest, ok := strings.CutPrefix(line, instructionMarkerPrefix); ok {
			names = append(names, strings.TrimSpace(rest))
		}
	}
	return names
}

// TerminalStatus maps an instruction name to the terminal status it implies,
// if any.
func TerminalStatus(name string) (model.TransferStatus, bool) {
	status, ok := terminalByInstruction[name]
	return status, ok
}

// InferTerminalStatus scans the execution log for a terminal transition. The
// first terminal marker wins; batches mixing different terminal instructions
// are legal on-chain but rare, and the reconciler flags them in the journal.
func InferTerminalStatus(logs []string) (model.TransferStatus, bool) {
	for _, name := range InstructionMarkers(logs) {
		if status, ok := TerminalStatus(name); ok {
			return status, true
		}
	}
	return "", false
}

// TerminalStatusSet returns the distinct terminal statuses announced in the
// execution log, in first-appearance order. More than one element means the
// operation batched different terminal instructions and per-address
// inference from logs alone is ambiguous.
func TerminalStatusSet(logs []string) []model.TransferStatus {
	var out []model.TransferStatus
	seen := make(map[model.TransferStatus]struct{})
	for _, name := range InstructionMarkers(logs) {
		status, ok := TerminalStatus(name)
		if !ok {
			continue
		}
		if _, dup := seen[status]; dup {
			continue
		}
		seen[status] = struct{}{}
		out = append(out, status)
	}
	return out
}
