package model

import (
	"encoding/json"
)

// ReconcileEvent is the normalized audit record of one mirror mutation made
// while reconciling a confirmed operation. Appended to the journal sink.
type ReconcileEvent struct {
	OpID       string         `json:"op_id"`
	Address    string         `json:"address"`
	Outcome    string         `json:"outcome"`
	Status     TransferStatus `json:"status,omitempty"`
	Detail     string         `json:"detail,omitempty"`
	RecordedAt string         `json:"recorded_at"`
}

// Reconciliation outcomes.
const (
	OutcomeUpserted  = "upserted"
	OutcomeTerminal  = "terminal"
	OutcomeNoop      = "noop"
	OutcomeUntracked = "untracked_terminal"
)

// MarshalJSON ensures ReconcileEvent is encoded with stable field names.
func (e ReconcileEvent) MarshalJSON() ([]byte, error) {
	type Alias ReconcileEvent
	return json.Marshal(Alias(e))
}

// UnmarshalJSON decodes a ReconcileEvent from JSON.
func (e *ReconcileEvent) UnmarshalJSON(data []byte) error {
	type Alias ReconcileEvent
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*e = ReconcileEvent(a)
	return nil
}
