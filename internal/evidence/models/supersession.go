package models

import (
	"encoding/json"
	"strings"
	"time"

	id "evidentia/pkg/domain"
	dErrors "evidentia/pkg/domain-errors"
)

// SupersedeRequest replaces an evidence record with a corrected payload.
type SupersedeRequest struct {
	OldEvidenceID id.EvidenceID
	NewPayload    json.RawMessage
	Reason        string
	CommandID     string
}

func (r SupersedeRequest) Validate() error {
	var errs []dErrors.FieldError
	if r.OldEvidenceID.IsNil() {
		errs = append(errs, dErrors.FieldError{Field: "old_evidence_id", Code: FieldRequired, Message: "old_evidence_id is required"})
	}
	if strings.TrimSpace(r.Reason) == "" {
		errs = append(errs, dErrors.FieldError{Field: "reason", Code: FieldRequired, Message: "reason is required", Hint: "explain what the new record corrects"})
	}
	if len(r.CommandID) > maxCommandIDLength {
		errs = append(errs, dErrors.FieldError{Field: "command_id", Code: FieldInvalidValue, Message: "command_id is too long"})
	}
	if len(errs) > 0 {
		return dErrors.New(dErrors.CodeValidation, "invalid supersession request").
			WithReason(ReasonValidationFailed).
			WithFields(errs...)
	}
	return nil
}

// SupersessionReceipt reports both records and both hash sets.
type SupersessionReceipt struct {
	OldEvidenceID      id.EvidenceID `json:"old_evidence_id"`
	NewEvidenceID      id.EvidenceID `json:"new_evidence_id"`
	OldHashes          Hashes        `json:"old_hashes"`
	NewHashes          Hashes        `json:"new_hashes"`
	OldLedgerState     LedgerState   `json:"old_ledger_state"`
	OldSequenceNumber  int64         `json:"old_sequence_number"`
	SupersededEventID  id.EventID    `json:"superseded_event_id"`
	SupersedingEventID id.EventID    `json:"superseding_event_id"`
	Reason             string        `json:"reason"`
	Timestamp          time.Time     `json:"timestamp"`
	Idempotent         bool          `json:"idempotent"`
}
