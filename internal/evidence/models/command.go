package models

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	id "evidentia/pkg/domain"
	dErrors "evidentia/pkg/domain-errors"
)

const maxCommandIDLength = 128

// CommandPayload holds the command-specific inputs.
type CommandPayload struct {
	Reason         string `json:"reason,omitempty"`
	ReasonCode     string `json:"reason_code,omitempty"`
	AIOriginated   bool   `json:"ai_originated,omitempty"`
	HumanConfirmed bool   `json:"human_confirmed,omitempty"`
	// ExpectedSequenceNumber, when set, must equal the record's current
	// sequence number for the command to apply.
	ExpectedSequenceNumber *int64          `json:"expected_sequence_number,omitempty"`
	Attributes             json.RawMessage `json:"attributes,omitempty"`
}

// Command is an intent to move an evidence record through the ledger graph.
// CommandID is the client's idempotency key, unique per (tenant, type).
type Command struct {
	CommandID   string
	CommandType CommandType
	TenantID    id.TenantID
	EvidenceID  id.EvidenceID
	ActorID     string
	ActorRole   Role
	Payload     CommandPayload
}

// ValidateShape checks the command envelope before any lookup happens.
func (c Command) ValidateShape() error {
	var errs []dErrors.FieldError
	if strings.TrimSpace(c.CommandID) == "" {
		errs = append(errs, dErrors.FieldError{Field: "command_id", Code: FieldRequired, Message: "command_id is required", Hint: "supply a client-generated idempotency key"})
	} else if len(c.CommandID) > maxCommandIDLength {
		errs = append(errs, dErrors.FieldError{Field: "command_id", Code: FieldInvalidValue, Message: "command_id is too long", Hint: "use at most 128 characters"})
	}
	switch {
	case c.CommandType == "":
		errs = append(errs, dErrors.FieldError{Field: "command_type", Code: FieldRequired, Message: "command_type is required"})
	case !c.CommandType.IsValid():
		errs = append(errs, dErrors.FieldError{
			Field: "command_type", Code: FieldInvalidValue,
			Message: "unknown command_type",
			Hint:    "one of ClassifyEvidenceCommand, StructureEvidenceCommand, RejectEvidenceCommand",
		})
	}
	if c.EvidenceID.IsNil() {
		errs = append(errs, dErrors.FieldError{Field: "evidence_id", Code: FieldRequired, Message: "evidence_id is required"})
	}
	if len(errs) > 0 {
		return dErrors.New(dErrors.CodeBadRequest, "malformed command").WithFields(errs...)
	}
	return nil
}

// CheckGuards applies the command-specific rules that do not depend on state.
func (c Command) CheckGuards() error {
	if c.CommandType == CommandReject && strings.TrimSpace(c.Payload.Reason) == "" {
		return dErrors.New(dErrors.CodeValidation, "rejection requires a reason").
			WithReason(ReasonReasonRequired).
			WithFields(dErrors.FieldError{Field: "payload.reason", Code: FieldRequired, Message: "reason is required", Hint: "explain why the evidence is rejected"})
	}
	if c.Payload.AIOriginated && !c.Payload.HumanConfirmed {
		return dErrors.New(dErrors.CodeValidation, "AI-originated commands require human confirmation").
			WithReason(ReasonHumanConfirmRequired).
			WithFields(dErrors.FieldError{Field: "payload.human_confirmed", Code: FieldRequired, Message: "human_confirmed must be true", Hint: "have a person review the suggestion before submitting"})
	}
	return nil
}

// CheckSequence enforces the optional optimistic-concurrency token.
func (c Command) CheckSequence(current int64) error {
	if c.Payload.ExpectedSequenceNumber != nil && *c.Payload.ExpectedSequenceNumber != current {
		return StaleSequence(*c.Payload.ExpectedSequenceNumber, current)
	}
	return nil
}

// StaleSequence reports an optimistic-concurrency failure.
func StaleSequence(expected, current int64) error {
	return dErrors.New(dErrors.CodeConflict, "evidence has moved on since it was read").
		WithReason(ReasonStaleSequence).
		WithFields(dErrors.FieldError{
			Field:   "expected_sequence_number",
			Code:    ReasonStaleSequence,
			Message: "expected " + strconv.FormatInt(expected, 10) + ", current is " + strconv.FormatInt(current, 10),
			Hint:    "reload the evidence and resubmit",
		})
}

// CommandResult is returned for an applied command and stored verbatim for
// replay.
type CommandResult struct {
	CommandID      string        `json:"command_id"`
	CommandType    CommandType   `json:"command_type"`
	EvidenceID     id.EvidenceID `json:"evidence_id"`
	EventID        id.EventID    `json:"event_id"`
	PreviousState  LedgerState   `json:"previous_state"`
	NewState       LedgerState   `json:"new_state"`
	SequenceNumber int64         `json:"sequence_number"`
	Timestamp      time.Time     `json:"timestamp"`
	Idempotent     bool          `json:"idempotent"`
}

// CommandKey is the idempotency key for stored command results.
type CommandKey struct {
	TenantID    id.TenantID
	CommandType CommandType
	CommandID   string
}

// StoredCommand is a persisted command outcome. Result holds the exact bytes
// returned the first time.
type StoredCommand struct {
	Key        CommandKey
	EvidenceID id.EvidenceID
	Result     json.RawMessage
	CreatedAt  time.Time
}
