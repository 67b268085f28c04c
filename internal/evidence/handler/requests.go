package handler

import (
	"encoding/json"
	"strings"

	"evidentia/internal/evidence/models"
	"evidentia/internal/evidence/service"
	id "evidentia/pkg/domain"
	dErrors "evidentia/pkg/domain-errors"
)

// DraftRequest is the body of POST /v1/drafts and POST /v1/ingest/api-push.
// Declared fields sit at the top level next to the payload.
type DraftRequest struct {
	models.DeclaredFields
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate only catches transport problems. Field rules run in the kernel so
// draft snapshots and seal attempts report the same field errors.
func (r *DraftRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.SourceSystem = strings.TrimSpace(r.SourceSystem)
	r.ExternalReferenceID = strings.TrimSpace(r.ExternalReferenceID)
	return nil
}

func (r *DraftRequest) Input() service.CreateDraftInput {
	return service.CreateDraftInput{Fields: r.DeclaredFields, Payload: r.Payload}
}

// QuarantineRequest is the body of POST /v1/drafts/{draftID}/quarantine.
type QuarantineRequest struct {
	Reason string `json:"reason"`
}

func (r *QuarantineRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Reason = strings.TrimSpace(r.Reason)
	return nil
}

// CommandRequest is the body of POST /v1/commands.
type CommandRequest struct {
	CommandID   string                `json:"command_id"`
	CommandType string                `json:"command_type"`
	EvidenceID  string                `json:"evidence_id"`
	Payload     models.CommandPayload `json:"payload"`

	// Parsed values (populated by Validate)
	parsedEvidenceID id.EvidenceID
}

// Validate parses the evidence ID. A missing ID is left to the command's
// shape check so it is reported as a field error.
func (r *CommandRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.CommandID = strings.TrimSpace(r.CommandID)
	r.CommandType = strings.TrimSpace(r.CommandType)
	r.EvidenceID = strings.TrimSpace(r.EvidenceID)
	if r.EvidenceID != "" {
		evidenceID, err := id.ParseEvidenceID(r.EvidenceID)
		if err != nil {
			return err
		}
		r.parsedEvidenceID = evidenceID
	}
	return nil
}

// Command builds the kernel command. Tenant and actor come from the
// authenticated context, never from the body.
func (r *CommandRequest) Command() models.Command {
	return models.Command{
		CommandID:   r.CommandID,
		CommandType: models.CommandType(r.CommandType),
		EvidenceID:  r.parsedEvidenceID,
		Payload:     r.Payload,
	}
}

// SupersedeRequest is the body of POST /v1/evidence/{evidenceID}/supersede.
type SupersedeRequest struct {
	NewPayload json.RawMessage `json:"new_payload"`
	Reason     string          `json:"reason"`
	CommandID  string          `json:"command_id,omitempty"`
}

func (r *SupersedeRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Reason = strings.TrimSpace(r.Reason)
	r.CommandID = strings.TrimSpace(r.CommandID)
	return nil
}

func (r *SupersedeRequest) Request(old id.EvidenceID) models.SupersedeRequest {
	return models.SupersedeRequest{
		OldEvidenceID: old,
		NewPayload:    r.NewPayload,
		Reason:        r.Reason,
		CommandID:     r.CommandID,
	}
}
