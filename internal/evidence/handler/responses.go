package handler

import (
	"evidentia/internal/evidence/models"
	id "evidentia/pkg/domain"
	audit "evidentia/pkg/platform/audit"
)

// SealResponse is returned by seal and API push. Idempotent marks a replay of
// an already sealed record.
type SealResponse struct {
	*models.Evidence
	Idempotent bool `json:"idempotent"`
}

type AuditTrailResponse struct {
	EvidenceID id.EvidenceID `json:"evidence_id"`
	Events     []audit.Event `json:"events"`
}

// LineageEntry is one link of a supersession chain.
type LineageEntry struct {
	EvidenceID             id.EvidenceID      `json:"evidence_id"`
	LedgerState            models.LedgerState `json:"ledger_state"`
	PayloadHash            *string            `json:"payload_hash_sha256,omitempty"`
	EnvelopeHash           string             `json:"envelope_hash_sha256"`
	SupersedesEvidenceID   *id.EvidenceID     `json:"supersedes_evidence_id,omitempty"`
	SupersededByEvidenceID *id.EvidenceID     `json:"superseded_by_evidence_id,omitempty"`
	SequenceNumber         int64              `json:"sequence_number"`
}

type LineageResponse struct {
	EvidenceID id.EvidenceID  `json:"evidence_id"`
	Head       id.EvidenceID  `json:"head_evidence_id"`
	Chain      []LineageEntry `json:"chain"`
}

// FromChain maps a root-to-head chain to its wire form.
func FromChain(requested id.EvidenceID, chain []*models.Evidence) LineageResponse {
	resp := LineageResponse{EvidenceID: requested, Chain: make([]LineageEntry, 0, len(chain))}
	for _, e := range chain {
		resp.Chain = append(resp.Chain, LineageEntry{
			EvidenceID:             e.ID,
			LedgerState:            e.LedgerState,
			PayloadHash:            e.PayloadHash,
			EnvelopeHash:           e.EnvelopeHash,
			SupersedesEvidenceID:   e.SupersedesEvidenceID,
			SupersededByEvidenceID: e.SupersededByEvidenceID,
			SequenceNumber:         e.SequenceNumber,
		})
	}
	if n := len(chain); n > 0 {
		resp.Head = chain[n-1].ID
	}
	return resp
}
