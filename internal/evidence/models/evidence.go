package models

import (
	"encoding/json"
	"fmt"
	"time"

	"evidentia/pkg/canonical"
	id "evidentia/pkg/domain"
)

// DeclaredMetadata is the metadata snapshot frozen into an evidence record.
type DeclaredMetadata struct {
	DeclaredFields
	Attachments []AttachmentDescriptor `json:"attachments"`
}

// MetadataFromDraft builds the snapshot sealed for d.
func MetadataFromDraft(d *Draft, attachments []Attachment) DeclaredMetadata {
	descs := make([]AttachmentDescriptor, 0, len(attachments))
	for _, a := range attachments {
		descs = append(descs, a.Descriptor())
	}
	fields := d.DeclaredFields
	if fields.PurposeTags == nil {
		fields.PurposeTags = []string{}
	}
	return DeclaredMetadata{DeclaredFields: fields, Attachments: descs}
}

// Hashes are the three digests that make a sealed record tamper-evident.
type Hashes struct {
	MetadataHash string  `json:"metadata_hash_sha256"`
	PayloadHash  *string `json:"payload_hash_sha256"`
	EnvelopeHash string  `json:"envelope_hash_sha256"`
}

// envelope is hashed with field names fixed here; changing them changes every
// envelope hash.
type envelope struct {
	AttachmentCount int     `json:"attachment_count"`
	MetadataHash    string  `json:"metadata_hash"`
	PayloadHash     *string `json:"payload_hash"`
}

// ComputeHashes derives metadata, payload and envelope hashes through the
// canonical encoder. A nil payload yields a nil payload hash.
func ComputeHashes(meta DeclaredMetadata, payload json.RawMessage) (Hashes, error) {
	metaHash, err := canonical.Hash(meta)
	if err != nil {
		return Hashes{}, fmt.Errorf("hash metadata: %w", err)
	}
	payloadHash, err := PayloadHash(payload)
	if err != nil {
		return Hashes{}, err
	}
	envHash, err := canonical.Hash(envelope{
		AttachmentCount: len(meta.Attachments),
		MetadataHash:    metaHash,
		PayloadHash:     payloadHash,
	})
	if err != nil {
		return Hashes{}, fmt.Errorf("hash envelope: %w", err)
	}
	return Hashes{MetadataHash: metaHash, PayloadHash: payloadHash, EnvelopeHash: envHash}, nil
}

// PayloadHash hashes the canonical form of payload, or returns nil when there
// is no payload.
func PayloadHash(payload json.RawMessage) (*string, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	h, err := canonical.Hash(payload)
	if err != nil {
		return nil, fmt.Errorf("hash payload: %w", err)
	}
	return &h, nil
}

// Evidence is an immutable sealed record. Only LedgerState, SequenceNumber and
// SupersededByEvidenceID change after creation.
type Evidence struct {
	ID          id.EvidenceID    `json:"evidence_id"`
	TenantID    id.TenantID      `json:"tenant_id"`
	DraftID     *id.DraftID      `json:"draft_id,omitempty"`
	LedgerState LedgerState      `json:"ledger_state"`
	Method      Method           `json:"method"`
	Metadata    DeclaredMetadata `json:"declared_metadata"`
	Payload     json.RawMessage  `json:"payload,omitempty"`
	Hashes
	AttachmentCount        int            `json:"attachment_count"`
	SealedAt               time.Time      `json:"sealed_at_utc"`
	CreatedBy              string         `json:"created_by"`
	ExternalReferenceID    string         `json:"external_reference_id,omitempty"`
	SupersedesEvidenceID   *id.EvidenceID `json:"supersedes_evidence_id,omitempty"`
	SupersededByEvidenceID *id.EvidenceID `json:"superseded_by_evidence_id,omitempty"`
	SequenceNumber         int64          `json:"sequence_number"`
}

// SealParams carries everything needed to seal a record.
type SealParams struct {
	EvidenceID id.EvidenceID
	TenantID   id.TenantID
	DraftID    *id.DraftID
	Metadata   DeclaredMetadata
	Payload    json.RawMessage
	CreatedBy  string
	Supersedes *id.EvidenceID
	Now        time.Time
}

// NewEvidence seals p into a record in SEALED state at sequence 0. The payload
// is stored in canonical form so re-verification hashes the same bytes.
func NewEvidence(p SealParams) (*Evidence, error) {
	var payload json.RawMessage
	if len(p.Payload) > 0 {
		b, err := canonical.Marshal(p.Payload)
		if err != nil {
			return nil, fmt.Errorf("canonicalize payload: %w", err)
		}
		payload = b
	}
	hashes, err := ComputeHashes(p.Metadata, payload)
	if err != nil {
		return nil, err
	}
	return &Evidence{
		ID:                   p.EvidenceID,
		TenantID:             p.TenantID,
		DraftID:              p.DraftID,
		LedgerState:          StateSealed,
		Method:               p.Metadata.Method,
		Metadata:             p.Metadata,
		Payload:              payload,
		Hashes:               hashes,
		AttachmentCount:      len(p.Metadata.Attachments),
		SealedAt:             p.Now.UTC(),
		CreatedBy:            p.CreatedBy,
		ExternalReferenceID:  p.Metadata.ExternalReferenceID,
		SupersedesEvidenceID: p.Supersedes,
		SequenceNumber:       0,
	}, nil
}

// ApplyTransition advances the ledger state and bumps the sequence number.
func (e *Evidence) ApplyTransition(target LedgerState) {
	e.LedgerState = target
	e.SequenceNumber++
}

// ApplySupersession marks e as replaced by newID.
func (e *Evidence) ApplySupersession(newID id.EvidenceID) {
	e.LedgerState = StateSuperseded
	e.SupersededByEvidenceID = &newID
	e.SequenceNumber++
}

// Verify recomputes the hashes from stored content and compares them.
func (e *Evidence) Verify() (VerificationReport, error) {
	recomputed, err := ComputeHashes(e.Metadata, e.Payload)
	if err != nil {
		return VerificationReport{}, err
	}
	report := VerificationReport{
		EvidenceID: e.ID,
		Stored:     e.Hashes,
		Recomputed: recomputed,
	}
	if recomputed.MetadataHash != e.MetadataHash {
		report.Mismatches = append(report.Mismatches, "metadata_hash_sha256")
	}
	if deref(recomputed.PayloadHash) != deref(e.PayloadHash) {
		report.Mismatches = append(report.Mismatches, "payload_hash_sha256")
	}
	if recomputed.EnvelopeHash != e.EnvelopeHash {
		report.Mismatches = append(report.Mismatches, "envelope_hash_sha256")
	}
	if e.AttachmentCount != len(e.Metadata.Attachments) {
		report.Mismatches = append(report.Mismatches, "attachment_count")
	}
	report.Intact = len(report.Mismatches) == 0
	return report, nil
}

// VerificationReport is the outcome of re-hashing a sealed record.
type VerificationReport struct {
	EvidenceID id.EvidenceID `json:"evidence_id"`
	Intact     bool          `json:"intact"`
	Stored     Hashes        `json:"stored"`
	Recomputed Hashes        `json:"recomputed"`
	Mismatches []string      `json:"mismatches,omitempty"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
