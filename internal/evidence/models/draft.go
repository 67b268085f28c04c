package models

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	id "evidentia/pkg/domain"
	dErrors "evidentia/pkg/domain-errors"
)

// MinJustificationLength is the minimum attestation length in characters.
const MinJustificationLength = 20

// DeclaredFields are the caller-declared metadata of a draft. They become the
// sealed metadata snapshot unchanged.
type DeclaredFields struct {
	Method               Method          `json:"ingestion_method"`
	DatasetType          DatasetType     `json:"dataset_type"`
	SourceSystem         string          `json:"source_system"`
	DeclaredScope        Scope           `json:"declared_scope"`
	ScopeTargetID        string          `json:"scope_target_id,omitempty"`
	PurposeTags          []string        `json:"purpose_tags"`
	RetentionPolicy      RetentionPolicy `json:"retention_policy"`
	ContainsPersonalData bool            `json:"contains_personal_data"`
	GDPRLegalBasis       LegalBasis      `json:"gdpr_legal_basis,omitempty"`
	JustificationText    string          `json:"justification_text,omitempty"`
	ExternalReferenceID  string          `json:"external_reference_id,omitempty"`
	SnapshotTimestampUTC *time.Time      `json:"snapshot_timestamp_utc,omitempty"`
	PortalRequestID      string          `json:"portal_request_id,omitempty"`
	DataOrigin           DataOrigin      `json:"data_origin,omitempty"`
}

// Validate checks presence, enum membership and the compatibility matrix.
// It returns every problem found, not just the first.
func (f DeclaredFields) Validate() []dErrors.FieldError {
	var errs []dErrors.FieldError
	req := func(field, hint string) {
		errs = append(errs, dErrors.FieldError{Field: field, Code: FieldRequired, Message: field + " is required", Hint: hint})
	}
	bad := func(field, hint string) {
		errs = append(errs, dErrors.FieldError{Field: field, Code: FieldInvalidValue, Message: field + " has an unknown value", Hint: hint})
	}

	switch {
	case f.Method == "":
		req("ingestion_method", "one of FILE_UPLOAD, API_PUSH, ERP_EXPORT, MANUAL_ENTRY, SUPPLIER_PORTAL")
	case !f.Method.IsValid():
		bad("ingestion_method", "one of FILE_UPLOAD, API_PUSH, ERP_EXPORT, MANUAL_ENTRY, SUPPLIER_PORTAL")
	}
	switch {
	case f.DatasetType == "":
		req("dataset_type", "one of "+join(datasetTypes))
	case !f.DatasetType.IsValid():
		bad("dataset_type", "one of "+join(datasetTypes))
	}
	if strings.TrimSpace(f.SourceSystem) == "" {
		req("source_system", "name the system the data was exported from")
	}
	switch {
	case f.DeclaredScope == "":
		req("declared_scope", "one of "+join(scopes))
	case !f.DeclaredScope.IsValid():
		bad("declared_scope", "one of "+join(scopes))
	case f.DeclaredScope.RequiresTarget() && strings.TrimSpace(f.ScopeTargetID) == "":
		req("scope_target_id", "identify the "+strings.ToLower(string(f.DeclaredScope))+" this evidence covers")
	}
	switch {
	case f.RetentionPolicy == "":
		req("retention_policy", "one of STANDARD_7Y, EXTENDED_10Y, LEGAL_HOLD")
	case !f.RetentionPolicy.IsValid():
		bad("retention_policy", "one of STANDARD_7Y, EXTENDED_10Y, LEGAL_HOLD")
	}
	switch {
	case f.ContainsPersonalData && f.GDPRLegalBasis == "":
		req("gdpr_legal_basis", "personal data requires a GDPR legal basis")
	case f.GDPRLegalBasis != "" && !f.GDPRLegalBasis.IsValid():
		bad("gdpr_legal_basis", "one of CONSENT, CONTRACT, LEGAL_OBLIGATION, VITAL_INTERESTS, PUBLIC_TASK, LEGITIMATE_INTERESTS")
	case !f.ContainsPersonalData && f.GDPRLegalBasis != "":
		errs = append(errs, dErrors.FieldError{
			Field: "gdpr_legal_basis", Code: FieldInvalidValue,
			Message: "gdpr_legal_basis is only accepted when contains_personal_data is true",
			Hint:    "remove gdpr_legal_basis or set contains_personal_data",
		})
	}
	if f.JustificationText != "" && utf8.RuneCountInString(strings.TrimSpace(f.JustificationText)) < MinJustificationLength {
		errs = append(errs, dErrors.FieldError{
			Field: "justification_text", Code: FieldTooShort,
			Message: "justification_text must be at least 20 characters",
			Hint:    "describe why this record is accurate",
		})
	}
	if f.DataOrigin != "" && !f.DataOrigin.IsValid() {
		bad("data_origin", "one of LIVE, FIXTURE, TEST")
	}
	return append(errs, CheckCompatibility(f.Method, f.DatasetType, f.DeclaredScope)...)
}

// Draft is the mutable staging record for not-yet-sealed evidence.
//
// Invariants:
//   - Declared fields and payload change only while Status is DRAFT
//   - SealedEvidenceID is set exactly when Status is SEALED
//   - TenantID is immutable after construction
type Draft struct {
	ID       id.DraftID  `json:"draft_id"`
	TenantID id.TenantID `json:"tenant_id"`
	DeclaredFields
	Payload          json.RawMessage `json:"payload,omitempty"`
	Status           DraftStatus     `json:"status"`
	CreatedBy        string          `json:"created_by"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	SealedEvidenceID *id.EvidenceID  `json:"sealed_evidence_id,omitempty"`
	QuarantineReason string          `json:"quarantine_reason,omitempty"`
}

// NewDraft validates fields and returns a draft in DRAFT status.
func NewDraft(draftID id.DraftID, tenantID id.TenantID, fields DeclaredFields, payload json.RawMessage, createdBy string, now time.Time) (*Draft, error) {
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "draft requires a tenant")
	}
	if errs := fields.Validate(); len(errs) > 0 {
		return nil, ValidationError(errs)
	}
	if fields.DataOrigin == "" {
		fields.DataOrigin = OriginLive
	}
	return &Draft{
		ID:             draftID,
		TenantID:       tenantID,
		DeclaredFields: fields,
		Payload:        normalizePayload(payload),
		Status:         DraftStatusDraft,
		CreatedBy:      createdBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// ValidationError wraps field errors into a 422.
func ValidationError(errs []dErrors.FieldError) error {
	return dErrors.New(dErrors.CodeValidation, "draft fields are invalid").
		WithReason(ReasonValidationFailed).
		WithFields(errs...)
}

// CanMutate returns a conflict unless the draft is still editable.
func (d *Draft) CanMutate() error {
	if d.Status != DraftStatusDraft {
		return dErrors.New(dErrors.CodeConflict, "draft is "+string(d.Status)+" and can no longer change").
			WithReason(ReasonDraftNotEditable)
	}
	return nil
}

// HasPayload reports whether a non-null payload was supplied.
func (d *Draft) HasPayload() bool {
	return len(d.Payload) > 0
}

// PayloadIsObject reports whether the payload is a JSON object.
func (d *Draft) PayloadIsObject() bool {
	return IsJSONObject(d.Payload)
}

// DraftPatch carries a partial update; nil fields are left unchanged.
type DraftPatch struct {
	DatasetType          *DatasetType     `json:"dataset_type,omitempty"`
	SourceSystem         *string          `json:"source_system,omitempty"`
	DeclaredScope        *Scope           `json:"declared_scope,omitempty"`
	ScopeTargetID        *string          `json:"scope_target_id,omitempty"`
	PurposeTags          []string         `json:"purpose_tags,omitempty"`
	RetentionPolicy      *RetentionPolicy `json:"retention_policy,omitempty"`
	ContainsPersonalData *bool            `json:"contains_personal_data,omitempty"`
	GDPRLegalBasis       *LegalBasis      `json:"gdpr_legal_basis,omitempty"`
	JustificationText    *string          `json:"justification_text,omitempty"`
	ExternalReferenceID  *string          `json:"external_reference_id,omitempty"`
	SnapshotTimestampUTC *time.Time       `json:"snapshot_timestamp_utc,omitempty"`
	PortalRequestID      *string          `json:"portal_request_id,omitempty"`
	Payload              json.RawMessage  `json:"payload,omitempty"`
}

// ApplyPatch merges p into the draft after re-validating the merged fields.
// The draft is left untouched when validation fails. The ingestion method and
// data origin are fixed at creation.
func (d *Draft) ApplyPatch(p DraftPatch, now time.Time) error {
	if err := d.CanMutate(); err != nil {
		return err
	}
	merged := d.DeclaredFields
	if p.DatasetType != nil {
		merged.DatasetType = *p.DatasetType
	}
	if p.SourceSystem != nil {
		merged.SourceSystem = *p.SourceSystem
	}
	if p.DeclaredScope != nil {
		merged.DeclaredScope = *p.DeclaredScope
	}
	if p.ScopeTargetID != nil {
		merged.ScopeTargetID = *p.ScopeTargetID
	}
	if p.PurposeTags != nil {
		merged.PurposeTags = p.PurposeTags
	}
	if p.RetentionPolicy != nil {
		merged.RetentionPolicy = *p.RetentionPolicy
	}
	if p.ContainsPersonalData != nil {
		merged.ContainsPersonalData = *p.ContainsPersonalData
	}
	if p.GDPRLegalBasis != nil {
		merged.GDPRLegalBasis = *p.GDPRLegalBasis
	}
	if p.JustificationText != nil {
		merged.JustificationText = *p.JustificationText
	}
	if p.ExternalReferenceID != nil {
		merged.ExternalReferenceID = *p.ExternalReferenceID
	}
	if p.SnapshotTimestampUTC != nil {
		ts := p.SnapshotTimestampUTC.UTC()
		merged.SnapshotTimestampUTC = &ts
	}
	if p.PortalRequestID != nil {
		merged.PortalRequestID = *p.PortalRequestID
	}
	if errs := merged.Validate(); len(errs) > 0 {
		return ValidationError(errs)
	}
	d.DeclaredFields = merged
	if p.Payload != nil {
		d.Payload = normalizePayload(p.Payload)
	}
	d.UpdatedAt = now
	return nil
}

// ApplySeal retires the draft in favour of the evidence it produced.
func (d *Draft) ApplySeal(evidenceID id.EvidenceID, now time.Time) {
	d.Status = DraftStatusSealed
	d.SealedEvidenceID = &evidenceID
	d.UpdatedAt = now
}

// Quarantine freezes a DRAFT so it can neither change nor seal.
func (d *Draft) Quarantine(reason string, now time.Time) error {
	if err := d.CanMutate(); err != nil {
		return err
	}
	d.Status = DraftStatusQuarantined
	d.QuarantineReason = reason
	d.UpdatedAt = now
	return nil
}

// IsJSONObject reports whether raw holds a JSON object.
func IsJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	var obj map[string]json.RawMessage
	return json.Unmarshal(trimmed, &obj) == nil
}

// normalizePayload maps an explicit JSON null to "no payload".
func normalizePayload(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return append(json.RawMessage(nil), trimmed...)
}
