// Package domain holds typed identifiers shared across modules.
//
// Every identifier is a UUID under a distinct named type so the compiler rejects
// passing an EvidenceID where a DraftID is expected. Construct them with the
// Parse functions at trust boundaries; direct conversion bypasses validation.
package domain

import (
	"github.com/google/uuid"

	dErrors "evidentia/pkg/domain-errors"
)

func parseUUID(kind, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be nil")
	}
	return u, nil
}

// TenantID identifies a tenant.
type TenantID uuid.UUID

// NewTenantID returns a fresh random TenantID.
func NewTenantID() TenantID { return TenantID(uuid.New()) }

// ParseTenantID validates external input as a TenantID.
func ParseTenantID(s string) (TenantID, error) {
	u, err := parseUUID("tenant_id", s)
	if err != nil {
		return TenantID{}, err
	}
	return TenantID(u), nil
}

func (id TenantID) String() string { return uuid.UUID(id).String() }

func (id TenantID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id TenantID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *TenantID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

// DraftID identifies a draft.
type DraftID uuid.UUID

// NewDraftID returns a fresh random DraftID.
func NewDraftID() DraftID { return DraftID(uuid.New()) }

// ParseDraftID validates external input as a DraftID.
func ParseDraftID(s string) (DraftID, error) {
	u, err := parseUUID("draft_id", s)
	if err != nil {
		return DraftID{}, err
	}
	return DraftID(u), nil
}

func (id DraftID) String() string { return uuid.UUID(id).String() }

func (id DraftID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id DraftID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *DraftID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

// EvidenceID identifies a sealed evidence record.
type EvidenceID uuid.UUID

// NewEvidenceID returns a fresh random EvidenceID.
func NewEvidenceID() EvidenceID { return EvidenceID(uuid.New()) }

// ParseEvidenceID validates external input as a EvidenceID.
func ParseEvidenceID(s string) (EvidenceID, error) {
	u, err := parseUUID("evidence_id", s)
	if err != nil {
		return EvidenceID{}, err
	}
	return EvidenceID(u), nil
}

func (id EvidenceID) String() string { return uuid.UUID(id).String() }

func (id EvidenceID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id EvidenceID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *EvidenceID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

// AttachmentID identifies an attachment.
type AttachmentID uuid.UUID

// NewAttachmentID returns a fresh random AttachmentID.
func NewAttachmentID() AttachmentID { return AttachmentID(uuid.New()) }

// ParseAttachmentID validates external input as a AttachmentID.
func ParseAttachmentID(s string) (AttachmentID, error) {
	u, err := parseUUID("attachment_id", s)
	if err != nil {
		return AttachmentID{}, err
	}
	return AttachmentID(u), nil
}

func (id AttachmentID) String() string { return uuid.UUID(id).String() }

func (id AttachmentID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id AttachmentID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *AttachmentID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

// EventID identifies an audit event.
type EventID uuid.UUID

// NewEventID returns a fresh random EventID.
func NewEventID() EventID { return EventID(uuid.New()) }

// ParseEventID validates external input as a EventID.
func ParseEventID(s string) (EventID, error) {
	u, err := parseUUID("audit_event_id", s)
	if err != nil {
		return EventID{}, err
	}
	return EventID(u), nil
}

func (id EventID) String() string { return uuid.UUID(id).String() }

func (id EventID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id EventID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *EventID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
