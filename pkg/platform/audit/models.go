package audit

import (
	"time"

	"github.com/google/uuid"

	id "evidentia/pkg/domain"
)

// Action names what happened to an entity.
type Action string

const (
	// Draft lifecycle
	ActionDraftCreated     Action = "draft_created"
	ActionDraftUpdated     Action = "draft_updated"
	ActionAttachmentAdded  Action = "attachment_added"
	ActionDraftQuarantined Action = "draft_quarantined"
	ActionDraftReplayed    Action = "draft_replayed"

	// Evidence lifecycle
	ActionEvidenceSealed     Action = "evidence_sealed"
	ActionStateTransitioned  Action = "state_transitioned"
	ActionEvidenceSuperseded Action = "evidence_superseded"
	ActionSupersedingCreated Action = "superseding_evidence_created"
)

// EntityType distinguishes pre-seal (draft) from post-seal (evidence) events.
type EntityType string

const (
	EntityDraft    EntityType = "draft"
	EntityEvidence EntityType = "evidence"
)

// notifications maps actions to the downstream notification type emitted
// through the outbox. Actions absent from the map stay internal to the log.
var notifications = map[Action]string{
	ActionEvidenceSealed:     "evidence.sealed",
	ActionStateTransitioned:  "evidence.state_transitioned",
	ActionEvidenceSuperseded: "evidence.superseded",
	ActionSupersedingCreated: "evidence.sealed",
}

// Notification returns the notification type for the action, if any.
func (a Action) Notification() (string, bool) {
	n, ok := notifications[a]
	return n, ok
}

// Event is one append-only audit record. Every state mutation in the kernel
// produces exactly one Event per affected entity, written in the same unit of
// work as the mutation it documents.
type Event struct {
	ID            id.EventID     `json:"audit_event_id"`
	TenantID      id.TenantID    `json:"tenant_id"`
	EntityType    EntityType     `json:"entity_type"`
	EntityID      string         `json:"entity_id"`
	ActorID       string         `json:"actor_id"`
	ActorRole     string         `json:"actor_role"`
	Action        Action         `json:"action"`
	PreviousState string         `json:"previous_state,omitempty"`
	NewState      string         `json:"new_state,omitempty"`
	ReasonCode    string         `json:"reason_code,omitempty"`
	ReasonText    string         `json:"reason_text,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Timestamp     time.Time      `json:"timestamp_utc"`
	Context       map[string]any `json:"context,omitempty"`
}

// OutboxEntry is a notification waiting to be relayed to the message bus.
// Entries are written in the same transaction as the audit event that caused them.
type OutboxEntry struct {
	ID            uuid.UUID
	TenantID      id.TenantID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
	PublishedAt   *time.Time
}
