// Package store defines the persistence port of the evidence kernel. Every
// query is scoped by tenant: a record in another tenant is indistinguishable
// from a missing one and yields sentinel.ErrNotFound.
package store

import (
	"context"

	"evidentia/internal/evidence/models"
	id "evidentia/pkg/domain"
	audit "evidentia/pkg/platform/audit"
)

// Store is the full set of kernel reads and writes. Inside RunInTx the
// supplied Store writes through the transaction; outside it reads committed
// state.
type Store interface {
	audit.Appender

	CreateDraft(ctx context.Context, d *models.Draft) error
	FindDraft(ctx context.Context, tenantID id.TenantID, draftID id.DraftID) (*models.Draft, error)
	// UpdateDraft overwrites a draft. Drafts are only updated under the entity lock.
	UpdateDraft(ctx context.Context, d *models.Draft) error

	AddAttachment(ctx context.Context, a *models.Attachment) error
	ListAttachments(ctx context.Context, tenantID id.TenantID, draftID id.DraftID) ([]models.Attachment, error)

	// InsertEvidence fails with sentinel.ErrAlreadyExists when a chain root
	// already holds the same (tenant, dataset_type, external_reference_id),
	// when the draft already produced a record, or when the superseded record
	// already has a successor.
	InsertEvidence(ctx context.Context, e *models.Evidence) error
	FindEvidence(ctx context.Context, tenantID id.TenantID, evidenceID id.EvidenceID) (*models.Evidence, error)
	// UpdateEvidenceState persists ledger_state, sequence_number and
	// superseded_by. It fails with sentinel.ErrConflict unless the stored
	// sequence number still equals expectedSeq.
	UpdateEvidenceState(ctx context.Context, e *models.Evidence, expectedSeq int64) error
	// FindByExternalReference returns the chain root sealed under ref.
	FindByExternalReference(ctx context.Context, tenantID id.TenantID, dataset models.DatasetType, ref string) (*models.Evidence, error)

	FindCommand(ctx context.Context, key models.CommandKey) (*models.StoredCommand, error)
	// SaveCommand fails with sentinel.ErrAlreadyExists when the key is taken.
	SaveCommand(ctx context.Context, c *models.StoredCommand) error

	ListAudit(ctx context.Context, tenantID id.TenantID, entityType audit.EntityType, entityID string) ([]audit.Event, error)
}

// TxRunner runs fn as one atomic unit. Either every write made through the
// Store passed to fn commits, or none does.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error
}
