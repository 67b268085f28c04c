// Package postgres persists the evidence kernel in PostgreSQL. Every method
// joins the transaction carried in the context when there is one, so the
// evidence row, its audit event and its outbox notification share one commit.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"evidentia/internal/evidence/models"
	id "evidentia/pkg/domain"
	audit "evidentia/pkg/platform/audit"
	auditpostgres "evidentia/pkg/platform/audit/store/postgres"
	"evidentia/pkg/platform/sentinel"
	txcontext "evidentia/pkg/platform/tx"
)

const uniqueViolation = "23505"

// Store implements store.Store on PostgreSQL.
type Store struct {
	db    *sql.DB
	audit *auditpostgres.Store
}

// New constructs a PostgreSQL-backed evidence store.
func New(db *sql.DB) *Store {
	return &Store{db: db, audit: auditpostgres.New(db)}
}

func (s *Store) execer(ctx context.Context) txcontext.Executor {
	return txcontext.Or(ctx, s.db)
}

func (s *Store) AppendAudit(ctx context.Context, event audit.Event) error {
	return s.audit.AppendAudit(ctx, event)
}

func (s *Store) EnqueueOutbox(ctx context.Context, entry audit.OutboxEntry) error {
	return s.audit.EnqueueOutbox(ctx, entry)
}

func (s *Store) ListAudit(ctx context.Context, tenantID id.TenantID, entityType audit.EntityType, entityID string) ([]audit.Event, error) {
	return s.audit.ListByEntity(ctx, tenantID, entityType, entityID)
}

const draftColumns = `id, tenant_id, ingestion_method, dataset_type, source_system, declared_scope,
	scope_target_id, purpose_tags, retention_policy, contains_personal_data, gdpr_legal_basis,
	justification_text, external_reference_id, snapshot_timestamp_utc, portal_request_id,
	data_origin, payload, status, created_by, created_at, updated_at, sealed_evidence_id,
	quarantine_reason`

func (s *Store) CreateDraft(ctx context.Context, d *models.Draft) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO drafts (`+draftColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
	`, draftArgs(d)...)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyExists
		}
		return fmt.Errorf("insert draft: %w", err)
	}
	return nil
}

func (s *Store) UpdateDraft(ctx context.Context, d *models.Draft) error {
	args := draftArgs(d)
	// Identity, method, origin and creation columns are fixed at creation.
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE drafts SET
			dataset_type = $3, source_system = $4, declared_scope = $5, scope_target_id = $6,
			purpose_tags = $7, retention_policy = $8, contains_personal_data = $9,
			gdpr_legal_basis = $10, justification_text = $11, external_reference_id = $12,
			snapshot_timestamp_utc = $13, portal_request_id = $14, payload = $15, status = $16,
			updated_at = $17, sealed_evidence_id = $18, quarantine_reason = $19
		WHERE id = $1 AND tenant_id = $2
	`, args[0], args[1], args[3], args[4], args[5], args[6], args[7], args[8], args[9], args[10],
		args[11], args[12], args[13], args[14], args[16], args[17], args[20], args[21], args[22])
	if err != nil {
		return fmt.Errorf("update draft: %w", err)
	}
	return requireOneRow(res)
}

func (s *Store) FindDraft(ctx context.Context, tenantID id.TenantID, draftID id.DraftID) (*models.Draft, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT `+draftColumns+`
		FROM drafts WHERE tenant_id = $1 AND id = $2
	`, uuid.UUID(tenantID), uuid.UUID(draftID))
	d, err := scanDraft(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find draft: %w", err)
	}
	return d, nil
}

func draftArgs(d *models.Draft) []any {
	var sealed *uuid.UUID
	if d.SealedEvidenceID != nil {
		u := uuid.UUID(*d.SealedEvidenceID)
		sealed = &u
	}
	var snapshot *time.Time
	if d.SnapshotTimestampUTC != nil {
		ts := d.SnapshotTimestampUTC.UTC()
		snapshot = &ts
	}
	return []any{
		uuid.UUID(d.ID),
		uuid.UUID(d.TenantID),
		string(d.Method),
		string(d.DatasetType),
		d.SourceSystem,
		string(d.DeclaredScope),
		nullString(d.ScopeTargetID),
		pq.Array(nonNil(d.PurposeTags)),
		string(d.RetentionPolicy),
		d.ContainsPersonalData,
		nullString(string(d.GDPRLegalBasis)),
		nullString(d.JustificationText),
		nullString(d.ExternalReferenceID),
		snapshot,
		nullString(d.PortalRequestID),
		string(d.DataOrigin),
		nullBytes(d.Payload),
		string(d.Status),
		d.CreatedBy,
		d.CreatedAt,
		d.UpdatedAt,
		sealed,
		nullString(d.QuarantineReason),
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDraft(row rowScanner) (*models.Draft, error) {
	var (
		d                                         models.Draft
		draftID, tenantID                         uuid.UUID
		method, dataset, scope, retention         string
		origin, status                            string
		scopeTarget, legal, justification, extRef sql.NullString
		portal, quarantine                        sql.NullString
		snapshot                                  sql.NullTime
		sealed                                    uuid.NullUUID
		payload                                   []byte
		tags                                      pq.StringArray
	)
	if err := row.Scan(&draftID, &tenantID, &method, &dataset, &d.SourceSystem, &scope,
		&scopeTarget, &tags, &retention, &d.ContainsPersonalData, &legal,
		&justification, &extRef, &snapshot, &portal,
		&origin, &payload, &status, &d.CreatedBy, &d.CreatedAt, &d.UpdatedAt, &sealed,
		&quarantine); err != nil {
		return nil, err
	}
	d.ID = id.DraftID(draftID)
	d.TenantID = id.TenantID(tenantID)
	d.Method = models.Method(method)
	d.DatasetType = models.DatasetType(dataset)
	d.DeclaredScope = models.Scope(scope)
	d.ScopeTargetID = scopeTarget.String
	d.PurposeTags = []string(tags)
	d.RetentionPolicy = models.RetentionPolicy(retention)
	d.GDPRLegalBasis = models.LegalBasis(legal.String)
	d.JustificationText = justification.String
	d.ExternalReferenceID = extRef.String
	if snapshot.Valid {
		ts := snapshot.Time.UTC()
		d.SnapshotTimestampUTC = &ts
	}
	d.PortalRequestID = portal.String
	d.DataOrigin = models.DataOrigin(origin)
	if len(payload) > 0 {
		d.Payload = payload
	}
	d.Status = models.DraftStatus(status)
	d.CreatedAt = d.CreatedAt.UTC()
	d.UpdatedAt = d.UpdatedAt.UTC()
	if sealed.Valid {
		eid := id.EvidenceID(sealed.UUID)
		d.SealedEvidenceID = &eid
	}
	d.QuarantineReason = quarantine.String
	return &d, nil
}

func (s *Store) AddAttachment(ctx context.Context, a *models.Attachment) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO attachments (id, tenant_id, draft_id, filename, content_type, size_bytes, sha256, storage_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, uuid.UUID(a.ID), uuid.UUID(a.TenantID), uuid.UUID(a.DraftID), a.Filename, a.ContentType,
		a.SizeBytes, a.SHA256, a.StorageRef, a.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyExists
		}
		return fmt.Errorf("insert attachment: %w", err)
	}
	return nil
}

func (s *Store) ListAttachments(ctx context.Context, tenantID id.TenantID, draftID id.DraftID) ([]models.Attachment, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, filename, content_type, size_bytes, sha256, storage_ref, created_at
		FROM attachments
		WHERE tenant_id = $1 AND draft_id = $2
		ORDER BY created_at, id
	`, uuid.UUID(tenantID), uuid.UUID(draftID))
	if err != nil {
		return nil, fmt.Errorf("query attachments: %w", err)
	}
	defer rows.Close()

	out := []models.Attachment{}
	for rows.Next() {
		var (
			a     models.Attachment
			rawID uuid.UUID
		)
		if err := rows.Scan(&rawID, &a.Filename, &a.ContentType, &a.SizeBytes, &a.SHA256, &a.StorageRef, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		a.ID = id.AttachmentID(rawID)
		a.TenantID = tenantID
		a.DraftID = draftID
		a.CreatedAt = a.CreatedAt.UTC()
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attachments: %w", err)
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
