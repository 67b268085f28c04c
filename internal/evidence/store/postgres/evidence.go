package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"evidentia/internal/evidence/models"
	id "evidentia/pkg/domain"
	"evidentia/pkg/platform/sentinel"
)

const evidenceColumns = `id, tenant_id, draft_id, ledger_state, method, dataset_type, metadata, payload,
	payload_hash_sha256, metadata_hash_sha256, envelope_hash_sha256, attachment_count,
	sealed_at_utc, created_by, external_reference_id, supersedes_evidence_id,
	superseded_by_evidence_id, sequence_number`

// InsertEvidence relies on the partial unique index over
// (tenant_id, dataset_type, external_reference_id) for chain roots.
func (s *Store) InsertEvidence(ctx context.Context, e *models.Evidence) error {
	metadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("marshal evidence metadata: %w", err)
	}
	_, err = s.execer(ctx).ExecContext(ctx, `
		INSERT INTO evidence (`+evidenceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`,
		uuid.UUID(e.ID),
		uuid.UUID(e.TenantID),
		draftUUID(e.DraftID),
		string(e.LedgerState),
		string(e.Method),
		string(e.Metadata.DatasetType),
		metadata,
		nullBytes(e.Payload),
		e.PayloadHash,
		e.MetadataHash,
		e.EnvelopeHash,
		e.AttachmentCount,
		e.SealedAt,
		e.CreatedBy,
		nullString(e.ExternalReferenceID),
		evidenceUUID(e.SupersedesEvidenceID),
		evidenceUUID(e.SupersededByEvidenceID),
		e.SequenceNumber,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyExists
		}
		return fmt.Errorf("insert evidence: %w", err)
	}
	return nil
}

func (s *Store) FindEvidence(ctx context.Context, tenantID id.TenantID, evidenceID id.EvidenceID) (*models.Evidence, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT `+evidenceColumns+`
		FROM evidence WHERE tenant_id = $1 AND id = $2
	`, uuid.UUID(tenantID), uuid.UUID(evidenceID))
	return findEvidence(row)
}

func (s *Store) FindByExternalReference(ctx context.Context, tenantID id.TenantID, dataset models.DatasetType, ref string) (*models.Evidence, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT `+evidenceColumns+`
		FROM evidence
		WHERE tenant_id = $1 AND dataset_type = $2 AND external_reference_id = $3
			AND supersedes_evidence_id IS NULL
	`, uuid.UUID(tenantID), string(dataset), ref)
	return findEvidence(row)
}

// UpdateEvidenceState is a compare-and-swap on sequence_number. Zero affected
// rows means either a concurrent writer won or the row is gone; the second
// query tells them apart.
func (s *Store) UpdateEvidenceState(ctx context.Context, e *models.Evidence, expectedSeq int64) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE evidence
		SET ledger_state = $3, sequence_number = $4, superseded_by_evidence_id = $5
		WHERE tenant_id = $1 AND id = $2 AND sequence_number = $6
	`, uuid.UUID(e.TenantID), uuid.UUID(e.ID), string(e.LedgerState), e.SequenceNumber,
		evidenceUUID(e.SupersededByEvidenceID), expectedSeq)
	if err != nil {
		return fmt.Errorf("update evidence state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}
	if _, err := s.FindEvidence(ctx, e.TenantID, e.ID); err != nil {
		return err
	}
	return sentinel.ErrConflict
}

func findEvidence(row rowScanner) (*models.Evidence, error) {
	e, err := scanEvidence(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find evidence: %w", err)
	}
	return e, nil
}

func scanEvidence(row rowScanner) (*models.Evidence, error) {
	var (
		e                      models.Evidence
		evidenceID, tenantID   uuid.UUID
		draftID                uuid.NullUUID
		state, method, dataset string
		metadata, payload      []byte
		payloadHash, extRef    sql.NullString
		supersedes, superseded uuid.NullUUID
	)
	if err := row.Scan(&evidenceID, &tenantID, &draftID, &state, &method, &dataset, &metadata, &payload,
		&payloadHash, &e.MetadataHash, &e.EnvelopeHash, &e.AttachmentCount,
		&e.SealedAt, &e.CreatedBy, &extRef, &supersedes,
		&superseded, &e.SequenceNumber); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal evidence metadata: %w", err)
	}
	e.ID = id.EvidenceID(evidenceID)
	e.TenantID = id.TenantID(tenantID)
	if draftID.Valid {
		d := id.DraftID(draftID.UUID)
		e.DraftID = &d
	}
	e.LedgerState = models.LedgerState(state)
	e.Method = models.Method(method)
	if len(payload) > 0 {
		e.Payload = payload
	}
	if payloadHash.Valid {
		h := payloadHash.String
		e.PayloadHash = &h
	}
	e.SealedAt = e.SealedAt.UTC()
	e.ExternalReferenceID = extRef.String
	if supersedes.Valid {
		p := id.EvidenceID(supersedes.UUID)
		e.SupersedesEvidenceID = &p
	}
	if superseded.Valid {
		n := id.EvidenceID(superseded.UUID)
		e.SupersededByEvidenceID = &n
	}
	return &e, nil
}

func draftUUID(d *id.DraftID) uuid.NullUUID {
	if d == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*d), Valid: true}
}

func evidenceUUID(e *id.EvidenceID) uuid.NullUUID {
	if e == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*e), Valid: true}
}
