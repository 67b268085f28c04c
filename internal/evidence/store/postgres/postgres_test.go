package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evidentia/internal/evidence/models"
	"evidentia/internal/evidence/store"
	id "evidentia/pkg/domain"
	"evidentia/pkg/platform/sentinel"
	txcontext "evidentia/pkg/platform/tx"
)

var evidenceRowColumns = []string{
	"id", "tenant_id", "draft_id", "ledger_state", "method", "dataset_type", "metadata", "payload",
	"payload_hash_sha256", "metadata_hash_sha256", "envelope_hash_sha256", "attachment_count",
	"sealed_at_utc", "created_by", "external_reference_id", "supersedes_evidence_id",
	"superseded_by_evidence_id", "sequence_number",
}

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func sampleEvidence(t *testing.T, tenantID id.TenantID) *models.Evidence {
	t.Helper()
	e, err := models.NewEvidence(models.SealParams{
		EvidenceID: id.NewEvidenceID(),
		TenantID:   tenantID,
		Metadata: models.DeclaredMetadata{DeclaredFields: models.DeclaredFields{
			Method:              models.MethodAPIPush,
			DatasetType:         models.DatasetSupplierMaster,
			SourceSystem:        "sap",
			DeclaredScope:       models.ScopeOrganization,
			PurposeTags:         []string{"csrd"},
			RetentionPolicy:     models.RetentionStandard7Y,
			ExternalReferenceID: "ext-1",
		}, Attachments: []models.AttachmentDescriptor{}},
		Payload:   []byte(`{"b":2,"a":1}`),
		CreatedBy: "u1",
		Now:       time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	require.NoError(t, err)
	return e
}

func TestCreateDraftDuplicate(t *testing.T) {
	store, mock := newMock(t)
	d, err := models.NewDraft(id.NewDraftID(), id.NewTenantID(), models.DeclaredFields{
		Method:          models.MethodManualEntry,
		DatasetType:     models.DatasetCertificate,
		SourceSystem:    "portal",
		DeclaredScope:   models.ScopeSite,
		ScopeTargetID:   "site-1",
		RetentionPolicy: models.RetentionLegalHold,
	}, nil, "u1", time.Now().UTC())
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO drafts").WillReturnError(&pq.Error{Code: "23505"})
	assert.ErrorIs(t, store.CreateDraft(context.Background(), d), sentinel.ErrAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindDraftNotFound(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery("SELECT (.+) FROM drafts WHERE tenant_id = \\$1 AND id = \\$2").WillReturnError(sql.ErrNoRows)
	_, err := store.FindDraft(context.Background(), id.NewTenantID(), id.NewDraftID())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertEvidenceUniqueExternalReference(t *testing.T) {
	store, mock := newMock(t)
	e := sampleEvidence(t, id.NewTenantID())
	mock.ExpectExec("INSERT INTO evidence").WillReturnError(&pq.Error{Code: "23505"})
	assert.ErrorIs(t, store.InsertEvidence(context.Background(), e), sentinel.ErrAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindEvidenceRoundTripsHashes(t *testing.T) {
	store, mock := newMock(t)
	tenantID := id.NewTenantID()
	e := sampleEvidence(t, tenantID)
	metadata := []byte(`{"ingestion_method":"API_PUSH","dataset_type":"SUPPLIER_MASTER","source_system":"sap",` +
		`"declared_scope":"ORGANIZATION","purpose_tags":["csrd"],"retention_policy":"STANDARD_7Y",` +
		`"contains_personal_data":false,"external_reference_id":"ext-1","attachments":[]}`)

	mock.ExpectQuery("SELECT (.+) FROM evidence WHERE tenant_id = \\$1 AND id = \\$2").
		WithArgs(uuid.UUID(tenantID), uuid.UUID(e.ID)).
		WillReturnRows(sqlmock.NewRows(evidenceRowColumns).AddRow(
			e.ID.String(), tenantID.String(), nil, "CLASSIFIED", "API_PUSH", "SUPPLIER_MASTER", metadata, []byte(e.Payload),
			*e.PayloadHash, e.MetadataHash, e.EnvelopeHash, 0,
			e.SealedAt, "u1", "ext-1", nil,
			nil, int64(1),
		))

	got, err := store.FindEvidence(context.Background(), tenantID, e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateClassified, got.LedgerState)
	assert.EqualValues(t, 1, got.SequenceNumber)
	assert.Nil(t, got.DraftID)

	report, err := got.Verify()
	require.NoError(t, err)
	assert.True(t, report.Intact, "stored metadata must re-hash to the sealed digest: %v", report.Mismatches)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateEvidenceStateCompareAndSwap(t *testing.T) {
	tenantID := id.NewTenantID()

	t.Run("lost race is a conflict", func(t *testing.T) {
		store, mock := newMock(t)
		e := sampleEvidence(t, tenantID)
		e.ApplyTransition(models.StateClassified)

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE evidence").
			WithArgs(uuid.UUID(tenantID), uuid.UUID(e.ID), "CLASSIFIED", int64(1), sqlmock.AnyArg(), int64(0)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT (.+) FROM evidence").
			WillReturnRows(sqlmock.NewRows(evidenceRowColumns).AddRow(
				e.ID.String(), tenantID.String(), nil, "REJECTED", "API_PUSH", "SUPPLIER_MASTER", []byte(`{}`), nil,
				nil, e.MetadataHash, e.EnvelopeHash, 0, e.SealedAt, "u1", nil, nil, nil, int64(1),
			))
		mock.ExpectRollback()

		tx, err := store.db.Begin()
		require.NoError(t, err)
		ctx := txcontext.WithTx(context.Background(), tx)
		assert.ErrorIs(t, store.UpdateEvidenceState(ctx, e, 0), sentinel.ErrConflict)
		require.NoError(t, tx.Rollback())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row is not found", func(t *testing.T) {
		store, mock := newMock(t)
		e := sampleEvidence(t, tenantID)
		mock.ExpectExec("UPDATE evidence").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT (.+) FROM evidence").WillReturnError(sql.ErrNoRows)
		assert.ErrorIs(t, store.UpdateEvidenceState(context.Background(), e, 0), sentinel.ErrNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCommandResults(t *testing.T) {
	store, mock := newMock(t)
	key := models.CommandKey{TenantID: id.NewTenantID(), CommandType: models.CommandClassify, CommandID: "cmd-1"}
	evidenceID := id.NewEvidenceID()
	stored := []byte(`{"command_id":"cmd-1","new_state":"CLASSIFIED"}`)

	mock.ExpectExec("INSERT INTO command_results").WillReturnError(&pq.Error{Code: "23505"})
	err := store.SaveCommand(context.Background(), &models.StoredCommand{Key: key, EvidenceID: evidenceID, Result: stored})
	assert.ErrorIs(t, err, sentinel.ErrAlreadyExists)

	mock.ExpectQuery("SELECT evidence_id, result, created_at FROM command_results").
		WithArgs(uuid.UUID(key.TenantID), "ClassifyEvidenceCommand", "cmd-1").
		WillReturnRows(sqlmock.NewRows([]string{"evidence_id", "result", "created_at"}).
			AddRow(evidenceID.String(), stored, time.Now()))
	got, err := store.FindCommand(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, evidenceID, got.EvidenceID)
	assert.Equal(t, string(stored), string(got.Result))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTxCommitsThroughContextTx(t *testing.T) {
	s, mock := newMock(t)
	tenantID := id.NewTenantID()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE evidence").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.RunInTx(context.Background(), func(ctx context.Context, st store.Store) error {
		_, inTx := txcontext.From(ctx)
		assert.True(t, inTx)
		e := sampleEvidence(t, tenantID)
		return st.UpdateEvidenceState(ctx, e, 1)
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTxRollsBackAndClassifiesSerializationFailure(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := s.RunInTx(context.Background(), func(ctx context.Context, st store.Store) error {
		return &pq.Error{Code: "40001"}
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTxLeavesDomainFailuresUntouched(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := s.RunInTx(context.Background(), func(ctx context.Context, st store.Store) error {
		return sentinel.ErrConflict
	})
	assert.ErrorIs(t, err, sentinel.ErrConflict)
	assert.NotErrorIs(t, err, sentinel.ErrUnavailable)
}
