package precondition

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evidentia/internal/evidence/models"
	id "evidentia/pkg/domain"
	dErrors "evidentia/pkg/domain-errors"
)

type stubPortals struct {
	known map[string]bool
	err   error
}

func (s stubPortals) IsKnownPortalRequest(_ context.Context, _ id.TenantID, reqID string) (bool, error) {
	return s.known[reqID], s.err
}

func draft(method models.Method, mutate func(*models.Draft)) *models.Draft {
	d := &models.Draft{
		ID:       id.NewDraftID(),
		TenantID: id.NewTenantID(),
		DeclaredFields: models.DeclaredFields{
			Method:          method,
			DatasetType:     models.DatasetSupplierMaster,
			SourceSystem:    "erp",
			DeclaredScope:   models.ScopeOrganization,
			RetentionPolicy: models.RetentionStandard7Y,
		},
		Status: models.DraftStatusDraft,
	}
	if mutate != nil {
		mutate(d)
	}
	return d
}

func hashed() models.Attachment {
	return models.Attachment{Filename: "f.csv", SHA256: "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"}
}

func reasonOf(t *testing.T, err error) string {
	t.Helper()
	de, ok := dErrors.As(err)
	require.True(t, ok, "expected domain error, got %v", err)
	assert.Equal(t, dErrors.CodeValidation, de.Code)
	require.NotEmpty(t, de.Fields)
	assert.NotEmpty(t, de.Fields[0].Hint)
	return de.Reason
}

func TestPreconditionTable(t *testing.T) {
	ts := time.Now().UTC()
	v := New(stubPortals{known: map[string]bool{"pr-1": true}})

	tests := []struct {
		name        string
		subject     Subject
		wantReason  string
		wantSuccess bool
	}{
		{name: "file upload without attachments", subject: Subject{Draft: draft(models.MethodFileUpload, nil)}, wantReason: models.ReasonFileRequired},
		{name: "file upload with unhashed attachment", subject: Subject{Draft: draft(models.MethodFileUpload, nil), Attachments: []models.Attachment{{Filename: "x"}}}, wantReason: models.ReasonAttachmentHashMissing},
		{name: "file upload ready", subject: Subject{Draft: draft(models.MethodFileUpload, nil), Attachments: []models.Attachment{hashed()}}, wantSuccess: true},
		{name: "api push without reference", subject: Subject{Draft: draft(models.MethodAPIPush, nil)}, wantReason: models.ReasonExternalReferenceRequired},
		{name: "api push ready", subject: Subject{Draft: draft(models.MethodAPIPush, func(d *models.Draft) { d.ExternalReferenceID = "X1" })}, wantSuccess: true},
		{name: "erp export without snapshot", subject: Subject{Draft: draft(models.MethodERPExport, nil), Attachments: []models.Attachment{hashed()}}, wantReason: models.ReasonSnapshotTimestampRequired},
		{name: "erp export without file", subject: Subject{Draft: draft(models.MethodERPExport, func(d *models.Draft) { d.SnapshotTimestampUTC = &ts })}, wantReason: models.ReasonFileRequired},
		{name: "manual entry without attestation", subject: Subject{Draft: draft(models.MethodManualEntry, func(d *models.Draft) { d.Payload = json.RawMessage(`{"a":1}`) })}, wantReason: models.ReasonAttestationRequired},
		{name: "manual entry with raw text payload", subject: Subject{Draft: draft(models.MethodManualEntry, func(d *models.Draft) {
			d.JustificationText = "checked against the signed contract"
			d.Payload = json.RawMessage(`"free text"`)
		})}, wantReason: models.ReasonStructuredPayloadRequired},
		{name: "manual entry ready", subject: Subject{Draft: draft(models.MethodManualEntry, func(d *models.Draft) {
			d.JustificationText = "checked against the signed contract"
			d.Payload = json.RawMessage(`{"a":1}`)
		})}, wantSuccess: true},
		{name: "portal without request", subject: Subject{Draft: draft(models.MethodSupplierPortal, nil)}, wantReason: models.ReasonPortalRequestRequired},
		{name: "portal with unknown request", subject: Subject{Draft: draft(models.MethodSupplierPortal, func(d *models.Draft) { d.PortalRequestID = "pr-9" })}, wantReason: models.ReasonPortalIdentityUnknown},
		{name: "portal ready", subject: Subject{Draft: draft(models.MethodSupplierPortal, func(d *models.Draft) { d.PortalRequestID = "pr-1" })}, wantSuccess: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Check(context.Background(), tt.subject)
			if tt.wantSuccess {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.wantReason, reasonOf(t, err))
		})
	}
}

func TestEvaluateReportsEveryFailure(t *testing.T) {
	v := New(nil)
	errs, err := v.Evaluate(context.Background(), Subject{Draft: draft(models.MethodManualEntry, nil)})
	require.NoError(t, err)
	codes := make([]string, 0, len(errs))
	for _, fe := range errs {
		codes = append(codes, fe.Code)
	}
	assert.Equal(t, []string{models.ReasonAttestationRequired, models.ReasonStructuredPayloadRequired}, codes)
}

func TestDirectoryFailureIsNotAValidationError(t *testing.T) {
	boom := errors.New("store down")
	v := New(stubPortals{err: boom})
	err := v.Check(context.Background(), Subject{Draft: draft(models.MethodSupplierPortal, func(d *models.Draft) { d.PortalRequestID = "pr-1" })})
	assert.ErrorIs(t, err, boom)
	assert.False(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestAddingAMethodIsAddingARow(t *testing.T) {
	table := DefaultTable()
	table[models.MethodAPIPush] = append(table[models.MethodAPIPush], atLeastOneAttachment)
	v := New(nil, WithTable(table))
	err := v.Check(context.Background(), Subject{Draft: draft(models.MethodAPIPush, func(d *models.Draft) { d.ExternalReferenceID = "X" })})
	assert.Equal(t, models.ReasonFileRequired, reasonOf(t, err))
}
