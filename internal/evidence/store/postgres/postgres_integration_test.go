//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"evidentia/internal/evidence/models"
	"evidentia/internal/evidence/store"
	"evidentia/internal/evidence/store/postgres"
	id "evidentia/pkg/domain"
	audit "evidentia/pkg/platform/audit"
	"evidentia/pkg/platform/sentinel"
	"evidentia/pkg/testutil/containers"
)

type EvidenceStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
}

func TestEvidenceStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(EvidenceStoreSuite))
}

func (s *EvidenceStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = postgres.New(s.postgres.DB)
}

func (s *EvidenceStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(),
		"command_results", "evidence", "attachments", "drafts", "audit_events", "outbox"))
}

func (s *EvidenceStoreSuite) newEvidence(tenantID id.TenantID, ref string) *models.Evidence {
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
			ExternalReferenceID: ref,
		}, Attachments: []models.AttachmentDescriptor{}},
		Payload:   []byte(`{"supplier":"acme","tier":1}`),
		CreatedBy: "u1",
		Now:       time.Now().UTC().Truncate(time.Microsecond),
	})
	s.Require().NoError(err)
	return e
}

// TestConcurrentChainRootInsert verifies the partial unique index admits a
// single root per external reference under contention.
func (s *EvidenceStoreSuite) TestConcurrentChainRootInsert() {
	ctx := context.Background()
	tenantID := id.NewTenantID()
	const goroutines = 20

	var wg sync.WaitGroup
	var ok, dup atomic.Int32
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.InsertEvidence(ctx, s.newEvidence(tenantID, "ext-race"))
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, sentinel.ErrAlreadyExists):
				dup.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), ok.Load())
	s.Equal(int32(goroutines-1), dup.Load())
}

func (s *EvidenceStoreSuite) TestRoundTripKeepsHashesVerifiable() {
	ctx := context.Background()
	e := s.newEvidence(id.NewTenantID(), "ext-rt")
	s.Require().NoError(s.store.InsertEvidence(ctx, e))

	found, err := s.store.FindEvidence(ctx, e.TenantID, e.ID)
	s.Require().NoError(err)
	s.Equal(e.EnvelopeHash, found.EnvelopeHash)
	report, err := found.Verify()
	s.Require().NoError(err)
	s.True(report.Intact)

	root, err := s.store.FindByExternalReference(ctx, e.TenantID, models.DatasetSupplierMaster, "ext-rt")
	s.Require().NoError(err)
	s.Equal(e.ID, root.ID)

	_, err = s.store.FindEvidence(ctx, id.NewTenantID(), e.ID)
	s.ErrorIs(err, sentinel.ErrNotFound, "records are tenant scoped")
}

func (s *EvidenceStoreSuite) TestStateCompareAndSwap() {
	ctx := context.Background()
	e := s.newEvidence(id.NewTenantID(), "ext-cas")
	s.Require().NoError(s.store.InsertEvidence(ctx, e))

	e.ApplyTransition(models.StateClassified)
	s.Require().NoError(s.store.UpdateEvidenceState(ctx, e, 0))

	stale := *e
	stale.ApplyTransition(models.StateRejected)
	s.ErrorIs(s.store.UpdateEvidenceState(ctx, &stale, 0), sentinel.ErrConflict)

	found, err := s.store.FindEvidence(ctx, e.TenantID, e.ID)
	s.Require().NoError(err)
	s.Equal(models.StateClassified, found.LedgerState)
	s.Equal(int64(1), found.SequenceNumber)
}

func (s *EvidenceStoreSuite) TestRunInTxRollsBackEverything() {
	ctx := context.Background()
	e := s.newEvidence(id.NewTenantID(), "ext-tx")
	boom := errors.New("boom")

	err := s.store.RunInTx(ctx, func(ctx context.Context, st store.Store) error {
		if err := st.InsertEvidence(ctx, e); err != nil {
			return err
		}
		if err := st.AppendAudit(ctx, audit.Event{
			ID:         id.NewEventID(),
			TenantID:   e.TenantID,
			EntityType: audit.EntityEvidence,
			EntityID:   e.ID.String(),
			ActorID:    "u1",
			ActorRole:  "ANALYST",
			Action:     audit.ActionEvidenceSealed,
			NewState:   string(models.StateSealed),
			Timestamp:  time.Now().UTC(),
		}); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	_, err = s.store.FindEvidence(ctx, e.TenantID, e.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
	events, err := s.store.ListAudit(ctx, e.TenantID, audit.EntityEvidence, e.ID.String())
	s.Require().NoError(err)
	s.Empty(events)
}

func (s *EvidenceStoreSuite) TestCommandKeyIsUnique() {
	ctx := context.Background()
	e := s.newEvidence(id.NewTenantID(), "ext-cmd")
	s.Require().NoError(s.store.InsertEvidence(ctx, e))

	cmd := &models.StoredCommand{
		Key:        models.CommandKey{TenantID: e.TenantID, CommandType: models.CommandClassify, CommandID: "c-1"},
		EvidenceID: e.ID,
		Result:     []byte(`{"ledger_state":"CLASSIFIED"}`),
		CreatedAt:  time.Now().UTC(),
	}
	s.Require().NoError(s.store.SaveCommand(ctx, cmd))
	s.ErrorIs(s.store.SaveCommand(ctx, cmd), sentinel.ErrAlreadyExists)

	found, err := s.store.FindCommand(ctx, cmd.Key)
	s.Require().NoError(err)
	s.JSONEq(string(cmd.Result), string(found.Result))
}

func (s *EvidenceStoreSuite) TestAuditRowsAreAppendOnly() {
	ctx := context.Background()
	tenantID := id.NewTenantID()
	s.Require().NoError(s.store.AppendAudit(ctx, audit.Event{
		ID:         id.NewEventID(),
		TenantID:   tenantID,
		EntityType: audit.EntityDraft,
		EntityID:   "d-1",
		ActorID:    "u1",
		ActorRole:  "CONTRIBUTOR",
		Action:     audit.ActionDraftCreated,
		Timestamp:  time.Now().UTC(),
	}))

	_, err := s.postgres.DB.ExecContext(ctx, `UPDATE audit_events SET actor_id = 'x' WHERE tenant_id = $1`, tenantID.String())
	s.Error(err)
	_, err = s.postgres.DB.ExecContext(ctx, `DELETE FROM audit_events WHERE tenant_id = $1`, tenantID.String())
	s.Error(err)
}
