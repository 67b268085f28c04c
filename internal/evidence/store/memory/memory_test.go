package memory

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"evidentia/internal/evidence/models"
	"evidentia/internal/evidence/store"
	id "evidentia/pkg/domain"
	dErrors "evidentia/pkg/domain-errors"
	audit "evidentia/pkg/platform/audit"
	"evidentia/pkg/platform/sentinel"
	"evidentia/pkg/requestcontext"
)

type MemoryStoreSuite struct {
	suite.Suite
	store    *Store
	ctx      context.Context
	tenantID id.TenantID
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = New(nil)
	s.tenantID = id.NewTenantID()
	s.ctx = requestcontext.WithActor(context.Background(), requestcontext.ActorInfo{UserID: "u1", TenantID: s.tenantID, Role: "ADMIN"})
}

func (s *MemoryStoreSuite) newDraft() *models.Draft {
	d, err := models.NewDraft(id.NewDraftID(), s.tenantID, models.DeclaredFields{
		Method:          models.MethodAPIPush,
		DatasetType:     models.DatasetSupplierMaster,
		SourceSystem:    "sap",
		DeclaredScope:   models.ScopeOrganization,
		RetentionPolicy: models.RetentionStandard7Y,
	}, []byte(`{"a":1}`), "u1", time.Now().UTC())
	s.Require().NoError(err)
	return d
}

func (s *MemoryStoreSuite) newEvidence(ref string) *models.Evidence {
	d := s.newDraft()
	d.ExternalReferenceID = ref
	e, err := models.NewEvidence(models.SealParams{
		EvidenceID: id.NewEvidenceID(),
		TenantID:   s.tenantID,
		DraftID:    &d.ID,
		Metadata:   models.MetadataFromDraft(d, nil),
		Payload:    d.Payload,
		CreatedBy:  "u1",
		Now:        time.Now(),
	})
	s.Require().NoError(err)
	return e
}

func (s *MemoryStoreSuite) TestRollbackDiscardsEveryWrite() {
	d := s.newDraft()
	e := s.newEvidence("")
	boom := errors.New("audit failed")

	err := s.store.RunInTx(s.ctx, func(ctx context.Context, st store.Store) error {
		s.Require().NoError(st.CreateDraft(ctx, d))
		s.Require().NoError(st.InsertEvidence(ctx, e))
		s.Require().NoError(st.AppendAudit(ctx, audit.Event{TenantID: s.tenantID, EntityType: audit.EntityEvidence, EntityID: e.ID.String()}))

		_, err := st.FindDraft(ctx, s.tenantID, d.ID)
		s.Require().NoError(err, "tx sees its own writes")
		return boom
	})
	s.ErrorIs(err, boom)

	_, err = s.store.FindDraft(s.ctx, s.tenantID, d.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.FindEvidence(s.ctx, s.tenantID, e.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
	events, err := s.store.ListAudit(s.ctx, s.tenantID, audit.EntityEvidence, e.ID.String())
	s.Require().NoError(err)
	s.Empty(events)
}

func (s *MemoryStoreSuite) TestCommitAppliesEverything() {
	e := s.newEvidence("ext-1")
	err := s.store.RunInTx(s.ctx, func(ctx context.Context, st store.Store) error {
		if err := st.InsertEvidence(ctx, e); err != nil {
			return err
		}
		if err := st.AppendAudit(ctx, audit.Event{TenantID: s.tenantID, EntityType: audit.EntityEvidence, EntityID: e.ID.String(), Action: audit.ActionEvidenceSealed}); err != nil {
			return err
		}
		return st.EnqueueOutbox(ctx, audit.OutboxEntry{TenantID: s.tenantID, AggregateID: e.ID.String()})
	})
	s.Require().NoError(err)

	got, err := s.store.FindByExternalReference(s.ctx, s.tenantID, models.DatasetSupplierMaster, "ext-1")
	s.Require().NoError(err)
	s.Equal(e.ID, got.ID)
	s.Equal(e.EnvelopeHash, got.EnvelopeHash)
	events, err := s.store.ListAudit(s.ctx, s.tenantID, audit.EntityEvidence, e.ID.String())
	s.Require().NoError(err)
	s.Len(events, 1)
	s.Len(s.store.Audit().Pending(), 1)
}

func (s *MemoryStoreSuite) TestCrossTenantReadsAreNotFound() {
	e := s.newEvidence("")
	s.Require().NoError(s.store.InsertEvidence(s.ctx, e))

	_, err := s.store.FindEvidence(s.ctx, id.NewTenantID(), e.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestExternalReferenceIsUniquePerChainRoot() {
	first := s.newEvidence("ext-2")
	s.Require().NoError(s.store.InsertEvidence(s.ctx, first))

	second := s.newEvidence("ext-2")
	s.ErrorIs(s.store.InsertEvidence(s.ctx, second), sentinel.ErrAlreadyExists)

	successor := s.newEvidence("ext-2")
	successor.SupersedesEvidenceID = &first.ID
	s.Require().NoError(s.store.InsertEvidence(s.ctx, successor))

	root, err := s.store.FindByExternalReference(s.ctx, s.tenantID, models.DatasetSupplierMaster, "ext-2")
	s.Require().NoError(err)
	s.Equal(first.ID, root.ID)
}

func (s *MemoryStoreSuite) TestOneRecordPerDraft() {
	first := s.newEvidence("")
	s.Require().NoError(s.store.InsertEvidence(s.ctx, first))

	again := s.newEvidence("")
	again.DraftID = first.DraftID
	s.ErrorIs(s.store.InsertEvidence(s.ctx, again), sentinel.ErrAlreadyExists)

	// Within one transaction the staged claim is checked too.
	a, b := s.newEvidence(""), s.newEvidence("")
	b.DraftID = a.DraftID
	err := s.store.RunInTx(s.ctx, func(ctx context.Context, st store.Store) error {
		s.Require().NoError(st.InsertEvidence(ctx, a))
		return st.InsertEvidence(ctx, b)
	})
	s.ErrorIs(err, sentinel.ErrAlreadyExists)
	_, err = s.store.FindEvidence(s.ctx, s.tenantID, a.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestOneSuccessorPerRecord() {
	root := s.newEvidence("")
	s.Require().NoError(s.store.InsertEvidence(s.ctx, root))

	successor := s.newEvidence("")
	successor.DraftID = nil
	successor.SupersedesEvidenceID = &root.ID
	s.Require().NoError(s.store.InsertEvidence(s.ctx, successor))

	rival := s.newEvidence("")
	rival.DraftID = nil
	rival.SupersedesEvidenceID = &root.ID
	s.ErrorIs(s.store.InsertEvidence(s.ctx, rival), sentinel.ErrAlreadyExists)

	// The successor key is tenant scoped.
	otherTenant := id.NewTenantID()
	foreign := s.newEvidence("")
	foreign.TenantID = otherTenant
	foreign.DraftID = nil
	foreign.SupersedesEvidenceID = &root.ID
	s.Require().NoError(s.store.InsertEvidence(s.ctx, foreign))
}

func (s *MemoryStoreSuite) TestCommittedRecordAlwaysHasItsAuditEvent() {
	const records = 200
	ids := make(chan id.EvidenceID, records)
	done := make(chan struct{})
	var missing atomic.Int32

	go func() {
		defer close(done)
		for evidenceID := range ids {
			for {
				if _, err := s.store.FindEvidence(s.ctx, s.tenantID, evidenceID); err == nil {
					break
				}
				runtime.Gosched()
			}
			events, err := s.store.ListAudit(s.ctx, s.tenantID, audit.EntityEvidence, evidenceID.String())
			if err != nil || len(events) == 0 {
				missing.Add(1)
			}
		}
	}()

	for range records {
		e := s.newEvidence("")
		ids <- e.ID
		err := s.store.RunInTx(s.ctx, func(ctx context.Context, st store.Store) error {
			if err := st.InsertEvidence(ctx, e); err != nil {
				return err
			}
			return st.AppendAudit(ctx, audit.Event{TenantID: s.tenantID, EntityType: audit.EntityEvidence, EntityID: e.ID.String(), Action: audit.ActionEvidenceSealed})
		})
		s.Require().NoError(err)
	}
	close(ids)
	<-done
	s.Zero(missing.Load())
}

func (s *MemoryStoreSuite) TestUpdateEvidenceStateCompareAndSwap() {
	e := s.newEvidence("")
	s.Require().NoError(s.store.InsertEvidence(s.ctx, e))

	e.ApplyTransition(models.StateClassified)
	s.Require().NoError(s.store.UpdateEvidenceState(s.ctx, e, 0))

	stale := *e
	stale.ApplyTransition(models.StateRejected)
	s.ErrorIs(s.store.UpdateEvidenceState(s.ctx, &stale, 0), sentinel.ErrConflict)

	got, err := s.store.FindEvidence(s.ctx, s.tenantID, e.ID)
	s.Require().NoError(err)
	s.Equal(models.StateClassified, got.LedgerState)
	s.EqualValues(1, got.SequenceNumber)
}

func (s *MemoryStoreSuite) TestCommandKeyIsUnique() {
	key := models.CommandKey{TenantID: s.tenantID, CommandType: models.CommandClassify, CommandID: "c-1"}
	s.Require().NoError(s.store.SaveCommand(s.ctx, &models.StoredCommand{Key: key, Result: []byte(`{"x":1}`)}))
	s.ErrorIs(s.store.SaveCommand(s.ctx, &models.StoredCommand{Key: key}), sentinel.ErrAlreadyExists)

	got, err := s.store.FindCommand(s.ctx, key)
	s.Require().NoError(err)
	s.JSONEq(`{"x":1}`, string(got.Result))

	key.CommandType = models.CommandReject
	_, err = s.store.FindCommand(s.ctx, key)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestCancelledContextAbortsTx() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	err := s.store.RunInTx(ctx, func(context.Context, store.Store) error {
		s.Fail("fn must not run")
		return nil
	})
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
}
