// Package memory is the in-process evidence store. Transactions are staged in
// a private overlay and applied all-or-nothing on success, so a failing audit
// append leaves no partial state behind.
package memory

import (
	"bytes"
	"context"
	"hash/fnv"
	"slices"
	"sync"
	"time"

	"evidentia/internal/evidence/models"
	"evidentia/internal/evidence/store"
	id "evidentia/pkg/domain"
	dErrors "evidentia/pkg/domain-errors"
	audit "evidentia/pkg/platform/audit"
	auditmemory "evidentia/pkg/platform/audit/store/memory"
	"evidentia/pkg/platform/sentinel"
	"evidentia/pkg/requestcontext"
)

// numTxShards spreads transactions across tenants. Every key is tenant
// scoped, so transactions in different tenants never touch the same rows.
const numTxShards = 128

const defaultTxTimeout = 5 * time.Second

type draftKey struct {
	tenantID id.TenantID
	draftID  id.DraftID
}

type evidenceKey struct {
	tenantID   id.TenantID
	evidenceID id.EvidenceID
}

type extRefKey struct {
	tenantID id.TenantID
	dataset  models.DatasetType
	ref      string
}

// Store keeps drafts, attachments, evidence and command results in memory.
type Store struct {
	mu          sync.RWMutex
	drafts      map[draftKey]*models.Draft
	attachments map[draftKey][]models.Attachment
	evidence    map[evidenceKey]*models.Evidence
	extRefs     map[extRefKey]id.EvidenceID
	// byDraft and successors mirror the one-record-per-draft and
	// one-successor-per-record unique indexes of the SQL schema.
	byDraft     map[draftKey]id.EvidenceID
	successors  map[evidenceKey]id.EvidenceID
	commands    map[models.CommandKey]*models.StoredCommand
	audit       *auditmemory.InMemoryStore

	shards  [numTxShards]sync.Mutex
	timeout time.Duration
}

// New returns an empty store backed by auditStore for audit and outbox rows.
func New(auditStore *auditmemory.InMemoryStore) *Store {
	if auditStore == nil {
		auditStore = auditmemory.NewInMemoryStore()
	}
	return &Store{
		drafts:      make(map[draftKey]*models.Draft),
		attachments: make(map[draftKey][]models.Attachment),
		evidence:    make(map[evidenceKey]*models.Evidence),
		extRefs:     make(map[extRefKey]id.EvidenceID),
		byDraft:     make(map[draftKey]id.EvidenceID),
		successors:  make(map[evidenceKey]id.EvidenceID),
		commands:    make(map[models.CommandKey]*models.StoredCommand),
		audit:       auditStore,
		timeout:     defaultTxTimeout,
	}
}

// Audit exposes the audit store, which also serves as the outbox source.
func (s *Store) Audit() *auditmemory.InMemoryStore {
	return s.audit
}

// RunInTx stages every write made through the tx store and applies them only
// if fn returns nil.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, st store.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	shard := &s.shards[selectShard(requestcontext.TenantID(ctx))]
	shard.Lock()
	defer shard.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	tx := newStaged(s)
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted before commit")
	}
	return tx.commit(ctx)
}

func selectShard(tenantID id.TenantID) int {
	if tenantID.IsNil() {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(tenantID.String()))
	return int(h.Sum32() % numTxShards)
}

// Writes outside RunInTx apply immediately. They are used by seeding and tests.

func (s *Store) CreateDraft(ctx context.Context, d *models.Draft) error {
	return s.RunInTx(ctx, func(ctx context.Context, st store.Store) error { return st.CreateDraft(ctx, d) })
}

func (s *Store) UpdateDraft(ctx context.Context, d *models.Draft) error {
	return s.RunInTx(ctx, func(ctx context.Context, st store.Store) error { return st.UpdateDraft(ctx, d) })
}

func (s *Store) AddAttachment(ctx context.Context, a *models.Attachment) error {
	return s.RunInTx(ctx, func(ctx context.Context, st store.Store) error { return st.AddAttachment(ctx, a) })
}

func (s *Store) InsertEvidence(ctx context.Context, e *models.Evidence) error {
	return s.RunInTx(ctx, func(ctx context.Context, st store.Store) error { return st.InsertEvidence(ctx, e) })
}

func (s *Store) UpdateEvidenceState(ctx context.Context, e *models.Evidence, expectedSeq int64) error {
	return s.RunInTx(ctx, func(ctx context.Context, st store.Store) error { return st.UpdateEvidenceState(ctx, e, expectedSeq) })
}

func (s *Store) SaveCommand(ctx context.Context, c *models.StoredCommand) error {
	return s.RunInTx(ctx, func(ctx context.Context, st store.Store) error { return st.SaveCommand(ctx, c) })
}

func (s *Store) AppendAudit(ctx context.Context, e audit.Event) error {
	return s.audit.AppendAudit(ctx, e)
}

func (s *Store) EnqueueOutbox(ctx context.Context, e audit.OutboxEntry) error {
	return s.audit.EnqueueOutbox(ctx, e)
}

func (s *Store) FindDraft(_ context.Context, tenantID id.TenantID, draftID id.DraftID) (*models.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.drafts[draftKey{tenantID, draftID}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneDraft(d), nil
}

func (s *Store) ListAttachments(_ context.Context, tenantID id.TenantID, draftID id.DraftID) ([]models.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.attachments[draftKey{tenantID, draftID}]), nil
}

func (s *Store) FindEvidence(_ context.Context, tenantID id.TenantID, evidenceID id.EvidenceID) (*models.Evidence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.evidence[evidenceKey{tenantID, evidenceID}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneEvidence(e), nil
}

func (s *Store) FindByExternalReference(_ context.Context, tenantID id.TenantID, dataset models.DatasetType, ref string) (*models.Evidence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	evidenceID, ok := s.extRefs[extRefKey{tenantID, dataset, ref}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneEvidence(s.evidence[evidenceKey{tenantID, evidenceID}]), nil
}

func (s *Store) claimed(draft *draftKey, supersedes *evidenceKey) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if draft != nil {
		if _, ok := s.byDraft[*draft]; ok {
			return true
		}
	}
	if supersedes != nil {
		if _, ok := s.successors[*supersedes]; ok {
			return true
		}
	}
	return false
}

func (s *Store) FindCommand(_ context.Context, key models.CommandKey) (*models.StoredCommand, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.commands[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneCommand(c), nil
}

func (s *Store) ListAudit(ctx context.Context, tenantID id.TenantID, entityType audit.EntityType, entityID string) ([]audit.Event, error) {
	return s.audit.ListByEntity(ctx, tenantID, entityType, entityID)
}

// Process and PurgePublished make the store an outbox source.
func (s *Store) Process(ctx context.Context, limit int, fn func(context.Context, []audit.OutboxEntry) error) (int, error) {
	return s.audit.Process(ctx, limit, fn)
}

func (s *Store) PurgePublished(ctx context.Context, before time.Time) (int64, error) {
	return s.audit.PurgePublished(ctx, before)
}

func cloneDraft(d *models.Draft) *models.Draft {
	c := *d
	c.PurposeTags = slices.Clone(d.PurposeTags)
	c.Payload = bytes.Clone(d.Payload)
	if d.SnapshotTimestampUTC != nil {
		ts := *d.SnapshotTimestampUTC
		c.SnapshotTimestampUTC = &ts
	}
	if d.SealedEvidenceID != nil {
		eid := *d.SealedEvidenceID
		c.SealedEvidenceID = &eid
	}
	return &c
}

func cloneEvidence(e *models.Evidence) *models.Evidence {
	c := *e
	c.Metadata.PurposeTags = slices.Clone(e.Metadata.PurposeTags)
	c.Metadata.Attachments = slices.Clone(e.Metadata.Attachments)
	c.Payload = bytes.Clone(e.Payload)
	if e.PayloadHash != nil {
		h := *e.PayloadHash
		c.PayloadHash = &h
	}
	if e.DraftID != nil {
		d := *e.DraftID
		c.DraftID = &d
	}
	if e.SupersedesEvidenceID != nil {
		p := *e.SupersedesEvidenceID
		c.SupersedesEvidenceID = &p
	}
	if e.SupersededByEvidenceID != nil {
		n := *e.SupersededByEvidenceID
		c.SupersededByEvidenceID = &n
	}
	return &c
}

func cloneCommand(c *models.StoredCommand) *models.StoredCommand {
	out := *c
	out.Result = bytes.Clone(c.Result)
	return &out
}
