package memory

import (
	"context"
	"slices"

	"evidentia/internal/evidence/models"
	id "evidentia/pkg/domain"
	audit "evidentia/pkg/platform/audit"
	"evidentia/pkg/platform/sentinel"
)

// staged is the Store handed to a transaction. Reads see the transaction's
// own writes first, then committed state. Nothing reaches the base store
// until commit.
type staged struct {
	base        *Store
	drafts      map[draftKey]*models.Draft
	attachments map[draftKey][]models.Attachment
	evidence    map[evidenceKey]*models.Evidence
	extRefs     map[extRefKey]id.EvidenceID
	byDraft     map[draftKey]id.EvidenceID
	successors  map[evidenceKey]id.EvidenceID
	commands    map[models.CommandKey]*models.StoredCommand
	events      []audit.Event
	outbox      []audit.OutboxEntry
}

func newStaged(base *Store) *staged {
	return &staged{
		base:        base,
		drafts:      make(map[draftKey]*models.Draft),
		attachments: make(map[draftKey][]models.Attachment),
		evidence:    make(map[evidenceKey]*models.Evidence),
		extRefs:     make(map[extRefKey]id.EvidenceID),
		byDraft:     make(map[draftKey]id.EvidenceID),
		successors:  make(map[evidenceKey]id.EvidenceID),
		commands:    make(map[models.CommandKey]*models.StoredCommand),
	}
}

// commit applies the staged writes. Audit and outbox rows are appended while
// the data lock is held, so no reader sees an entity change without its
// audit event.
func (t *staged) commit(ctx context.Context) error {
	b := t.base
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, e := range t.events {
		if err := b.audit.AppendAudit(ctx, e); err != nil {
			return err
		}
	}
	for _, o := range t.outbox {
		if err := b.audit.EnqueueOutbox(ctx, o); err != nil {
			return err
		}
	}

	for k, d := range t.drafts {
		b.drafts[k] = d
	}
	for k, atts := range t.attachments {
		b.attachments[k] = append(b.attachments[k], atts...)
	}
	for k, e := range t.evidence {
		b.evidence[k] = e
	}
	for k, v := range t.extRefs {
		b.extRefs[k] = v
	}
	for k, v := range t.byDraft {
		b.byDraft[k] = v
	}
	for k, v := range t.successors {
		b.successors[k] = v
	}
	for k, c := range t.commands {
		b.commands[k] = c
	}
	return nil
}

func (t *staged) CreateDraft(ctx context.Context, d *models.Draft) error {
	if _, err := t.FindDraft(ctx, d.TenantID, d.ID); err == nil {
		return sentinel.ErrAlreadyExists
	}
	t.drafts[draftKey{d.TenantID, d.ID}] = cloneDraft(d)
	return nil
}

func (t *staged) FindDraft(ctx context.Context, tenantID id.TenantID, draftID id.DraftID) (*models.Draft, error) {
	if d, ok := t.drafts[draftKey{tenantID, draftID}]; ok {
		return cloneDraft(d), nil
	}
	return t.base.FindDraft(ctx, tenantID, draftID)
}

func (t *staged) UpdateDraft(ctx context.Context, d *models.Draft) error {
	if _, err := t.FindDraft(ctx, d.TenantID, d.ID); err != nil {
		return err
	}
	t.drafts[draftKey{d.TenantID, d.ID}] = cloneDraft(d)
	return nil
}

func (t *staged) AddAttachment(ctx context.Context, a *models.Attachment) error {
	if _, err := t.FindDraft(ctx, a.TenantID, a.DraftID); err != nil {
		return err
	}
	k := draftKey{a.TenantID, a.DraftID}
	t.attachments[k] = append(t.attachments[k], *a)
	return nil
}

func (t *staged) ListAttachments(ctx context.Context, tenantID id.TenantID, draftID id.DraftID) ([]models.Attachment, error) {
	committed, err := t.base.ListAttachments(ctx, tenantID, draftID)
	if err != nil {
		return nil, err
	}
	return append(committed, slices.Clone(t.attachments[draftKey{tenantID, draftID}])...), nil
}

func (t *staged) InsertEvidence(ctx context.Context, e *models.Evidence) error {
	if _, err := t.FindEvidence(ctx, e.TenantID, e.ID); err == nil {
		return sentinel.ErrAlreadyExists
	}
	var (
		draft      *draftKey
		supersedes *evidenceKey
	)
	if e.DraftID != nil {
		draft = &draftKey{e.TenantID, *e.DraftID}
		if _, ok := t.byDraft[*draft]; ok {
			return sentinel.ErrAlreadyExists
		}
	}
	if e.SupersedesEvidenceID != nil {
		supersedes = &evidenceKey{e.TenantID, *e.SupersedesEvidenceID}
		if _, ok := t.successors[*supersedes]; ok {
			return sentinel.ErrAlreadyExists
		}
	}
	if t.base.claimed(draft, supersedes) {
		return sentinel.ErrAlreadyExists
	}
	// Only chain roots claim the external reference; superseding records
	// inherit it without re-registering.
	if e.ExternalReferenceID != "" && e.SupersedesEvidenceID == nil {
		ref := extRefKey{e.TenantID, e.Metadata.DatasetType, e.ExternalReferenceID}
		if _, err := t.FindByExternalReference(ctx, ref.tenantID, ref.dataset, ref.ref); err == nil {
			return sentinel.ErrAlreadyExists
		}
		t.extRefs[ref] = e.ID
	}
	if draft != nil {
		t.byDraft[*draft] = e.ID
	}
	if supersedes != nil {
		t.successors[*supersedes] = e.ID
	}
	t.evidence[evidenceKey{e.TenantID, e.ID}] = cloneEvidence(e)
	return nil
}

func (t *staged) FindEvidence(ctx context.Context, tenantID id.TenantID, evidenceID id.EvidenceID) (*models.Evidence, error) {
	if e, ok := t.evidence[evidenceKey{tenantID, evidenceID}]; ok {
		return cloneEvidence(e), nil
	}
	return t.base.FindEvidence(ctx, tenantID, evidenceID)
}

func (t *staged) UpdateEvidenceState(ctx context.Context, e *models.Evidence, expectedSeq int64) error {
	current, err := t.FindEvidence(ctx, e.TenantID, e.ID)
	if err != nil {
		return err
	}
	if current.SequenceNumber != expectedSeq {
		return sentinel.ErrConflict
	}
	current.LedgerState = e.LedgerState
	current.SequenceNumber = e.SequenceNumber
	if e.SupersededByEvidenceID != nil {
		next := *e.SupersededByEvidenceID
		current.SupersededByEvidenceID = &next
	}
	t.evidence[evidenceKey{e.TenantID, e.ID}] = current
	return nil
}

func (t *staged) FindByExternalReference(ctx context.Context, tenantID id.TenantID, dataset models.DatasetType, ref string) (*models.Evidence, error) {
	if evidenceID, ok := t.extRefs[extRefKey{tenantID, dataset, ref}]; ok {
		return t.FindEvidence(ctx, tenantID, evidenceID)
	}
	return t.base.FindByExternalReference(ctx, tenantID, dataset, ref)
}

func (t *staged) FindCommand(ctx context.Context, key models.CommandKey) (*models.StoredCommand, error) {
	if c, ok := t.commands[key]; ok {
		return cloneCommand(c), nil
	}
	return t.base.FindCommand(ctx, key)
}

func (t *staged) SaveCommand(ctx context.Context, c *models.StoredCommand) error {
	if _, err := t.FindCommand(ctx, c.Key); err == nil {
		return sentinel.ErrAlreadyExists
	}
	t.commands[c.Key] = cloneCommand(c)
	return nil
}

func (t *staged) AppendAudit(_ context.Context, e audit.Event) error {
	t.events = append(t.events, e)
	return nil
}

func (t *staged) EnqueueOutbox(_ context.Context, e audit.OutboxEntry) error {
	t.outbox = append(t.outbox, e)
	return nil
}

func (t *staged) ListAudit(ctx context.Context, tenantID id.TenantID, entityType audit.EntityType, entityID string) ([]audit.Event, error) {
	events, err := t.base.ListAudit(ctx, tenantID, entityType, entityID)
	if err != nil {
		return nil, err
	}
	for _, e := range t.events {
		if e.TenantID == tenantID && e.EntityType == entityType && e.EntityID == entityID {
			events = append(events, e)
		}
	}
	return events, nil
}
