package memory

import (
	"context"
	"sync"
	"time"

	id "evidentia/pkg/domain"
	audit "evidentia/pkg/platform/audit"
)

type entityKey struct {
	tenantID   id.TenantID
	entityType audit.EntityType
	entityID   string
}

// InMemoryStore keeps audit events and outbox entries in process. It serves
// as the audit appender, the audit reader and the outbox source when no
// database is configured.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[entityKey][]audit.Event
	outbox []audit.OutboxEntry
	// claiming serializes Process so entries are handed out once.
	claiming sync.Mutex
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[entityKey][]audit.Event)}
}

func (s *InMemoryStore) AppendAudit(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := entityKey{tenantID: event.TenantID, entityType: event.EntityType, entityID: event.EntityID}
	s.events[k] = append(s.events[k], event)
	return nil
}

func (s *InMemoryStore) EnqueueOutbox(_ context.Context, entry audit.OutboxEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outbox = append(s.outbox, entry)
	return nil
}

// ListByEntity returns the events of one entity in the tenant, oldest first.
func (s *InMemoryStore) ListByEntity(_ context.Context, tenantID id.TenantID, entityType audit.EntityType, entityID string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k := entityKey{tenantID: tenantID, entityType: entityType, entityID: entityID}
	return append([]audit.Event{}, s.events[k]...), nil
}

// Process hands up to limit unpublished entries to fn and marks them
// published when fn succeeds.
func (s *InMemoryStore) Process(ctx context.Context, limit int, fn func(context.Context, []audit.OutboxEntry) error) (int, error) {
	s.claiming.Lock()
	defer s.claiming.Unlock()

	s.mu.RLock()
	var (
		batch   []audit.OutboxEntry
		indexes []int
	)
	for i, e := range s.outbox {
		if len(batch) == limit {
			break
		}
		if e.PublishedAt == nil {
			batch = append(batch, e)
			indexes = append(indexes, i)
		}
	}
	s.mu.RUnlock()
	if len(batch) == 0 {
		return 0, nil
	}

	if err := fn(ctx, batch); err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	s.mu.Lock()
	for _, i := range indexes {
		s.outbox[i].PublishedAt = &now
	}
	s.mu.Unlock()
	return len(batch), nil
}

// PurgePublished drops entries published before the cutoff.
func (s *InMemoryStore) PurgePublished(_ context.Context, before time.Time) (int64, error) {
	s.claiming.Lock()
	defer s.claiming.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.outbox[:0]
	var purged int64
	for _, e := range s.outbox {
		if e.PublishedAt != nil && e.PublishedAt.Before(before) {
			purged++
			continue
		}
		kept = append(kept, e)
	}
	s.outbox = kept
	return purged, nil
}

// Pending returns unpublished entries. Used by tests.
func (s *InMemoryStore) Pending() []audit.OutboxEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.OutboxEntry
	for _, e := range s.outbox {
		if e.PublishedAt == nil {
			out = append(out, e)
		}
	}
	return out
}
