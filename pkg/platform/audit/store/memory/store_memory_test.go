package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "evidentia/pkg/domain"
	audit "evidentia/pkg/platform/audit"
)

func TestListByEntityIsTenantScoped(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	a, b := id.NewTenantID(), id.NewTenantID()

	require.NoError(t, s.AppendAudit(ctx, audit.Event{TenantID: a, EntityType: audit.EntityDraft, EntityID: "d-1", Action: audit.ActionDraftCreated}))
	require.NoError(t, s.AppendAudit(ctx, audit.Event{TenantID: a, EntityType: audit.EntityDraft, EntityID: "d-1", Action: audit.ActionDraftUpdated}))
	require.NoError(t, s.AppendAudit(ctx, audit.Event{TenantID: b, EntityType: audit.EntityDraft, EntityID: "d-1", Action: audit.ActionDraftCreated}))

	events, err := s.ListByEntity(ctx, a, audit.EntityDraft, "d-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, audit.ActionDraftCreated, events[0].Action)
	assert.Equal(t, audit.ActionDraftUpdated, events[1].Action)

	events, err = s.ListByEntity(ctx, b, audit.EntityEvidence, "d-1")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestOutboxProcessAndPurge(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.EnqueueOutbox(ctx, audit.OutboxEntry{ID: uuid.New(), EventType: "evidence.sealed"}))
	}

	_, err := s.Process(ctx, 10, func(context.Context, []audit.OutboxEntry) error {
		return errors.New("broker down")
	})
	require.Error(t, err)
	assert.Len(t, s.Pending(), 3, "failed batch stays pending")

	n, err := s.Process(ctx, 2, func(_ context.Context, batch []audit.OutboxEntry) error {
		assert.Len(t, batch, 2)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, s.Pending(), 1)

	purged, err := s.PurgePublished(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 2, purged)
	assert.Len(t, s.Pending(), 1)
}
