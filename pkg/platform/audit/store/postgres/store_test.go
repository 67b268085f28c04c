package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "evidentia/pkg/domain"
	audit "evidentia/pkg/platform/audit"
	txcontext "evidentia/pkg/platform/tx"
)

func TestAppendJoinsContextTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := New(db)

	event := audit.Event{
		ID:         id.NewEventID(),
		TenantID:   id.NewTenantID(),
		EntityType: audit.EntityEvidence,
		EntityID:   "ev-1",
		ActorID:    "user-1",
		ActorRole:  "ANALYST",
		Action:     audit.ActionEvidenceSealed,
		NewState:   "SEALED",
		Timestamp:  time.Now().UTC(),
		Context:    map[string]any{"client_ip": "10.0.0.1"},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO audit_events").
		WithArgs(uuid.UUID(event.ID), uuid.UUID(event.TenantID), "evidence", "ev-1", "user-1", "ANALYST",
			"evidence_sealed", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			event.Timestamp, []byte(`{"client_ip":"10.0.0.1"}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO outbox").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)
	ctx := txcontext.WithTx(context.Background(), tx)

	require.NoError(t, store.AppendAudit(ctx, event))
	require.NoError(t, store.EnqueueOutbox(ctx, audit.OutboxEntry{
		ID:          uuid.New(),
		TenantID:    event.TenantID,
		AggregateID: "ev-1",
		EventType:   "evidence.sealed",
		Payload:     []byte(`{}`),
		CreatedAt:   event.Timestamp,
	}))
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListByEntity(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := New(db)

	tenantID := id.NewTenantID()
	eventID := uuid.New()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT id, tenant_id, entity_type").
		WithArgs(uuid.UUID(tenantID), "evidence", "ev-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "tenant_id", "entity_type", "entity_id", "actor_id", "actor_role", "action",
			"previous_state", "new_state", "reason_code", "reason_text", "correlation_id", "timestamp_utc", "context",
		}).AddRow(eventID.String(), tenantID.String(), "evidence", "ev-1", "user-1", "ADMIN", "state_transitioned",
			"SEALED", "REJECTED", nil, "duplicate upload", "corr-1", ts, []byte(`{"command_id":"c-1"}`)))

	events, err := store.ListByEntity(context.Background(), tenantID, audit.EntityEvidence, "ev-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, id.EventID(eventID), e.ID)
	assert.Equal(t, audit.ActionStateTransitioned, e.Action)
	assert.Equal(t, "SEALED", e.PreviousState)
	assert.Equal(t, "REJECTED", e.NewState)
	assert.Empty(t, e.ReasonCode)
	assert.Equal(t, "duplicate upload", e.ReasonText)
	assert.Equal(t, "c-1", e.Context["command_id"])
	require.NoError(t, mock.ExpectationsWereMet())
}
