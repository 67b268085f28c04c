package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	id "evidentia/pkg/domain"
	audit "evidentia/pkg/platform/audit"
	txcontext "evidentia/pkg/platform/tx"
)

// Store appends audit events and outbox entries in PostgreSQL. Writes join the
// transaction carried in the context, so the audit row and the state change it
// documents commit or roll back together. There is no update or delete path.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) execer(ctx context.Context) txcontext.Executor {
	return txcontext.Or(ctx, s.db)
}

// AppendAudit inserts one immutable audit row.
func (s *Store) AppendAudit(ctx context.Context, event audit.Event) error {
	var contextJSON []byte
	if len(event.Context) > 0 {
		b, err := json.Marshal(event.Context)
		if err != nil {
			return fmt.Errorf("marshal audit context: %w", err)
		}
		contextJSON = b
	}
	query := `
		INSERT INTO audit_events (
			id, tenant_id, entity_type, entity_id, actor_id, actor_role, action,
			previous_state, new_state, reason_code, reason_text, correlation_id,
			timestamp_utc, context
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(event.ID),
		uuid.UUID(event.TenantID),
		string(event.EntityType),
		event.EntityID,
		event.ActorID,
		event.ActorRole,
		string(event.Action),
		nullString(event.PreviousState),
		nullString(event.NewState),
		nullString(event.ReasonCode),
		nullString(event.ReasonText),
		nullString(event.CorrelationID),
		event.Timestamp,
		contextJSON,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// EnqueueOutbox writes a notification row for the relay.
func (s *Store) EnqueueOutbox(ctx context.Context, entry audit.OutboxEntry) error {
	query := `
		INSERT INTO outbox (id, tenant_id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		entry.ID,
		uuid.UUID(entry.TenantID),
		entry.AggregateType,
		entry.AggregateID,
		entry.EventType,
		entry.Payload,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// ListByEntity returns the events of one entity in the tenant, oldest first.
func (s *Store) ListByEntity(ctx context.Context, tenantID id.TenantID, entityType audit.EntityType, entityID string) ([]audit.Event, error) {
	query := `
		SELECT id, tenant_id, entity_type, entity_id, actor_id, actor_role, action,
			   previous_state, new_state, reason_code, reason_text, correlation_id,
			   timestamp_utc, context
		FROM audit_events
		WHERE tenant_id = $1 AND entity_type = $2 AND entity_id = $3
		ORDER BY timestamp_utc, seq
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(tenantID), string(entityType), entityID)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	events := []audit.Event{}
	for rows.Next() {
		var (
			e                                   audit.Event
			eventID, tenantID                   uuid.UUID
			entityType, action                  string
			prev, next, code, text, correlation sql.NullString
			contextJSON                         []byte
		)
		if err := rows.Scan(&eventID, &tenantID, &entityType, &e.EntityID, &e.ActorID, &e.ActorRole, &action,
			&prev, &next, &code, &text, &correlation, &e.Timestamp, &contextJSON); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.ID = id.EventID(eventID)
		e.TenantID = id.TenantID(tenantID)
		e.EntityType = audit.EntityType(entityType)
		e.Action = audit.Action(action)
		e.PreviousState = prev.String
		e.NewState = next.String
		e.ReasonCode = code.String
		e.ReasonText = text.String
		e.CorrelationID = correlation.String
		e.Timestamp = e.Timestamp.UTC()
		if len(contextJSON) > 0 {
			if err := json.Unmarshal(contextJSON, &e.Context); err != nil {
				return nil, fmt.Errorf("unmarshal audit context: %w", err)
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
