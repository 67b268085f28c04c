package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	id "evidentia/pkg/domain"
	audit "evidentia/pkg/platform/audit"
)

// PostgresSource claims outbox rows with FOR UPDATE SKIP LOCKED so several
// relay replicas can run against the same table without double-publishing.
type PostgresSource struct {
	pool *pgxpool.Pool
}

// NewPostgresSource wraps a pgx pool.
func NewPostgresSource(pool *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

func (s *PostgresSource) Process(ctx context.Context, limit int, fn func(context.Context, []audit.OutboxEntry) error) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin outbox claim: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	rows, err := tx.Query(ctx, `
		SELECT id::text, tenant_id::text, aggregate_type, aggregate_id, event_type, payload, created_at
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at, id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return 0, fmt.Errorf("claim outbox rows: %w", err)
	}
	entries, err := pgx.CollectRows(rows, scanEntry)
	if err != nil {
		return 0, fmt.Errorf("scan outbox rows: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	if err := fn(ctx, entries); err != nil {
		return 0, err
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID.String())
	}
	if _, err := tx.Exec(ctx, `UPDATE outbox SET published_at = $1 WHERE id = ANY($2::uuid[])`, time.Now().UTC(), ids); err != nil {
		return 0, fmt.Errorf("mark outbox published: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit outbox claim: %w", err)
	}
	return len(entries), nil
}

func (s *PostgresSource) PurgePublished(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM outbox WHERE published_at IS NOT NULL AND published_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("purge outbox: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanEntry(row pgx.CollectableRow) (audit.OutboxEntry, error) {
	var (
		rawID, rawTenant string
		e                audit.OutboxEntry
	)
	if err := row.Scan(&rawID, &rawTenant, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
		return audit.OutboxEntry{}, err
	}
	entryID, err := uuid.Parse(rawID)
	if err != nil {
		return audit.OutboxEntry{}, err
	}
	tenantID, err := id.ParseTenantID(rawTenant)
	if err != nil {
		return audit.OutboxEntry{}, err
	}
	e.ID = entryID
	e.TenantID = tenantID
	return e, nil
}
