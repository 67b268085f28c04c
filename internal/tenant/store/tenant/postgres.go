package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"evidentia/internal/tenant/models"
	id "evidentia/pkg/domain"
	"evidentia/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// PostgresStore persists tenants in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateIfNameAvailable relies on the unique index over lower(name) so
// concurrent creates with the same name yield exactly one row.
func (s *PostgresStore) CreateIfNameAvailable(ctx context.Context, t *models.Tenant) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tenants (id, name, mode, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.UUID(t.ID), t.Name, string(t.Mode), string(t.Status), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrAlreadyExists
		}
		return fmt.Errorf("insert tenant: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	return s.findOne(ctx, `
		SELECT id, name, mode, status, created_at, updated_at
		FROM tenants WHERE id = $1
	`, uuid.UUID(tenantID))
}

func (s *PostgresStore) FindByName(ctx context.Context, name string) (*models.Tenant, error) {
	return s.findOne(ctx, `
		SELECT id, name, mode, status, created_at, updated_at
		FROM tenants WHERE lower(name) = lower($1)
	`, name)
}

func (s *PostgresStore) findOne(ctx context.Context, query string, arg any) (*models.Tenant, error) {
	var (
		t      models.Tenant
		rawID  uuid.UUID
		mode   string
		status string
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&rawID, &t.Name, &mode, &status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find tenant: %w", err)
	}
	t.ID = id.TenantID(rawID)
	t.Mode = models.Mode(mode)
	t.Status = models.Status(status)
	return &t, nil
}
