package portal

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

// PostgresStore persists portal requests in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, req *models.PortalRequest) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO portal_requests (tenant_id, id, external_identity, supplier_id, created_by, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
	`, uuid.UUID(req.TenantID), req.ID, req.ExternalIdentity, req.SupplierID, req.CreatedBy, req.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrAlreadyExists
		}
		return fmt.Errorf("insert portal request: %w", err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, tenantID id.TenantID, portalRequestID string) (*models.PortalRequest, error) {
	req := models.PortalRequest{TenantID: tenantID}
	var supplier sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, external_identity, supplier_id, created_by, created_at
		FROM portal_requests WHERE tenant_id = $1 AND id = $2
	`, uuid.UUID(tenantID), portalRequestID).Scan(&req.ID, &req.ExternalIdentity, &supplier, &req.CreatedBy, &req.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find portal request: %w", err)
	}
	req.SupplierID = supplier.String
	return &req, nil
}
