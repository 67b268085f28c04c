package portal

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evidentia/internal/tenant/models"
	id "evidentia/pkg/domain"
	"evidentia/pkg/platform/sentinel"
)

func TestPostgresStore(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPostgres(db)
	ctx := context.Background()
	tenantID := id.NewTenantID()
	now := time.Now().UTC()

	t.Run("duplicate insert maps to ErrAlreadyExists", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO portal_requests").
			WillReturnError(&pq.Error{Code: "23505"})
		err := store.Create(ctx, &models.PortalRequest{ID: "pr-1", TenantID: tenantID, ExternalIdentity: "x", CreatedAt: now})
		assert.ErrorIs(t, err, sentinel.ErrAlreadyExists)
	})

	t.Run("find scopes by tenant", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, external_identity, supplier_id, created_by, created_at").
			WithArgs(uuid.UUID(tenantID), "pr-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "external_identity", "supplier_id", "created_by", "created_at"}).
				AddRow("pr-1", "supplier@example.com", nil, "u1", now))
		req, err := store.Find(ctx, tenantID, "pr-1")
		require.NoError(t, err)
		assert.Equal(t, "supplier@example.com", req.ExternalIdentity)
		assert.Empty(t, req.SupplierID)
	})

	t.Run("missing row maps to ErrNotFound", func(t *testing.T) {
		mock.ExpectQuery("SELECT id").WillReturnError(sql.ErrNoRows)
		_, err := store.Find(ctx, tenantID, "nope")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}
