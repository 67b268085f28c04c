package service

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tenantmetrics "evidentia/internal/tenant/metrics"
	"evidentia/internal/tenant/models"
	"evidentia/internal/tenant/store/portal"
	"evidentia/internal/tenant/store/tenant"
	id "evidentia/pkg/domain"
	dErrors "evidentia/pkg/domain-errors"
	"evidentia/pkg/requestcontext"
	"evidentia/pkg/testutil"
)

func newService() *Service {
	return New(tenant.NewInMemory(), portal.NewInMemory(), WithMetrics(tenantmetrics.New(prometheus.NewRegistry())))
}

func TestTenantLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	testutil.Given(t, "a production tenant", func(t *testing.T) {
		created, err := svc.CreateTenant(ctx, "Acme", models.ModeProduction)
		require.NoError(t, err)

		testutil.When(t, "resolving its mode", func(t *testing.T) {
			mode, err := svc.TenantMode(ctx, created.ID)
			require.NoError(t, err)
			assert.Equal(t, models.ModeProduction, mode)
		})

		testutil.When(t, "creating another tenant with the same name", func(t *testing.T) {
			_, err := svc.CreateTenant(ctx, "ACME", models.ModeSandbox)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
		})

		testutil.When(t, "ensuring it again by name", func(t *testing.T) {
			again, err := svc.EnsureTenant(ctx, id.NewTenantID(), "Acme", models.ModeSandbox)
			require.NoError(t, err)
			assert.Equal(t, created.ID, again.ID)
		})
	})

	testutil.Then(t, "unknown tenants are forbidden", func(t *testing.T) {
		_, err := svc.TenantMode(ctx, id.NewTenantID())
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	testutil.Then(t, "invalid names are validation errors", func(t *testing.T) {
		_, err := svc.CreateTenant(ctx, " ", models.ModeSandbox)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestPortalRegistry(t *testing.T) {
	svc := newService()
	tenantA := id.NewTenantID()
	ctx := requestcontext.WithActor(context.Background(), requestcontext.ActorInfo{UserID: "u1", TenantID: tenantA, Role: "ADMIN"})

	pr, err := svc.RegisterPortalRequest(ctx, &models.RegisterPortalRequest{PortalRequestID: "pr-1", ExternalIdentity: "supplier@example.com"})
	require.NoError(t, err)
	assert.Equal(t, tenantA, pr.TenantID)
	assert.Equal(t, "u1", pr.CreatedBy)

	_, err = svc.RegisterPortalRequest(ctx, &models.RegisterPortalRequest{PortalRequestID: "pr-1", ExternalIdentity: "other"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))

	known, err := svc.IsKnownPortalRequest(ctx, tenantA, "pr-1")
	require.NoError(t, err)
	assert.True(t, known)

	known, err = svc.IsKnownPortalRequest(ctx, id.NewTenantID(), "pr-1")
	require.NoError(t, err)
	assert.False(t, known, "portal requests are tenant-scoped")
}
