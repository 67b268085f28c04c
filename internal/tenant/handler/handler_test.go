package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evidentia/internal/tenant/models"
	"evidentia/internal/tenant/service"
	portalstore "evidentia/internal/tenant/store/portal"
	tenantstore "evidentia/internal/tenant/store/tenant"
	id "evidentia/pkg/domain"
	"evidentia/pkg/platform/middleware/admin"
	"evidentia/pkg/requestcontext"
	"evidentia/pkg/testutil"
)

const adminToken = "secret-token"

func newTenantRouter(t *testing.T) (http.Handler, *service.Service) {
	t.Helper()
	svc := service.New(tenantstore.NewInMemory(), portalstore.NewInMemory())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := New(svc, logger, func(role string) bool { return role == "ADMIN" || role == "ANALYST" })
	r := chi.NewRouter()
	h.Register(r)
	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdminToken(adminToken, logger))
		h.RegisterAdmin(r)
	})
	return r, svc
}

func postJSON(t *testing.T, router http.Handler, path string, body any, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.NewJSONRequest(t, http.MethodPost, path, body)
	if mutate != nil {
		mutate(req)
	}
	return testutil.DoRequest(router, req)
}

func withActor(actor requestcontext.ActorInfo) func(*http.Request) {
	return func(r *http.Request) {
		*r = *testutil.WithActor(r, actor.UserID, actor.TenantID, actor.Role)
	}
}

func TestAdminTokenRequired(t *testing.T) {
	router, _ := newTenantRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/admin/tenants/"+uuid.New().String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateAndFetchTenant(t *testing.T) {
	router, _ := newTenantRouter(t)
	withToken := func(r *http.Request) { r.Header.Set("X-Admin-Token", adminToken) }

	rec := postJSON(t, router, "/admin/tenants", map[string]string{"name": "Acme", "mode": "production"}, withToken)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := testutil.UnmarshalResponse[TenantResponse](t, rec)
	assert.False(t, created.TenantID.IsNil())
	assert.Equal(t, models.ModeProduction, created.Mode)

	req := httptest.NewRequest(http.MethodGet, "/admin/tenants/"+created.TenantID.String(), nil)
	withToken(req)
	getRec := testutil.DoRequest(router, req)
	require.Equal(t, http.StatusOK, getRec.Code)
	fetched := testutil.UnmarshalResponse[TenantResponse](t, getRec)
	assert.Equal(t, "Acme", fetched.Name)

	dup := postJSON(t, router, "/admin/tenants", map[string]string{"name": "Acme"}, withToken)
	testutil.AssertStatusAndError(t, dup, http.StatusConflict, "conflict")
}

func TestCreateTenantDefaultsToSandbox(t *testing.T) {
	router, _ := newTenantRouter(t)
	rec := postJSON(t, router, "/admin/tenants", map[string]string{"name": "Trial"}, func(r *http.Request) {
		r.Header.Set("X-Admin-Token", adminToken)
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := testutil.UnmarshalResponse[TenantResponse](t, rec)
	assert.Equal(t, models.ModeSandbox, created.Mode)

	bad := postJSON(t, router, "/admin/tenants", map[string]string{"name": "X", "mode": "STAGING"}, func(r *http.Request) {
		r.Header.Set("X-Admin-Token", adminToken)
	})
	assert.Equal(t, http.StatusUnprocessableEntity, bad.Code)
}

func TestRegisterPortalRequest(t *testing.T) {
	router, svc := newTenantRouter(t)
	tenantID := id.NewTenantID()
	body := map[string]string{"portal_request_id": "pr-1", "external_identity": "ops@supplier.example"}

	rec := postJSON(t, router, "/v1/portal-requests", body, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postJSON(t, router, "/v1/portal-requests", body, withActor(requestcontext.ActorInfo{UserID: "u1", TenantID: tenantID, Role: "VIEWER"}))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = postJSON(t, router, "/v1/portal-requests", body, withActor(requestcontext.ActorInfo{UserID: "u1", TenantID: tenantID, Role: "ANALYST"}))
	require.Equal(t, http.StatusCreated, rec.Code)
	pr := testutil.UnmarshalResponse[models.PortalRequest](t, rec)
	assert.Equal(t, tenantID, pr.TenantID)
	assert.Equal(t, "u1", pr.CreatedBy)

	known, err := svc.IsKnownPortalRequest(t.Context(), tenantID, "pr-1")
	require.NoError(t, err)
	assert.True(t, known)
	known, err = svc.IsKnownPortalRequest(t.Context(), id.NewTenantID(), "pr-1")
	require.NoError(t, err)
	assert.False(t, known, "portal requests are tenant scoped")

	rec = postJSON(t, router, "/v1/portal-requests", body, withActor(requestcontext.ActorInfo{UserID: "u2", TenantID: tenantID, Role: "ADMIN"}))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegisterPortalRequestValidation(t *testing.T) {
	router, _ := newTenantRouter(t)
	rec := postJSON(t, router, "/v1/portal-requests", map[string]string{"portal_request_id": "pr-2"},
		withActor(requestcontext.ActorInfo{UserID: "u1", TenantID: id.NewTenantID(), Role: "ADMIN"}))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "external_identity")
}
