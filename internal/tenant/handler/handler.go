package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"evidentia/internal/tenant/models"
	id "evidentia/pkg/domain"
	dErrors "evidentia/pkg/domain-errors"
	"evidentia/pkg/platform/httputil"
	"evidentia/pkg/requestcontext"
)

// Service defines the tenant operations exposed over HTTP.
type Service interface {
	CreateTenant(ctx context.Context, name string, mode models.Mode) (*models.Tenant, error)
	GetTenant(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error)
	RegisterPortalRequest(ctx context.Context, req *models.RegisterPortalRequest) (*models.PortalRequest, error)
}

// RoleGate reports whether a role may register portal requests.
type RoleGate func(role string) bool

// Handler wires tenant endpoints to the tenant service.
type Handler struct {
	service Service
	logger  *slog.Logger
	gate    RoleGate
}

// New constructs a tenant handler. A nil gate admits every authenticated role.
func New(service Service, logger *slog.Logger, gate RoleGate) *Handler {
	if gate == nil {
		gate = func(string) bool { return true }
	}
	return &Handler{service: service, logger: logger, gate: gate}
}

// Register mounts tenant-scoped routes for authenticated callers.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/portal-requests", h.HandleRegisterPortalRequest)
}

// RegisterAdmin mounts operator routes. The caller guards them with the
// admin token middleware.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/tenants", h.HandleCreateTenant)
	r.Get("/admin/tenants/{tenantID}", h.HandleGetTenant)
}

func (h *Handler) HandleCreateTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[CreateTenantRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	t, err := h.service.CreateTenant(ctx, req.Name, req.parsedMode)
	if err != nil {
		h.logger.InfoContext(ctx, "create tenant failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromTenant(t))
}

func (h *Handler) HandleGetTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, err := id.ParseTenantID(chi.URLParam(r, "tenantID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	t, err := h.service.GetTenant(ctx, tenantID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromTenant(t))
}

// HandleRegisterPortalRequest binds a supplier-portal request to the
// external identity it was sent to, within the caller's tenant.
func (h *Handler) HandleRegisterPortalRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actor := requestcontext.Actor(ctx)
	if actor.UserID == "" || actor.TenantID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	if !h.gate(actor.Role) {
		h.logger.InfoContext(ctx, "portal request registration refused",
			"request_id", requestID,
			"role", actor.Role,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "role may not register portal requests"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[models.RegisterPortalRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	pr, err := h.service.RegisterPortalRequest(ctx, req)
	if err != nil {
		h.logger.InfoContext(ctx, "portal request registration failed",
			"request_id", requestID,
			"tenant_id", actor.TenantID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, pr)
}
