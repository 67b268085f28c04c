package service

import (
	"context"
	"errors"
	"log/slog"

	tenantmetrics "evidentia/internal/tenant/metrics"
	"evidentia/internal/tenant/models"
	id "evidentia/pkg/domain"
	dErrors "evidentia/pkg/domain-errors"
	"evidentia/pkg/platform/sentinel"
	"evidentia/pkg/requestcontext"
)

type TenantStore interface {
	CreateIfNameAvailable(ctx context.Context, tenant *models.Tenant) error
	FindByID(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error)
	FindByName(ctx context.Context, name string) (*models.Tenant, error)
}

type PortalStore interface {
	Create(ctx context.Context, req *models.PortalRequest) error
	Find(ctx context.Context, tenantID id.TenantID, portalRequestID string) (*models.PortalRequest, error)
}

// Service owns tenant records and the supplier-portal request registry.
type Service struct {
	tenants TenantStore
	portals PortalStore
	logger  *slog.Logger
	metrics *tenantmetrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *tenantmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service.
func New(tenants TenantStore, portals PortalStore, opts ...Option) *Service {
	s := &Service{tenants: tenants, portals: portals, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateTenant registers a new tenant in the given mode.
func (s *Service) CreateTenant(ctx context.Context, name string, mode models.Mode) (*models.Tenant, error) {
	t, err := models.NewTenant(id.NewTenantID(), name, mode, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}
	if err := s.tenants.CreateIfNameAvailable(ctx, t); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyExists) {
			return nil, dErrors.New(dErrors.CodeConflict, "tenant name must be unique")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create tenant")
	}
	s.logger.InfoContext(ctx, "tenant created",
		"tenant_id", t.ID,
		"mode", t.Mode,
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.metrics != nil {
		s.metrics.TenantCreated.Inc()
	}
	return t, nil
}

// EnsureTenant creates a tenant with a fixed ID unless one with the same
// name already exists. Used for configuration-driven bootstrap.
func (s *Service) EnsureTenant(ctx context.Context, tenantID id.TenantID, name string, mode models.Mode) (*models.Tenant, error) {
	if existing, err := s.tenants.FindByName(ctx, name); err == nil {
		return existing, nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up tenant")
	}
	t, err := models.NewTenant(tenantID, name, mode, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.tenants.CreateIfNameAvailable(ctx, t); err != nil && !errors.Is(err, sentinel.ErrAlreadyExists) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to seed tenant")
	}
	return t, nil
}

// GetTenant loads a tenant by ID.
func (s *Service) GetTenant(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	t, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "tenant not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load tenant")
	}
	return t, nil
}

// TenantMode resolves the data mode of an active tenant. Unknown or inactive
// tenants are refused outright.
func (s *Service) TenantMode(ctx context.Context, tenantID id.TenantID) (models.Mode, error) {
	t, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeForbidden, "tenant is not registered")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load tenant")
	}
	if !t.IsActive() {
		return "", dErrors.New(dErrors.CodeForbidden, "tenant is inactive")
	}
	return t.Mode, nil
}

// RecordDataModeRejection counts a refused submission.
func (s *Service) RecordDataModeRejection(origin string) {
	if s.metrics != nil {
		s.metrics.DataModeRejections.WithLabelValues(origin).Inc()
	}
}

// RegisterPortalRequest binds a portal request to an external identity for
// the caller's tenant.
func (s *Service) RegisterPortalRequest(ctx context.Context, req *models.RegisterPortalRequest) (*models.PortalRequest, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	actor := requestcontext.Actor(ctx)
	pr := &models.PortalRequest{
		ID:               req.PortalRequestID,
		TenantID:         actor.TenantID,
		ExternalIdentity: req.ExternalIdentity,
		SupplierID:       req.SupplierID,
		CreatedBy:        actor.UserID,
		CreatedAt:        requestcontext.Now(ctx),
	}
	if err := s.portals.Create(ctx, pr); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyExists) {
			return nil, dErrors.New(dErrors.CodeConflict, "portal request already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register portal request")
	}
	s.logger.InfoContext(ctx, "portal request registered",
		"tenant_id", pr.TenantID,
		"portal_request_id", pr.ID,
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.metrics != nil {
		s.metrics.PortalRequestsRegistered.Inc()
	}
	return pr, nil
}

// IsKnownPortalRequest reports whether portalRequestID is registered for the tenant.
func (s *Service) IsKnownPortalRequest(ctx context.Context, tenantID id.TenantID, portalRequestID string) (bool, error) {
	_, err := s.portals.Find(ctx, tenantID, portalRequestID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	return false, err
}
