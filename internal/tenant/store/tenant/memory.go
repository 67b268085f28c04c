package tenant

import (
	"context"
	"strings"
	"sync"

	"evidentia/internal/tenant/models"
	id "evidentia/pkg/domain"
	"evidentia/pkg/platform/sentinel"
)

// InMemory is a thread-safe tenant store for tests and single-node runs.
type InMemory struct {
	mu      sync.RWMutex
	tenants map[id.TenantID]*models.Tenant
}

func NewInMemory() *InMemory {
	return &InMemory{tenants: make(map[id.TenantID]*models.Tenant)}
}

// CreateIfNameAvailable inserts t unless another tenant has the same name,
// compared case-insensitively.
func (s *InMemory) CreateIfNameAvailable(_ context.Context, t *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants[t.ID]; ok {
		return sentinel.ErrAlreadyExists
	}
	for _, existing := range s.tenants {
		if strings.EqualFold(existing.Name, t.Name) {
			return sentinel.ErrAlreadyExists
		}
	}
	cp := *t
	s.tenants[t.ID] = &cp
	return nil
}

func (s *InMemory) FindByID(_ context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[tenantID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *InMemory) FindByName(_ context.Context, name string) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tenants {
		if strings.EqualFold(t.Name, name) {
			cp := *t
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}
