package portal

import (
	"context"
	"sync"

	"evidentia/internal/tenant/models"
	id "evidentia/pkg/domain"
	"evidentia/pkg/platform/sentinel"
)

type key struct {
	tenant id.TenantID
	id     string
}

// InMemory stores portal requests keyed by (tenant, portal_request_id).
type InMemory struct {
	mu       sync.RWMutex
	requests map[key]models.PortalRequest
}

func NewInMemory() *InMemory {
	return &InMemory{requests: make(map[key]models.PortalRequest)}
}

func (s *InMemory) Create(_ context.Context, req *models.PortalRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{req.TenantID, req.ID}
	if _, ok := s.requests[k]; ok {
		return sentinel.ErrAlreadyExists
	}
	s.requests[k] = *req
	return nil
}

func (s *InMemory) Find(_ context.Context, tenantID id.TenantID, portalRequestID string) (*models.PortalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[key{tenantID, portalRequestID}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &req, nil
}
