package handler

import (
	"time"

	"evidentia/internal/tenant/models"
	id "evidentia/pkg/domain"
)

type TenantResponse struct {
	TenantID  id.TenantID `json:"tenant_id"`
	Name      string      `json:"name"`
	Mode      models.Mode `json:"mode"`
	Status    string      `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
}

func FromTenant(t *models.Tenant) TenantResponse {
	return TenantResponse{
		TenantID:  t.ID,
		Name:      t.Name,
		Mode:      t.Mode,
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt,
	}
}
