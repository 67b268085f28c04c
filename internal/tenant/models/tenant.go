package models

import (
	"strings"
	"time"

	id "evidentia/pkg/domain"
	dErrors "evidentia/pkg/domain-errors"
)

// Mode is the data environment a tenant runs in.
type Mode string

const (
	ModeProduction Mode = "PRODUCTION"
	ModeSandbox    Mode = "SANDBOX"
)

func (m Mode) IsValid() bool { return m == ModeProduction || m == ModeSandbox }

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Tenant is an isolated customer account.
//
// Invariants:
//   - Name is non-empty and at most 128 characters
//   - Mode is PRODUCTION or SANDBOX
//   - A PRODUCTION tenant never accepts fixture or test data
type Tenant struct {
	ID        id.TenantID `json:"id"`
	Name      string      `json:"name"`
	Mode      Mode        `json:"mode"`
	Status    Status      `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func NewTenant(tenantID id.TenantID, name string, mode Mode, now time.Time) (*Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "tenant name cannot be empty")
	}
	if len(name) > 128 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "tenant name must be 128 characters or less")
	}
	if !mode.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "tenant mode must be PRODUCTION or SANDBOX")
	}
	return &Tenant{
		ID:        tenantID,
		Name:      name,
		Mode:      mode,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (t *Tenant) IsActive() bool { return t.Status == StatusActive }

func (t *Tenant) IsProduction() bool { return t.Mode == ModeProduction }
