package handler

import (
	"strings"

	"evidentia/internal/tenant/models"
	dErrors "evidentia/pkg/domain-errors"
)

// CreateTenantRequest is the body of POST /admin/tenants.
type CreateTenantRequest struct {
	Name string `json:"name"`
	Mode string `json:"mode"`

	// Parsed values (populated by Validate)
	parsedMode models.Mode
}

// Validate normalizes the request. Mode defaults to SANDBOX so a tenant
// never starts out refusing fixture data by accident of omission.
func (r *CreateTenantRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required").
			WithFields(dErrors.FieldError{Field: "name", Code: "required", Message: "name is required"})
	}
	r.Mode = strings.ToUpper(strings.TrimSpace(r.Mode))
	if r.Mode == "" {
		r.Mode = string(models.ModeSandbox)
	}
	mode := models.Mode(r.Mode)
	if !mode.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "invalid tenant mode").
			WithFields(dErrors.FieldError{Field: "mode", Code: "invalid_value", Message: "mode must be PRODUCTION or SANDBOX"})
	}
	r.parsedMode = mode
	return nil
}
