package models

import (
	"strings"
	"time"

	id "evidentia/pkg/domain"
	dErrors "evidentia/pkg/domain-errors"
)

// PortalRequest binds a supplier-portal request to the external identity that
// was invited to answer it. Supplier-portal drafts can only seal against a
// registered request.
type PortalRequest struct {
	ID               string      `json:"portal_request_id"`
	TenantID         id.TenantID `json:"tenant_id"`
	ExternalIdentity string      `json:"external_identity"`
	SupplierID       string      `json:"supplier_id,omitempty"`
	CreatedBy        string      `json:"created_by"`
	CreatedAt        time.Time   `json:"created_at"`
}

// RegisterPortalRequest is the payload for POST /v1/portal-requests.
type RegisterPortalRequest struct {
	PortalRequestID  string `json:"portal_request_id"`
	ExternalIdentity string `json:"external_identity"`
	SupplierID       string `json:"supplier_id,omitempty"`
}

func (r *RegisterPortalRequest) Normalize() {
	r.PortalRequestID = strings.TrimSpace(r.PortalRequestID)
	r.ExternalIdentity = strings.TrimSpace(r.ExternalIdentity)
	r.SupplierID = strings.TrimSpace(r.SupplierID)
}

func (r *RegisterPortalRequest) Validate() error {
	var fields []dErrors.FieldError
	if r.PortalRequestID == "" {
		fields = append(fields, dErrors.FieldError{Field: "portal_request_id", Code: "required", Message: "portal_request_id is required"})
	} else if len(r.PortalRequestID) > 128 {
		fields = append(fields, dErrors.FieldError{Field: "portal_request_id", Code: "invalid_value", Message: "portal_request_id must be 128 characters or less"})
	}
	if r.ExternalIdentity == "" {
		fields = append(fields, dErrors.FieldError{Field: "external_identity", Code: "required", Message: "external_identity is required", Hint: "the supplier contact or portal account the request was sent to"})
	}
	if len(fields) > 0 {
		return dErrors.New(dErrors.CodeValidation, "invalid portal request").WithFields(fields...)
	}
	return nil
}
