package models

import dErrors "evidentia/pkg/domain-errors"

// Readiness is the freshly computed seal-readiness of a draft.
type Readiness struct {
	MissingFields []string             `json:"missing_fields"`
	FieldErrors   []dErrors.FieldError `json:"field_errors"`
	CanSeal       bool                 `json:"can_seal"`
}

// NewReadiness derives Readiness from field errors. Errors with code
// "required" or a precondition reason name a missing field.
func NewReadiness(errs []dErrors.FieldError) Readiness {
	r := Readiness{MissingFields: []string{}, FieldErrors: []dErrors.FieldError{}}
	seen := map[string]bool{}
	for _, fe := range errs {
		r.FieldErrors = append(r.FieldErrors, fe)
		if fe.Code != FieldInvalidValue && fe.Code != FieldIncompatible && !seen[fe.Field] {
			seen[fe.Field] = true
			r.MissingFields = append(r.MissingFields, fe.Field)
		}
	}
	r.CanSeal = len(errs) == 0
	return r
}

// DraftSnapshot is a draft with its attachments and current readiness.
type DraftSnapshot struct {
	Draft       *Draft       `json:"draft"`
	Attachments []Attachment `json:"attachments"`
	Readiness   Readiness    `json:"readiness"`
}
