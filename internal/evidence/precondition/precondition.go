// Package precondition holds the per-ingestion-method gates a draft must pass
// before it can be sealed. Each method is a row of rules; adding a method means
// adding a row.
package precondition

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"evidentia/internal/evidence/models"
	id "evidentia/pkg/domain"
	dErrors "evidentia/pkg/domain-errors"
)

// PortalDirectory resolves supplier-portal requests to known external identities.
type PortalDirectory interface {
	IsKnownPortalRequest(ctx context.Context, tenantID id.TenantID, portalRequestID string) (bool, error)
}

// Subject is what the rules inspect.
type Subject struct {
	Draft       *models.Draft
	Attachments []models.Attachment
}

// Rule is one precondition. Check reports whether the subject satisfies it.
type Rule struct {
	Field  string
	Reason string
	Hint   string
	Check  func(ctx context.Context, v *Validator, s Subject) (bool, error)
}

// Table maps each ingestion method to its ordered rules.
type Table map[models.Method][]Rule

// DefaultTable returns the rules every deployment enforces.
func DefaultTable() Table {
	return Table{
		models.MethodFileUpload: {
			atLeastOneAttachment,
			everyAttachmentHashed,
		},
		models.MethodAPIPush: {
			{
				Field:  "external_reference_id",
				Reason: models.ReasonExternalReferenceRequired,
				Hint:   "set external_reference_id to the source system's record key",
				Check: func(_ context.Context, _ *Validator, s Subject) (bool, error) {
					return strings.TrimSpace(s.Draft.ExternalReferenceID) != "", nil
				},
			},
		},
		models.MethodERPExport: {
			atLeastOneAttachment,
			{
				Field:  "snapshot_timestamp_utc",
				Reason: models.ReasonSnapshotTimestampRequired,
				Hint:   "set snapshot_timestamp_utc to when the export was taken",
				Check: func(_ context.Context, _ *Validator, s Subject) (bool, error) {
					return s.Draft.SnapshotTimestampUTC != nil && !s.Draft.SnapshotTimestampUTC.IsZero(), nil
				},
			},
		},
		models.MethodManualEntry: {
			{
				Field:  "justification_text",
				Reason: models.ReasonAttestationRequired,
				Hint:   "attest to the record's accuracy in at least 20 characters",
				Check: func(_ context.Context, _ *Validator, s Subject) (bool, error) {
					return utf8.RuneCountInString(strings.TrimSpace(s.Draft.JustificationText)) >= models.MinJustificationLength, nil
				},
			},
			{
				Field:  "payload",
				Reason: models.ReasonStructuredPayloadRequired,
				Hint:   "submit the payload as a JSON object, not raw text",
				Check: func(_ context.Context, _ *Validator, s Subject) (bool, error) {
					return s.Draft.PayloadIsObject(), nil
				},
			},
		},
		models.MethodSupplierPortal: {
			{
				Field:  "portal_request_id",
				Reason: models.ReasonPortalRequestRequired,
				Hint:   "set portal_request_id to the request the supplier answered",
				Check: func(_ context.Context, _ *Validator, s Subject) (bool, error) {
					return strings.TrimSpace(s.Draft.PortalRequestID) != "", nil
				},
			},
			{
				Field:  "portal_request_id",
				Reason: models.ReasonPortalIdentityUnknown,
				Hint:   "register the portal request before sealing",
				Check: func(ctx context.Context, v *Validator, s Subject) (bool, error) {
					if strings.TrimSpace(s.Draft.PortalRequestID) == "" {
						// Reported by the presence rule above.
						return true, nil
					}
					if v.portals == nil {
						return false, nil
					}
					return v.portals.IsKnownPortalRequest(ctx, s.Draft.TenantID, s.Draft.PortalRequestID)
				},
			},
		},
	}
}

var atLeastOneAttachment = Rule{
	Field:  "attachments",
	Reason: models.ReasonFileRequired,
	Hint:   "upload at least one file before sealing",
	Check: func(_ context.Context, _ *Validator, s Subject) (bool, error) {
		return len(s.Attachments) > 0, nil
	},
}

var everyAttachmentHashed = Rule{
	Field:  "attachments",
	Reason: models.ReasonAttachmentHashMissing,
	Hint:   "re-upload the attachment so the server can hash it",
	Check: func(_ context.Context, _ *Validator, s Subject) (bool, error) {
		for _, a := range s.Attachments {
			if !a.IsHashed() {
				return false, nil
			}
		}
		return true, nil
	},
}

// Validator evaluates the table for a draft.
type Validator struct {
	table   Table
	portals PortalDirectory
}

// Option configures a Validator.
type Option func(*Validator)

// WithTable replaces the rule table.
func WithTable(t Table) Option {
	return func(v *Validator) {
		v.table = t
	}
}

// New creates a validator backed by the default rule table.
func New(portals PortalDirectory, opts ...Option) *Validator {
	v := &Validator{table: DefaultTable(), portals: portals}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Evaluate returns every unmet precondition as a field error whose Code is the
// rule's reason code. Declared-field problems are included first so a snapshot
// shows everything blocking the seal.
func (v *Validator) Evaluate(ctx context.Context, s Subject) ([]dErrors.FieldError, error) {
	errs := s.Draft.Validate()
	for _, rule := range v.table[s.Draft.Method] {
		ok, err := rule.Check(ctx, v, s)
		if err != nil {
			return nil, fmt.Errorf("precondition %s: %w", rule.Reason, err)
		}
		if !ok {
			errs = append(errs, dErrors.FieldError{
				Field:   rule.Field,
				Code:    rule.Reason,
				Message: message(rule.Reason),
				Hint:    rule.Hint,
			})
		}
	}
	return errs, nil
}

// Check is Evaluate as a gate: it returns a 422 whose reason is the first
// unmet precondition.
func (v *Validator) Check(ctx context.Context, s Subject) error {
	errs, err := v.Evaluate(ctx, s)
	if err != nil {
		return err
	}
	if len(errs) == 0 {
		return nil
	}
	reason := models.ReasonValidationFailed
	for _, fe := range errs {
		if isReasonCode(fe.Code) {
			reason = fe.Code
			break
		}
	}
	return dErrors.New(dErrors.CodeValidation, "draft does not meet sealing preconditions").
		WithReason(reason).
		WithFields(errs...)
}

func isReasonCode(code string) bool {
	_, ok := messages[code]
	return ok
}

var messages = map[string]string{
	models.ReasonFileRequired:              "at least one attachment is required",
	models.ReasonAttachmentHashMissing:     "every attachment must carry a server-computed hash",
	models.ReasonExternalReferenceRequired: "external_reference_id is required",
	models.ReasonSnapshotTimestampRequired: "snapshot_timestamp_utc is required",
	models.ReasonAttestationRequired:       "an attestation of at least 20 characters is required",
	models.ReasonStructuredPayloadRequired: "payload must be a JSON object",
	models.ReasonPortalRequestRequired:     "portal_request_id is required",
	models.ReasonPortalIdentityUnknown:     "portal_request_id is not bound to a known external identity",
}

func message(reason string) string {
	if m, ok := messages[reason]; ok {
		return m
	}
	return "precondition not met"
}
