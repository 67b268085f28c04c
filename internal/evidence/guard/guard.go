// Package guard runs ahead of every externally triggered draft or seal
// mutation. It enforces tenant data mode and owns the single API_PUSH
// idempotency rule shared by the ingest endpoint and the sealing engine.
package guard

import (
	"context"
	"encoding/json"
	"errors"

	"evidentia/internal/evidence/models"
	tenantmodels "evidentia/internal/tenant/models"
	id "evidentia/pkg/domain"
	dErrors "evidentia/pkg/domain-errors"
	"evidentia/pkg/platform/sentinel"
)

// ModeResolver returns the data mode of a tenant.
type ModeResolver interface {
	TenantMode(ctx context.Context, tenantID id.TenantID) (tenantmodels.Mode, error)
}

// ExternalReferenceLookup finds the record originally sealed under an
// external reference. It returns sentinel.ErrNotFound when there is none.
type ExternalReferenceLookup interface {
	FindByExternalReference(ctx context.Context, tenantID id.TenantID, dataset models.DatasetType, externalRef string) (*models.Evidence, error)
}

// Guard enforces data mode and API_PUSH idempotency.
type Guard struct {
	modes ModeResolver
}

func New(modes ModeResolver) *Guard {
	return &Guard{modes: modes}
}

// CheckDataMode refuses fixture or test data for production tenants.
func (g *Guard) CheckDataMode(ctx context.Context, tenantID id.TenantID, origin models.DataOrigin) error {
	mode, err := g.modes.TenantMode(ctx, tenantID)
	if err != nil {
		return err
	}
	if mode == tenantmodels.ModeProduction && !origin.IsLive() {
		return DataModeViolation(origin)
	}
	return nil
}

// DataModeViolation is the 403 returned for non-live data in production.
func DataModeViolation(origin models.DataOrigin) error {
	return dErrors.New(dErrors.CodeForbidden, "tenant is in production mode and does not accept "+string(origin)+" data").
		WithReason(models.ReasonDataModeViolation)
}

// Resolution is the outcome of resolving an API_PUSH submission.
type Resolution struct {
	// Existing is the previously sealed record; nil means seal a new one.
	Existing *models.Evidence
}

// Replay reports whether the submission repeats an existing record.
func (r Resolution) Replay() bool { return r.Existing != nil }

// ResolveAPIPush applies the idempotency rule keyed by
// (tenant, dataset_type, external_reference_id): an identical payload hash is
// a replay of the existing record, a different one is a conflict.
func ResolveAPIPush(ctx context.Context, lookup ExternalReferenceLookup, tenantID id.TenantID, dataset models.DatasetType, externalRef string, payload json.RawMessage) (Resolution, error) {
	existing, err := lookup.FindByExternalReference(ctx, tenantID, dataset, externalRef)
	if errors.Is(err, sentinel.ErrNotFound) {
		return Resolution{}, nil
	}
	if err != nil {
		return Resolution{}, err
	}
	incoming, err := models.PayloadHash(payload)
	if err != nil {
		return Resolution{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "payload is not valid JSON")
	}
	if sameHash(incoming, existing.PayloadHash) {
		return Resolution{Existing: existing}, nil
	}
	return Resolution{}, IdempotencyConflict(externalRef)
}

// IdempotencyConflict is the 409 for a reused external reference with
// different content.
func IdempotencyConflict(externalRef string) error {
	return dErrors.New(dErrors.CodeConflict, "external_reference_id "+externalRef+" was already sealed with a different payload").
		WithReason(models.ReasonIdempotencyConflict)
}

func sameHash(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
