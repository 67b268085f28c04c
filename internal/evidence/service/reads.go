package service

import (
	"context"
	"slices"

	"go.opentelemetry.io/otel/attribute"

	"evidentia/internal/evidence/models"
	id "evidentia/pkg/domain"
	dErrors "evidentia/pkg/domain-errors"
	audit "evidentia/pkg/platform/audit"
	"evidentia/pkg/requestcontext"
)

// maxLineageDepth bounds a lineage walk over corrupted links.
const maxLineageDepth = 1000

func (s *Service) GetEvidence(ctx context.Context, evidenceID id.EvidenceID) (e *models.Evidence, err error) {
	ctx, span := s.startSpan(ctx, "GetEvidence", attribute.String("evidence_id", evidenceID.String()))
	defer func() { endSpan(span, err) }()

	a, err := s.authorize(ctx, models.OpRead)
	if err != nil {
		return nil, err
	}
	return s.findEvidence(ctx, a.TenantID, evidenceID)
}

// AuditTrail returns the events of the record's source draft followed by the
// record's own events, oldest first.
func (s *Service) AuditTrail(ctx context.Context, evidenceID id.EvidenceID) (events []audit.Event, err error) {
	ctx, span := s.startSpan(ctx, "AuditTrail", attribute.String("evidence_id", evidenceID.String()))
	defer func() { endSpan(span, err) }()

	a, err := s.authorize(ctx, models.OpRead)
	if err != nil {
		return nil, err
	}
	e, err := s.findEvidence(ctx, a.TenantID, evidenceID)
	if err != nil {
		return nil, err
	}

	events = []audit.Event{}
	if e.DraftID != nil {
		draftEvents, err := read(ctx, s, func(ctx context.Context) ([]audit.Event, error) {
			return s.store.ListAudit(ctx, a.TenantID, audit.EntityDraft, e.DraftID.String())
		})
		if err != nil {
			return nil, s.translate(ctx, err, "audit trail")
		}
		events = append(events, draftEvents...)
	}
	evidenceEvents, err := read(ctx, s, func(ctx context.Context) ([]audit.Event, error) {
		return s.store.ListAudit(ctx, a.TenantID, audit.EntityEvidence, e.ID.String())
	})
	if err != nil {
		return nil, s.translate(ctx, err, "audit trail")
	}
	return append(events, evidenceEvents...), nil
}

// Lineage returns the whole supersession chain containing the record, from
// the original root to the current head.
func (s *Service) Lineage(ctx context.Context, evidenceID id.EvidenceID) (chain []*models.Evidence, err error) {
	ctx, span := s.startSpan(ctx, "Lineage", attribute.String("evidence_id", evidenceID.String()))
	defer func() { endSpan(span, err) }()

	a, err := s.authorize(ctx, models.OpRead)
	if err != nil {
		return nil, err
	}
	start, err := s.findEvidence(ctx, a.TenantID, evidenceID)
	if err != nil {
		return nil, err
	}

	var back []*models.Evidence
	for cur := start; cur.SupersedesEvidenceID != nil; {
		if len(back) >= maxLineageDepth {
			return nil, s.brokenLineage(ctx, evidenceID)
		}
		prev, err := s.findEvidence(ctx, a.TenantID, *cur.SupersedesEvidenceID)
		if err != nil {
			return nil, err
		}
		back = append(back, prev)
		cur = prev
	}
	slices.Reverse(back)
	chain = append(back, start)

	for cur := start; cur.SupersededByEvidenceID != nil; {
		if len(chain) >= maxLineageDepth {
			return nil, s.brokenLineage(ctx, evidenceID)
		}
		next, err := s.findEvidence(ctx, a.TenantID, *cur.SupersededByEvidenceID)
		if err != nil {
			return nil, err
		}
		chain = append(chain, next)
		cur = next
	}
	return chain, nil
}

// Verify recomputes the record's hashes from its stored content.
func (s *Service) Verify(ctx context.Context, evidenceID id.EvidenceID) (report *models.VerificationReport, err error) {
	ctx, span := s.startSpan(ctx, "Verify", attribute.String("evidence_id", evidenceID.String()))
	defer func() { endSpan(span, err) }()

	a, err := s.authorize(ctx, models.OpRead)
	if err != nil {
		return nil, err
	}
	e, err := s.findEvidence(ctx, a.TenantID, evidenceID)
	if err != nil {
		return nil, err
	}
	r, err := e.Verify()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to recompute hashes")
	}
	if !r.Intact {
		s.logger.ErrorContext(ctx, "evidence failed hash verification",
			"tenant_id", a.TenantID,
			"evidence_id", e.ID,
			"mismatches", r.Mismatches,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return &r, nil
}

func (s *Service) findEvidence(ctx context.Context, tenantID id.TenantID, evidenceID id.EvidenceID) (*models.Evidence, error) {
	e, err := read(ctx, s, func(ctx context.Context) (*models.Evidence, error) {
		return s.store.FindEvidence(ctx, tenantID, evidenceID)
	})
	if err != nil {
		return nil, s.translate(ctx, err, "evidence")
	}
	return e, nil
}

func (s *Service) brokenLineage(ctx context.Context, evidenceID id.EvidenceID) error {
	s.logger.ErrorContext(ctx, "supersession chain exceeds depth limit",
		"evidence_id", evidenceID,
		"request_id", requestcontext.RequestID(ctx),
	)
	return dErrors.New(dErrors.CodeInternal, "supersession chain is too long")
}
