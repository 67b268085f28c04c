package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"evidentia/internal/evidence/guard"
	"evidentia/internal/evidence/lock"
	"evidentia/internal/evidence/models"
	"evidentia/internal/evidence/precondition"
	"evidentia/internal/evidence/store"
	id "evidentia/pkg/domain"
	dErrors "evidentia/pkg/domain-errors"
	audit "evidentia/pkg/platform/audit"
	"evidentia/pkg/platform/sentinel"
	"evidentia/pkg/requestcontext"
)

// SealResult is the sealed record. Replayed is true when an API_PUSH
// submission matched a record sealed earlier and nothing new was written.
type SealResult struct {
	Evidence *models.Evidence
	Replayed bool
}

// Seal freezes a draft into an immutable evidence record.
func (s *Service) Seal(ctx context.Context, draftID id.DraftID) (res *SealResult, err error) {
	ctx, span := s.startSpan(ctx, "Seal", attribute.String("draft_id", draftID.String()))
	defer func() { endSpan(span, err) }()

	a, err := s.authorize(ctx, models.OpDraftSeal)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	err = s.withLock(ctx, lock.DraftKey(a.TenantID, draftID), func() error {
		res, err = s.sealLocked(ctx, a, draftID)
		return err
	})
	if err != nil {
		return nil, s.translate(ctx, err, "draft")
	}
	if s.metrics != nil {
		if res.Replayed {
			s.metrics.SealReplays.Inc()
		} else {
			s.metrics.EvidenceSealed.WithLabelValues(string(res.Evidence.Method)).Inc()
			s.metrics.ObserveSealDuration(time.Since(start))
		}
	}
	return res, nil
}

// PushEvidence creates and seals an API_PUSH record in one call. A replay of
// an earlier push returns the existing record without staging a draft.
func (s *Service) PushEvidence(ctx context.Context, in CreateDraftInput) (res *SealResult, err error) {
	ctx, span := s.startSpan(ctx, "PushEvidence", attribute.String("dataset_type", string(in.Fields.DatasetType)))
	defer func() { endSpan(span, err) }()

	a, err := s.authorize(ctx, models.OpDraftSeal)
	if err != nil {
		return nil, err
	}
	in.Fields.Method = models.MethodAPIPush
	if in.Fields.ExternalReferenceID != "" && in.Fields.DatasetType.IsValid() {
		resolution, err := s.resolvePush(ctx, a.TenantID, in.Fields.DatasetType, in.Fields.ExternalReferenceID, in.Payload)
		if err != nil {
			return nil, s.translate(ctx, err, "evidence")
		}
		if resolution.Replay() {
			if s.metrics != nil {
				s.metrics.SealReplays.Inc()
			}
			return &SealResult{Evidence: resolution.Existing, Replayed: true}, nil
		}
	}

	snap, err := s.CreateDraft(ctx, in)
	if err != nil {
		return nil, err
	}
	return s.Seal(ctx, snap.Draft.ID)
}

func (s *Service) sealLocked(ctx context.Context, a actor, draftID id.DraftID) (*SealResult, error) {
	d, err := read(ctx, s, func(ctx context.Context) (*models.Draft, error) {
		return s.store.FindDraft(ctx, a.TenantID, draftID)
	})
	if err != nil {
		return nil, err
	}
	if err := d.CanMutate(); err != nil {
		return nil, err
	}

	if modeErr := s.checkDataMode(ctx, a.TenantID, d.DataOrigin); modeErr != nil {
		if !dErrors.HasCode(modeErr, dErrors.CodeForbidden) {
			return nil, modeErr
		}
		err := s.inTx(ctx, func(ctx context.Context, st store.Store) error {
			_, err := s.quarantine(ctx, st, a, d.ID, models.ReasonDataModeViolation, modeErr.Error())
			return err
		})
		if err != nil {
			return nil, err
		}
		if s.metrics != nil {
			s.metrics.Quarantined.WithLabelValues(models.ReasonDataModeViolation).Inc()
		}
		return nil, modeErr
	}

	attachments, err := read(ctx, s, func(ctx context.Context) ([]models.Attachment, error) {
		return s.store.ListAttachments(ctx, a.TenantID, d.ID)
	})
	if err != nil {
		return nil, err
	}
	if err := s.validator.Check(ctx, precondition.Subject{Draft: d, Attachments: attachments}); err != nil {
		if de, ok := dErrors.As(err); ok && s.metrics != nil {
			s.metrics.PreconditionFailed.WithLabelValues(de.Reason).Inc()
		}
		return nil, err
	}

	if d.Method != models.MethodAPIPush {
		e, err := s.sealDraft(ctx, a, d, attachments)
		if err != nil {
			return nil, err
		}
		return &SealResult{Evidence: e}, nil
	}

	var res *SealResult
	err = s.retryKeyed(ctx, "seal", func() error {
		resolution, err := s.resolvePush(ctx, a.TenantID, d.DatasetType, d.ExternalReferenceID, d.Payload)
		if err != nil {
			return err
		}
		if resolution.Replay() {
			res = &SealResult{Evidence: resolution.Existing, Replayed: true}
			return nil
		}
		e, err := s.sealDraft(ctx, a, d, attachments)
		if errors.Is(err, sentinel.ErrAlreadyExists) {
			// Another writer sealed the same reference first; resolve against it.
			resolution, err = s.resolvePush(ctx, a.TenantID, d.DatasetType, d.ExternalReferenceID, d.Payload)
			if err != nil {
				return err
			}
			if !resolution.Replay() {
				return guard.IdempotencyConflict(d.ExternalReferenceID)
			}
			res = &SealResult{Evidence: resolution.Existing, Replayed: true}
			return nil
		}
		if err != nil {
			return err
		}
		res = &SealResult{Evidence: e}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if res.Replayed {
		if err := s.retireReplayed(ctx, a, d, res.Evidence); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// retireReplayed closes a draft whose content was already sealed under the
// same external reference, pointing it at the existing record.
func (s *Service) retireReplayed(ctx context.Context, a actor, d *models.Draft, existing *models.Evidence) error {
	retired := *d
	retired.ApplySeal(existing.ID, requestcontext.Now(ctx))
	err := s.inTx(ctx, func(ctx context.Context, st store.Store) error {
		if err := st.UpdateDraft(ctx, &retired); err != nil {
			return err
		}
		_, err := s.record(ctx, st, a, audit.Event{
			EntityType:    audit.EntityDraft,
			EntityID:      d.ID.String(),
			Action:        audit.ActionDraftReplayed,
			PreviousState: string(d.Status),
			NewState:      string(retired.Status),
			Context: map[string]any{
				"evidence_id":           existing.ID.String(),
				"external_reference_id": d.ExternalReferenceID,
			},
		})
		return err
	})
	if err != nil {
		return err
	}
	*d = retired
	s.logger.InfoContext(ctx, "draft resolved to existing evidence",
		"tenant_id", a.TenantID,
		"draft_id", d.ID,
		"evidence_id", existing.ID,
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}

func (s *Service) resolvePush(ctx context.Context, tenantID id.TenantID, dataset models.DatasetType, ref string, payload []byte) (guard.Resolution, error) {
	return read(ctx, s, func(ctx context.Context) (guard.Resolution, error) {
		return guard.ResolveAPIPush(ctx, s.store, tenantID, dataset, ref, payload)
	})
}

// sealDraft hashes the draft into a new record and retires the draft in one
// transaction.
func (s *Service) sealDraft(ctx context.Context, a actor, d *models.Draft, attachments []models.Attachment) (*models.Evidence, error) {
	now := requestcontext.Now(ctx)
	draftID := d.ID
	e, err := models.NewEvidence(models.SealParams{
		EvidenceID: id.NewEvidenceID(),
		TenantID:   a.TenantID,
		DraftID:    &draftID,
		Metadata:   models.MetadataFromDraft(d, attachments),
		Payload:    d.Payload,
		CreatedBy:  a.ID,
		Now:        now,
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "payload cannot be canonicalized")
	}

	sealed := *d
	sealed.ApplySeal(e.ID, now)
	err = s.inTx(ctx, func(ctx context.Context, st store.Store) error {
		if err := st.InsertEvidence(ctx, e); err != nil {
			return err
		}
		if err := st.UpdateDraft(ctx, &sealed); err != nil {
			return err
		}
		_, err := s.record(ctx, st, a, audit.Event{
			EntityType: audit.EntityEvidence,
			EntityID:   e.ID.String(),
			Action:     audit.ActionEvidenceSealed,
			NewState:   string(e.LedgerState),
			Context: map[string]any{
				"draft_id":             draftID.String(),
				"ingestion_method":     string(e.Method),
				"metadata_hash_sha256": e.MetadataHash,
				"payload_hash_sha256":  e.PayloadHash,
				"envelope_hash_sha256": e.EnvelopeHash,
				"attachment_count":     e.AttachmentCount,
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	*d = sealed

	s.logger.InfoContext(ctx, "evidence sealed",
		"tenant_id", a.TenantID,
		"draft_id", draftID,
		"evidence_id", e.ID,
		"envelope_hash", e.EnvelopeHash,
		"request_id", requestcontext.RequestID(ctx),
	)
	return e, nil
}
