package service

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"evidentia/internal/evidence/blob"
	"evidentia/internal/evidence/lock"
	"evidentia/internal/evidence/models"
	"evidentia/internal/evidence/precondition"
	"evidentia/internal/evidence/store"
	"evidentia/pkg/canonical"
	id "evidentia/pkg/domain"
	dErrors "evidentia/pkg/domain-errors"
	audit "evidentia/pkg/platform/audit"
	"evidentia/pkg/platform/tags"
	"evidentia/pkg/requestcontext"
)

const defaultContentType = "application/octet-stream"

// CreateDraftInput is a new draft as declared by the caller.
type CreateDraftInput struct {
	Fields  models.DeclaredFields
	Payload json.RawMessage
}

// CreateDraft stages a new draft after checking tenant data mode and the
// declared fields.
func (s *Service) CreateDraft(ctx context.Context, in CreateDraftInput) (snap *models.DraftSnapshot, err error) {
	ctx, span := s.startSpan(ctx, "CreateDraft", attribute.String("method", string(in.Fields.Method)))
	defer func() { endSpan(span, err) }()

	a, err := s.authorize(ctx, models.OpDraftWrite)
	if err != nil {
		return nil, err
	}
	if err := s.checkDataMode(ctx, a.TenantID, in.Fields.DataOrigin); err != nil {
		return nil, err
	}
	in.Fields.PurposeTags = tags.Normalize(in.Fields.PurposeTags)

	d, err := models.NewDraft(id.NewDraftID(), a.TenantID, in.Fields, in.Payload, a.ID, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if len(d.Payload) > 0 && !json.Valid(d.Payload) {
		return nil, dErrors.New(dErrors.CodeBadRequest, "payload is not valid JSON")
	}

	err = s.inTx(ctx, func(ctx context.Context, st store.Store) error {
		if err := st.CreateDraft(ctx, d); err != nil {
			return err
		}
		_, err := s.record(ctx, st, a, audit.Event{
			EntityType: audit.EntityDraft,
			EntityID:   d.ID.String(),
			Action:     audit.ActionDraftCreated,
			NewState:   string(d.Status),
			Context: map[string]any{
				"ingestion_method": string(d.Method),
				"dataset_type":     string(d.DatasetType),
				"data_origin":      string(d.DataOrigin),
			},
		})
		return err
	})
	if err != nil {
		return nil, s.translate(ctx, err, "draft")
	}

	s.logger.InfoContext(ctx, "draft created",
		"tenant_id", a.TenantID,
		"draft_id", d.ID,
		"method", d.Method,
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.metrics != nil {
		s.metrics.DraftsCreated.WithLabelValues(string(d.Method)).Inc()
	}
	return s.snapshot(ctx, s.store, d)
}

// UpdateDraft merges patch into a DRAFT and re-validates the result.
func (s *Service) UpdateDraft(ctx context.Context, draftID id.DraftID, patch models.DraftPatch) (snap *models.DraftSnapshot, err error) {
	ctx, span := s.startSpan(ctx, "UpdateDraft", attribute.String("draft_id", draftID.String()))
	defer func() { endSpan(span, err) }()

	a, err := s.authorize(ctx, models.OpDraftWrite)
	if err != nil {
		return nil, err
	}
	if patch.PurposeTags != nil {
		patch.PurposeTags = tags.Normalize(patch.PurposeTags)
	}
	if len(patch.Payload) > 0 && !json.Valid(patch.Payload) {
		return nil, dErrors.New(dErrors.CodeBadRequest, "payload is not valid JSON")
	}

	var updated *models.Draft
	err = s.withLock(ctx, lock.DraftKey(a.TenantID, draftID), func() error {
		return s.inTx(ctx, func(ctx context.Context, st store.Store) error {
			d, err := st.FindDraft(ctx, a.TenantID, draftID)
			if err != nil {
				return err
			}
			if err := d.ApplyPatch(patch, requestcontext.Now(ctx)); err != nil {
				return err
			}
			if err := st.UpdateDraft(ctx, d); err != nil {
				return err
			}
			if _, err := s.record(ctx, st, a, audit.Event{
				EntityType:    audit.EntityDraft,
				EntityID:      d.ID.String(),
				Action:        audit.ActionDraftUpdated,
				PreviousState: string(d.Status),
				NewState:      string(d.Status),
			}); err != nil {
				return err
			}
			updated = d
			return nil
		})
	})
	if err != nil {
		return nil, s.translate(ctx, err, "draft")
	}
	return s.snapshot(ctx, s.store, updated)
}

// AttachFile streams r into blob storage while hashing it, then records the
// attachment. Any digest the client may have sent is never consulted.
func (s *Service) AttachFile(ctx context.Context, draftID id.DraftID, r io.Reader, filename, contentType string) (att *models.Attachment, err error) {
	ctx, span := s.startSpan(ctx, "AttachFile", attribute.String("draft_id", draftID.String()))
	defer func() { endSpan(span, err) }()

	a, err := s.authorize(ctx, models.OpDraftWrite)
	if err != nil {
		return nil, err
	}
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "filename is required").
			WithFields(dErrors.FieldError{Field: "file", Code: models.FieldRequired, Message: "multipart file with a filename is required"})
	}
	if strings.TrimSpace(contentType) == "" {
		contentType = defaultContentType
	}

	err = s.withLock(ctx, lock.DraftKey(a.TenantID, draftID), func() error {
		d, err := read(ctx, s, func(ctx context.Context) (*models.Draft, error) {
			return s.store.FindDraft(ctx, a.TenantID, draftID)
		})
		if err != nil {
			return err
		}
		if err := d.CanMutate(); err != nil {
			return err
		}

		attachment := &models.Attachment{
			ID:          id.NewAttachmentID(),
			DraftID:     d.ID,
			TenantID:    a.TenantID,
			Filename:    filename,
			ContentType: contentType,
		}
		attachment.StorageRef = blob.AttachmentKey(a.TenantID, d.ID, attachment.ID)

		hr := canonical.NewHashingReader(r)
		if _, err := s.blobs.Put(ctx, attachment.StorageRef, hr, blob.PutOptions{
			Size:        -1,
			ContentType: contentType,
			Metadata:    map[string]string{"tenant-id": a.TenantID.String(), "draft-id": d.ID.String()},
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store attachment")
		}
		attachment.SHA256 = hr.Sum()
		attachment.SizeBytes = hr.Size()
		attachment.CreatedAt = requestcontext.Now(ctx)

		err = s.inTx(ctx, func(ctx context.Context, st store.Store) error {
			if err := st.AddAttachment(ctx, attachment); err != nil {
				return err
			}
			_, err := s.record(ctx, st, a, audit.Event{
				EntityType: audit.EntityDraft,
				EntityID:   d.ID.String(),
				Action:     audit.ActionAttachmentAdded,
				NewState:   string(d.Status),
				Context: map[string]any{
					"attachment_id": attachment.ID.String(),
					"filename":      attachment.Filename,
					"sha256":        attachment.SHA256,
					"size_bytes":    attachment.SizeBytes,
				},
			})
			return err
		})
		if err != nil {
			if delErr := s.blobs.Delete(context.WithoutCancel(ctx), attachment.StorageRef); delErr != nil {
				s.logger.WarnContext(ctx, "failed to remove orphaned attachment object",
					"storage_ref", attachment.StorageRef,
					"error", delErr,
				)
			}
			return err
		}
		att = attachment
		return nil
	})
	if err != nil {
		return nil, s.translate(ctx, err, "draft")
	}
	if s.metrics != nil {
		s.metrics.AttachmentBytes.Add(float64(att.SizeBytes))
	}
	return att, nil
}

// GetSnapshot returns the draft, its attachments and a freshly computed
// seal-readiness report.
func (s *Service) GetSnapshot(ctx context.Context, draftID id.DraftID) (snap *models.DraftSnapshot, err error) {
	ctx, span := s.startSpan(ctx, "GetSnapshot", attribute.String("draft_id", draftID.String()))
	defer func() { endSpan(span, err) }()

	a, err := s.authorize(ctx, models.OpRead)
	if err != nil {
		return nil, err
	}
	d, err := read(ctx, s, func(ctx context.Context) (*models.Draft, error) {
		return s.store.FindDraft(ctx, a.TenantID, draftID)
	})
	if err != nil {
		return nil, s.translate(ctx, err, "draft")
	}
	return s.snapshot(ctx, s.store, d)
}

// QuarantineDraft freezes a DRAFT so it can no longer change or seal.
func (s *Service) QuarantineDraft(ctx context.Context, draftID id.DraftID, reason string) (snap *models.DraftSnapshot, err error) {
	ctx, span := s.startSpan(ctx, "QuarantineDraft", attribute.String("draft_id", draftID.String()))
	defer func() { endSpan(span, err) }()

	a, err := s.authorize(ctx, models.OpQuarantine)
	if err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "quarantine requires a reason").
			WithReason(models.ReasonReasonRequired).
			WithFields(dErrors.FieldError{Field: "reason", Code: models.FieldRequired, Message: "reason is required"})
	}

	var quarantined *models.Draft
	err = s.withLock(ctx, lock.DraftKey(a.TenantID, draftID), func() error {
		return s.inTx(ctx, func(ctx context.Context, st store.Store) error {
			d, err := s.quarantine(ctx, st, a, draftID, models.ReasonManualQuarantine, reason)
			quarantined = d
			return err
		})
	})
	if err != nil {
		return nil, s.translate(ctx, err, "draft")
	}
	if s.metrics != nil {
		s.metrics.Quarantined.WithLabelValues(models.ReasonManualQuarantine).Inc()
	}
	return s.snapshot(ctx, s.store, quarantined)
}

// quarantine moves a draft to QUARANTINED inside the caller's transaction.
func (s *Service) quarantine(ctx context.Context, st store.Store, a actor, draftID id.DraftID, reasonCode, reasonText string) (*models.Draft, error) {
	d, err := st.FindDraft(ctx, a.TenantID, draftID)
	if err != nil {
		return nil, err
	}
	previous := d.Status
	if err := d.Quarantine(reasonText, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := st.UpdateDraft(ctx, d); err != nil {
		return nil, err
	}
	_, err = s.record(ctx, st, a, audit.Event{
		EntityType:    audit.EntityDraft,
		EntityID:      d.ID.String(),
		Action:        audit.ActionDraftQuarantined,
		PreviousState: string(previous),
		NewState:      string(d.Status),
		ReasonCode:    reasonCode,
		ReasonText:    reasonText,
	})
	if err != nil {
		return nil, err
	}
	s.logger.WarnContext(ctx, "draft quarantined",
		"tenant_id", a.TenantID,
		"draft_id", d.ID,
		"reason_code", reasonCode,
		"request_id", requestcontext.RequestID(ctx),
	)
	return d, nil
}

// checkDataMode applies the tenant data-mode rule and counts refusals.
func (s *Service) checkDataMode(ctx context.Context, tenantID id.TenantID, origin models.DataOrigin) error {
	err := s.guard.CheckDataMode(ctx, tenantID, origin)
	if err != nil && dErrors.HasCode(err, dErrors.CodeForbidden) && s.rejections != nil {
		if de, ok := dErrors.As(err); ok && de.Reason == models.ReasonDataModeViolation {
			s.rejections.RecordDataModeRejection(string(origin))
		}
	}
	return err
}

func (s *Service) snapshot(ctx context.Context, st store.Store, d *models.Draft) (*models.DraftSnapshot, error) {
	attachments, err := read(ctx, s, func(ctx context.Context) ([]models.Attachment, error) {
		return st.ListAttachments(ctx, d.TenantID, d.ID)
	})
	if err != nil {
		return nil, s.translate(ctx, err, "attachments")
	}
	errs, err := s.validator.Evaluate(ctx, precondition.Subject{Draft: d, Attachments: attachments})
	if err != nil {
		return nil, s.translate(ctx, err, "preconditions")
	}
	readiness := models.NewReadiness(errs)
	if d.Status != models.DraftStatusDraft {
		readiness.CanSeal = false
	}
	return &models.DraftSnapshot{Draft: d, Attachments: attachments, Readiness: readiness}, nil
}
