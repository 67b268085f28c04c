package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"evidentia/internal/evidence/lock"
	"evidentia/internal/evidence/models"
	"evidentia/internal/evidence/store"
	id "evidentia/pkg/domain"
	dErrors "evidentia/pkg/domain-errors"
	audit "evidentia/pkg/platform/audit"
	"evidentia/pkg/platform/sentinel"
	"evidentia/pkg/requestcontext"
)

// Supersede seals a corrected record carrying the old record's metadata and
// retires the old one. Both writes and both audit events commit together.
func (s *Service) Supersede(ctx context.Context, req models.SupersedeRequest) (receipt *models.SupersessionReceipt, err error) {
	ctx, span := s.startSpan(ctx, "Supersede", attribute.String("evidence_id", req.OldEvidenceID.String()))
	defer func() { endSpan(span, err) }()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	if len(req.NewPayload) > 0 && !json.Valid(req.NewPayload) {
		return nil, dErrors.New(dErrors.CodeBadRequest, "new_payload is not valid JSON")
	}
	a, err := identify(ctx)
	if err != nil {
		return nil, err
	}

	var key *models.CommandKey
	if req.CommandID != "" {
		key = &models.CommandKey{TenantID: a.TenantID, CommandType: models.CommandSupersede, CommandID: req.CommandID}
		replay, err := s.lookupSupersession(ctx, *key, req.OldEvidenceID)
		if err != nil {
			return nil, s.translate(ctx, err, "command")
		}
		if replay != nil {
			return replay, nil
		}
	}

	err = s.withLock(ctx, lock.EvidenceKey(a.TenantID, req.OldEvidenceID), func() error {
		if key == nil {
			receipt, err = s.supersede(ctx, a, req, nil)
			return err
		}
		return s.retryKeyed(ctx, "supersede", func() error {
			replay, err := s.lookupSupersession(ctx, *key, req.OldEvidenceID)
			if err != nil || replay != nil {
				receipt = replay
				return err
			}
			receipt, err = s.supersede(ctx, a, req, key)
			if errors.Is(err, sentinel.ErrAlreadyExists) {
				receipt, err = s.lookupSupersession(ctx, *key, req.OldEvidenceID)
			}
			return err
		})
	})
	if err != nil {
		return nil, s.translate(ctx, err, "evidence")
	}
	if s.metrics != nil && !receipt.Idempotent {
		s.metrics.Supersessions.Inc()
	}
	return receipt, nil
}

func (s *Service) supersede(ctx context.Context, a actor, req models.SupersedeRequest, key *models.CommandKey) (*models.SupersessionReceipt, error) {
	var receipt *models.SupersessionReceipt
	err := s.inTx(ctx, func(ctx context.Context, st store.Store) error {
		old, err := st.FindEvidence(ctx, a.TenantID, req.OldEvidenceID)
		if err != nil {
			return err
		}
		if err := s.permit(a, models.CommandOperation(models.CommandSupersede)); err != nil {
			return err
		}
		if !old.LedgerState.CanSupersede() {
			return dErrors.New(dErrors.CodeConflict, "evidence "+old.ID.String()+" is already superseded").
				WithReason(models.ReasonAlreadySuperseded)
		}

		now := requestcontext.Now(ctx)
		oldID := old.ID
		replacement, err := models.NewEvidence(models.SealParams{
			EvidenceID: id.NewEvidenceID(),
			TenantID:   a.TenantID,
			Metadata:   old.Metadata,
			Payload:    req.NewPayload,
			CreatedBy:  a.ID,
			Supersedes: &oldID,
			Now:        now,
		})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeBadRequest, "new_payload cannot be canonicalized")
		}
		if err := st.InsertEvidence(ctx, replacement); err != nil {
			return err
		}

		previous, expectedSeq := old.LedgerState, old.SequenceNumber
		old.ApplySupersession(replacement.ID)
		if err := st.UpdateEvidenceState(ctx, old, expectedSeq); err != nil {
			return err
		}

		supersededEvent, err := s.record(ctx, st, a, audit.Event{
			EntityType:    audit.EntityEvidence,
			EntityID:      old.ID.String(),
			Action:        audit.ActionEvidenceSuperseded,
			PreviousState: string(previous),
			NewState:      string(old.LedgerState),
			ReasonText:    req.Reason,
			Context: map[string]any{
				"superseded_by_evidence_id": replacement.ID.String(),
				"sequence_number":           old.SequenceNumber,
			},
		})
		if err != nil {
			return err
		}
		supersedingEvent, err := s.record(ctx, st, a, audit.Event{
			EntityType: audit.EntityEvidence,
			EntityID:   replacement.ID.String(),
			Action:     audit.ActionSupersedingCreated,
			NewState:   string(replacement.LedgerState),
			ReasonText: req.Reason,
			Context: map[string]any{
				"supersedes_evidence_id": old.ID.String(),
				"payload_hash_sha256":    replacement.PayloadHash,
				"envelope_hash_sha256":   replacement.EnvelopeHash,
			},
		})
		if err != nil {
			return err
		}

		r := &models.SupersessionReceipt{
			OldEvidenceID:      old.ID,
			NewEvidenceID:      replacement.ID,
			OldHashes:          old.Hashes,
			NewHashes:          replacement.Hashes,
			OldLedgerState:     old.LedgerState,
			OldSequenceNumber:  old.SequenceNumber,
			SupersededEventID:  supersededEvent.ID,
			SupersedingEventID: supersedingEvent.ID,
			Reason:             req.Reason,
			Timestamp:          now,
		}
		if key != nil {
			encoded, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("encode supersession receipt: %w", err)
			}
			if err := st.SaveCommand(ctx, &models.StoredCommand{
				Key:        *key,
				EvidenceID: old.ID,
				Result:     encoded,
				CreatedAt:  now,
			}); err != nil {
				return err
			}
		}
		receipt = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "evidence superseded",
		"tenant_id", a.TenantID,
		"old_evidence_id", receipt.OldEvidenceID,
		"new_evidence_id", receipt.NewEvidenceID,
		"request_id", requestcontext.RequestID(ctx),
	)
	return receipt, nil
}

func (s *Service) lookupSupersession(ctx context.Context, key models.CommandKey, oldID id.EvidenceID) (*models.SupersessionReceipt, error) {
	stored, err := read(ctx, s, func(ctx context.Context) (*models.StoredCommand, error) {
		return s.store.FindCommand(ctx, key)
	})
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if stored.EvidenceID != oldID {
		return nil, commandIDReused(key.CommandID)
	}
	var receipt models.SupersessionReceipt
	if err := json.Unmarshal(stored.Result, &receipt); err != nil {
		return nil, fmt.Errorf("decode stored supersession receipt: %w", err)
	}
	receipt.Idempotent = true
	return &receipt, nil
}
