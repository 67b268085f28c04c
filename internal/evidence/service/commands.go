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
	dErrors "evidentia/pkg/domain-errors"
	audit "evidentia/pkg/platform/audit"
	"evidentia/pkg/platform/sentinel"
	"evidentia/pkg/requestcontext"
)

// ApplyCommand moves an evidence record along one edge of the ledger graph.
// Resubmitting a command_id returns the stored result with Idempotent set.
func (s *Service) ApplyCommand(ctx context.Context, cmd models.Command) (res *models.CommandResult, err error) {
	ctx, span := s.startSpan(ctx, "ApplyCommand",
		attribute.String("command_type", string(cmd.CommandType)),
		attribute.String("command_id", cmd.CommandID),
	)
	defer func() {
		if err != nil && s.metrics != nil {
			s.metrics.CommandRejected.WithLabelValues(string(dErrors.CodeOf(err))).Inc()
		}
		endSpan(span, err)
	}()

	if err := cmd.ValidateShape(); err != nil {
		return nil, err
	}
	a, err := identify(ctx)
	if err != nil {
		return nil, err
	}
	cmd.TenantID = a.TenantID
	cmd.ActorID = a.ID
	cmd.ActorRole = a.Role
	key := models.CommandKey{TenantID: a.TenantID, CommandType: cmd.CommandType, CommandID: cmd.CommandID}

	replay, err := s.lookupCommand(ctx, s.store, key, cmd)
	if err != nil {
		return nil, s.translate(ctx, err, "command")
	}
	if replay != nil {
		return replay, nil
	}

	err = s.withLock(ctx, lock.EvidenceKey(a.TenantID, cmd.EvidenceID), func() error {
		return s.retryKeyed(ctx, "command", func() error {
			replay, err := s.lookupCommand(ctx, s.store, key, cmd)
			if err != nil || replay != nil {
				res = replay
				return err
			}
			res, err = s.applyCommand(ctx, a, key, cmd)
			if errors.Is(err, sentinel.ErrAlreadyExists) {
				// A concurrent submission of the same command_id committed first.
				res, err = s.lookupCommand(ctx, s.store, key, cmd)
			}
			return err
		})
	})
	if err != nil {
		return nil, s.translate(ctx, err, "evidence")
	}
	if s.metrics != nil && !res.Idempotent {
		s.metrics.CommandsApplied.WithLabelValues(string(cmd.CommandType)).Inc()
	}
	return res, nil
}

func (s *Service) applyCommand(ctx context.Context, a actor, key models.CommandKey, cmd models.Command) (*models.CommandResult, error) {
	var res *models.CommandResult
	err := s.inTx(ctx, func(ctx context.Context, st store.Store) error {
		e, err := st.FindEvidence(ctx, a.TenantID, cmd.EvidenceID)
		if err != nil {
			return err
		}
		if err := s.permit(a, models.CommandOperation(cmd.CommandType)); err != nil {
			return err
		}
		target, err := models.Transition(e.LedgerState, cmd.CommandType)
		if err != nil {
			return err
		}
		if err := cmd.CheckGuards(); err != nil {
			return err
		}
		if err := cmd.CheckSequence(e.SequenceNumber); err != nil {
			return err
		}

		previous, expectedSeq := e.LedgerState, e.SequenceNumber
		e.ApplyTransition(target)
		if err := st.UpdateEvidenceState(ctx, e, expectedSeq); err != nil {
			return err
		}

		eventContext := map[string]any{
			"command_id":      cmd.CommandID,
			"command_type":    string(cmd.CommandType),
			"sequence_number": e.SequenceNumber,
		}
		if cmd.Payload.AIOriginated {
			eventContext["ai_originated"] = true
			eventContext["human_confirmed"] = cmd.Payload.HumanConfirmed
		}
		if len(cmd.Payload.Attributes) > 0 {
			eventContext["attributes"] = cmd.Payload.Attributes
		}
		event, err := s.record(ctx, st, a, audit.Event{
			EntityType:    audit.EntityEvidence,
			EntityID:      e.ID.String(),
			Action:        audit.ActionStateTransitioned,
			PreviousState: string(previous),
			NewState:      string(target),
			ReasonCode:    cmd.Payload.ReasonCode,
			ReasonText:    cmd.Payload.Reason,
			Context:       eventContext,
		})
		if err != nil {
			return err
		}

		result := &models.CommandResult{
			CommandID:      cmd.CommandID,
			CommandType:    cmd.CommandType,
			EvidenceID:     e.ID,
			EventID:        event.ID,
			PreviousState:  previous,
			NewState:       target,
			SequenceNumber: e.SequenceNumber,
			Timestamp:      event.Timestamp,
		}
		encoded, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("encode command result: %w", err)
		}
		if err := st.SaveCommand(ctx, &models.StoredCommand{
			Key:        key,
			EvidenceID: e.ID,
			Result:     encoded,
			CreatedAt:  event.Timestamp,
		}); err != nil {
			return err
		}
		res = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "ledger command applied",
		"tenant_id", a.TenantID,
		"evidence_id", res.EvidenceID,
		"command_type", res.CommandType,
		"previous_state", res.PreviousState,
		"new_state", res.NewState,
		"request_id", requestcontext.RequestID(ctx),
	)
	return res, nil
}

// lookupCommand returns the stored result for key, or nil when the command
// has not been applied. A command_id reused against another record is a
// conflict.
func (s *Service) lookupCommand(ctx context.Context, st store.Store, key models.CommandKey, cmd models.Command) (*models.CommandResult, error) {
	stored, err := read(ctx, s, func(ctx context.Context) (*models.StoredCommand, error) {
		return st.FindCommand(ctx, key)
	})
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if stored.EvidenceID != cmd.EvidenceID {
		return nil, commandIDReused(cmd.CommandID)
	}
	var res models.CommandResult
	if err := json.Unmarshal(stored.Result, &res); err != nil {
		return nil, fmt.Errorf("decode stored command result: %w", err)
	}
	res.Idempotent = true
	if s.metrics != nil {
		s.metrics.CommandReplays.WithLabelValues(string(key.CommandType)).Inc()
	}
	return &res, nil
}

func commandIDReused(commandID string) error {
	return dErrors.New(dErrors.CodeConflict, "command_id "+commandID+" was already used for a different evidence record").
		WithReason(models.ReasonCommandIDReused)
}
