package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	id "evidentia/pkg/domain"
	"evidentia/pkg/requestcontext"
)

// Appender is the write side of the audit log. It exposes append only; no
// implementation offers update or delete. Transactional stores implement it so
// the append joins the caller's unit of work.
type Appender interface {
	AppendAudit(ctx context.Context, event Event) error
	EnqueueOutbox(ctx context.Context, entry OutboxEntry) error
}

// Recorder is the single write path to the audit log. It is fail-closed: if
// the event cannot be appended the caller's transaction must roll back.
type Recorder struct {
	logger  *slog.Logger
	metrics *Metrics
}

// Option configures the Recorder.
type Option func(*Recorder)

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(r *Recorder) {
		r.metrics = m
	}
}

// NewRecorder creates a recorder.
func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var (
	errMissingTenant = errors.New("audit event requires TenantID")
	errMissingAction = errors.New("audit event requires Action")
	errMissingEntity = errors.New("audit event requires EntityID")
	errMissingActor  = errors.New("audit event requires ActorID")
)

// Record appends event through app and, for notifying actions, enqueues the
// matching outbox entry. It returns the event as stored.
func (r *Recorder) Record(ctx context.Context, app Appender, event Event) (Event, error) {
	start := time.Now()
	if err := validate(event); err != nil {
		return Event{}, err
	}
	if event.ID.IsNil() {
		event.ID = id.NewEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	event.Timestamp = event.Timestamp.UTC()
	if event.CorrelationID == "" {
		event.CorrelationID = requestcontext.RequestID(ctx)
	}
	event.Context = enrich(ctx, event.Context)

	if err := app.AppendAudit(ctx, event); err != nil {
		r.fail(ctx, event, err)
		return Event{}, fmt.Errorf("audit append failed: %w", err)
	}

	if notification, ok := event.Action.Notification(); ok {
		payload, err := json.Marshal(event)
		if err != nil {
			return Event{}, fmt.Errorf("marshal notification: %w", err)
		}
		entry := OutboxEntry{
			ID:            uuid.New(),
			TenantID:      event.TenantID,
			AggregateType: string(event.EntityType),
			AggregateID:   event.EntityID,
			EventType:     notification,
			Payload:       payload,
			CreatedAt:     event.Timestamp,
		}
		if err := app.EnqueueOutbox(ctx, entry); err != nil {
			r.fail(ctx, event, err)
			return Event{}, fmt.Errorf("outbox enqueue failed: %w", err)
		}
	}

	if r.metrics != nil {
		r.metrics.ObservePersistDuration(time.Since(start))
		r.metrics.IncEventsRecorded(event.Action)
	}
	return event, nil
}

func (r *Recorder) fail(ctx context.Context, event Event, err error) {
	if r.metrics != nil {
		r.metrics.IncPersistFailures()
	}
	r.logger.ErrorContext(ctx, "CRITICAL: audit append failed",
		"action", event.Action,
		"tenant_id", event.TenantID,
		"entity_id", event.EntityID,
		"error", err,
	)
}

func validate(e Event) error {
	switch {
	case e.TenantID.IsNil():
		return errMissingTenant
	case e.Action == "":
		return errMissingAction
	case e.EntityID == "":
		return errMissingEntity
	case e.ActorID == "":
		return errMissingActor
	}
	return nil
}

func enrich(ctx context.Context, c map[string]any) map[string]any {
	ip := requestcontext.ClientIP(ctx)
	ua := requestcontext.UserAgent(ctx)
	if ip == "" && ua == "" {
		return c
	}
	out := make(map[string]any, len(c)+2)
	for k, v := range c {
		out[k] = v
	}
	if ip != "" {
		out["client_ip"] = ip
	}
	if ua != "" {
		out["user_agent"] = ua
	}
	return out
}
