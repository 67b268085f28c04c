// Package service orchestrates the evidence kernel: draft staging, sealing,
// ledger commands and supersession. Every mutation runs under the entity lock
// inside one store transaction together with its audit event.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"evidentia/internal/evidence/blob"
	"evidentia/internal/evidence/guard"
	"evidentia/internal/evidence/lock"
	evidencemetrics "evidentia/internal/evidence/metrics"
	"evidentia/internal/evidence/models"
	"evidentia/internal/evidence/precondition"
	"evidentia/internal/evidence/store"
	id "evidentia/pkg/domain"
	dErrors "evidentia/pkg/domain-errors"
	audit "evidentia/pkg/platform/audit"
	"evidentia/pkg/platform/sentinel"
	"evidentia/pkg/requestcontext"
)

const defaultStoreTimeout = 2 * time.Second

// PolicySource yields the current role policy. The config layer reloads it
// when the policy file changes.
type PolicySource interface {
	RolePolicy() models.RolePolicy
}

type staticPolicy models.RolePolicy

func (p staticPolicy) RolePolicy() models.RolePolicy { return models.RolePolicy(p) }

// RejectionRecorder counts data-mode refusals.
type RejectionRecorder interface {
	RecordDataModeRejection(origin string)
}

// Service is the evidence kernel.
type Service struct {
	store        store.Store
	tx           store.TxRunner
	blobs        blob.Storage
	locker       lock.Locker
	validator    *precondition.Validator
	guard        *guard.Guard
	recorder     *audit.Recorder
	policy       PolicySource
	rejections   RejectionRecorder
	logger       *slog.Logger
	metrics      *evidencemetrics.Metrics
	tracer       trace.Tracer
	storeTimeout time.Duration
	maxAttempts  uint64
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *evidencemetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLocker replaces the in-process lock, e.g. with a Redis lock shared by replicas.
func WithLocker(l lock.Locker) Option {
	return func(s *Service) {
		s.locker = l
	}
}

func WithRecorder(r *audit.Recorder) Option {
	return func(s *Service) {
		s.recorder = r
	}
}

func WithPolicy(p PolicySource) Option {
	return func(s *Service) {
		s.policy = p
	}
}

func WithRejectionRecorder(r RejectionRecorder) Option {
	return func(s *Service) {
		s.rejections = r
	}
}

// WithStoreTimeout bounds each store transaction attempt.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.storeTimeout = d
		}
	}
}

// New constructs the kernel. st serves reads; tx runs atomic units.
func New(st store.Store, tx store.TxRunner, blobs blob.Storage, validator *precondition.Validator, g *guard.Guard, opts ...Option) *Service {
	s := &Service{
		store:        st,
		tx:           tx,
		blobs:        blobs,
		validator:    validator,
		guard:        g,
		locker:       lock.NewLocal(),
		policy:       staticPolicy(models.DefaultRolePolicy()),
		logger:       slog.Default(),
		tracer:       otel.Tracer("evidentia/evidence"),
		storeTimeout: defaultStoreTimeout,
		maxAttempts:  3,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.recorder == nil {
		s.recorder = audit.NewRecorder(audit.WithLogger(s.logger))
	}
	return s
}

// actor is the authenticated caller, resolved once per operation.
type actor struct {
	ID       string
	TenantID id.TenantID
	Role     models.Role
}

// identify resolves the caller from ctx without checking any permission.
func identify(ctx context.Context) (actor, error) {
	info := requestcontext.Actor(ctx)
	if info.UserID == "" || info.TenantID.IsNil() {
		return actor{}, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	a := actor{ID: info.UserID, TenantID: info.TenantID, Role: models.Role(info.Role)}
	if !a.Role.IsValid() {
		return actor{}, dErrors.New(dErrors.CodeForbidden, "unknown role "+info.Role)
	}
	return a, nil
}

// authorize resolves the caller from ctx and checks op against the policy.
func (s *Service) authorize(ctx context.Context, op models.Operation) (actor, error) {
	a, err := identify(ctx)
	if err != nil {
		return actor{}, err
	}
	if err := s.permit(a, op); err != nil {
		return actor{}, err
	}
	return a, nil
}

func (s *Service) permit(a actor, op models.Operation) error {
	return s.policy.RolePolicy().Authorize(a.Role, op)
}

// withLock runs fn while holding the entity lock for key.
func (s *Service) withLock(ctx context.Context, key lock.Key, fn func() error) error {
	release, err := s.locker.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

// inTx runs fn as one atomic unit with the store deadline applied.
func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context, st store.Store) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.tx.RunInTx(ctx, fn)
}

// read runs a single store read with the store deadline applied.
func read[T any](ctx context.Context, s *Service, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return fn(ctx)
}

func (s *Service) record(ctx context.Context, app audit.Appender, a actor, event audit.Event) (audit.Event, error) {
	event.TenantID = a.TenantID
	event.ActorID = a.ID
	event.ActorRole = string(a.Role)
	return s.recorder.Record(ctx, app, event)
}

// translate maps store and infrastructure failures onto domain errors.
// Errors that already carry a domain code pass through unchanged.
func (s *Service) translate(ctx context.Context, err error, entity string) error {
	if err == nil {
		return nil
	}
	if _, ok := dErrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, entity+" not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, entity+" was modified concurrently")
	case errors.Is(err, sentinel.ErrAlreadyExists):
		return dErrors.Wrap(err, dErrors.CodeConflict, entity+" was already written by a concurrent request")
	case isTransient(err):
		s.logger.WarnContext(ctx, "store unavailable",
			"entity", entity,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return dErrors.Wrap(err, dErrors.CodeTimeout, "store unavailable, retry later")
	default:
		s.logger.ErrorContext(ctx, "store operation failed",
			"entity", entity,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return dErrors.Wrap(err, dErrors.CodeInternal, "internal error")
	}
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "evidence."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	}
	span.End()
}
