// Package outbox relays notifications written by the audit recorder to the
// message bus. Entries are produced inside the same transaction as the state
// change they describe; the relay publishes them afterwards, so the kernel never
// blocks on the bus and consumers never see an uncommitted change.
package outbox

//go:generate mockgen -source=outbox.go -destination=mocks/mocks.go -package=mocks Source,Publisher

import (
	"context"
	"log/slog"
	"time"

	audit "evidentia/pkg/platform/audit"
)

// Source yields unpublished outbox entries.
type Source interface {
	// Process claims up to limit unpublished entries, hands them to fn and
	// marks them published only if fn succeeds. Claimed entries are invisible
	// to concurrent relays until the claim ends.
	Process(ctx context.Context, limit int, fn func(context.Context, []audit.OutboxEntry) error) (int, error)
	// PurgePublished deletes entries published before the cutoff.
	PurgePublished(ctx context.Context, before time.Time) (int64, error)
}

// Publisher delivers entries to the bus.
type Publisher interface {
	Publish(ctx context.Context, entries []audit.OutboxEntry) error
}

// Relay polls a Source and forwards entries to a Publisher.
type Relay struct {
	source    Source
	publisher Publisher
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	metrics   *audit.Metrics
}

// RelayOption configures a Relay.
type RelayOption func(*Relay)

// WithInterval sets the poll interval.
func WithInterval(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithBatchSize sets the maximum entries claimed per poll.
func WithBatchSize(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithLogger sets the relay logger.
func WithLogger(logger *slog.Logger) RelayOption {
	return func(r *Relay) {
		r.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *audit.Metrics) RelayOption {
	return func(r *Relay) {
		r.metrics = m
	}
}

// NewRelay constructs a relay with a one second poll and batches of 100.
func NewRelay(source Source, publisher Publisher, opts ...RelayOption) *Relay {
	r := &Relay{
		source:    source,
		publisher: publisher,
		interval:  time.Second,
		batchSize: 100,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.drain(ctx)
		}
	}
}

func (r *Relay) drain(ctx context.Context) {
	for {
		n, err := r.RunOnce(ctx)
		if err != nil {
			if ctx.Err() == nil {
				r.logger.WarnContext(ctx, "outbox relay batch failed", "error", err)
			}
			return
		}
		if n < r.batchSize {
			return
		}
	}
}

// RunOnce relays a single batch and returns the number of entries published.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	n, err := r.source.Process(ctx, r.batchSize, r.publisher.Publish)
	if err != nil {
		if r.metrics != nil {
			r.metrics.IncOutboxFailures()
		}
		return 0, err
	}
	if n > 0 && r.metrics != nil {
		r.metrics.AddOutboxPublished(n)
	}
	return n, nil
}

// LogPublisher writes notifications to the log. Used when no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher constructs a LogPublisher.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, entries []audit.OutboxEntry) error {
	for _, e := range entries {
		p.logger.InfoContext(ctx, "notification",
			"event_type", e.EventType,
			"tenant_id", e.TenantID,
			"aggregate_type", e.AggregateType,
			"aggregate_id", e.AggregateID,
		)
	}
	return nil
}
