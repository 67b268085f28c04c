package outbox

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Janitor purges published outbox entries on a cron schedule. Audit events
// themselves are never purged; only their relayed notification copies are.
type Janitor struct {
	source    Source
	schedule  string
	retention time.Duration
	cron      *cron.Cron
	logger    *slog.Logger
	mu        sync.Mutex
	running   bool
}

// NewJanitor creates a janitor. Common schedules: "0 3 * * *" (daily at 3 AM),
// "0 */6 * * *" (every six hours).
func NewJanitor(source Source, schedule string, retention time.Duration, logger *slog.Logger) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{
		source:    source,
		schedule:  schedule,
		retention: retention,
		cron:      cron.New(),
		logger:    logger.With("component", "outbox.janitor"),
	}
}

// Start schedules purging. An empty schedule disables the janitor.
func (j *Janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.schedule == "" {
		j.logger.Info("outbox purge schedule not configured, skipping janitor")
		return nil
	}
	if _, err := cron.ParseStandard(j.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", j.schedule, err)
	}
	if _, err := j.cron.AddFunc(j.schedule, func() {
		if _, err := j.PurgeOnce(ctx); err != nil {
			j.logger.ErrorContext(ctx, "outbox purge failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule outbox purge: %w", err)
	}
	j.cron.Start()
	j.running = true
	j.logger.Info("outbox janitor started", "schedule", j.schedule, "retention", j.retention)

	go func() {
		<-ctx.Done()
		j.Stop()
	}()
	return nil
}

// Stop halts the scheduler and waits for a running purge to finish.
func (j *Janitor) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.running {
		return
	}
	<-j.cron.Stop().Done()
	j.running = false
}

// PurgeOnce deletes entries published longer ago than the retention window.
func (j *Janitor) PurgeOnce(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-j.retention)
	n, err := j.source.PurgePublished(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		j.logger.InfoContext(ctx, "purged published outbox entries", "count", n, "cutoff", cutoff)
	}
	return n, nil
}
