package service

import (
	"context"
	"database/sql/driver"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	dErrors "evidentia/pkg/domain-errors"
	"evidentia/pkg/platform/sentinel"
	"evidentia/pkg/requestcontext"
)

// isTransient reports failures where the outcome is known not to have
// committed and a retry may succeed.
func isTransient(err error) bool {
	return errors.Is(err, sentinel.ErrUnavailable) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, context.DeadlineExceeded) ||
		dErrors.HasCode(err, dErrors.CodeTimeout)
}

// retryKeyed runs fn up to maxAttempts times with exponential backoff. Only
// operations carrying a client idempotency key (command_id or
// external_reference_id) go through here: a retried attempt that finds its
// own earlier write replays it instead of applying twice.
func (s *Service) retryKeyed(ctx context.Context, op string, fn func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 50 * time.Millisecond
	policy.MaxInterval = 500 * time.Millisecond

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if !isTransient(err) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		if s.metrics != nil {
			s.metrics.StoreRetries.Inc()
		}
		s.logger.WarnContext(ctx, "retrying idempotent operation",
			"operation", op,
			"attempt", attempt,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(policy, s.maxAttempts-1), ctx))
}
