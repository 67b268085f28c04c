package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"evidentia/internal/evidence/store"
	"evidentia/pkg/platform/sentinel"
	txcontext "evidentia/pkg/platform/tx"
)

const defaultTxTimeout = 5 * time.Second

// Postgres error classes that abort a transaction without committing and are
// safe to retry.
var transientCodes = map[pq.ErrorCode]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"57P01": true, // admin_shutdown
	"08006": true, // connection_failure
}

// RunInTx opens a transaction, carries it in the context for every store call
// made by fn and commits when fn returns nil. Transient aborts are reported
// as sentinel.ErrUnavailable.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, st store.Store) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTxTimeout)
		defer cancel()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(fmt.Errorf("begin transaction: %w", err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx), s); err != nil {
		return classify(err)
	}
	if err := tx.Commit(); err != nil {
		return classify(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

func classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && transientCodes[pqErr.Code] {
		return fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
	}
	return err
}
