package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// TxRunner wraps a DBTX and runs closures in a multi-statement transaction
// when the underlying store supports one. When transactions are disabled
// (single-node stores, test doubles without transaction support), the closure
// runs directly against the pool and the runner reports fallback mode so the
// caller knows to perform its own compensating cleanup on failure.
type TxRunner struct {
	pool       DBTX
	txDisabled bool
}

// NewTxRunner creates a transaction runner over the given pool.
func NewTxRunner(pool DBTX, txDisabled bool) *TxRunner {
	return &TxRunner{pool: pool, txDisabled: txDisabled}
}

// WithTransaction runs fn and returns whether it executed transactionally.
// In transactional mode any error from fn rolls the whole unit back.
// In fallback mode fn runs against the bare pool; each statement commits
// individually and the caller is responsible for compensation.
func (r *TxRunner) WithTransaction(ctx context.Context, fn func(ctx context.Context, q DBTX) error) (bool, error) {
	if r.txDisabled {
		return false, fn(ctx, r.pool)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, txAdapter{tx}); err != nil {
		return true, err
	}

	if err := tx.Commit(ctx); err != nil {
		return true, fmt.Errorf("commit transaction: %w", err)
	}

	return true, nil
}

// txAdapter lets a pgx.Tx satisfy DBTX so repositories can run inside an
// enclosing transaction without knowing about it. BeginTx degrades to a
// nested Begin (savepoint) since pgx.Tx has no BeginTx with options.
type txAdapter struct {
	pgx.Tx
}

func (a txAdapter) BeginTx(ctx context.Context, _ pgx.TxOptions) (pgx.Tx, error) {
	return a.Tx.Begin(ctx)
}
