package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Transactor runs a function inside one atomic unit of work.
type Transactor interface {
	// InTx runs fn with a transaction stored in the context passed to it.
	// The transaction commits when fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

var _ Transactor = (*DB)(nil)

// InTx starts a transaction, or a savepoint when ctx already carries a
// connection or transaction, and hands it to fn through the context.
func (db *DB) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	var (
		tx  pgx.Tx
		err error
	)
	if q, ok := GetQuerier(ctx); ok {
		tx, err = q.Begin(ctx)
	} else {
		tx, err = db.Pool.Begin(ctx)
	}
	if err != nil {
		return fmt.Errorf("begin transaction: %w", ClassifyError(err))
	}
	return runTx(ctx, tx, fn)
}

// RunInSavepoint runs fn inside a savepoint of the transaction carried by ctx.
// A failed statement inside fn rolls back only to the savepoint, leaving the
// outer transaction usable.
func RunInSavepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	q, ok := GetQuerier(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}
	sp, err := q.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin savepoint: %w", ClassifyError(err))
	}
	return runTx(ctx, sp, fn)
}

func runTx(ctx context.Context, tx pgx.Tx, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	if err = fn(SetQuerier(ctx, tx)); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", ClassifyError(err))
	}
	return nil
}

// SetLockTimeout bounds how long statements in the current transaction wait on
// row or advisory locks. A zero duration leaves the server default.
func SetLockTimeout(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	q, ok := GetQuerier(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}
	// SET does not accept bind parameters; set_config(..., true) is the
	// transaction-local equivalent of SET LOCAL.
	_, err := q.Exec(ctx, "SELECT set_config('lock_timeout', $1, true)", fmt.Sprintf("%dms", d.Milliseconds()))
	if err != nil {
		return fmt.Errorf("set lock_timeout: %w", ClassifyError(err))
	}
	return nil
}
