package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey string

// TxKey carries the ambient transaction through a context.
const TxKey contextKey = "db_tx"

// WithTx runs fn inside a single transaction. The transaction rides the
// context, so repositories called from fn join it through TxFromContext
// instead of opening their own connections. A non-nil error from fn rolls
// the transaction back; otherwise it commits.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(context.WithValue(ctx, TxKey, tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// TxFromContext returns the transaction carried by ctx, or nil when the
// caller is not running inside WithTx.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, ok := ctx.Value(TxKey).(pgx.Tx)
	if !ok {
		return nil
	}
	return tx
}
