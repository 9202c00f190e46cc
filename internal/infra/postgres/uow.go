package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Brankond/Momentum/internal/gateway"
)

// Uow implements gateway.TransactionManager on a pgx pool.
type Uow struct {
	pool *pgxpool.Pool
}

func NewUow(pool *pgxpool.Pool) *Uow {
	return &Uow{pool: pool}
}

// Run executes fn inside one database transaction. The transaction
// handle is injected into the context so repositories can rebind to it
// with WithTx. An error from fn rolls everything back.
func (u *Uow) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := u.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel: pgx.ReadCommitted,
	})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// Rollback is a no-op after a successful commit.
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	ctxWithTx := context.WithValue(ctx, gateway.TransactionKey, tx)

	if err := fn(ctxWithTx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// querier is the subset of pgx shared by pools and transactions, so a
// repository can run against either.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// bind resolves the handle to query with: the transaction when one is
// present, the pool otherwise.
func bind(pool *pgxpool.Pool, tx gateway.TransactionObject) querier {
	if pgTx, ok := tx.(pgx.Tx); ok {
		return pgTx
	}
	return pool
}
