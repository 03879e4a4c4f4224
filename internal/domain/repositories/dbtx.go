// Package repositories holds the storage abstractions shared by every
// repository: the statement executor, cursor connections and transactions.
package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool, *pgxpool.Conn and pgx.Tx, so a
// statement runs the same way inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row
}

// ConnSource hands out a single connection for the lifetime of a cursor.
// release must be called exactly once when the caller is done.
type ConnSource interface {
	Conn(ctx context.Context) (conn DBTX, release func(), err error)
}

// TxFn runs inside a transaction carried by ctx.
type TxFn func(ctx context.Context) error

// TransactionManager runs functions inside database transactions.
type TransactionManager interface {
	// ExecTx executes fn within a transaction. If ctx already carries a
	// transaction, fn joins it and the outer caller decides commit or rollback.
	ExecTx(ctx context.Context, fn TxFn) error

	// ExecNewTx always opens a fresh transaction, even when ctx carries one.
	// Used for short critical sections that must commit independently.
	ExecNewTx(ctx context.Context, fn TxFn) error
}

type txKey struct{}

// SetTx returns a context carrying tx.
func SetTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// GetTx returns the transaction carried by ctx, or nil.
func GetTx(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey{}).(pgx.Tx)
	return tx
}
