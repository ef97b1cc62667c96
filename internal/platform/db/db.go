package db

import (
	"context"
	"database/sql"
	"time"
)

type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type TxManager interface {
	// RunInTx executes the given function within a database transaction.
	// It begins a transaction, calls the function with a new context
	// containing the transaction, and then commits or rolls back
	// based on the function's return value.
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Conn returns the transaction stored in ctx, or fallback when ctx carries none.
// Repositories call it so their writes join a transaction started by RunInTx.
//
//nolint:ireturn // callers only need the Executor methods
func Conn(ctx context.Context, fallback Executor) Executor {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	return fallback
}

// NullTime converts an optional timestamp for a nullable column.
func NullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// TimePtr is the inverse of NullTime.
func TimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// NullString maps the empty string to NULL.
func NullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
