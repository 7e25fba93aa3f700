// Package dbx holds the unit-of-work abstraction every multi-record mutation
// goes through, plus its sqlx implementation.
package dbx

import (
	"context"
	"database/sql"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/jmoiron/sqlx"
)

var dbxErrors = errx.NewRegistry("DBX")

var (
	ErrBeginFailed  = dbxErrors.Register("BEGIN_FAILED", errx.TypeInternal, 0, "Failed to begin transaction")
	ErrCommitFailed = dbxErrors.Register("COMMIT_FAILED", errx.TypeInternal, 0, "Failed to commit transaction")
	ErrAborted      = dbxErrors.Register("ABORTED", errx.TypeInternal, 0, "Unit of work aborted")
)

// UnitOfWork hands out a repository set R. Repos returns the set bound to the
// plain connection; Transact binds a fresh set to one transaction, commits
// when fn returns nil and rolls back otherwise, including on panic.
type UnitOfWork[R any] interface {
	Repos() R
	Transact(ctx context.Context, fn func(ctx context.Context, repos R) error) error
}

// Querier is implemented by both *sqlx.DB and *sqlx.Tx.
type Querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
}

// SQLUnitOfWork implements UnitOfWork over a sqlx database.
type SQLUnitOfWork[R any] struct {
	db   *sqlx.DB
	bind func(Querier) R
	opts *sql.TxOptions
}

// NewSQLUnitOfWork wires bind, which builds repositories over any Querier.
func NewSQLUnitOfWork[R any](db *sqlx.DB, bind func(Querier) R) *SQLUnitOfWork[R] {
	return &SQLUnitOfWork[R]{db: db, bind: bind}
}

// WithTxOptions sets the isolation level and read-only flag for Transact.
func (u *SQLUnitOfWork[R]) WithTxOptions(opts *sql.TxOptions) *SQLUnitOfWork[R] {
	u.opts = opts
	return u
}

func (u *SQLUnitOfWork[R]) Repos() R {
	return u.bind(u.db)
}

func (u *SQLUnitOfWork[R]) Transact(ctx context.Context, fn func(ctx context.Context, repos R) error) (err error) {
	tx, err := u.db.BeginTxx(ctx, u.opts)
	if err != nil {
		return dbxErrors.NewWithCause(ErrBeginFailed, err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cErr := tx.Commit(); cErr != nil {
			err = dbxErrors.NewWithCause(ErrCommitFailed, cErr)
		}
	}()

	return fn(ctx, u.bind(tx))
}
