package sqlxrepos

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/studyhub/core"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type (
	// querier is implemented by both *sqlx.DB and *sqlx.Tx.
	querier interface {
		sqlx.ExtContext
		GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
		SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	}

	txKey struct{}

	// Transactor runs functions inside a database transaction carried by the context.
	Transactor struct {
		db *sqlx.DB
	}
)

var _ core.Transactor = (*Transactor)(nil) // interface compliance check

func NewTransactor(db *sqlx.DB) *Transactor {
	return &Transactor{db: db}
}

func (t *Transactor) InTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	ctx, hooks, owner := core.WithTxHooks(ctx)
	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rolling back: %v", rbErr)
		}
		return err
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}
	if owner {
		hooks.Run()
	}
	return nil
}

// conn returns the transaction carried by ctx, or db.
func conn(ctx context.Context, db *sqlx.DB) querier {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return db
}

func inTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*sqlx.Tx)
	return ok
}

func get(ctx context.Context, db *sqlx.DB, dest interface{}, qb sq.Sqlizer) error {
	query, args, err := qb.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return conn(ctx, db).GetContext(ctx, dest, query, args...)
}

func selectRows(ctx context.Context, db *sqlx.DB, dest interface{}, qb sq.Sqlizer) error {
	query, args, err := qb.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return conn(ctx, db).SelectContext(ctx, dest, query, args...)
}

func exec(ctx context.Context, db *sqlx.DB, qb sq.Sqlizer) (int64, error) {
	query, args, err := qb.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	res, err := conn(ctx, db).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// notFound maps sql.ErrNoRows to errNotFound.
func notFound(err, errNotFound error) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return errNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	return ok && pqErr.Code == "23505"
}

// orderBy returns the ORDER BY clauses of the orderings whose field is allowed.
func orderBy(ordering []core.DBOrdering, allowed map[string]bool) []string {
	clauses := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if allowed[ord.Field] {
			clauses = append(clauses, ord.String())
		}
	}
	return clauses
}

// textArray binds ss as a TEXT[], nil as an empty array.
func textArray(ss []string) interface{} {
	if ss == nil {
		ss = []string{}
	}
	return pq.Array(ss)
}
