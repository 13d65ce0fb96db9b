// Package sqlxrepos implements the repositories on PostgreSQL, with sqlx for scanning
// and squirrel for query building.
package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/hostel/core"
)

const uniqueViolation = "23505"

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

func isDuplicateKeyError(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func newID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

// storeErr wraps a driver failure so the API reports the store as unavailable.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return core.NewStoreError(op, err)
}

// get runs a squirrel SELECT and scans a single row into dest.
// It returns notFound when no row matches.
func get(ctx context.Context, q sqlx.QueryerContext, dest interface{}, b squirrel.Sqlizer, notFound error) error {
	query, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	if err = sqlx.GetContext(ctx, q, dest, query, args...); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return notFound
		}
		return storeErr(query, err)
	}
	return nil
}

func selectAll(ctx context.Context, q sqlx.QueryerContext, dest interface{}, b squirrel.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return storeErr(query, sqlx.SelectContext(ctx, q, dest, query, args...))
}

func exec(ctx context.Context, e sqlx.ExecerContext, b squirrel.Sqlizer) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	res, err := e.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, storeErr(query, err)
	}
	n, err := res.RowsAffected()
	return n, storeErr(query, err)
}

// withTx runs fn in a transaction, committed only if fn succeeds.
func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return storeErr("begin", err)
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return storeErr("commit", tx.Commit())
}
