package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	kpool "github.com/mlmetastore/mlmd/pkg/conn/db/postgres/pool"
	kdb "github.com/mlmetastore/mlmd/pkg/db"
	"github.com/mlmetastore/mlmd/pkg/db/postgres/catalog"
	"github.com/mlmetastore/mlmd/pkg/db/postgres/pgerr"
	"github.com/mlmetastore/mlmd/pkg/db/postgres/schema"
)

// Store is the pgx-backed db.Store: every public method runs its body in
// exactly one transaction, committing on success and rolling back on any error —
// including a context cancellation, which is reported as kdb.ErrCanceled
// rather than kdb.ErrInternal.
type Store struct {
	pool    kpool.Pool
	catalog *catalog.Catalog
}

var _ kdb.Store = &Store{}

// Open runs the Schema Manager's open protocol and, on success, returns a
// ready-to-use Store. A DowngradeCompleted result is returned as an error
// with a nil Store: the caller must not treat the
// store as usable.
func Open(ctx context.Context, pool kpool.Pool, cat *catalog.Catalog, directive kdb.MigrationDirective) (*Store, error) {
	if err := cat.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", kdb.ErrInvalidArgument, err)
	}

	mgr := schema.New(pool, cat)
	if _, err := mgr.Open(ctx, directive); err != nil {
		return nil, err
	}

	return &Store{pool: pool, catalog: cat}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return nil
}

// withTx runs f inside one transaction, committing on a nil error and
// rolling back otherwise. The transaction handed to f resolves catalog
// operation names to their SQL templates, so components address queries by
// name and only this layer ever sees engine text. Cancellation of ctx
// during f is reported as kdb.ErrCanceled.
func withTx[R any](ctx context.Context, s *Store, f func(kpool.Tx) (R, error)) (R, error) {
	var zero R

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return zero, fmt.Errorf("%w: %v", kdb.ErrCanceled, ctx.Err())
		}
		return zero, fmt.Errorf("%w: %v", kdb.ErrInternal, err)
	}

	result, err := f(&catalogTx{base: tx, catalog: s.catalog})
	if err != nil {
		_ = tx.Rollback(ctx)
		if ctx.Err() != nil || pgerr.IsCanceled(err) {
			return zero, fmt.Errorf("%w: %v", kdb.ErrCanceled, err)
		}
		return zero, err
	}

	if err := tx.Commit(ctx); err != nil {
		if ctx.Err() != nil || pgerr.IsCanceled(err) {
			return zero, fmt.Errorf("%w: %v", kdb.ErrCanceled, err)
		}
		return zero, fmt.Errorf("%w: %v", kdb.ErrInternal, err)
	}
	return result, nil
}

// catalogTx is the Tx every component sees: a thin decorator that swaps a
// catalog operation name for its SQL template before the statement reaches
// the driver. Strings that are not registered operation names pass through
// untouched.
type catalogTx struct {
	base    kpool.Tx
	catalog *catalog.Catalog
}

var _ kpool.Tx = &catalogTx{}

func (t *catalogTx) resolve(op string) string {
	if q, ok := t.catalog.Queries[op]; ok {
		return q
	}
	return op
}

func (t *catalogTx) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	return t.base.Exec(ctx, t.resolve(sql), args...)
}

func (t *catalogTx) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return t.base.Query(ctx, t.resolve(sql), args...)
}

func (t *catalogTx) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return t.base.QueryRow(ctx, t.resolve(sql), args...)
}

func (t *catalogTx) Begin(ctx context.Context) (kpool.Tx, error) {
	inner, err := t.base.Begin(ctx)
	if inner == nil {
		return nil, err
	}
	return &catalogTx{base: inner, catalog: t.catalog}, err
}

func (t *catalogTx) Commit(ctx context.Context) error {
	return t.base.Commit(ctx)
}

func (t *catalogTx) Rollback(ctx context.Context) error {
	return t.base.Rollback(ctx)
}

func (t *catalogTx) Conn() *pgx.Conn {
	return t.base.Conn()
}
