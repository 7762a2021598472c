// Package pgerr classifies errors coming out of the Postgres driver into
// the domain sentinel taxonomy of pkg/db (Missing/Conflict/Reference,
// each Unwrap-ing to a package-level sentinel).
package pgerr

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v4"

	kdb "github.com/mlmetastore/mlmd/pkg/db"
)

// Missing describes a read that found nothing where the caller expected
// exactly one row (e.g. GetType by name).
type Missing struct {
	Table    string
	Identity string
}

var _ error = Missing{}

func (m Missing) Error() string {
	return fmt.Sprintf("%s is not found in %s", m.Identity, m.Table)
}

func (m Missing) Unwrap() error {
	return kdb.ErrNotFound
}

// Conflict describes a write that collided with an existing row under a
// uniqueness constraint the core itself also enforces application-side
// (type names, context (type_id, name) pairs).
type Conflict struct {
	Table    string
	Identity string
}

var _ error = Conflict{}

func (c Conflict) Error() string {
	return fmt.Sprintf("%s already exists in %s", c.Identity, c.Table)
}

func (c Conflict) Unwrap() error {
	return kdb.ErrAlreadyExists
}

// Reference describes a write whose foreign key does not resolve (an event
// or edge pointing at an artifact/execution/context id that does not exist).
type Reference struct {
	Table    string
	Identity string
}

var _ error = Reference{}

func (r Reference) Error() string {
	return fmt.Sprintf("%s does not reference an existing row in %s", r.Identity, r.Table)
}

func (r Reference) Unwrap() error {
	return kdb.ErrInvalidArgument
}

// Classify maps a raw driver error onto the domain taxonomy. table and
// identity describe the row the caller was operating on and are only used
// to build a message; Classify never inspects them to decide the sentinel.
//
// Unmatched errors are wrapped as kdb.ErrInternal: the driver failed in a
// way the core does not have a specific story for.
func Classify(err error, table, identity string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return Missing{Table: table, Identity: identity}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return Conflict{Table: table, Identity: identity}
		case pgerrcode.ForeignKeyViolation:
			return Reference{Table: table, Identity: identity}
		case pgerrcode.NotNullViolation, pgerrcode.CheckViolation, pgerrcode.InvalidTextRepresentation:
			return fmt.Errorf("%s: %w", identity, kdb.ErrInvalidArgument)
		case pgerrcode.UndefinedTable, pgerrcode.UndefinedColumn:
			return fmt.Errorf("%s: schema not initialized: %w", table, kdb.ErrInternal)
		}
	}

	return fmt.Errorf("%s %s: %w: %v", table, identity, kdb.ErrInternal, err)
}

// IsCanceled reports whether err is (or wraps) a context cancellation,
// which the core re-classifies as kdb.ErrCanceled rather than Internal.
// context.Canceled and context.DeadlineExceeded are surfaced verbatim by
// pgx when the caller's context is done mid-query.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
