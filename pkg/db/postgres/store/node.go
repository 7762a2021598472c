// Package store implements the request-level components (Type Registry,
// Instance Store, Event Log, Graph Linker, Composite Writer) against
// PostgreSQL via the query catalog, and aggregates them behind db.Store.
//
// Artifact, Execution, and Context share 90% of their storage and
// validation logic, modeled here as one generic component parameterized by
// a small NodeSpec descriptor rather than three near-duplicate
// implementations.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"

	kpool "github.com/mlmetastore/mlmd/pkg/conn/db/postgres/pool"
	kdb "github.com/mlmetastore/mlmd/pkg/db"
	"github.com/mlmetastore/mlmd/pkg/db/postgres/catalog"
	"github.com/mlmetastore/mlmd/pkg/db/postgres/pgerr"
)

// NodeSpec describes how to translate one kind of instance (Artifact,
// Execution, or Context) to and from the generic {id, type_id, extra}
// core row plus its two property tables. "extra" is the one column each
// kind adds beyond Node: Artifact.URI, Execution.LastKnownState,
// Context.Name.
type NodeSpec[T any] struct {
	Kind kdb.Kind
	Ops  catalog.NodeOps

	ID        func(T) int64
	TypeID    func(T) int64
	Extra     func(T) any
	FromRow   func(id, typeID int64, extra any) T
	Props     func(T) (props, custom map[string]kdb.PropertyValue)
	WithProps func(T, map[string]kdb.PropertyValue, map[string]kdb.PropertyValue) T
}

// Put upserts items: items with Id == 0 are inserted, the rest updated in
// place. Property conformance against each item's type must already have
// been checked by the caller (instance.go looks the type up once per item).
func Put[T any](ctx context.Context, tx kpool.Tx, spec NodeSpec[T], items []T) ([]int64, error) {
	ids := make([]int64, len(items))
	for i, item := range items {
		id, err := putOne(ctx, tx, spec, item)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

func putOne[T any](ctx context.Context, tx kpool.Tx, spec NodeSpec[T], item T) (int64, error) {
	var id int64
	typeID := spec.TypeID(item)
	extra := spec.Extra(item)

	if spec.ID(item) == 0 {
		row := tx.QueryRow(ctx, spec.Ops.Insert, typeID, extra)
		if err := row.Scan(&id); err != nil {
			return 0, pgerr.Classify(err, spec.Ops.Table, "insert")
		}
	} else {
		id = spec.ID(item)
		if _, err := tx.Exec(ctx, spec.Ops.Update, typeID, extra, id); err != nil {
			return 0, pgerr.Classify(err, spec.Ops.Table, fmt.Sprintf("id=%d", id))
		}
	}

	props, custom := spec.Props(item)
	if err := upsertProperties(ctx, tx, spec.Ops, id, props, custom); err != nil {
		return 0, err
	}
	return id, nil
}

// GetByID returns the subset of ids that resolve, preserving no particular
// order beyond what the SELECT ... WHERE id = ANY($1) returns.
func GetByID[T any](ctx context.Context, tx kpool.Tx, spec NodeSpec[T], ids []int64) ([]T, error) {
	if len(ids) == 0 {
		return []T{}, nil
	}
	rows, err := tx.Query(ctx, spec.Ops.SelectByID, ids)
	if err != nil {
		return nil, pgerr.Classify(err, spec.Ops.Table, "select by id")
	}
	return scanNodes(ctx, tx, spec, rows)
}

// GetByType returns every instance of the named type, or an empty slice
// if the type is unknown or has no instances.
func GetByType[T any](ctx context.Context, tx kpool.Tx, spec NodeSpec[T], typeName string) ([]T, error) {
	rows, err := tx.Query(ctx, spec.Ops.SelectByType, int(spec.Kind), typeName)
	if err != nil {
		return nil, pgerr.Classify(err, spec.Ops.Table, typeName)
	}
	return scanNodes(ctx, tx, spec, rows)
}

// GetAll lists every instance of the kind, bounded by page.
func GetAll[T any](ctx context.Context, tx kpool.Tx, spec NodeSpec[T], page kdb.PageRequest) ([]T, error) {
	limit := page.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := tx.Query(ctx, spec.Ops.SelectAll, limit, page.Offset)
	if err != nil {
		return nil, pgerr.Classify(err, spec.Ops.Table, "select all")
	}
	return scanNodes(ctx, tx, spec, rows)
}

// GetByURI is Artifact-only; spec.Ops.SelectByURI is "" for kinds without
// a uri column and calling this for them is a programming error.
func GetByURI[T any](ctx context.Context, tx kpool.Tx, spec NodeSpec[T], uri string) ([]T, error) {
	rows, err := tx.Query(ctx, spec.Ops.SelectByURI, uri)
	if err != nil {
		return nil, pgerr.Classify(err, spec.Ops.Table, uri)
	}
	return scanNodes(ctx, tx, spec, rows)
}

// GetByTypeAndName is Context-only: the unique-name lookup PutContexts
// uses to decide whether an id-less context request is actually an
// AlreadyExists collision.
func GetByTypeAndName[T any](ctx context.Context, tx kpool.Tx, spec NodeSpec[T], typeID int64, name string) (T, bool, error) {
	row := tx.QueryRow(ctx, spec.Ops.SelectByTypeName, typeID, name)
	var id, gotTypeID int64
	var extra any
	if err := row.Scan(&id, &gotTypeID, &extra); err != nil {
		if err == pgx.ErrNoRows {
			var zero T
			return zero, false, nil
		}
		var zero T
		return zero, false, pgerr.Classify(err, spec.Ops.Table, name)
	}

	item := spec.FromRow(id, gotTypeID, extra)
	props, custom, err := loadProperties(ctx, tx, spec.Ops, id)
	if err != nil {
		var zero T
		return zero, false, err
	}
	return spec.WithProps(item, props, custom), true, nil
}

func scanNodes[T any](ctx context.Context, tx kpool.Tx, spec NodeSpec[T], rows pgx.Rows) ([]T, error) {
	defer rows.Close()

	type core struct {
		id, typeID int64
		extra      any
	}
	var cores []core
	for rows.Next() {
		var c core
		if err := rows.Scan(&c.id, &c.typeID, &c.extra); err != nil {
			return nil, pgerr.Classify(err, spec.Ops.Table, "scan")
		}
		cores = append(cores, c)
	}
	if err := rows.Err(); err != nil {
		return nil, pgerr.Classify(err, spec.Ops.Table, "scan")
	}

	items := make([]T, 0, len(cores))
	for _, c := range cores {
		props, custom, err := loadProperties(ctx, tx, spec.Ops, c.id)
		if err != nil {
			return nil, err
		}
		item := spec.FromRow(c.id, c.typeID, c.extra)
		items = append(items, spec.WithProps(item, props, custom))
	}
	return items, nil
}

// loadProperties and upsertProperties are the shared 90%: the three property tables are identical in shape, only
// the foreign key column name differs, which is irrelevant to a
// positionally-bound query.
func loadProperties(ctx context.Context, tx kpool.Tx, ops catalog.NodeOps, id int64) (map[string]kdb.PropertyValue, map[string]kdb.PropertyValue, error) {
	rows, err := tx.Query(ctx, ops.PropertySelect, id)
	if err != nil {
		return nil, nil, pgerr.Classify(err, ops.Table+"_properties", fmt.Sprintf("id=%d", id))
	}
	defer rows.Close()

	props := map[string]kdb.PropertyValue{}
	custom := map[string]kdb.PropertyValue{}
	for rows.Next() {
		var name string
		var isCustom bool
		var intValue pgtype.Int8
		var doubleValue pgtype.Float8
		var stringValue pgtype.Text
		if err := rows.Scan(&name, &isCustom, &intValue, &doubleValue, &stringValue); err != nil {
			return nil, nil, pgerr.Classify(err, ops.Table+"_properties", name)
		}

		var value kdb.PropertyValue
		switch {
		case intValue.Status == pgtype.Present:
			value = kdb.IntValue(intValue.Int)
		case doubleValue.Status == pgtype.Present:
			value = kdb.DoubleValue(doubleValue.Float)
		case stringValue.Status == pgtype.Present:
			value = kdb.StringValue(stringValue.String)
		default:
			return nil, nil, fmt.Errorf("%s: property %q has no non-null column: %w", ops.Table, name, kdb.ErrInternal)
		}

		if isCustom {
			custom[name] = value
		} else {
			props[name] = value
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, pgerr.Classify(err, ops.Table+"_properties", fmt.Sprintf("id=%d", id))
	}
	return props, custom, nil
}

func upsertProperties(ctx context.Context, tx kpool.Tx, ops catalog.NodeOps, id int64, props, custom map[string]kdb.PropertyValue) error {
	for name, v := range props {
		if err := upsertOneProperty(ctx, tx, ops, id, name, false, v); err != nil {
			return err
		}
	}
	for name, v := range custom {
		if err := upsertOneProperty(ctx, tx, ops, id, name, true, v); err != nil {
			return err
		}
	}
	return nil
}

func upsertOneProperty(ctx context.Context, tx kpool.Tx, ops catalog.NodeOps, id int64, name string, isCustom bool, v kdb.PropertyValue) error {
	intValue := pgtype.Int8{Status: pgtype.Null}
	doubleValue := pgtype.Float8{Status: pgtype.Null}
	stringValue := pgtype.Text{Status: pgtype.Null}
	switch v.Type {
	case kdb.PropertyTypeInt:
		intValue = pgtype.Int8{Int: v.IntValue, Status: pgtype.Present}
	case kdb.PropertyTypeDouble:
		doubleValue = pgtype.Float8{Float: v.DoubleValue, Status: pgtype.Present}
	case kdb.PropertyTypeString:
		stringValue = pgtype.Text{String: v.StringValue, Status: pgtype.Present}
	default:
		return fmt.Errorf("property %q has unknown tag: %w", name, kdb.ErrInvalidArgument)
	}

	_, err := tx.Exec(ctx, ops.PropertyUpsert, id, name, isCustom, intValue, doubleValue, stringValue)
	if err != nil {
		return pgerr.Classify(err, ops.Table+"_properties", name)
	}
	return nil
}
