package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"

	kpool "github.com/mlmetastore/mlmd/pkg/conn/db/postgres/pool"
	kdb "github.com/mlmetastore/mlmd/pkg/db"
	"github.com/mlmetastore/mlmd/pkg/db/postgres/catalog"
	"github.com/mlmetastore/mlmd/pkg/db/postgres/pgerr"
	"github.com/mlmetastore/mlmd/pkg/utils/maps"
	"github.com/mlmetastore/mlmd/pkg/utils/tuple"
)

// PutType implements the Type Registry's evolution rules: insert on first sight; on a name collision, reconcile the
// requested property set against the stored one per opts and either
// return the existing id unchanged or extend it.
func (s *Store) PutType(ctx context.Context, kind kdb.Kind, t kdb.Type, opts kdb.PutTypeOptions) (int64, error) {
	return withTx(ctx, s, func(tx kpool.Tx) (int64, error) {
		return putType(ctx, tx, kind, t, opts)
	})
}

func putType(ctx context.Context, tx kpool.Tx, kind kdb.Kind, t kdb.Type, opts kdb.PutTypeOptions) (int64, error) {
	if t.Name == "" {
		return 0, fmt.Errorf("type name must not be empty: %w", kdb.ErrInvalidArgument)
	}

	stored, found, err := getTypeByName(ctx, tx, kind, t.Name)
	if err != nil {
		return 0, err
	}
	if !found {
		return insertType(ctx, tx, kind, t)
	}

	merged, err := reconcileType(stored, t, opts)
	if err != nil {
		return 0, err
	}
	if len(merged.Properties) > len(stored.Properties) {
		if err := insertTypeProperties(ctx, tx, stored.Id, diffNew(stored.Properties, merged.Properties)); err != nil {
			return 0, err
		}
	}
	return stored.Id, nil
}

// reconcileType implements the type evolution diff rules:
// equal property sets are a no-op; a pure addition is allowed iff
// CanAddFields; a pure omission is allowed iff CanOmitFields; any
// overlapping name with a different tag is always rejected.
func reconcileType(stored, requested kdb.Type, opts kdb.PutTypeOptions) (kdb.Type, error) {
	for name, reqKind := range requested.Properties {
		if storedKind, ok := stored.Properties[name]; ok && storedKind != reqKind {
			return kdb.Type{}, fmt.Errorf("property %q changes type from %s to %s: %w", name, storedKind, reqKind, kdb.ErrAlreadyExists)
		}
	}

	adds := diffNew(stored.Properties, requested.Properties)
	omits := diffNew(requested.Properties, stored.Properties)

	if len(adds) == 0 && len(omits) == 0 {
		return stored, nil
	}
	if len(adds) > 0 && !opts.CanAddFields {
		return kdb.Type{}, fmt.Errorf("type %q adds properties without can_add_fields: %w", stored.Name, kdb.ErrAlreadyExists)
	}
	if len(omits) > 0 && !opts.CanOmitFields {
		return kdb.Type{}, fmt.Errorf("type %q omits properties without can_omit_fields: %w", stored.Name, kdb.ErrAlreadyExists)
	}

	merged := stored
	merged.Properties = map[string]kdb.PropertyType{}
	for k, v := range stored.Properties {
		merged.Properties[k] = v
	}
	for k, v := range adds {
		merged.Properties[k] = v
	}
	return merged, nil
}

// diffNew returns the entries of b whose names are not present in a.
func diffNew(a, b map[string]kdb.PropertyType) map[string]kdb.PropertyType {
	out := map[string]kdb.PropertyType{}
	for name, kind := range b {
		if _, ok := a[name]; !ok {
			out[name] = kind
		}
	}
	return out
}

func insertType(ctx context.Context, tx kpool.Tx, kind kdb.Kind, t kdb.Type) (int64, error) {
	var id int64
	row := tx.QueryRow(ctx, catalog.OpTypeInsert, int(kind), t.Name)
	if err := row.Scan(&id); err != nil {
		return 0, pgerr.Classify(err, "types", t.Name)
	}
	if err := insertTypeProperties(ctx, tx, id, t.Properties); err != nil {
		return 0, err
	}
	return id, nil
}

func insertTypeProperties(ctx context.Context, tx kpool.Tx, typeID int64, props map[string]kdb.PropertyType) error {
	for name, kind := range props {
		if _, err := tx.Exec(ctx, catalog.OpTypePropertyInsert, typeID, name, int(kind)); err != nil {
			return pgerr.Classify(err, "type_properties", name)
		}
	}
	return nil
}

func getTypeByName(ctx context.Context, tx kpool.Tx, kind kdb.Kind, name string) (kdb.Type, bool, error) {
	row := tx.QueryRow(ctx, catalog.OpTypeSelectByName, int(kind), name)
	var t kdb.Type
	var gotKind int
	if err := row.Scan(&t.Id, &gotKind, &t.Name); err != nil {
		if err == pgx.ErrNoRows {
			return kdb.Type{}, false, nil
		}
		return kdb.Type{}, false, pgerr.Classify(err, "types", name)
	}
	t.Kind = kind
	props, err := loadTypeProperties(ctx, tx, t.Id)
	if err != nil {
		return kdb.Type{}, false, err
	}
	t.Properties = props
	return t, true, nil
}

func loadTypeProperties(ctx context.Context, tx kpool.Tx, typeID int64) (map[string]kdb.PropertyType, error) {
	rows, err := tx.Query(ctx, catalog.OpTypePropertySelect, typeID)
	if err != nil {
		return nil, pgerr.Classify(err, "type_properties", fmt.Sprintf("type_id=%d", typeID))
	}
	defer rows.Close()

	props := map[string]kdb.PropertyType{}
	for rows.Next() {
		var name string
		var dataType int
		if err := rows.Scan(&name, &dataType); err != nil {
			return nil, pgerr.Classify(err, "type_properties", name)
		}
		props[name] = kdb.PropertyType(dataType)
	}
	return props, rows.Err()
}

// GetType returns the stored type of (kind, name), or ErrNotFound.
func (s *Store) GetType(ctx context.Context, kind kdb.Kind, name string) (kdb.Type, error) {
	return withTx(ctx, s, func(tx kpool.Tx) (kdb.Type, error) {
		t, found, err := getTypeByName(ctx, tx, kind, name)
		if err != nil {
			return kdb.Type{}, err
		}
		if !found {
			return kdb.Type{}, pgerr.Missing{Table: "types", Identity: name}
		}
		return t, nil
	})
}

// GetTypes returns all types of a kind, in insertion order (id ascending,
// since ids are assigned monotonically).
func (s *Store) GetTypes(ctx context.Context, kind kdb.Kind) ([]kdb.Type, error) {
	return withTx(ctx, s, func(tx kpool.Tx) ([]kdb.Type, error) {
		return listTypes(ctx, tx, kind)
	})
}

func listTypes(ctx context.Context, tx kpool.Tx, kind kdb.Kind) ([]kdb.Type, error) {
	rows, err := tx.Query(ctx, catalog.OpTypeSelectAll, int(kind))
	if err != nil {
		return nil, pgerr.Classify(err, "types", "select all")
	}
	defer rows.Close()

	var ids []int64
	var names []string
	for rows.Next() {
		var id int64
		var gotKind int
		var name string
		if err := rows.Scan(&id, &gotKind, &name); err != nil {
			return nil, pgerr.Classify(err, "types", name)
		}
		ids = append(ids, id)
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	types := make([]kdb.Type, 0, len(ids))
	for i, id := range ids {
		props, err := loadTypeProperties(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		types = append(types, kdb.Type{Id: id, Kind: kind, Name: names[i], Properties: props})
	}
	return types, nil
}

// GetTypesByID returns the subset of ids that exist; missing ids are
// silently dropped.
func (s *Store) GetTypesByID(ctx context.Context, kind kdb.Kind, ids []int64) ([]kdb.Type, error) {
	return withTx(ctx, s, func(tx kpool.Tx) ([]kdb.Type, error) {
		if len(ids) == 0 {
			return []kdb.Type{}, nil
		}
		rows, err := tx.Query(ctx, catalog.OpTypeSelectByID, int(kind), ids)
		if err != nil {
			return nil, pgerr.Classify(err, "types", "select by id")
		}
		defer rows.Close()

		var found []kdb.Type
		for rows.Next() {
			var id int64
			var gotKind int
			var name string
			if err := rows.Scan(&id, &gotKind, &name); err != nil {
				return nil, pgerr.Classify(err, "types", name)
			}
			props, err := loadTypeProperties(ctx, tx, id)
			if err != nil {
				return nil, err
			}
			found = append(found, kdb.Type{Id: id, Kind: kind, Name: name, Properties: props})
		}
		return found, rows.Err()
	})
}

// GetArtifactTypesByID, GetExecutionTypesByID, and GetContextTypesByID are
// thin per-kind wrappers over GetTypesByID, kept for API-surface parity
// with the original per-kind method set.
func (s *Store) GetArtifactTypesByID(ctx context.Context, ids []int64) ([]kdb.Type, error) {
	return s.GetTypesByID(ctx, kdb.KindArtifact, ids)
}

func (s *Store) GetExecutionTypesByID(ctx context.Context, ids []int64) ([]kdb.Type, error) {
	return s.GetTypesByID(ctx, kdb.KindExecution, ids)
}

func (s *Store) GetContextTypesByID(ctx context.Context, ids []int64) ([]kdb.Type, error) {
	return s.GetTypesByID(ctx, kdb.KindContext, ids)
}

// PutTypes accepts artifact, execution, and context types in one
// transaction. Within the batch, duplicate entries
// (same kind+name+properties) collapse to the same id — tracked with an
// insertion-ordered map so the first occurrence of a duplicate always
// wins the lookup, using the ordered-map idiom of
// pkg/utils/maps.OrderedMap rather than a bare Go map with
// unspecified iteration order.
func (s *Store) PutTypes(ctx context.Context, req kdb.PutTypesRequest) (kdb.PutTypesResponse, error) {
	return withTx(ctx, s, func(tx kpool.Tx) (kdb.PutTypesResponse, error) {
		seen := maps.NewOrderedMap[tuple.Triple[kdb.Kind, string, string], int64]()

		put := func(kind kdb.Kind, types []kdb.Type) ([]int64, error) {
			ids := make([]int64, len(types))
			for i, t := range types {
				key := tuple.TripleOf(kind, t.Name, propertiesKey(t.Properties))
				if id, ok := seen.Get(key); ok {
					ids[i] = id
					continue
				}
				id, err := putType(ctx, tx, kind, t, req.Options)
				if err != nil {
					return nil, err
				}
				seen.Set(key, id)
				ids[i] = id
			}
			return ids, nil
		}

		artifactIDs, err := put(kdb.KindArtifact, req.ArtifactTypes)
		if err != nil {
			return kdb.PutTypesResponse{}, err
		}
		executionIDs, err := put(kdb.KindExecution, req.ExecutionTypes)
		if err != nil {
			return kdb.PutTypesResponse{}, err
		}
		contextIDs, err := put(kdb.KindContext, req.ContextTypes)
		if err != nil {
			return kdb.PutTypesResponse{}, err
		}

		return kdb.PutTypesResponse{
			ArtifactTypeIds:  artifactIDs,
			ExecutionTypeIds: executionIDs,
			ContextTypeIds:   contextIDs,
		}, nil
	})
}

func propertiesKey(props map[string]kdb.PropertyType) string {
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	// sort for a stable key regardless of map iteration order.
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j-1] > names[j]; j-- {
			names[j-1], names[j] = names[j], names[j-1]
		}
	}
	key := ""
	for _, name := range names {
		key += fmt.Sprintf("%s=%d;", name, props[name])
	}
	return key
}

// checkConformance validates an instance's declared properties against
// its type: unknown names or wrong-tag values
// are rejected with InvalidArgument. custom_properties bypass this check
// entirely — the caller never passes them in.
func (s *Store) checkConformance(ctx context.Context, tx kpool.Tx, kind kdb.Kind, typeID int64, props map[string]kdb.PropertyValue) error {
	if len(props) == 0 {
		return nil
	}

	declared, err := loadTypeProperties(ctx, tx, typeID)
	if err != nil {
		return err
	}
	if len(declared) == 0 {
		return fmt.Errorf("type_id=%d has no properties declared but instance sets %d: %w", typeID, len(props), kdb.ErrInvalidArgument)
	}

	for name, value := range props {
		declaredKind, ok := declared[name]
		if !ok {
			return fmt.Errorf("property %q is not declared on type_id=%d: %w", name, typeID, kdb.ErrInvalidArgument)
		}
		if declaredKind != value.Type {
			return fmt.Errorf("property %q has tag %s, type declares %s: %w", name, value.Type, declaredKind, kdb.ErrInvalidArgument)
		}
	}
	return nil
}
