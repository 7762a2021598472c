// Package schema implements the Schema Manager: the open-time state
// machine that initializes, verifies, upgrades, or downgrades the physical
// schema before any other operation runs, checking the stored version
// against the catalog's in-memory MigrationSchemes map one step at a time
// rather than watching a directory of SQL files.
package schema

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v4"

	kpool "github.com/mlmetastore/mlmd/pkg/conn/db/postgres/pool"
	kdb "github.com/mlmetastore/mlmd/pkg/db"
	"github.com/mlmetastore/mlmd/pkg/db/postgres/catalog"
)

// Manager is the pgx-backed db.SchemaManager.
type Manager struct {
	pool    kpool.Pool
	catalog *catalog.Catalog
}

var _ kdb.SchemaManager = &Manager{}

// New creates a Manager bound to pool and catalog. catalog.Validate should
// already have been called by the caller (the CLI boundary does this
// before ever handing a catalog to Open).
func New(pool kpool.Pool, cat *catalog.Catalog) *Manager {
	return &Manager{pool: pool, catalog: cat}
}

// Init creates the schema unconditionally, failing if tables already exist.
func (m *Manager) Init(ctx context.Context) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", kdb.ErrInternal, err)
	}
	defer tx.Rollback(ctx)

	for _, ddl := range m.catalog.CreateAllTables {
		if _, err := tx.Exec(ctx, ddl); err != nil {
			if isDuplicateTable(err) {
				return fmt.Errorf("schema already initialized: %w", kdb.ErrAlreadyExists)
			}
			return fmt.Errorf("%w: %v", kdb.ErrInternal, err)
		}
	}
	if _, err := tx.Exec(ctx, m.catalog.Query(catalog.OpEnvInsertVersion), m.catalog.SchemaVersion); err != nil {
		return fmt.Errorf("%w: %v", kdb.ErrInternal, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %v", kdb.ErrInternal, err)
	}
	return nil
}

// InitIfNotExists is idempotent:
// if the store is already versioned at the library version, it is a no-op
// regardless of directive.DisableUpgrade — that flag only governs what
// happens when the stored version falls short, not whether the "are we
// already current" check itself runs.
func (m *Manager) InitIfNotExists(ctx context.Context, directive kdb.MigrationDirective) error {
	state, version, err := m.probe(ctx)
	if err != nil {
		return err
	}

	switch state {
	case stateEmpty:
		return m.Init(ctx)
	case stateLegacyUnversioned:
		return fmt.Errorf("legacy unversioned schema found, explicit migration required: %w", kdb.ErrDataLoss)
	case stateVersioned:
		if version == m.catalog.SchemaVersion {
			return nil
		}
		_, err := m.Open(ctx, directive)
		return err
	default:
		return fmt.Errorf("%w: unreachable schema state", kdb.ErrInternal)
	}
}

// Open runs the full open-time transition.
func (m *Manager) Open(ctx context.Context, directive kdb.MigrationDirective) (int, error) {
	if directive.DowngradeTo != nil {
		v := *directive.DowngradeTo
		if v < 0 || v > m.catalog.SchemaVersion {
			return -1, fmt.Errorf("downgrade target %d out of range [0, %d]: %w", v, m.catalog.SchemaVersion, kdb.ErrInvalidArgument)
		}
	}

	state, stored, err := m.probe(ctx)
	if err != nil {
		return -1, err
	}

	switch state {
	case stateEmpty:
		if directive.DowngradeTo != nil {
			return -1, fmt.Errorf("cannot downgrade an uninitialized store: %w", kdb.ErrInvalidArgument)
		}
		if err := m.Init(ctx); err != nil {
			return -1, err
		}
		return m.catalog.SchemaVersion, nil

	case stateLegacyUnversioned:
		// Legacy-unversioned tables are, by definition, the physical
		// layout that predates MLMDEnv — for this library that is
		// exactly today's tables minus the env row, i.e. version 0. The
		// first "upgrade" step is therefore a pure stamp (add MLMDEnv,
		// no DDL against already-present tables), not a re-run of
		// CreateAllTables.
		if directive.DowngradeTo == nil && !directive.DisableUpgrade {
			if err := m.stampLegacy(ctx, m.catalog.SchemaVersion); err != nil {
				return -1, err
			}
			return m.catalog.SchemaVersion, nil
		}
		stored = 0
	}

	L := m.catalog.SchemaVersion

	if directive.DowngradeTo != nil {
		target := *directive.DowngradeTo
		if err := m.downgrade(ctx, stored, target); err != nil {
			return -1, err
		}
		return target, kdb.ErrDowngradeCompleted
	}

	switch {
	case stored == L:
		return L, nil
	case stored < L:
		if directive.DisableUpgrade {
			return -1, fmt.Errorf("stored schema version %d below library version %d and upgrades disabled: %w", stored, L, kdb.ErrVersionMismatch)
		}
		if err := m.upgrade(ctx, stored, L); err != nil {
			return -1, err
		}
		return L, nil
	default: // stored > L
		return -1, fmt.Errorf("stored schema version %d is newer than library version %d: %w", stored, L, kdb.ErrVersionMismatch)
	}
}

type probeState int

const (
	stateEmpty probeState = iota
	stateVersioned
	stateLegacyUnversioned
)

// probe inspects the physical store and classifies it into one of three
// states.
func (m *Manager) probe(ctx context.Context) (probeState, int, error) {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return 0, -1, fmt.Errorf("%w: %v", kdb.ErrInternal, err)
	}
	defer tx.Rollback(ctx)

	var version int
	err = tx.QueryRow(ctx, m.catalog.Query(catalog.OpEnvSelectVersion)).Scan(&version)
	switch {
	case err == nil:
		return stateVersioned, version, nil
	case isUndefinedTable(err):
		// mlmd_env is missing. Either nothing exists yet, or a
		// legacy-unversioned layout is present (the "types" table exists
		// without mlmd_env). The failed query aborted tx, so the second
		// probe runs in a fresh transaction.
		tx.Rollback(ctx)
		ptx, err := m.pool.Begin(ctx)
		if err != nil {
			return 0, -1, fmt.Errorf("%w: %v", kdb.ErrInternal, err)
		}
		defer ptx.Rollback(ctx)
		var one int
		probeErr := ptx.QueryRow(ctx, `SELECT 1 FROM types LIMIT 1`).Scan(&one)
		if probeErr == nil || errors.Is(probeErr, pgx.ErrNoRows) {
			return stateLegacyUnversioned, 0, nil
		}
		if isUndefinedTable(probeErr) {
			return stateEmpty, -1, nil
		}
		return 0, -1, fmt.Errorf("%w: %v", kdb.ErrInternal, probeErr)
	default:
		return 0, -1, fmt.Errorf("%w: %v", kdb.ErrInternal, err)
	}
}

func (m *Manager) upgrade(ctx context.Context, from, to int) error {
	for v := from; v < to; v++ {
		scheme, ok := m.catalog.MigrationSchemes[v]
		if !ok {
			return fmt.Errorf("no upgrade scheme registered for version %d: %w", v, kdb.ErrInternal)
		}
		if err := m.applyStep(ctx, scheme.UpgradeQueries, v+1); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) downgrade(ctx context.Context, from, to int) error {
	for v := from; v > to; v-- {
		scheme, ok := m.catalog.MigrationSchemes[v-1]
		if !ok {
			return fmt.Errorf("no downgrade scheme registered for version %d: %w", v, kdb.ErrInternal)
		}
		if err := m.applyStep(ctx, scheme.DowngradeQueries, v-1); err != nil {
			return err
		}
	}
	return nil
}

// applyStep runs one migration step's queries and records the resulting
// version, all in one transaction.
func (m *Manager) applyStep(ctx context.Context, queries []string, resultVersion int) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", kdb.ErrInternal, err)
	}
	defer tx.Rollback(ctx)

	for _, q := range queries {
		if _, err := tx.Exec(ctx, q); err != nil {
			return fmt.Errorf("migration step to version %d failed: %w: %v", resultVersion, kdb.ErrInternal, err)
		}
	}

	if resultVersion == 0 {
		if _, err := tx.Exec(ctx, `DROP TABLE IF EXISTS mlmd_env`); err != nil {
			return fmt.Errorf("%w: %v", kdb.ErrInternal, err)
		}
	} else {
		tag, err := tx.Exec(ctx, `UPDATE mlmd_env SET schema_version = $1`, resultVersion)
		if err != nil {
			return fmt.Errorf("%w: %v", kdb.ErrInternal, err)
		}
		// an mlmd_env table with no version row yet gets an insert instead.
		if tag.RowsAffected() == 0 {
			if _, err := tx.Exec(ctx, m.catalog.Query(catalog.OpEnvInsertVersion), resultVersion); err != nil {
				return fmt.Errorf("%w: %v", kdb.ErrInternal, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %v", kdb.ErrInternal, err)
	}
	return nil
}

// stampLegacy adds the mlmd_env table and its single version row to a
// pre-versioning layout whose other tables already match the current
// schema. It never touches the domain tables.
func (m *Manager) stampLegacy(ctx context.Context, version int) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", kdb.ErrInternal, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `CREATE TABLE IF NOT EXISTS mlmd_env ( schema_version INT NOT NULL )`); err != nil {
		return fmt.Errorf("%w: %v", kdb.ErrInternal, err)
	}
	if _, err := tx.Exec(ctx, m.catalog.Query(catalog.OpEnvInsertVersion), version); err != nil {
		return fmt.Errorf("%w: %v", kdb.ErrInternal, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %v", kdb.ErrInternal, err)
	}
	return nil
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UndefinedTable
	}
	return false
}

func isDuplicateTable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.DuplicateTable
	}
	return false
}
