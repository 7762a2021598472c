package db

import "context"

// MigrationDirective is the optional open-time instruction governing how
// a version mismatch between the stored schema and the library is resolved.
// The zero value means "upgrade if below, fail otherwise" — i.e. upgrades
// enabled, no downgrade requested.
type MigrationDirective struct {
	// DisableUpgrade, when true, turns an S < L mismatch into a hard
	// VersionMismatch instead of an automatic forward migration.
	DisableUpgrade bool

	// DowngradeTo, when non-nil, requests a one-shot downgrade to the
	// given version instead of a normal open.
	DowngradeTo *int
}

// SchemaManager is the Schema Manager component.
type SchemaManager interface {
	// Init creates the schema unconditionally, failing if tables already exist.
	Init(ctx context.Context) error

	// InitIfNotExists is idempotent: OK if the versioned env row already
	// reports the library version; ErrDataLoss if a legacy-unversioned
	// schema is found; creates the schema on an empty store; a store
	// versioned at another version goes through Open with directive.
	InitIfNotExists(ctx context.Context, directive MigrationDirective) error

	// Open runs the full state-machine transition and
	// returns the resulting schema version. A downgrade directive that
	// completes returns (v, ErrDowngradeCompleted) — callers must treat
	// that as "the store is not usable, exit cleanly", never as a normal
	// error to retry.
	Open(ctx context.Context, directive MigrationDirective) (version int, err error)
}

// Store aggregates every core component behind one handle.
type Store interface {
	TypeRegistry
	InstanceStore
	EventLog
	GraphLinker
	ExecutionWriter

	Close(ctx context.Context) error
}
