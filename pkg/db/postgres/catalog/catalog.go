// Package catalog holds the query catalog: the external configuration
// object that maps named operations onto SQL templates for a target engine,
// and declares the schema lifecycle (library version and migration
// schemes) that the schema manager consumes.
package catalog

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// MigrationScheme is the step between version v and v+1: Upgrade moves the
// schema from v to v+1, Downgrade moves it from v+1 back to v.
type MigrationScheme struct {
	UpgradeQueries   []string `yaml:"upgrade_queries"`
	DowngradeQueries []string `yaml:"downgrade_queries"`
}

// Catalog is a named-operation → SQL template map plus the schema lifecycle
// declaration. The core never constructs SQL text itself; it looks up a
// named operation here and binds parameters positionally.
type Catalog struct {
	// SchemaVersion is the library's current schema version. This is a
	// build-time constant of the catalog, never inferred from the store.
	SchemaVersion int `yaml:"schema_version"`

	// MigrationSchemes maps a version v to the scripts that move v to v+1
	// (forward) or v+1 back to v (backward). The schema manager walks this map
	// rather than a hard-coded ladder.
	MigrationSchemes map[int]MigrationScheme `yaml:"migration_schemes"`

	// CreateAllTables and DropAllTables implement InitMetadataStore.
	CreateAllTables []string `yaml:"create_all_tables"`
	DropAllTables   []string `yaml:"drop_all_tables"`

	// Queries is the named-operation → SQL template map. Keys are the
	// OpXxx constants below.
	Queries map[string]string `yaml:"queries"`
}

// Named operations. The zero value of this type is never used as a key;
// every catalog is expected to define all of them (Validate checks this).
const (
	OpEnvSelectVersion = "env_select_version"
	OpEnvInsertVersion = "env_insert_version"
	OpEnvUpdateVersion = "env_update_version"

	OpTypeInsert         = "type_insert"
	OpTypeSelectByName   = "type_select_by_name"
	OpTypeSelectByID     = "type_select_by_id"
	OpTypeSelectAll      = "type_select_all"
	OpTypePropertyInsert = "type_property_insert"
	OpTypePropertySelect = "type_property_select"

	// Per-kind node operations. The Instance Store is one generic Go
	// component parameterized by a NodeOps descriptor; the catalog still needs one SQL template per kind because
	// each kind owns its own table.
	OpArtifactInsert         = "artifact_insert"
	OpArtifactUpdate         = "artifact_update"
	OpArtifactSelectByID     = "artifact_select_by_id"
	OpArtifactSelectByType   = "artifact_select_by_type"
	OpArtifactSelectByURI    = "artifact_select_by_uri"
	OpArtifactSelectAll      = "artifact_select_all"
	OpArtifactPropertyUpsert = "artifact_property_upsert"
	OpArtifactPropertySelect = "artifact_property_select"

	OpExecutionInsert         = "execution_insert"
	OpExecutionUpdate         = "execution_update"
	OpExecutionSelectByID     = "execution_select_by_id"
	OpExecutionSelectByType   = "execution_select_by_type"
	OpExecutionSelectAll      = "execution_select_all"
	OpExecutionPropertyUpsert = "execution_property_upsert"
	OpExecutionPropertySelect = "execution_property_select"

	OpContextInsert              = "context_insert"
	OpContextUpdate              = "context_update"
	OpContextSelectByID          = "context_select_by_id"
	OpContextSelectByType        = "context_select_by_type"
	OpContextSelectAll           = "context_select_all"
	OpContextSelectByTypeAndName = "context_select_by_type_and_name"
	OpContextPropertyUpsert      = "context_property_upsert"
	OpContextPropertySelect      = "context_property_select"

	OpEventInsert            = "event_insert"
	OpEventPathInsert        = "event_path_insert"
	OpEventPathSelectByEvent = "event_path_select_by_event"
	OpEventSelectByArtifact  = "event_select_by_artifact"
	OpEventSelectByExecution = "event_select_by_execution"

	OpAttributionInsert   = "attribution_insert"
	OpAssociationInsert   = "association_insert"
	OpContextsByArtifact  = "contexts_by_artifact"
	OpContextsByExecution = "contexts_by_execution"
	OpArtifactsByContext  = "artifacts_by_context"
	OpExecutionsByContext = "executions_by_context"
)

// allOps is used by Validate to check completeness of a catalog, including
// one loaded from an operator-supplied override file.
var allOps = []string{
	OpEnvSelectVersion, OpEnvInsertVersion, OpEnvUpdateVersion,
	OpTypeInsert, OpTypeSelectByName, OpTypeSelectByID, OpTypeSelectAll,
	OpTypePropertyInsert, OpTypePropertySelect,

	OpArtifactInsert, OpArtifactUpdate, OpArtifactSelectByID, OpArtifactSelectByType,
	OpArtifactSelectByURI, OpArtifactSelectAll, OpArtifactPropertyUpsert, OpArtifactPropertySelect,

	OpExecutionInsert, OpExecutionUpdate, OpExecutionSelectByID, OpExecutionSelectByType,
	OpExecutionSelectAll, OpExecutionPropertyUpsert, OpExecutionPropertySelect,

	OpContextInsert, OpContextUpdate, OpContextSelectByID, OpContextSelectByType,
	OpContextSelectAll, OpContextSelectByTypeAndName, OpContextPropertyUpsert, OpContextPropertySelect,

	OpEventInsert, OpEventPathInsert, OpEventPathSelectByEvent,
	OpEventSelectByArtifact, OpEventSelectByExecution,
	OpAttributionInsert, OpAssociationInsert,
	OpContextsByArtifact, OpContextsByExecution, OpArtifactsByContext, OpExecutionsByContext,
}

// NodeOps is the per-kind bundle of operation names the generic node store
// (pkg/db/postgres/store) dispatches through. One instance per kind
// (Artifact, Execution, Context) is all the generic implementation needs to
// tell the three kinds' tables apart.
type NodeOps struct {
	Table            string
	Insert           string
	Update           string
	SelectByID       string
	SelectByType     string
	SelectByURI      string // "" for kinds without a uri column
	SelectAll        string
	PropertyUpsert   string
	PropertySelect   string
	SelectByTypeName string // "" for kinds without a unique (type_id, name)
}

var (
	ArtifactNodeOps = NodeOps{
		Table: "artifacts", Insert: OpArtifactInsert, Update: OpArtifactUpdate,
		SelectByID: OpArtifactSelectByID, SelectByType: OpArtifactSelectByType,
		SelectByURI: OpArtifactSelectByURI, SelectAll: OpArtifactSelectAll,
		PropertyUpsert: OpArtifactPropertyUpsert, PropertySelect: OpArtifactPropertySelect,
	}
	ExecutionNodeOps = NodeOps{
		Table: "executions", Insert: OpExecutionInsert, Update: OpExecutionUpdate,
		SelectByID: OpExecutionSelectByID, SelectByType: OpExecutionSelectByType,
		SelectAll: OpExecutionSelectAll,
		PropertyUpsert: OpExecutionPropertyUpsert, PropertySelect: OpExecutionPropertySelect,
	}
	ContextNodeOps = NodeOps{
		Table: "contexts", Insert: OpContextInsert, Update: OpContextUpdate,
		SelectByID: OpContextSelectByID, SelectByType: OpContextSelectByType,
		SelectAll: OpContextSelectAll, SelectByTypeName: OpContextSelectByTypeAndName,
		PropertyUpsert: OpContextPropertyUpsert, PropertySelect: OpContextPropertySelect,
	}
)

// Query looks up a named operation's SQL template. A missing key is a
// programming error in the catalog (caught by Validate at load time), not
// a condition callers are expected to handle — so this panics rather than
// returning an error.
func (c *Catalog) Query(op string) string {
	q, ok := c.Queries[op]
	if !ok {
		panic(fmt.Sprintf("catalog: no query registered for operation %q", op))
	}
	return q
}

// Validate checks that every named operation has a template, the schema
// version is non-negative, and the migration schemes form a contiguous
// staircase from 0 to SchemaVersion-1.
func (c *Catalog) Validate() error {
	if c.SchemaVersion < 0 {
		return fmt.Errorf("catalog: schema_version must be >= 0, got %d", c.SchemaVersion)
	}
	for _, op := range allOps {
		if _, ok := c.Queries[op]; !ok {
			return fmt.Errorf("catalog: missing query template for operation %q", op)
		}
	}
	for v := 0; v < c.SchemaVersion; v++ {
		if _, ok := c.MigrationSchemes[v]; !ok {
			return fmt.Errorf("catalog: missing migration scheme for version %d", v)
		}
	}
	return nil
}

// LoadOverride reads a YAML document describing a partial catalog and
// layers it on top of base: any named operation, migration scheme, or
// table-DDL list present in the override replaces the corresponding entry
// in base. SchemaVersion is only replaced if the override sets it.
func LoadOverride(base *Catalog, data []byte) (*Catalog, error) {
	var override Catalog
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("catalog: parse override: %w", err)
	}

	merged := &Catalog{
		SchemaVersion:    base.SchemaVersion,
		MigrationSchemes: map[int]MigrationScheme{},
		CreateAllTables:  base.CreateAllTables,
		DropAllTables:    base.DropAllTables,
		Queries:          map[string]string{},
	}
	for k, v := range base.Queries {
		merged.Queries[k] = v
	}
	for k, v := range base.MigrationSchemes {
		merged.MigrationSchemes[k] = v
	}

	if override.SchemaVersion != 0 {
		merged.SchemaVersion = override.SchemaVersion
	}
	if len(override.CreateAllTables) > 0 {
		merged.CreateAllTables = override.CreateAllTables
	}
	if len(override.DropAllTables) > 0 {
		merged.DropAllTables = override.DropAllTables
	}
	for k, v := range override.Queries {
		merged.Queries[k] = v
	}
	for k, v := range override.MigrationSchemes {
		merged.MigrationSchemes[k] = v
	}

	return merged, nil
}

// defaultCreateTables is version-1 DDL: the first physical layout this
// library ever shipped. Schema migration never rewrites this; it only
// grows the MigrationSchemes ladder.
var defaultCreateTables = []string{
	`CREATE TABLE mlmd_env ( schema_version INT NOT NULL )`,
	`CREATE TABLE types (
		id BIGSERIAL PRIMARY KEY,
		kind SMALLINT NOT NULL,
		name TEXT NOT NULL,
		UNIQUE (kind, name)
	)`,
	`CREATE TABLE type_properties (
		type_id BIGINT NOT NULL REFERENCES types(id),
		name TEXT NOT NULL,
		data_type SMALLINT NOT NULL,
		PRIMARY KEY (type_id, name)
	)`,
	`CREATE TABLE artifacts (
		id BIGSERIAL PRIMARY KEY,
		type_id BIGINT NOT NULL REFERENCES types(id),
		uri TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE artifact_properties (
		artifact_id BIGINT NOT NULL REFERENCES artifacts(id),
		name TEXT NOT NULL,
		is_custom BOOLEAN NOT NULL,
		int_value BIGINT,
		double_value DOUBLE PRECISION,
		string_value TEXT,
		PRIMARY KEY (artifact_id, name, is_custom)
	)`,
	`CREATE TABLE executions (
		id BIGSERIAL PRIMARY KEY,
		type_id BIGINT NOT NULL REFERENCES types(id),
		last_known_state SMALLINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE execution_properties (
		execution_id BIGINT NOT NULL REFERENCES executions(id),
		name TEXT NOT NULL,
		is_custom BOOLEAN NOT NULL,
		int_value BIGINT,
		double_value DOUBLE PRECISION,
		string_value TEXT,
		PRIMARY KEY (execution_id, name, is_custom)
	)`,
	`CREATE TABLE contexts (
		id BIGSERIAL PRIMARY KEY,
		type_id BIGINT NOT NULL REFERENCES types(id),
		name TEXT NOT NULL,
		UNIQUE (type_id, name)
	)`,
	`CREATE TABLE context_properties (
		context_id BIGINT NOT NULL REFERENCES contexts(id),
		name TEXT NOT NULL,
		is_custom BOOLEAN NOT NULL,
		int_value BIGINT,
		double_value DOUBLE PRECISION,
		string_value TEXT,
		PRIMARY KEY (context_id, name, is_custom)
	)`,
	`CREATE TABLE events (
		id BIGSERIAL PRIMARY KEY,
		artifact_id BIGINT NOT NULL REFERENCES artifacts(id),
		execution_id BIGINT NOT NULL REFERENCES executions(id),
		type SMALLINT NOT NULL,
		milliseconds_since_epoch BIGINT NOT NULL,
		UNIQUE (artifact_id, execution_id, type)
	)`,
	`CREATE TABLE event_paths (
		event_id BIGINT NOT NULL REFERENCES events(id),
		step_index INT NOT NULL,
		step TEXT NOT NULL,
		PRIMARY KEY (event_id, step_index)
	)`,
	`CREATE TABLE attributions (
		id BIGSERIAL PRIMARY KEY,
		artifact_id BIGINT NOT NULL REFERENCES artifacts(id),
		context_id BIGINT NOT NULL REFERENCES contexts(id),
		UNIQUE (artifact_id, context_id)
	)`,
	`CREATE TABLE associations (
		id BIGSERIAL PRIMARY KEY,
		execution_id BIGINT NOT NULL REFERENCES executions(id),
		context_id BIGINT NOT NULL REFERENCES contexts(id),
		UNIQUE (execution_id, context_id)
	)`,
}

var defaultDropTables = []string{
	`DROP TABLE IF EXISTS associations`,
	`DROP TABLE IF EXISTS attributions`,
	`DROP TABLE IF EXISTS event_paths`,
	`DROP TABLE IF EXISTS events`,
	`DROP TABLE IF EXISTS context_properties`,
	`DROP TABLE IF EXISTS contexts`,
	`DROP TABLE IF EXISTS execution_properties`,
	`DROP TABLE IF EXISTS executions`,
	`DROP TABLE IF EXISTS artifact_properties`,
	`DROP TABLE IF EXISTS artifacts`,
	`DROP TABLE IF EXISTS type_properties`,
	`DROP TABLE IF EXISTS types`,
	`DROP TABLE IF EXISTS mlmd_env`,
}

// DefaultCatalog returns the built-in PostgreSQL query catalog: the
// library's single shipped schema version (1), its forward/backward
// migration scheme (0 is "no schema" / "fully dropped"), and every named
// operation's SQL template.
func DefaultCatalog() *Catalog {
	return &Catalog{
		SchemaVersion: 1,
		MigrationSchemes: map[int]MigrationScheme{
			0: {
				UpgradeQueries:   defaultCreateTables,
				DowngradeQueries: defaultDropTables,
			},
		},
		CreateAllTables: defaultCreateTables,
		DropAllTables:   defaultDropTables,
		Queries: map[string]string{
			OpEnvSelectVersion: `SELECT schema_version FROM mlmd_env LIMIT 1`,
			OpEnvInsertVersion: `INSERT INTO mlmd_env (schema_version) VALUES ($1)`,
			OpEnvUpdateVersion: `UPDATE mlmd_env SET schema_version = $1`,

			OpTypeInsert:         `INSERT INTO types (kind, name) VALUES ($1, $2) RETURNING id`,
			OpTypeSelectByName:   `SELECT id, kind, name FROM types WHERE kind = $1 AND name = $2`,
			OpTypeSelectByID:     `SELECT id, kind, name FROM types WHERE kind = $1 AND id = ANY($2)`,
			OpTypeSelectAll:      `SELECT id, kind, name FROM types WHERE kind = $1 ORDER BY id ASC`,
			OpTypePropertyInsert: `INSERT INTO type_properties (type_id, name, data_type) VALUES ($1, $2, $3)`,
			OpTypePropertySelect: `SELECT name, data_type FROM type_properties WHERE type_id = $1`,

			OpArtifactInsert:         `INSERT INTO artifacts (type_id, uri) VALUES ($1, $2) RETURNING id`,
			OpArtifactUpdate:         `UPDATE artifacts SET type_id = $1, uri = $2 WHERE id = $3`,
			OpArtifactSelectByID:     `SELECT id, type_id, uri FROM artifacts WHERE id = ANY($1)`,
			OpArtifactSelectByType:   `SELECT a.id, a.type_id, a.uri FROM artifacts a JOIN types t ON a.type_id = t.id WHERE t.kind = $1 AND t.name = $2`,
			OpArtifactSelectByURI:    `SELECT id, type_id, uri FROM artifacts WHERE uri = $1`,
			OpArtifactSelectAll:      `SELECT id, type_id, uri FROM artifacts ORDER BY id ASC LIMIT $1 OFFSET $2`,
			OpArtifactPropertyUpsert: `INSERT INTO artifact_properties (artifact_id, name, is_custom, int_value, double_value, string_value) VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (artifact_id, name, is_custom) DO UPDATE SET int_value = EXCLUDED.int_value, double_value = EXCLUDED.double_value, string_value = EXCLUDED.string_value`,
			OpArtifactPropertySelect: `SELECT name, is_custom, int_value, double_value, string_value FROM artifact_properties WHERE artifact_id = $1`,

			OpExecutionInsert:         `INSERT INTO executions (type_id, last_known_state) VALUES ($1, $2) RETURNING id`,
			OpExecutionUpdate:         `UPDATE executions SET type_id = $1, last_known_state = $2 WHERE id = $3`,
			OpExecutionSelectByID:     `SELECT id, type_id, last_known_state FROM executions WHERE id = ANY($1)`,
			OpExecutionSelectByType:   `SELECT e.id, e.type_id, e.last_known_state FROM executions e JOIN types t ON e.type_id = t.id WHERE t.kind = $1 AND t.name = $2`,
			OpExecutionSelectAll:      `SELECT id, type_id, last_known_state FROM executions ORDER BY id ASC LIMIT $1 OFFSET $2`,
			OpExecutionPropertyUpsert: `INSERT INTO execution_properties (execution_id, name, is_custom, int_value, double_value, string_value) VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (execution_id, name, is_custom) DO UPDATE SET int_value = EXCLUDED.int_value, double_value = EXCLUDED.double_value, string_value = EXCLUDED.string_value`,
			OpExecutionPropertySelect: `SELECT name, is_custom, int_value, double_value, string_value FROM execution_properties WHERE execution_id = $1`,

			OpContextInsert:              `INSERT INTO contexts (type_id, name) VALUES ($1, $2) RETURNING id`,
			OpContextUpdate:              `UPDATE contexts SET type_id = $1, name = $2 WHERE id = $3`,
			OpContextSelectByID:          `SELECT id, type_id, name FROM contexts WHERE id = ANY($1)`,
			OpContextSelectByType:        `SELECT c.id, c.type_id, c.name FROM contexts c JOIN types t ON c.type_id = t.id WHERE t.kind = $1 AND t.name = $2`,
			OpContextSelectAll:           `SELECT id, type_id, name FROM contexts ORDER BY id ASC LIMIT $1 OFFSET $2`,
			OpContextSelectByTypeAndName: `SELECT id, type_id, name FROM contexts WHERE type_id = $1 AND name = $2`,
			OpContextPropertyUpsert:      `INSERT INTO context_properties (context_id, name, is_custom, int_value, double_value, string_value) VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (context_id, name, is_custom) DO UPDATE SET int_value = EXCLUDED.int_value, double_value = EXCLUDED.double_value, string_value = EXCLUDED.string_value`,
			OpContextPropertySelect:      `SELECT name, is_custom, int_value, double_value, string_value FROM context_properties WHERE context_id = $1`,

			OpEventInsert:            `INSERT INTO events (artifact_id, execution_id, type, milliseconds_since_epoch) VALUES ($1, $2, $3, $4) ON CONFLICT (artifact_id, execution_id, type) DO NOTHING RETURNING id`,
			OpEventPathInsert:        `INSERT INTO event_paths (event_id, step_index, step) VALUES ($1, $2, $3)`,
			OpEventPathSelectByEvent: `SELECT step_index, step FROM event_paths WHERE event_id = $1 ORDER BY step_index ASC`,
			OpEventSelectByArtifact:  `SELECT id, artifact_id, execution_id, type, milliseconds_since_epoch FROM events WHERE artifact_id = ANY($1)`,
			OpEventSelectByExecution: `SELECT id, artifact_id, execution_id, type, milliseconds_since_epoch FROM events WHERE execution_id = ANY($1)`,

			OpAttributionInsert:   `INSERT INTO attributions (artifact_id, context_id) VALUES ($1, $2) ON CONFLICT (artifact_id, context_id) DO NOTHING`,
			OpAssociationInsert:   `INSERT INTO associations (execution_id, context_id) VALUES ($1, $2) ON CONFLICT (execution_id, context_id) DO NOTHING`,
			OpContextsByArtifact:  `SELECT c.id, c.type_id, c.name FROM contexts c JOIN attributions a ON a.context_id = c.id WHERE a.artifact_id = $1`,
			OpContextsByExecution: `SELECT c.id, c.type_id, c.name FROM contexts c JOIN associations a ON a.context_id = c.id WHERE a.execution_id = $1`,
			OpArtifactsByContext:  `SELECT a.id, a.type_id, a.uri FROM artifacts a JOIN attributions at ON at.artifact_id = a.id WHERE at.context_id = $1`,
			OpExecutionsByContext: `SELECT e.id, e.type_id, e.last_known_state FROM executions e JOIN associations asc2 ON asc2.execution_id = e.id WHERE asc2.context_id = $1`,
		},
	}
}
