package catalog_test

import (
	"strings"
	"testing"

	"github.com/mlmetastore/mlmd/pkg/db/postgres/catalog"
)

func TestDefaultCatalog_IsValid(t *testing.T) {
	if err := catalog.DefaultCatalog().Validate(); err != nil {
		t.Errorf("built-in catalog failed validation: %v", err)
	}
}

func TestValidate_MissingQueryIsRejected(t *testing.T) {
	cat := catalog.DefaultCatalog()
	delete(cat.Queries, catalog.OpArtifactInsert)

	err := cat.Validate()
	if err == nil || !strings.Contains(err.Error(), catalog.OpArtifactInsert) {
		t.Errorf("got %v, want an error naming the missing operation", err)
	}
}

func TestValidate_MissingMigrationSchemeIsRejected(t *testing.T) {
	cat := catalog.DefaultCatalog()
	cat.SchemaVersion = 2 // no scheme registered for version 1

	if err := cat.Validate(); err == nil {
		t.Errorf("expected a gap in migration schemes to fail validation")
	}
}

func TestValidate_NegativeSchemaVersionIsRejected(t *testing.T) {
	cat := catalog.DefaultCatalog()
	cat.SchemaVersion = -1

	if err := cat.Validate(); err == nil {
		t.Errorf("expected a negative schema_version to fail validation")
	}
}

func TestLoadOverride_ReplacesOnlyNamedEntries(t *testing.T) {
	base := catalog.DefaultCatalog()
	override := []byte("queries:\n  " + catalog.OpArtifactSelectByURI + ": |\n    SELECT id, type_id, uri FROM artifacts WHERE uri = $1 ORDER BY id\n")

	merged, err := catalog.LoadOverride(base, override)
	if err != nil {
		t.Fatalf("LoadOverride: %v", err)
	}

	if !strings.Contains(merged.Query(catalog.OpArtifactSelectByURI), "ORDER BY id") {
		t.Errorf("overridden query not applied: %q", merged.Query(catalog.OpArtifactSelectByURI))
	}
	if merged.Query(catalog.OpArtifactInsert) != base.Query(catalog.OpArtifactInsert) {
		t.Errorf("untouched query changed by override")
	}
	if merged.SchemaVersion != base.SchemaVersion {
		t.Errorf("schema version changed by an override that does not set it")
	}
	if err := merged.Validate(); err != nil {
		t.Errorf("merged catalog failed validation: %v", err)
	}
}

func TestLoadOverride_MalformedYAMLIsRejected(t *testing.T) {
	if _, err := catalog.LoadOverride(catalog.DefaultCatalog(), []byte("queries: [not a map")); err == nil {
		t.Errorf("expected malformed YAML to be rejected")
	}
}
