package schema_test

import (
	"context"
	"errors"
	"testing"

	kdb "github.com/mlmetastore/mlmd/pkg/db"
	"github.com/mlmetastore/mlmd/pkg/db/postgres/catalog"
	"github.com/mlmetastore/mlmd/pkg/db/postgres/pool/testenv"
	"github.com/mlmetastore/mlmd/pkg/db/postgres/schema"
)

func TestManager_Open_EmptyStoreInitializes(t *testing.T) {
	ctx := context.Background()
	pool := testenv.Connect(ctx, t).GetPool(ctx, t)
	cat := catalog.DefaultCatalog()

	mgr := schema.New(pool, cat)
	version, err := mgr.Open(ctx, kdb.MigrationDirective{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if version != cat.SchemaVersion {
		t.Errorf("got version %d, want %d", version, cat.SchemaVersion)
	}
}

func TestManager_Open_AlreadyCurrentIsNoop(t *testing.T) {
	ctx := context.Background()
	pool := testenv.Connect(ctx, t).GetPool(ctx, t)
	cat := catalog.DefaultCatalog()
	mgr := schema.New(pool, cat)

	if _, err := mgr.Open(ctx, kdb.MigrationDirective{}); err != nil {
		t.Fatalf("first open: %v", err)
	}

	version, err := mgr.Open(ctx, kdb.MigrationDirective{})
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	if version != cat.SchemaVersion {
		t.Errorf("got version %d, want %d", version, cat.SchemaVersion)
	}
}

func TestManager_Open_DowngradeAboveLibraryVersionIsInvalidArgument(t *testing.T) {
	ctx := context.Background()
	pool := testenv.Connect(ctx, t).GetPool(ctx, t)
	cat := catalog.DefaultCatalog()
	mgr := schema.New(pool, cat)

	if _, err := mgr.Open(ctx, kdb.MigrationDirective{}); err != nil {
		t.Fatalf("initial open: %v", err)
	}

	tooHigh := cat.SchemaVersion + 1
	_, err := mgr.Open(ctx, kdb.MigrationDirective{DowngradeTo: &tooHigh})
	if !errors.Is(err, kdb.ErrInvalidArgument) {
		t.Errorf("got %v, want ErrInvalidArgument", err)
	}
}

func TestManager_Open_DowngradeToZeroCompletes(t *testing.T) {
	ctx := context.Background()
	pool := testenv.Connect(ctx, t).GetPool(ctx, t)
	cat := catalog.DefaultCatalog()
	mgr := schema.New(pool, cat)

	if _, err := mgr.Open(ctx, kdb.MigrationDirective{}); err != nil {
		t.Fatalf("initial open: %v", err)
	}

	zero := 0
	version, err := mgr.Open(ctx, kdb.MigrationDirective{DowngradeTo: &zero})
	if !errors.Is(err, kdb.ErrDowngradeCompleted) {
		t.Errorf("got %v, want ErrDowngradeCompleted", err)
	}
	if version != 0 {
		t.Errorf("got version %d, want 0", version)
	}

	// re-opening after a completed downgrade to 0 must re-initialize,
	// not see a versioned store.
	version, err = mgr.Open(ctx, kdb.MigrationDirective{})
	if err != nil {
		t.Fatalf("re-open after downgrade: %v", err)
	}
	if version != cat.SchemaVersion {
		t.Errorf("got version %d, want %d", version, cat.SchemaVersion)
	}
}

func TestManager_Init_FailsIfTablesExist(t *testing.T) {
	ctx := context.Background()
	pool := testenv.Connect(ctx, t).GetPool(ctx, t)
	cat := catalog.DefaultCatalog()
	mgr := schema.New(pool, cat)

	if err := mgr.Init(ctx); err != nil {
		t.Fatalf("first init: %v", err)
	}
	if err := mgr.Init(ctx); !errors.Is(err, kdb.ErrAlreadyExists) {
		t.Errorf("got %v, want ErrAlreadyExists", err)
	}
}

func TestManager_InitIfNotExists_IdempotentWhenCurrent(t *testing.T) {
	ctx := context.Background()
	pool := testenv.Connect(ctx, t).GetPool(ctx, t)
	cat := catalog.DefaultCatalog()
	mgr := schema.New(pool, cat)

	if err := mgr.InitIfNotExists(ctx, kdb.MigrationDirective{}); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if err := mgr.InitIfNotExists(ctx, kdb.MigrationDirective{}); err != nil {
		t.Errorf("second call should be a no-op, got: %v", err)
	}
	if err := mgr.InitIfNotExists(ctx, kdb.MigrationDirective{DisableUpgrade: true}); err != nil {
		t.Errorf("DisableUpgrade against an up-to-date store should still be a no-op, got: %v", err)
	}
}

// catalogAtVersion2 extends the built-in catalog with one more migration
// step, so upgrade/downgrade paths between real versions can be exercised.
func catalogAtVersion2() *catalog.Catalog {
	cat := catalog.DefaultCatalog()
	cat.SchemaVersion = 2
	cat.MigrationSchemes[1] = catalog.MigrationScheme{
		UpgradeQueries:   []string{`ALTER TABLE artifacts ADD COLUMN IF NOT EXISTS external_id TEXT`},
		DowngradeQueries: []string{`ALTER TABLE artifacts DROP COLUMN IF EXISTS external_id`},
	}
	return cat
}

func TestManager_Open_UpgradesStepwise(t *testing.T) {
	ctx := context.Background()
	pool := testenv.Connect(ctx, t).GetPool(ctx, t)

	if _, err := schema.New(pool, catalog.DefaultCatalog()).Open(ctx, kdb.MigrationDirective{}); err != nil {
		t.Fatalf("open at version 1: %v", err)
	}

	version, err := schema.New(pool, catalogAtVersion2()).Open(ctx, kdb.MigrationDirective{})
	if err != nil {
		t.Fatalf("upgrading open: %v", err)
	}
	if version != 2 {
		t.Errorf("got version %d, want 2", version)
	}
}

func TestManager_Open_DisableUpgradeIsVersionMismatch(t *testing.T) {
	ctx := context.Background()
	pool := testenv.Connect(ctx, t).GetPool(ctx, t)

	if _, err := schema.New(pool, catalog.DefaultCatalog()).Open(ctx, kdb.MigrationDirective{}); err != nil {
		t.Fatalf("open at version 1: %v", err)
	}

	_, err := schema.New(pool, catalogAtVersion2()).Open(ctx, kdb.MigrationDirective{DisableUpgrade: true})
	if !errors.Is(err, kdb.ErrVersionMismatch) {
		t.Errorf("got %v, want ErrVersionMismatch", err)
	}
}

func TestManager_Open_StoredNewerThanLibraryIsVersionMismatch(t *testing.T) {
	ctx := context.Background()
	pool := testenv.Connect(ctx, t).GetPool(ctx, t)

	if _, err := schema.New(pool, catalogAtVersion2()).Open(ctx, kdb.MigrationDirective{}); err != nil {
		t.Fatalf("open at version 2: %v", err)
	}

	_, err := schema.New(pool, catalog.DefaultCatalog()).Open(ctx, kdb.MigrationDirective{})
	if !errors.Is(err, kdb.ErrVersionMismatch) {
		t.Errorf("got %v, want ErrVersionMismatch", err)
	}
}

func TestManager_Open_DowngradeOneStep(t *testing.T) {
	ctx := context.Background()
	pool := testenv.Connect(ctx, t).GetPool(ctx, t)

	cat2 := catalogAtVersion2()
	if _, err := schema.New(pool, cat2).Open(ctx, kdb.MigrationDirective{}); err != nil {
		t.Fatalf("open at version 2: %v", err)
	}

	one := 1
	version, err := schema.New(pool, cat2).Open(ctx, kdb.MigrationDirective{DowngradeTo: &one})
	if !errors.Is(err, kdb.ErrDowngradeCompleted) {
		t.Fatalf("got %v, want ErrDowngradeCompleted", err)
	}
	if version != 1 {
		t.Errorf("got version %d, want 1", version)
	}

	// the downgraded store opens cleanly with the version-1 library.
	version, err = schema.New(pool, catalog.DefaultCatalog()).Open(ctx, kdb.MigrationDirective{})
	if err != nil {
		t.Fatalf("open at version 1 after downgrade: %v", err)
	}
	if version != 1 {
		t.Errorf("got version %d, want 1", version)
	}
}
