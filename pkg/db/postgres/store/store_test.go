package store_test

import (
	"context"
	"testing"

	kdb "github.com/mlmetastore/mlmd/pkg/db"
	"github.com/mlmetastore/mlmd/pkg/db/postgres/catalog"
	"github.com/mlmetastore/mlmd/pkg/db/postgres/pool/testenv"
	"github.com/mlmetastore/mlmd/pkg/db/postgres/store"
)

// openStore wires a fresh *store.Store against a cleared test database,
// shared by every test in this package.
func openStore(ctx context.Context, t *testing.T) *store.Store {
	t.Helper()
	pool := testenv.Connect(ctx, t).GetPool(ctx, t)
	s, err := store.Open(ctx, pool, catalog.DefaultCatalog(), kdb.MigrationDirective{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return s
}
