// Package testenv provides a real-Postgres connection pool for integration
// tests, with tables cleared before and after each test, connecting via a
// single environment-provided DSN.
package testenv

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v4/pgxpool"

	kpool "github.com/mlmetastore/mlmd/pkg/conn/db/postgres/pool"
)

// DSNEnv is the environment variable carrying the Postgres DSN used by
// integration tests in this package and its siblings.
const DSNEnv = "MLMD_TEST_POSTGRES_DSN"

// clearTables is the reverse-dependency order of catalog.DefaultCatalog's
// CreateAllTables, used to wipe a test database between runs by dropping
// every table, so each test starts from an uninitialized store.
var clearTables = []string{
	"associations", "attributions", "event_paths", "events",
	"context_properties", "contexts",
	"execution_properties", "executions",
	"artifact_properties", "artifacts",
	"type_properties", "types",
	"mlmd_env",
}

// PoolBroker hands out a pool whose tables are empty before and after the
// calling test.
type PoolBroker interface {
	GetPool(ctx context.Context, t *testing.T) kpool.Pool
}

type pg struct {
	pool *pgxpool.Pool
}

// Connect dials the Postgres DSN named by DSNEnv, skipping the calling
// test if it is unset — integration tests against a real database are
// opt-in, not a default part of `go test ./...`.
func Connect(ctx context.Context, t *testing.T) PoolBroker {
	dsn := os.Getenv(DSNEnv)
	if dsn == "" {
		t.Skipf("%s not set; skipping integration test", DSNEnv)
	}

	pool, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("failed to connect to %s: %v", DSNEnv, err)
	}
	t.Cleanup(pool.Close)

	return &pg{pool: pool}
}

func (p *pg) GetPool(ctx context.Context, t *testing.T) kpool.Pool {
	t.Helper()
	clear(ctx, p.pool, t)
	t.Cleanup(func() { clear(ctx, p.pool, t) })
	return kpool.Wrap(p.pool)
}

func clear(ctx context.Context, pool *pgxpool.Pool, t *testing.T) {
	t.Helper()
	for _, table := range clearTables {
		if _, err := pool.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %q CASCADE`, table)); err != nil {
			t.Fatalf("failed to clear table %q: %v", table, err)
		}
	}
}
