package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"

	kpool "github.com/mlmetastore/mlmd/pkg/conn/db/postgres/pool"
)

// DSNEnv is the environment variable carrying the target database's DSN,
// read by every subcommand that needs a connection unless --dsn overrides it.
const DSNEnv = "MLMD_POSTGRES_DSN"

// NewRootCommand assembles the mlmdctl command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "mlmdctl",
		Short: "Operate a metadata store's schema outside of request serving",
	}

	root.AddCommand(newInitCommand())
	root.AddCommand(newMigrateCommand())
	root.AddCommand(newCatalogCommand())

	return root
}

func resolveDSN(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if dsn := os.Getenv(DSNEnv); dsn != "" {
		return dsn, nil
	}
	return "", fmt.Errorf("no DSN given: pass --dsn or set %s", DSNEnv)
}

func connect(ctx context.Context, dsn string) (kpool.Pool, func(), error) {
	pool, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	return kpool.Wrap(pool), pool.Close, nil
}
