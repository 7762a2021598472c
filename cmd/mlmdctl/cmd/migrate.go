package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	kdb "github.com/mlmetastore/mlmd/pkg/db"
	"github.com/mlmetastore/mlmd/pkg/db/postgres/catalog"
	"github.com/mlmetastore/mlmd/pkg/db/postgres/schema"
)

func newMigrateCommand() *cobra.Command {
	const unset = -1

	var dsn string
	var disableUpgrade bool
	var downgradeTo int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Bring the stored schema to the library version, or downgrade it",
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := resolveDSN(dsn)
			if err != nil {
				return err
			}
			pool, closeFn, err := connect(cmd.Context(), resolved)
			if err != nil {
				return err
			}
			defer closeFn()

			directive := kdb.MigrationDirective{DisableUpgrade: disableUpgrade}
			if downgradeTo != unset {
				target := downgradeTo
				directive.DowngradeTo = &target
			}

			mgr := schema.New(pool, catalog.DefaultCatalog())
			version, err := mgr.Open(cmd.Context(), directive)
			if errors.Is(err, kdb.ErrDowngradeCompleted) {
				fmt.Fprintf(cmd.OutOrStdout(), "downgraded to schema version %d\n", version)
				return nil
			}
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
			return nil
		},
	}

	cmd.Flags().StringVar(&dsn, "dsn", "", "database DSN, overrides "+DSNEnv)
	cmd.Flags().BoolVar(&disableUpgrade, "disable-upgrade", false, "fail instead of auto-upgrading a stale schema")
	cmd.Flags().IntVar(&downgradeTo, "downgrade", unset, "downgrade to this schema version instead of upgrading")
	return cmd
}
