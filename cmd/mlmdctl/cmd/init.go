package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	kdb "github.com/mlmetastore/mlmd/pkg/db"
	"github.com/mlmetastore/mlmd/pkg/db/postgres/catalog"
	"github.com/mlmetastore/mlmd/pkg/db/postgres/schema"
)

func newInitCommand() *cobra.Command {
	var dsn string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the schema in an empty database",
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

			mgr := schema.New(pool, catalog.DefaultCatalog())
			if force {
				if err := mgr.InitIfNotExists(cmd.Context(), kdb.MigrationDirective{}); err != nil {
					return fmt.Errorf("init: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "schema initialized")
				return nil
			}
			if err := mgr.Init(cmd.Context()); err != nil {
				return fmt.Errorf("init: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema initialized")
			return nil
		},
	}

	cmd.Flags().StringVar(&dsn, "dsn", "", "database DSN, overrides "+DSNEnv)
	cmd.Flags().BoolVar(&force, "force", false, "bring an already-initialized store up to the library version first")
	return cmd
}
