package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mlmetastore/mlmd/pkg/db/postgres/catalog"
)

func newCatalogCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect or validate the query catalog",
	}
	cmd.AddCommand(newCatalogValidateCommand())
	return cmd
}

func newCatalogValidateCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a catalog override file against the built-in catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			base := catalog.DefaultCatalog()
			if file == "" {
				if err := base.Validate(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "built-in catalog is valid")
				return nil
			}

			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading %s: %w", file, err)
			}
			merged, err := catalog.LoadOverride(base, data)
			if err != nil {
				return err
			}
			if err := merged.Validate(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is a valid catalog override\n", file)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "catalog override YAML file; the built-in catalog is checked if omitted")
	return cmd
}
