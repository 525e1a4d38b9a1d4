package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rendis/pdc/internal/store"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	var dsn string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long: `Apply the artifact schema to the configured database. libSQL file paths and
libsql:// URLs use the libSQL dialect; postgres:// URLs use Postgres.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dsn == "" {
				dsn = opts.cfg.DatabaseURL
			}
			if err := ensureDBDir(dsn); err != nil {
				return err
			}
			db, err := store.Open(dsn)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated (%s)\n", db.Dialect())
			return nil
		},
	}
	cmd.Flags().StringVar(&dsn, "database-url", "", "database to migrate (default from config)")
	return cmd
}
