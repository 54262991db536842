package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Ramsey-B/clover/pkg/database"
)

func newMigrateCmd(a *app) *cobra.Command {
	var (
		version uint
		force   int
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply Postgres migrations",
		Example: `  # Apply every pending migration
  clover migrate

  # Migrate to a specific version
  clover migrate --version 2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := database.Connect(ctx, a.cfg.Database(), a.logger)
			if err != nil {
				return err
			}
			defer db.Close()

			mc := a.cfg.Migration()
			if cmd.Flags().Changed("version") {
				mc.Version = version
			}
			if cmd.Flags().Changed("force") {
				mc.Force = force
			}
			return database.NewMigrationService(a.logger, mc).MigratePostgres(db.DB.DB, a.cfg.DatabaseName)
		},
	}

	cmd.Flags().UintVar(&version, "version", 0, "Target version (default: latest)")
	cmd.Flags().IntVar(&force, "force", 0, "Force the recorded version before migrating")

	return cmd
}
