package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Upgrade saved state to the current layout",
	Long: `Runs any pending state migrations. Migrations also run automatically on
start-up, so this is only needed to check the state version or to retry
after a failed upgrade.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	if migrationService == nil {
		return fmt.Errorf("migrate: %w", errNotConfigured)
	}
	ctx := cmd.Context()

	pending, err := migrationService.NeedsMigration(ctx)
	if err != nil {
		return err
	}
	if pending {
		if err := migrationService.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	v, err := migrationService.CurrentVersion(ctx)
	if err != nil {
		return err
	}
	if pending {
		cmd.Printf("State migrated to version %d.\n", v)
	} else {
		cmd.Printf("State is up to date (version %d).\n", v)
	}
	return nil
}
