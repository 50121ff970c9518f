package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/dirsync/internal/core/domain"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronise the configured directory",
	Long: `Reads users and groups from the configured directory and submits them
to the organization import API. Nothing is submitted when the directory
has not changed since the last successful sync.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().Bool("force", false, "Ignore delta tokens and timestamps and read everything")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, _ []string) error {
	if syncService == nil {
		return fmt.Errorf("sync: %w", errNotConfigured)
	}
	force, _ := cmd.Flags().GetBool("force")

	cmd.Println("Syncing...")
	result, err := syncService.Sync(cmd.Context(), force)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	if !result.Submitted {
		cmd.Printf("Sync complete, no changes (%s).\n", result.SkipReason)
		return nil
	}
	cmd.Printf("Sync complete: %d groups, %d users in %d request(s).\n",
		len(result.Groups), len(result.Users), result.Requests)
	return nil
}

// printEntries writes the groups and users of result in a readable form.
func printEntries(cmd *cobra.Command, result *domain.SyncResult) {
	if result.Groups != nil {
		cmd.Printf("Groups (%d):\n", len(result.Groups))
		for _, g := range result.Groups {
			cmd.Printf("  %s (%s)\n", g.Name, g.ExternalID)
			for _, id := range g.UserMemberExternalIDs.Sorted() {
				cmd.Printf("    - %s\n", id)
			}
		}
	}
	if result.Users != nil {
		cmd.Printf("Users (%d):\n", len(result.Users))
		for _, u := range result.Users {
			cmd.Printf("  %s (%s)%s\n", displayEmail(u), u.ExternalID, userFlags(u))
		}
	}
}

func displayEmail(u domain.UserEntry) string {
	if u.Email == "" {
		return "<no email>"
	}
	return u.Email
}

func userFlags(u domain.UserEntry) string {
	switch {
	case u.Deleted:
		return " [deleted]"
	case u.Disabled:
		return " [disabled]"
	default:
		return ""
	}
}
