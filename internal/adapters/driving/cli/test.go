package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Show what a sync would submit without submitting it",
	Long: `Reads the configured directory and prints the groups and users that a
sync would submit. Nothing is submitted and no state is saved.

By default the directory is read in full. --last simulates an incremental
sync from the last saved state instead.`,
	Args: cobra.NoArgs,
	RunE: runTest,
}

func init() {
	testCmd.Flags().Bool("last", false, "Read incrementally from the last saved sync state")
	testCmd.Flags().Bool("force", false, "Read everything even with --last")
	rootCmd.AddCommand(testCmd)
}

func runTest(cmd *cobra.Command, _ []string) error {
	if syncService == nil {
		return fmt.Errorf("test: %w", errNotConfigured)
	}
	last, _ := cmd.Flags().GetBool("last")
	force, _ := cmd.Flags().GetBool("force")

	result, err := syncService.Test(cmd.Context(), force || !last)
	if err != nil {
		return fmt.Errorf("test failed: %w", err)
	}
	if result.Groups == nil && result.Users == nil {
		cmd.Printf("Nothing to sync (%s).\n", result.SkipReason)
		return nil
	}
	printEntries(cmd, result)
	return nil
}
