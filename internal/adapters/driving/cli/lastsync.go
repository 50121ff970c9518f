package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var lastSyncCmd = &cobra.Command{
	Use:       "last-sync <groups|users>",
	Short:     "Print when groups or users were last synchronised",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"groups", "users"},
	RunE:      runLastSync,
}

var clearCacheCmd = &cobra.Command{
	Use:   "clear-cache",
	Short: "Forget delta tokens, sync times and the last submitted hash",
	Long: `Clears the saved sync state so the next sync reads the directory in full
and submits even when nothing changed.`,
	Args: cobra.NoArgs,
	RunE: runClearCache,
}

func init() {
	rootCmd.AddCommand(lastSyncCmd)
	rootCmd.AddCommand(clearCacheCmd)
}

func runLastSync(cmd *cobra.Command, args []string) error {
	if stateService == nil {
		return fmt.Errorf("last-sync: %w", errNotConfigured)
	}
	state, err := stateService.SyncState(cmd.Context())
	if err != nil {
		return err
	}

	var at *time.Time
	switch strings.ToLower(args[0]) {
	case "groups":
		at = state.LastGroupSync
	case "users":
		at = state.LastUserSync
	default:
		return fmt.Errorf("unknown kind %q: use groups or users", args[0])
	}

	if at == nil {
		cmd.Println("never")
		return nil
	}
	cmd.Println(at.UTC().Format(time.RFC3339))
	return nil
}

func runClearCache(cmd *cobra.Command, _ []string) error {
	if stateService == nil {
		return fmt.Errorf("clear-cache: %w", errNotConfigured)
	}
	if err := stateService.ClearSyncSettings(cmd.Context(), true); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	cmd.Println("Sync cache cleared.")
	return nil
}
