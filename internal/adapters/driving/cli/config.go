package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/dirsync/internal/core/domain"
)

// Directory-independent settings stored in state.
const (
	settingServer         = "server"
	settingDirectory      = "directory"
	settingOrganizationID = "organizationid"
	settingClientID       = "apikey.clientid"
	settingClientSecret   = "apikey.clientsecret"
	syncPrefix            = "sync."
)

var configCmd = &cobra.Command{
	Use:   "config [setting] [value]",
	Short: "Show or change configuration",
	Long: `Without arguments, prints every setting. With a setting name, prints its
value, or changes it when a value is given.

Settings:
  server                   self-hosted server URL ("null" resets to cloud)
  directory                ldap, entra, gsuite, okta or onelogin
  organizationid           organization to import into
  apikey.clientid          organization API key client id
  apikey.clientsecret      organization API key client secret
  sync.<field>             sync option, e.g. sync.users or sync.groupFilter
  <directory>.<field>      directory option, e.g. ldap.hostname or okta.orgUrl
  vault.address, redis.address, log.level, ...  application settings

Secret settings (ldap.password, azure.key, gsuite.key, okta.token,
onelogin.secret, apikey.clientsecret) prompt for the value when none is
given. Use --secretfile or --secretenv to read it non-interactively.`,
	Args: cobra.MaximumNArgs(2),
	RunE: runConfig,
}

func init() {
	configCmd.Flags().String("secretfile", "", "Read the secret value from this file")
	configCmd.Flags().String("secretenv", "", "Read the secret value from this environment variable")
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	if stateService == nil || settingsService == nil {
		return fmt.Errorf("config: %w", errNotConfigured)
	}
	if len(args) == 0 {
		return showConfig(cmd)
	}

	ctx := cmd.Context()
	setting := strings.ToLower(strings.TrimSpace(args[0]))
	value, hasValue := "", len(args) == 2
	if hasValue {
		value = args[1]
	}

	switch {
	case setting == settingServer:
		if !hasValue {
			return printSetting(cmd, setting)
		}
		if v := strings.ToLower(strings.TrimSpace(value)); v == "null" || v == "bitwarden.com" {
			value = ""
		}
		if err := settingsService.Set(settingServer, value); err != nil {
			return err
		}
		if err := stateService.ClearSyncSettings(ctx, true); err != nil {
			return err
		}

	case setting == settingDirectory:
		if !hasValue {
			t, err := stateService.DirectoryType(ctx)
			if errors.Is(err, domain.ErrNoDirectory) {
				cmd.Println("(not set)")
				return nil
			}
			if err != nil {
				return err
			}
			cmd.Println(t.String())
			return nil
		}
		t, err := domain.ParseDirectoryType(value)
		if err != nil {
			return err
		}
		if err := stateService.SetDirectoryType(ctx, t); err != nil {
			return err
		}

	case setting == settingOrganizationID:
		if !hasValue {
			id, err := stateService.OrganizationID(ctx)
			if err != nil {
				return err
			}
			cmd.Println(id)
			return nil
		}
		if err := stateService.SetOrganizationID(ctx, value); err != nil {
			return err
		}

	case setting == settingClientID:
		id, _, err := stateService.APIKey(ctx)
		if err != nil {
			return err
		}
		if !hasValue {
			cmd.Println(id)
			return nil
		}
		if err := stateService.SetAPIKey(ctx, strings.TrimSpace(value), domain.StoredSecurely); err != nil {
			return err
		}

	case setting == settingClientSecret:
		id, _, err := stateService.APIKey(ctx)
		if err != nil {
			return err
		}
		secret, err := secretValue(cmd, args)
		if err != nil {
			return err
		}
		if err := stateService.SetAPIKey(ctx, id, secret); err != nil {
			return err
		}

	case strings.HasPrefix(setting, syncPrefix):
		if err := configSync(ctx, cmd, setting[len(syncPrefix):], value, hasValue); err != nil {
			return err
		}
		if !hasValue {
			return nil
		}

	case slices.Contains(settingsService.Keys(), setting):
		if !hasValue {
			return printSetting(cmd, setting)
		}
		if err := settingsService.Set(setting, value); err != nil {
			return err
		}

	default:
		handled, err := configDirectory(ctx, cmd, args)
		if err != nil {
			return err
		}
		if !handled {
			return nil
		}
	}

	cmd.Printf("Saved setting `%s`.\n", args[0])
	return nil
}

// configSync shows or changes one sync option.
func configSync(ctx context.Context, cmd *cobra.Command, field, value string, hasValue bool) error {
	cfg, err := stateService.SyncConfig(ctx)
	if err != nil {
		return err
	}
	if !hasValue {
		v, err := getField(&cfg, field)
		if err != nil {
			return err
		}
		cmd.Println(v)
		return nil
	}
	if err := setField(&cfg, field, value); err != nil {
		return err
	}
	return stateService.SetSyncConfig(ctx, cfg)
}

// configDirectory handles <directory>.<field>. It reports whether anything
// was saved.
func configDirectory(ctx context.Context, cmd *cobra.Command, args []string) (bool, error) {
	prefix, field, ok := strings.Cut(args[0], ".")
	if !ok || field == "" {
		return false, fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, args[0])
	}
	t, err := domain.ParseDirectoryType(prefix)
	if err != nil {
		return false, fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, args[0])
	}
	cfg, err := stateService.Directory(ctx, t)
	if err != nil {
		return false, err
	}

	field, secret := resolveField(t, field)
	if len(args) < 2 && !secret {
		v, err := getField(cfg, field)
		if err != nil {
			return false, err
		}
		cmd.Println(v)
		return false, nil
	}

	value := ""
	if secret {
		if value, err = secretValue(cmd, args); err != nil {
			return false, err
		}
	} else {
		value = args[1]
	}
	if err := setField(cfg, field, value); err != nil {
		return false, err
	}
	return true, stateService.SetDirectory(ctx, cfg)
}

// secretValue returns the value argument, or reads it from --secretfile,
// --secretenv or an interactive prompt.
func secretValue(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 2 {
		return args[1], nil
	}
	if path, _ := cmd.Flags().GetString("secretfile"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read secret file: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	if name, _ := cmd.Flags().GetString("secretenv"); name != "" {
		v, ok := os.LookupEnv(name)
		if !ok {
			return "", fmt.Errorf("%w: environment variable %s is not set", domain.ErrInvalidInput, name)
		}
		return v, nil
	}
	cmd.Printf("Enter value for %s: ", args[0])
	v := readPassword(cmd.InOrStdin())
	cmd.Println()
	if v == "" {
		return "", fmt.Errorf("%w: no value given", domain.ErrInvalidInput)
	}
	return v, nil
}

// readPassword reads a line without echo when in is a terminal.
func readPassword(in io.Reader) string {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	input, _ := bufio.NewReader(in).ReadString('\n')
	return strings.TrimSpace(input)
}

func printSetting(cmd *cobra.Command, key string) error {
	v, err := settingsValue(key)
	if err != nil {
		return err
	}
	cmd.Println(v)
	return nil
}

// settingsValue returns one application setting by its file key.
func settingsValue(key string) (string, error) {
	s, err := settingsService.Get()
	if err != nil {
		return "", err
	}
	values := appSettingValues(s)
	return values[key], nil
}

func appSettingValues(s *domain.AppSettings) map[string]string {
	return map[string]string{
		"server":          s.Server,
		"api_url":         s.ResolvedAPIURL(),
		"identity_url":    s.ResolvedIdentityURL(),
		"state.backend":   string(s.StateBackend),
		"secrets.backend": string(s.SecretsBackend),
		"vault.address":   s.Vault.Address,
		"vault.mount":     s.Vault.Mount,
		"vault.path":      s.Vault.Path,
		"redis.address":   s.RedisAddr,
		"metrics.address": s.MetricsAddr,
		"log.level":       s.LogLevel,
	}
}

// showConfig prints every setting. Secrets are masked.
func showConfig(cmd *cobra.Command) error {
	ctx := cmd.Context()

	s, err := settingsService.Get()
	if err != nil {
		return err
	}
	values := appSettingValues(s)
	cmd.Println("Application")
	for _, key := range settingsService.Keys() {
		cmd.Printf("  %-20s %s\n", key, valueOrUnset(values[key]))
	}

	orgID, err := stateService.OrganizationID(ctx)
	if err != nil {
		return err
	}
	clientID, clientSecret, err := stateService.APIKey(ctx)
	if err != nil {
		return err
	}
	cmd.Println("\nOrganization")
	cmd.Printf("  %-20s %s\n", settingOrganizationID, valueOrUnset(orgID))
	cmd.Printf("  %-20s %s\n", settingClientID, valueOrUnset(clientID))
	cmd.Printf("  %-20s %s\n", settingClientSecret, maskSecret(clientSecret))

	t, err := stateService.DirectoryType(ctx)
	if errors.Is(err, domain.ErrNoDirectory) {
		cmd.Printf("\n%s: (not set)\n", settingDirectory)
		return nil
	}
	if err != nil {
		return err
	}

	sync, err := stateService.SyncConfig(ctx)
	if err != nil {
		return err
	}
	cmd.Println("\nSync")
	for _, f := range listFields(&sync) {
		cmd.Printf("  %-20s %s\n", f.Name, valueOrUnset(f.Value))
	}

	cfg, err := stateService.Directory(ctx, t)
	if err != nil {
		return err
	}
	cmd.Printf("\nDirectory (%s)\n", t)
	for _, f := range listFields(cfg) {
		cmd.Printf("  %-20s %s\n", f.Name, valueOrUnset(f.Value))
	}
	return nil
}

func valueOrUnset(v string) string {
	if v == "" {
		return "(not set)"
	}
	return v
}

// maskSecret hides all but the last four characters.
func maskSecret(v string) string {
	switch {
	case v == "":
		return "(not set)"
	case len(v) <= 8:
		return "****"
	default:
		return "****" + v[len(v)-4:]
	}
}
