package cli

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/custodia-labs/dirsync/internal/core/ports/driving"
	"github.com/custodia-labs/dirsync/internal/logger"
)

// annotationNoBootstrap marks commands that run without services.
const annotationNoBootstrap = "dirsync/no-bootstrap"

// Services holds everything the commands drive.
type Services struct {
	Sync      driving.SyncService
	State     driving.StateService
	Migration driving.MigrationService
	Settings  driving.SettingsService

	// Metrics serves /metrics and /health in daemon mode. May be nil.
	Metrics http.Handler

	// Close releases stores and connections. May be nil.
	Close func() error
}

// Options are the process-level overrides resolved from flags and
// DIRSYNC_* environment variables. Empty fields mean "use the settings file".
type Options struct {
	DataDir        string
	LogLevel       string
	LogFormat      string
	Verbose        bool
	StateBackend   string
	SecretsBackend string
}

// Bootstrap builds the services for one command invocation.
type Bootstrap func(ctx context.Context, opts Options) (*Services, error)

var (
	syncService      driving.SyncService
	stateService     driving.StateService
	migrationService driving.MigrationService
	settingsService  driving.SettingsService
	metricsHandler   http.Handler

	bootstrap Bootstrap
	closer    func() error

	flags = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "dirsync",
	Short: "Synchronise directory users and groups into an organization",
	Long: `dirsync reads users and groups from LDAP/Active Directory, Entra ID,
Google Workspace, Okta or OneLogin and submits them to the organization
import API. Unchanged directories are detected and not resubmitted.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("data-dir", "", "Directory for state, settings and secrets (default ~/.dirsync)")
	pf.String("log-level", "", "Log level: debug, info, warn or error")
	pf.String("log-format", "console", "Log format: console or json")
	pf.BoolP("verbose", "v", false, "Enable debug logging")
	pf.String("state-backend", "", "State backend: sqlite or memory")
	pf.String("secrets-backend", "", "Secrets backend: dotenv, vault or memory")

	_ = flags.BindPFlags(pf)
	flags.SetEnvPrefix("DIRSYNC")
	flags.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	flags.AutomaticEnv()
}

// SetBootstrap registers the function that builds services before each command.
func SetBootstrap(fn Bootstrap) {
	bootstrap = fn
}

// SetServices installs services directly. Used by tests and embedders.
func SetServices(s *Services) {
	syncService = s.Sync
	stateService = s.State
	migrationService = s.Migration
	settingsService = s.Settings
	metricsHandler = s.Metrics
	closer = s.Close
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func options() Options {
	return Options{
		DataDir:        flags.GetString("data-dir"),
		LogLevel:       flags.GetString("log-level"),
		LogFormat:      flags.GetString("log-format"),
		Verbose:        flags.GetBool("verbose"),
		StateBackend:   flags.GetString("state-backend"),
		SecretsBackend: flags.GetString("secrets-backend"),
	}
}

func setup(cmd *cobra.Command, _ []string) error {
	opts := options()
	logger.SetJSON(strings.EqualFold(opts.LogFormat, "json"))
	if opts.LogLevel != "" {
		if err := logger.SetLevel(opts.LogLevel); err != nil {
			return err
		}
	}
	logger.SetVerbose(opts.Verbose)

	if _, skip := cmd.Annotations[annotationNoBootstrap]; skip || bootstrap == nil {
		return nil
	}
	svc, err := bootstrap(cmd.Context(), opts)
	if err != nil {
		return err
	}
	SetServices(svc)
	return nil
}

func teardown(_ *cobra.Command, _ []string) error {
	if closer == nil {
		return nil
	}
	fn := closer
	closer = nil
	return fn()
}

// errNotConfigured is returned when a command runs without its service.
var errNotConfigured = errors.New("service not configured")
