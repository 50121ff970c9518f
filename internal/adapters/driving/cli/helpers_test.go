package cli

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/dirsync/internal/adapters/driven/config/file"
	"github.com/custodia-labs/dirsync/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driving"
	"github.com/custodia-labs/dirsync/internal/core/services"
)

// mockSyncService implements driving.SyncService for testing.
type mockSyncService struct {
	mu     sync.Mutex
	result *domain.SyncResult
	err    error
	calls  []syncCall
	onSync func()
}

type syncCall struct {
	force, test bool
}

func (m *mockSyncService) record(force, test bool) (*domain.SyncResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, syncCall{force: force, test: test})
	fn := m.onSync
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
	if m.err != nil {
		return nil, m.err
	}
	if m.result == nil {
		return &domain.SyncResult{SkipReason: domain.SkipUnchanged}, nil
	}
	return m.result, nil
}

func (m *mockSyncService) Sync(_ context.Context, force bool) (*domain.SyncResult, error) {
	return m.record(force, false)
}

func (m *mockSyncService) Test(_ context.Context, force bool) (*domain.SyncResult, error) {
	return m.record(force, true)
}

func (m *mockSyncService) Status() driving.SyncStatus {
	return driving.SyncStatus{}
}

func (m *mockSyncService) Calls() []syncCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]syncCall(nil), m.calls...)
}

// mockMigrationService implements driving.MigrationService for testing.
type mockMigrationService struct {
	version  int
	migrated bool
	err      error
}

func (m *mockMigrationService) NeedsMigration(context.Context) (bool, error) {
	return m.version < services.LatestStateVersion, nil
}

func (m *mockMigrationService) Migrate(context.Context) error {
	if m.err != nil {
		return m.err
	}
	m.migrated = true
	m.version = services.LatestStateVersion
	return nil
}

func (m *mockMigrationService) CurrentVersion(context.Context) (int, error) {
	return m.version, nil
}

// testEnv holds the services installed for one test.
type testEnv struct {
	sync      *mockSyncService
	migration *mockMigrationService
	state     *services.StateService
	settings  *services.SettingsService
	secrets   *memory.SecureStore
}

// setupCLI installs services backed by in-memory stores and restores the
// previous ones on cleanup.
func setupCLI(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		sync:      &mockSyncService{},
		migration: &mockMigrationService{version: services.LatestStateVersion},
		secrets:   memory.NewSecureStore(),
	}
	env.state = services.NewStateService(memory.NewStateStore(), env.secrets)
	configStore, err := file.NewConfigStore(t.TempDir())
	require.NoError(t, err)
	env.settings = services.NewSettingsService(configStore)

	prev := Services{
		Sync:      syncService,
		State:     stateService,
		Migration: migrationService,
		Settings:  settingsService,
		Metrics:   metricsHandler,
		Close:     closer,
	}
	prevBootstrap := bootstrap
	bootstrap = nil
	SetServices(&Services{
		Sync:      env.sync,
		State:     env.state,
		Migration: env.migration,
		Settings:  env.settings,
	})
	t.Cleanup(func() {
		SetServices(&prev)
		bootstrap = prevBootstrap
	})
	return env
}

// resetFlags restores every flag to its default between executions.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}
