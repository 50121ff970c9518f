// Command dirsync synchronises directory users and groups into an organization.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/dirsync/internal/adapters/driven/config/file"
	"github.com/custodia-labs/dirsync/internal/adapters/driven/importapi"
	"github.com/custodia-labs/dirsync/internal/adapters/driven/lock"
	"github.com/custodia-labs/dirsync/internal/adapters/driven/metrics"
	"github.com/custodia-labs/dirsync/internal/adapters/driven/secrets"
	"github.com/custodia-labs/dirsync/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/dirsync/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/dirsync/internal/adapters/driving/cli"
	"github.com/custodia-labs/dirsync/internal/connectors"
	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driven"
	"github.com/custodia-labs/dirsync/internal/core/services"
	"github.com/custodia-labs/dirsync/internal/logger"
)

// Set with -ldflags "-X main.version=...".
var (
	version = ""
	commit  = ""
	date    = ""
	builtBy = ""
)

func main() {
	cli.SetBuildInfo(version, commit, date, builtBy)
	cli.SetBootstrap(bootstrap)
	if err := cli.Execute(context.Background()); err != nil {
		os.Exit(1)
	}
}

// bootstrap opens the stores selected by settings and flags and wires the
// core services over them.
func bootstrap(ctx context.Context, opts cli.Options) (_ *cli.Services, err error) {
	var closers []func() error
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}
	defer func() {
		if err != nil {
			_ = closeAll()
		}
	}()

	configStore, err := file.NewConfigStore(opts.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open settings: %w", err)
	}
	settingsService := services.NewSettingsService(configStore)
	settings, err := settingsService.Get()
	if err != nil {
		return nil, err
	}
	applyOverrides(settings, opts)

	if opts.LogLevel == "" {
		if err := logger.SetLevel(settings.LogLevel); err != nil {
			return nil, err
		}
	}

	stateStore, closeState, err := openStateStore(settings, opts.DataDir)
	if err != nil {
		return nil, err
	}
	closers = append(closers, closeState)

	secureStore, err := openSecureStore(settings, opts.DataDir)
	if err != nil {
		return nil, err
	}

	migrator := services.NewMigrator(stateStore, secureStore)
	if pending, err := migrator.NeedsMigration(ctx); err != nil {
		return nil, fmt.Errorf("check state version: %w", err)
	} else if pending {
		logger.Info("migrating saved state")
		if err := migrator.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate state: %w", err)
		}
	}

	stateService := services.NewStateService(stateStore, secureStore)
	importer, err := importapi.New(importapi.Config{
		APIURL:      settings.ResolvedAPIURL(),
		IdentityURL: settings.ResolvedIdentityURL(),
		Credentials: stateService.APIKey,
	})
	if err != nil {
		return nil, err
	}

	orchestrator := services.NewSyncOrchestrator(stateService, connectors.NewDefaultFactory(), importer)
	observer := metrics.NewObserver()
	orchestrator.SetObserver(observer)

	if settings.RedisAddr != "" {
		cfg := lock.DefaultConfig()
		cfg.Addr = settings.RedisAddr
		cfg.Password = os.Getenv("DIRSYNC_REDIS_PASSWORD")
		syncLock, err := lock.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		closers = append(closers, syncLock.Close)
		orchestrator.SetSyncLock(syncLock)
	}

	return &cli.Services{
		Sync:      orchestrator,
		State:     stateService,
		Migration: migrator,
		Settings:  settingsService,
		Metrics:   observer.Handler(),
		Close:     closeAll,
	}, nil
}

// applyOverrides lets flags and DIRSYNC_* variables win over the settings file.
func applyOverrides(s *domain.AppSettings, opts cli.Options) {
	if opts.StateBackend != "" {
		s.StateBackend = domain.StateBackend(opts.StateBackend)
	}
	if opts.SecretsBackend != "" {
		s.SecretsBackend = domain.SecretsBackend(opts.SecretsBackend)
	}
}

func openStateStore(s *domain.AppSettings, dataDir string) (driven.StateStore, func() error, error) {
	switch s.StateBackend {
	case domain.StateBackendMemory:
		return memory.NewStateStore(), func() error { return nil }, nil
	case domain.StateBackendSQLite:
		dir := ""
		if dataDir != "" {
			dir = filepath.Join(dataDir, "data")
		}
		store, err := sqlite.NewStore(dir)
		if err != nil {
			return nil, nil, fmt.Errorf("open state: %w", err)
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: state backend %q", domain.ErrInvalidInput, s.StateBackend)
	}
}

func openSecureStore(s *domain.AppSettings, dataDir string) (driven.SecureStore, error) {
	switch s.SecretsBackend {
	case domain.SecretsBackendMemory:
		return memory.NewSecureStore(), nil
	case domain.SecretsBackendDotenv:
		store, err := secrets.NewDotenvStore(dataDir)
		if err != nil {
			return nil, fmt.Errorf("open secrets: %w", err)
		}
		return store, nil
	case domain.SecretsBackendVault:
		store, err := secrets.NewVaultStore(secrets.VaultConfig{
			Address: s.Vault.Address,
			Mount:   s.Vault.Mount,
			Path:    s.Vault.Path,
		})
		if err != nil {
			return nil, fmt.Errorf("open vault: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: secrets backend %q", domain.ErrInvalidInput, s.SecretsBackend)
	}
}
