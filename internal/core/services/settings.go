package services

import (
	"fmt"
	"slices"
	"strings"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driven"
	"github.com/custodia-labs/dirsync/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
const (
	keyServer         = "server"
	keyAPIURL         = "api_url"
	keyIdentityURL    = "identity_url"
	keyStateBackend   = "state.backend"
	keySecretsBackend = "secrets.backend"
	keyVaultAddress   = "vault.address"
	keyVaultMount     = "vault.mount"
	keyVaultPath      = "vault.path"
	keyRedisAddress   = "redis.address"
	keyMetricsAddress = "metrics.address"
	keyLogLevel       = "log.level"
)

var settingKeys = []string{
	keyServer, keyAPIURL, keyIdentityURL,
	keyStateBackend, keySecretsBackend,
	keyVaultAddress, keyVaultMount, keyVaultPath,
	keyRedisAddress, keyMetricsAddress, keyLogLevel,
}

var logLevels = []string{"debug", "info", "warn", "error"}

// SettingsService manages application settings in the ConfigStore.
type SettingsService struct {
	configStore driven.ConfigStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Server:      s.configStore.GetString(keyServer),
		APIURL:      s.configStore.GetString(keyAPIURL),
		IdentityURL: s.configStore.GetString(keyIdentityURL),
		StateBackend: domain.StateBackend(
			s.getString(keyStateBackend, string(defaults.StateBackend))),
		SecretsBackend: domain.SecretsBackend(
			s.getString(keySecretsBackend, string(defaults.SecretsBackend))),
		Vault: domain.VaultSettings{
			Address: s.configStore.GetString(keyVaultAddress),
			Mount:   s.getString(keyVaultMount, defaults.Vault.Mount),
			Path:    s.getString(keyVaultPath, defaults.Vault.Path),
		},
		RedisAddr:   s.configStore.GetString(keyRedisAddress),
		MetricsAddr: s.configStore.GetString(keyMetricsAddress),
		LogLevel:    s.getString(keyLogLevel, defaults.LogLevel),
	}

	// Invalid stored values fall back to defaults.
	if !settings.StateBackend.IsValid() {
		settings.StateBackend = defaults.StateBackend
	}
	if !settings.SecretsBackend.IsValid() {
		settings.SecretsBackend = defaults.SecretsBackend
	}
	if !slices.Contains(logLevels, settings.LogLevel) {
		settings.LogLevel = defaults.LogLevel
	}

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := map[string]string{
		keyServer:         settings.Server,
		keyAPIURL:         settings.APIURL,
		keyIdentityURL:    settings.IdentityURL,
		keyStateBackend:   string(settings.StateBackend),
		keySecretsBackend: string(settings.SecretsBackend),
		keyVaultAddress:   settings.Vault.Address,
		keyVaultMount:     settings.Vault.Mount,
		keyVaultPath:      settings.Vault.Path,
		keyRedisAddress:   settings.RedisAddr,
		keyMetricsAddress: settings.MetricsAddr,
		keyLogLevel:       settings.LogLevel,
	}
	for _, key := range settingKeys {
		if err := s.validate(key, values[key]); err != nil {
			return err
		}
		if err := s.configStore.Set(key, values[key]); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
	}
	return s.configStore.Save()
}

// Set validates and persists one setting.
func (s *SettingsService) Set(key, value string) error {
	key = strings.ToLower(strings.TrimSpace(key))
	if !slices.Contains(settingKeys, key) {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}
	value = strings.TrimSpace(value)
	if err := s.validate(key, value); err != nil {
		return err
	}
	if err := s.configStore.Set(key, value); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return s.configStore.Save()
}

// Keys returns every settable key.
func (s *SettingsService) Keys() []string {
	return slices.Clone(settingKeys)
}

func (s *SettingsService) validate(key, value string) error {
	switch key {
	case keyStateBackend:
		if !domain.StateBackend(value).IsValid() {
			return fmt.Errorf("%w: invalid state backend %q", domain.ErrInvalidInput, value)
		}
	case keySecretsBackend:
		if !domain.SecretsBackend(value).IsValid() {
			return fmt.Errorf("%w: invalid secrets backend %q", domain.ErrInvalidInput, value)
		}
	case keyLogLevel:
		if !slices.Contains(logLevels, value) {
			return fmt.Errorf("%w: invalid log level %q", domain.ErrInvalidInput, value)
		}
	}
	return nil
}

// getString returns a string config value or the default.
func (s *SettingsService) getString(key, defaultVal string) string {
	if val := s.configStore.GetString(key); val != "" {
		return val
	}
	return defaultVal
}
