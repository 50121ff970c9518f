package driving

import "github.com/custodia-labs/dirsync/internal/core/domain"

// SettingsService manages process-level application settings.
type SettingsService interface {
	// Get retrieves current application settings with defaults applied.
	Get() (*domain.AppSettings, error)

	// Save persists application settings.
	Save(settings *domain.AppSettings) error

	// Set validates and persists a single setting by its file key,
	// e.g. "server" or "vault.address".
	Set(key, value string) error

	// Keys returns every settable key.
	Keys() []string
}
