package driven

// ConfigStore provides access to process-level settings (server URLs,
// backends, log level). Directory configuration is held by StateStore.
// Keys are flat and dot-separated, e.g. "vault.address".
type ConfigStore interface {
	// Get retrieves a setting by key.
	// Returns the value and a boolean indicating if the key exists.
	Get(key string) (any, bool)

	// GetString retrieves a string setting.
	// Returns empty string if key doesn't exist or isn't a string.
	GetString(key string) string

	// GetInt retrieves an integer setting.
	// Returns 0 if key doesn't exist or isn't an integer.
	GetInt(key string) int

	// GetBool retrieves a boolean setting.
	GetBool(key string) bool

	// Set stores a setting in memory. Call Save to persist it.
	Set(key string, value any) error

	// Save persists the settings file.
	Save() error

	// Load reads the settings file. A missing file is not an error.
	Load() error

	// Path returns the settings file path.
	Path() string
}
