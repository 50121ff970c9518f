package domain

import "strings"

// Cloud endpoints used when no server is configured.
const (
	DefaultAPIURL      = "https://api.bitwarden.com"
	DefaultIdentityURL = "https://identity.bitwarden.com"
)

// StateBackend selects where directory state is persisted.
type StateBackend string

// Available state backends.
const (
	StateBackendSQLite StateBackend = "sqlite"
	StateBackendMemory StateBackend = "memory"
)

// IsValid returns true if the backend is recognised.
func (b StateBackend) IsValid() bool {
	return b == StateBackendSQLite || b == StateBackendMemory
}

// SecretsBackend selects where directory secrets are persisted.
type SecretsBackend string

// Available secrets backends.
const (
	SecretsBackendDotenv SecretsBackend = "dotenv"
	SecretsBackendVault  SecretsBackend = "vault"
	SecretsBackendMemory SecretsBackend = "memory"
)

// IsValid returns true if the backend is recognised.
func (b SecretsBackend) IsValid() bool {
	switch b {
	case SecretsBackendDotenv, SecretsBackendVault, SecretsBackendMemory:
		return true
	default:
		return false
	}
}

// VaultSettings configures the Vault secrets backend.
type VaultSettings struct {
	Address string
	Mount   string
	Path    string
}

// AppSettings holds the process-level settings of dirsync.
// Directory configuration lives in the state store, not here.
type AppSettings struct {
	// Server is a self-hosted base URL. Empty selects the cloud endpoints.
	Server string

	// APIURL and IdentityURL override the URLs derived from Server.
	APIURL      string
	IdentityURL string

	StateBackend   StateBackend
	SecretsBackend SecretsBackend
	Vault          VaultSettings

	// RedisAddr enables the cross-process sync lock when set.
	RedisAddr string

	MetricsAddr string
	LogLevel    string
}

// DefaultAppSettings returns settings with sensible defaults.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		StateBackend:   StateBackendSQLite,
		SecretsBackend: SecretsBackendDotenv,
		Vault: VaultSettings{
			Mount: "secret",
			Path:  "dirsync",
		},
		LogLevel: "info",
	}
}

// ResolvedAPIURL returns the organization API base URL.
func (s AppSettings) ResolvedAPIURL() string {
	switch {
	case s.APIURL != "":
		return strings.TrimRight(s.APIURL, "/")
	case s.Server != "":
		return strings.TrimRight(s.Server, "/") + "/api"
	default:
		return DefaultAPIURL
	}
}

// ResolvedIdentityURL returns the identity (token) service base URL.
func (s AppSettings) ResolvedIdentityURL() string {
	switch {
	case s.IdentityURL != "":
		return strings.TrimRight(s.IdentityURL, "/")
	case s.Server != "":
		return strings.TrimRight(s.Server, "/") + "/identity"
	default:
		return DefaultIdentityURL
	}
}
