package driving

import (
	"context"

	"github.com/custodia-labs/dirsync/internal/core/domain"
)

// StateService manages persisted directory configuration, secrets and
// delta state.
type StateService interface {
	// DirectoryType returns the configured type.
	// Returns domain.ErrNoDirectory when none is set.
	DirectoryType(ctx context.Context) (domain.DirectoryType, error)

	// SetDirectoryType changes the type. Sync state is cleared when it changes.
	SetDirectoryType(ctx context.Context, t domain.DirectoryType) error

	// OrganizationID returns the organization id, or "" when unset.
	OrganizationID(ctx context.Context) (string, error)

	// SetOrganizationID changes the organization. Sync state is cleared when it changes.
	SetOrganizationID(ctx context.Context, id string) error

	// SyncConfig returns the sync options with defaults applied.
	SyncConfig(ctx context.Context) (domain.SyncConfig, error)
	SetSyncConfig(ctx context.Context, cfg domain.SyncConfig) error

	// Directory returns the public config of t with defaults applied.
	// The secret field holds the StoredSecurely placeholder when a secret exists.
	Directory(ctx context.Context, t domain.DirectoryType) (domain.PublicConfig, error)

	// SetDirectory stores cfg. A non-placeholder secret field is moved to the
	// secure store; an empty one removes the stored secret.
	SetDirectory(ctx context.Context, cfg domain.PublicConfig) error

	// Secret returns the secret of t, resolving legacy aliases.
	Secret(ctx context.Context, t domain.DirectoryType) (domain.SecretConfig, error)

	// Source loads everything an adapter needs for the configured directory.
	// Returns domain.ErrNoDirectory when no type is configured.
	Source(ctx context.Context) (*domain.DirectorySource, error)

	// SyncState returns the persisted delta record.
	SyncState(ctx context.Context) (domain.SyncState, error)

	// CommitSync persists the delta record atomically.
	CommitSync(ctx context.Context, state domain.SyncState) error

	// ClearSyncSettings clears deltas and timestamps, and the hash when hashToo.
	ClearSyncSettings(ctx context.Context, hashToo bool) error

	// Clean clears the directory type, organization, every config and all sync state.
	Clean(ctx context.Context) error

	// APIKey returns the organization API key credentials.
	APIKey(ctx context.Context) (clientID, clientSecret string, err error)
	SetAPIKey(ctx context.Context, clientID, clientSecret string) error
}

// MigrationService moves persisted state forward to the current layout.
type MigrationService interface {
	// NeedsMigration reports whether persisted state predates the current version.
	NeedsMigration(ctx context.Context) (bool, error)

	// Migrate walks every pending version step in order.
	Migrate(ctx context.Context) error

	// CurrentVersion returns the persisted state version.
	CurrentVersion(ctx context.Context) (int, error)
}
