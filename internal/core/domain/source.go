package domain

import "time"

// DirectorySource is everything an adapter needs for one read.
// Adapters treat it as read-only; only the sync orchestrator persists state.
type DirectorySource struct {
	Type   DirectoryType
	Config PublicConfig
	Secret SecretConfig
	Sync   SyncConfig
	State  SyncState
}

// SyncState is the persisted delta record of the configured directory.
// It is cleared whenever the directory type or organization changes.
type SyncState struct {
	// UserDelta and GroupDelta are opaque continuation tokens.
	UserDelta  string
	GroupDelta string

	LastUserSync  *time.Time
	LastGroupSync *time.Time

	// LastSyncHash is the digest of the last submitted request set.
	LastSyncHash string
}

// IsZero reports whether no sync has been recorded.
func (s SyncState) IsZero() bool {
	return s.UserDelta == "" && s.GroupDelta == "" &&
		s.LastUserSync == nil && s.LastGroupSync == nil && s.LastSyncHash == ""
}
