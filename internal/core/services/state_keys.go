package services

import "github.com/custodia-labs/dirsync/internal/core/domain"

// Persisted state keys. Values are JSON documents.
const (
	keyStateVersion   = "stateVersion"
	keyDirectoryType  = "directoryType"
	keyOrganizationID = "organizationId"
	keySync           = "sync"
	keySyncingDir     = "syncingDir"
	keyUserDelta      = "userDelta"
	keyGroupDelta     = "groupDelta"
	keyLastUserSync   = "lastUserSync"
	keyLastGroupSync  = "lastGroupSync"
	keyLastSyncHash   = "lastSyncHash"
	keyAPIClientID    = "apikey_clientId"

	// Secure store keys.
	secretAPIClientSecret = "apikey_clientSecret"
	secretAzure           = "secret_azure"
	secretOneLoginLegacy  = "secret_oneLogin"
)

// LatestStateVersion is the layout written by this version of dirsync.
const LatestStateVersion = 5

func directoryKey(t domain.DirectoryType) string {
	return "directory_" + t.String()
}

func secretKey(t domain.DirectoryType) string {
	return "secret_" + t.String()
}

// syncSettingKeys are cleared together whenever the directory or
// organization changes.
var syncSettingKeys = []string{keyUserDelta, keyGroupDelta, keyLastUserSync, keyLastGroupSync}
