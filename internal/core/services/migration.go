package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driven"
	"github.com/custodia-labs/dirsync/internal/core/ports/driving"
	"github.com/custodia-labs/dirsync/internal/logger"
)

// Ensure Migrator implements the interface.
var _ driving.MigrationService = (*Migrator)(nil)

// Snapshot is the persisted state a migration step reads and rewrites.
type Snapshot struct {
	Version int
	Values  map[string]json.RawMessage
	Secrets map[string]string
}

func (s Snapshot) clone() Snapshot {
	out := Snapshot{
		Version: s.Version,
		Values:  make(map[string]json.RawMessage, len(s.Values)),
		Secrets: make(map[string]string, len(s.Secrets)),
	}
	for k, v := range s.Values {
		out.Values[k] = v
	}
	for k, v := range s.Secrets {
		out.Secrets[k] = v
	}
	return out
}

// MigrationStep transforms a snapshot of version N into version N+1.
// Steps are pure so they can be re-run after an interrupted commit.
type MigrationStep func(Snapshot) (Snapshot, error)

// migrationSteps[i] migrates from version i+1.
var migrationSteps = []MigrationStep{
	migrateV1ToV2,
	migrateV2ToV3,
	migrateV3ToV4,
	migrateV4ToV5,
}

// Keys used by layouts before version 5.
const (
	legacyGlobal                = "global"
	legacyAuthenticatedAccounts = "authenticatedAccounts"
	legacyEntityID              = "entityId"
	legacyUserID                = "userId"
	legacySyncConfig            = "syncConfig"
	legacyUserDeltaToken        = "userDeltaToken"
	legacyGroupDeltaToken       = "groupDeltaToken"
	legacyDirectoryConfigPrefix = "directoryConfig_"
	legacyClientID              = "clientId"
	legacyClientSecret          = "clientSecret"
	legacyAPIClientSecret       = "apikey_clientSecret"
	legacyTempConfigs           = "tempDirectoryConfigs"
	legacyTempSettings          = "tempDirectorySettings"
)

// legacySecretNames maps each directory to the secure-store name used
// before version 5. Accounts prefix them with "<userId>_".
var legacySecretNames = []struct {
	account string // directoryConfigurations property
	name    string
	target  string
}{
	{"ldap", "ldapPassword", "secret_ldap"},
	{"gsuite", "gsuitePrivateKey", "secret_gsuite"},
	{"azure", "azureKey", "secret_azure"},
	{"entra", "entraIdKey", "secret_entra"},
	{"okta", "oktaToken", "secret_okta"},
	{"oneLogin", "oneLoginClientSecret", "secret_onelogin"},
}

// accountConfigKeys maps directoryConfigurations properties to the version 1
// directoryConfig_<n> suffix.
var accountConfigKeys = []struct {
	account string
	t       domain.DirectoryType
}{
	{"ldap", domain.DirectoryLdap},
	{"gsuite", domain.DirectoryGSuite},
	{"azure", domain.DirectoryEntraID},
	{"entra", domain.DirectoryEntraID},
	{"okta", domain.DirectoryOkta},
	{"oneLogin", domain.DirectoryOneLogin},
}

// legacySettingKeys maps directorySettings properties to their version 1 key.
var legacySettingKeys = []struct {
	setting string
	v1      string
}{
	{"directoryType", keyDirectoryType},
	{"organizationId", keyOrganizationID},
	{"lastUserSync", keyLastUserSync},
	{"lastGroupSync", keyLastGroupSync},
	{"lastSyncHash", keyLastSyncHash},
	{"syncingDir", keySyncingDir},
	{"sync", legacySyncConfig},
	{"userDelta", legacyUserDeltaToken},
	{"groupDelta", legacyGroupDeltaToken},
}

// Migrator walks persisted state forward one version at a time.
type Migrator struct {
	store   driven.StateStore
	secrets driven.SecureStore
}

// NewMigrator creates a new migrator.
func NewMigrator(store driven.StateStore, secrets driven.SecureStore) *Migrator {
	return &Migrator{store: store, secrets: secrets}
}

// CurrentVersion returns the persisted state version.
// A store with no keys at all is a fresh install and reports the latest version.
func (m *Migrator) CurrentVersion(ctx context.Context) (int, error) {
	raw, err := m.store.Get(ctx, keyStateVersion)
	switch {
	case err == nil:
		var v int
		if err := json.Unmarshal(raw, &v); err != nil {
			return 0, fmt.Errorf("decode state version: %w", err)
		}
		return v, nil
	case !errors.Is(err, domain.ErrNotFound):
		return 0, fmt.Errorf("get state version: %w", err)
	}

	raw, err = m.store.Get(ctx, legacyGlobal)
	switch {
	case err == nil:
		var g struct {
			StateVersion int `json:"stateVersion"`
		}
		if err := json.Unmarshal(raw, &g); err == nil && g.StateVersion > 0 {
			return g.StateVersion, nil
		}
	case !errors.Is(err, domain.ErrNotFound):
		return 0, fmt.Errorf("get global state: %w", err)
	}

	keys, err := m.store.Keys(ctx)
	if err != nil {
		return 0, fmt.Errorf("list state keys: %w", err)
	}
	if len(keys) == 0 {
		return LatestStateVersion, nil
	}
	return 1, nil
}

// NeedsMigration reports whether persisted state predates the latest version.
func (m *Migrator) NeedsMigration(ctx context.Context) (bool, error) {
	v, err := m.CurrentVersion(ctx)
	if err != nil {
		return false, err
	}
	if v > LatestStateVersion {
		return false, fmt.Errorf("%w: %d", domain.ErrUnknownStateVersion, v)
	}
	return v < LatestStateVersion, nil
}

// Migrate runs every pending step. Each step is committed, version marker
// last, before the next one starts.
func (m *Migrator) Migrate(ctx context.Context) error {
	v, err := m.CurrentVersion(ctx)
	if err != nil {
		return err
	}
	if v > LatestStateVersion {
		return fmt.Errorf("%w: %d", domain.ErrUnknownStateVersion, v)
	}
	if v == LatestStateVersion {
		return m.ensureMarker(ctx)
	}

	for v < LatestStateVersion {
		before, err := m.load(ctx, v)
		if err != nil {
			return err
		}
		after, err := migrationSteps[v-1](before.clone())
		if err != nil {
			return fmt.Errorf("migrate state %d to %d: %w", v, v+1, err)
		}
		after.Version = v + 1
		if err := m.commit(ctx, before, after); err != nil {
			return fmt.Errorf("commit state %d to %d: %w", v, v+1, err)
		}
		logger.Info("migrated state from version %d to %d", v, v+1)
		v++
	}
	return nil
}

func (m *Migrator) ensureMarker(ctx context.Context) error {
	_, err := m.store.Get(ctx, keyStateVersion)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return m.store.Save(ctx, keyStateVersion, []byte(strconv.Itoa(LatestStateVersion)))
}

// load reads every state key and every secret a step may touch.
func (m *Migrator) load(ctx context.Context, version int) (Snapshot, error) {
	snap := Snapshot{
		Version: version,
		Values:  make(map[string]json.RawMessage),
		Secrets: make(map[string]string),
	}

	keys, err := m.store.Keys(ctx)
	if err != nil {
		return snap, fmt.Errorf("list state keys: %w", err)
	}
	for _, k := range keys {
		raw, err := m.store.Get(ctx, k)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return snap, fmt.Errorf("get %s: %w", k, err)
		}
		snap.Values[k] = raw
	}

	names := []string{legacyAPIClientSecret, secretAPIClientSecret, secretOneLoginLegacy}
	users := snapshotUserIDs(snap)
	for _, s := range legacySecretNames {
		names = append(names, s.name, s.target)
		for _, id := range users {
			names = append(names, id+"_"+s.name)
		}
	}
	names = append(names, legacyUserDeltaToken, legacyGroupDeltaToken)
	for _, id := range users {
		names = append(names, id+"_"+legacyUserDeltaToken, id+"_"+legacyGroupDeltaToken)
	}

	for _, name := range names {
		v, err := m.secrets.Get(ctx, name)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return snap, fmt.Errorf("get secret: %w", err)
		}
		snap.Secrets[name] = v
	}
	return snap, nil
}

// commit persists the difference between before and after: new secrets
// first, then state writes and removals atomically, then secret removals,
// and finally the version marker.
func (m *Migrator) commit(ctx context.Context, before, after Snapshot) error {
	for k, v := range after.Secrets {
		if old, ok := before.Secrets[k]; !ok || old != v {
			if err := m.secrets.Save(ctx, k, v); err != nil {
				return fmt.Errorf("save secret: %w", err)
			}
		}
	}

	entries := make(map[string][]byte)
	for k, v := range after.Values {
		if k == keyStateVersion || k == legacyGlobal {
			continue
		}
		if old, ok := before.Values[k]; !ok || !bytes.Equal(old, v) {
			entries[k] = v
		}
	}
	for k := range before.Values {
		if _, ok := after.Values[k]; !ok && k != keyStateVersion && k != legacyGlobal {
			entries[k] = nil
		}
	}
	if len(entries) > 0 {
		if err := m.store.Apply(ctx, entries); err != nil {
			return err
		}
	}

	for k := range before.Secrets {
		if _, ok := after.Secrets[k]; !ok {
			if err := m.secrets.Remove(ctx, k); err != nil {
				return fmt.Errorf("remove secret: %w", err)
			}
		}
	}

	return m.writeMarker(ctx, after)
}

// writeMarker records the version. Versions before 5 keep it inside the
// "global" object; version 5 uses the flat stateVersion key.
func (m *Migrator) writeMarker(ctx context.Context, snap Snapshot) error {
	if snap.Version >= LatestStateVersion {
		return m.store.Save(ctx, keyStateVersion, []byte(strconv.Itoa(snap.Version)))
	}
	global := decodeObject(snap.Values[legacyGlobal])
	global["stateVersion"] = json.RawMessage(strconv.Itoa(snap.Version))
	raw, err := json.Marshal(global)
	if err != nil {
		return err
	}
	return m.store.Save(ctx, legacyGlobal, raw)
}

// snapshotUserIDs returns the account ids a snapshot refers to.
func snapshotUserIDs(s Snapshot) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	add(decodeString(s.Values[legacyEntityID]))
	add(decodeString(s.Values[legacyUserID]))
	var accounts []string
	_ = json.Unmarshal(s.Values[legacyAuthenticatedAccounts], &accounts)
	for _, id := range accounts {
		add(id)
	}
	return out
}

func decodeString(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

// decodeObject returns raw as an object, or an empty one when it is not.
func decodeObject(raw json.RawMessage) map[string]json.RawMessage {
	obj := make(map[string]json.RawMessage)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &obj)
	}
	if obj == nil {
		obj = make(map[string]json.RawMessage)
	}
	return obj
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null"
}
