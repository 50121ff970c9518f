package services

import (
	"encoding/json"
	"strconv"

	"github.com/custodia-labs/dirsync/internal/core/domain"
)

// migrateV1ToV2 moves the flat per-installation keys into an account
// object keyed by user id, or into temp keys when nobody is logged in.
// Secrets move to "<userId>_<name>". Values already present in the target
// objects are merged rather than replaced, so an interrupted commit can be
// re-run.
func migrateV1ToV2(s Snapshot) (Snapshot, error) {
	renameValue(s.Values, legacyClientID, keyAPIClientID)
	renameValue(s.Values, legacyClientSecret, legacyAPIClientSecret)
	clientID := s.Values[keyAPIClientID]
	clientSecret := s.Values[legacyAPIClientSecret]

	configs := make(map[string]json.RawMessage)
	for _, c := range accountConfigKeys {
		if raw := s.Values[v1ConfigKey(c.t)]; !isNull(raw) {
			configs[c.account] = raw
		}
	}
	settings := make(map[string]json.RawMessage)
	for _, k := range legacySettingKeys {
		if raw := s.Values[k.v1]; !isNull(raw) {
			settings[k.setting] = raw
		}
	}

	userID := decodeString(s.Values[legacyEntityID])
	if userID == "" {
		userID = decodeString(s.Values[legacyUserID])
	}
	if userID == "" {
		if ids := accountIDs(s); len(ids) > 0 {
			userID = ids[0]
		}
	}

	removeV1 := func() {
		for _, k := range []string{legacyEntityID, legacyUserID, keyAPIClientID, legacyAPIClientSecret} {
			delete(s.Values, k)
		}
		for _, k := range legacySettingKeys {
			delete(s.Values, k.v1)
		}
		for _, c := range accountConfigKeys {
			delete(s.Values, v1ConfigKey(c.t))
		}
	}

	if userID == "" {
		if err := mergeInto(s.Values, legacyTempConfigs, configs); err != nil {
			return s, err
		}
		if err := mergeInto(s.Values, legacyTempSettings, settings); err != nil {
			return s, err
		}
		removeV1()
		return s, nil
	}

	account := decodeObject(s.Values[userID])
	if err := mergeField(account, "directoryConfigurations", configs); err != nil {
		return s, err
	}
	if err := mergeField(account, "directorySettings", settings); err != nil {
		return s, err
	}

	idRaw, err := json.Marshal(userID)
	if err != nil {
		return s, err
	}
	profile := map[string]json.RawMessage{"userId": idRaw, "entityId": idRaw}
	keys := map[string]json.RawMessage{}
	if !isNull(clientID) {
		profile["apiKeyClientId"] = clientID
		keys["clientId"] = clientID
	}
	if !isNull(clientSecret) {
		keys["clientSecret"] = clientSecret
	}
	if err := mergeField(account, "profile", profile); err != nil {
		return s, err
	}
	if err := mergeField(account, "clientKeys", keys); err != nil {
		return s, err
	}
	if err := setValue(s.Values, userID, account); err != nil {
		return s, err
	}

	ids := accountIDs(s)
	if !contains(ids, userID) {
		ids = append(ids, userID)
	}
	if err := setValue(s.Values, legacyAuthenticatedAccounts, ids); err != nil {
		return s, err
	}
	removeV1()

	names := []string{legacyUserDeltaToken, legacyGroupDeltaToken}
	for _, ls := range legacySecretNames {
		names = append(names, ls.name)
	}
	for _, name := range names {
		if v, ok := s.Secrets[name]; ok {
			s.Secrets[userID+"_"+name] = v
			delete(s.Secrets, name)
		}
	}
	return s, nil
}

// migrateV2ToV3 moves delta tokens that were wrongly placed in the secure
// store back into each account's directory settings.
func migrateV2ToV3(s Snapshot) (Snapshot, error) {
	for _, id := range accountIDs(s) {
		if isNull(s.Values[id]) {
			continue
		}
		account := decodeObject(s.Values[id])
		moved := make(map[string]json.RawMessage)
		for setting, name := range map[string]string{"userDelta": legacyUserDeltaToken, "groupDelta": legacyGroupDeltaToken} {
			key := id + "_" + name
			v, ok := s.Secrets[key]
			if !ok {
				continue
			}
			raw, err := json.Marshal(v)
			if err != nil {
				return s, err
			}
			moved[setting] = raw
			delete(s.Secrets, key)
		}
		if len(moved) == 0 {
			continue
		}
		if err := mergeField(account, "directorySettings", moved); err != nil {
			return s, err
		}
		if err := setValue(s.Values, id, account); err != nil {
			return s, err
		}
	}
	return s, nil
}

// migrateV3ToV4 only advances the version.
func migrateV3ToV4(s Snapshot) (Snapshot, error) {
	return s, nil
}

// migrateV4ToV5 flattens the first account into the single-installation
// key space. Without an account the temp keys and unprefixed secrets are
// used instead. Old secret keys are kept.
func migrateV4ToV5(s Snapshot) (Snapshot, error) {
	var configs, settings, clientKeys map[string]json.RawMessage
	prefixes := []string{""}

	ids := accountIDs(s)
	if len(ids) > 0 && !isNull(s.Values[ids[0]]) {
		account := decodeObject(s.Values[ids[0]])
		configs = decodeObject(account["directoryConfigurations"])
		settings = decodeObject(account["directorySettings"])
		clientKeys = decodeObject(account["clientKeys"])
		if id := decodeObject(account["profile"])["apiKeyClientId"]; isNull(clientKeys["clientId"]) && !isNull(id) {
			clientKeys["clientId"] = id
		}
		prefixes = []string{ids[0] + "_", ""}
	} else {
		configs = decodeObject(s.Values[legacyTempConfigs])
		settings = decodeObject(s.Values[legacyTempSettings])
		clientKeys = map[string]json.RawMessage{}
	}

	for account, key := range map[string]string{
		"ldap":     "directory_ldap",
		"gsuite":   "directory_gsuite",
		"okta":     "directory_okta",
		"oneLogin": "directory_onelogin",
	} {
		if raw := configs[account]; !isNull(raw) {
			s.Values[key] = raw
		}
	}
	if raw := configs["entra"]; !isNull(raw) {
		s.Values["directory_entra"] = raw
	} else if raw := configs["azure"]; !isNull(raw) {
		s.Values["directory_entra"] = raw
	}

	for _, k := range []string{
		keyOrganizationID, keyDirectoryType, keySync, keyLastUserSync, keyLastGroupSync,
		keyLastSyncHash, keyUserDelta, keyGroupDelta, keySyncingDir,
	} {
		if raw := settings[k]; !isNull(raw) {
			s.Values[k] = raw
		}
	}

	if raw := clientKeys["clientId"]; !isNull(raw) {
		s.Values[keyAPIClientID] = raw
	}
	secret := decodeString(clientKeys["clientSecret"])
	if plain := decodeString(s.Values[legacyAPIClientSecret]); secret == "" && plain != "" {
		secret = plain
	}
	if secret != "" {
		s.Secrets[secretAPIClientSecret] = secret
	}
	delete(s.Values, legacyAPIClientSecret)

	for _, ls := range legacySecretNames {
		for _, p := range prefixes {
			if v := s.Secrets[p+ls.name]; v != "" {
				s.Secrets[ls.target] = v
				break
			}
		}
	}
	return s, nil
}

func v1ConfigKey(t domain.DirectoryType) string {
	return legacyDirectoryConfigPrefix + strconv.Itoa(int(t))
}

// renameValue moves from to to unless to is already set.
func renameValue(values map[string]json.RawMessage, from, to string) {
	raw, ok := values[from]
	if !ok {
		return
	}
	if _, exists := values[to]; !exists && !isNull(raw) {
		values[to] = raw
	}
	delete(values, from)
}

func accountIDs(s Snapshot) []string {
	var ids []string
	if raw := s.Values[legacyAuthenticatedAccounts]; !isNull(raw) {
		_ = json.Unmarshal(raw, &ids)
	}
	return ids
}

func setValue(values map[string]json.RawMessage, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	values[key] = raw
	return nil
}

// mergeField overlays fields onto the object stored in obj[name].
func mergeField(obj map[string]json.RawMessage, name string, fields map[string]json.RawMessage) error {
	target := decodeObject(obj[name])
	for k, v := range fields {
		target[k] = v
	}
	raw, err := json.Marshal(target)
	if err != nil {
		return err
	}
	obj[name] = raw
	return nil
}

// mergeInto overlays fields onto the object stored under key.
func mergeInto(values map[string]json.RawMessage, key string, fields map[string]json.RawMessage) error {
	if len(fields) == 0 {
		return nil
	}
	target := decodeObject(values[key])
	for k, v := range fields {
		target[k] = v
	}
	return setValue(values, key, target)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
