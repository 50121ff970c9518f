package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/creasty/defaults"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driven"
	"github.com/custodia-labs/dirsync/internal/core/ports/driving"
)

// Ensure StateService implements the interface.
var _ driving.StateService = (*StateService)(nil)

// StateService manages directory configuration, secrets and delta state.
// Secret fields never reach the state store: they are split into the
// secure store and replaced with the StoredSecurely placeholder.
type StateService struct {
	store   driven.StateStore
	secrets driven.SecureStore
}

// NewStateService creates a new state service.
func NewStateService(store driven.StateStore, secrets driven.SecureStore) *StateService {
	return &StateService{store: store, secrets: secrets}
}

// getJSON decodes key into v. It reports false when the key is missing or null.
func (s *StateService) getJSON(ctx context.Context, key string, v any) (bool, error) {
	raw, err := s.store.Get(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *StateService) setJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.store.Save(ctx, key, raw); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func (s *StateService) getSecret(ctx context.Context, key string) (string, error) {
	v, err := s.secrets.Get(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get secret: %w", err)
	}
	return v, nil
}

// DirectoryType returns the configured type.
func (s *StateService) DirectoryType(ctx context.Context) (domain.DirectoryType, error) {
	var n int
	ok, err := s.getJSON(ctx, keyDirectoryType, &n)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, domain.ErrNoDirectory
	}
	t := domain.DirectoryType(n)
	if !t.IsValid() {
		return 0, fmt.Errorf("%w: directory type %d", domain.ErrUnsupportedType, n)
	}
	return t, nil
}

// SetDirectoryType changes the type, clearing sync state when it differs.
func (s *StateService) SetDirectoryType(ctx context.Context, t domain.DirectoryType) error {
	if !t.IsValid() {
		return domain.ErrUnsupportedType
	}
	current, err := s.DirectoryType(ctx)
	if err != nil && !errors.Is(err, domain.ErrNoDirectory) {
		return err
	}
	if err != nil || current != t {
		if err := s.ClearSyncSettings(ctx, true); err != nil {
			return err
		}
	}
	return s.setJSON(ctx, keyDirectoryType, int(t))
}

// OrganizationID returns the organization id, or "" when unset.
func (s *StateService) OrganizationID(ctx context.Context) (string, error) {
	var id string
	if _, err := s.getJSON(ctx, keyOrganizationID, &id); err != nil {
		return "", err
	}
	return id, nil
}

// SetOrganizationID changes the organization, clearing sync state when it differs.
func (s *StateService) SetOrganizationID(ctx context.Context, id string) error {
	current, err := s.OrganizationID(ctx)
	if err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if current != id {
		if err := s.ClearSyncSettings(ctx, true); err != nil {
			return err
		}
	}
	if id == "" {
		return s.store.Remove(ctx, keyOrganizationID)
	}
	return s.setJSON(ctx, keyOrganizationID, id)
}

// SyncConfig returns the sync options with defaults applied.
func (s *StateService) SyncConfig(ctx context.Context) (domain.SyncConfig, error) {
	var cfg domain.SyncConfig
	if err := defaults.Set(&cfg); err != nil {
		return cfg, fmt.Errorf("apply sync defaults: %w", err)
	}
	if _, err := s.getJSON(ctx, keySync, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// SetSyncConfig stores the sync options.
func (s *StateService) SetSyncConfig(ctx context.Context, cfg domain.SyncConfig) error {
	if cfg.BatchSize < 0 {
		return fmt.Errorf("%w: batch size must not be negative", domain.ErrInvalidInput)
	}
	return s.setJSON(ctx, keySync, cfg)
}

// Directory returns the public config of t with defaults applied.
func (s *StateService) Directory(ctx context.Context, t domain.DirectoryType) (domain.PublicConfig, error) {
	cfg, err := domain.NewPublicConfig(t)
	if err != nil {
		return nil, err
	}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply %s defaults: %w", t, err)
	}
	if _, err := s.getJSON(ctx, directoryKey(t), cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetDirectory stores cfg, moving its secret field into the secure store.
func (s *StateService) SetDirectory(ctx context.Context, cfg domain.PublicConfig) error {
	public, secret, err := splitSecret(cfg)
	if err != nil {
		return err
	}
	t := cfg.DirectoryType()

	switch {
	case *secret == domain.StoredSecurely:
		// unchanged
	case *secret == "":
		if err := s.removeSecret(ctx, t); err != nil {
			return err
		}
	default:
		value := *secret
		if t == domain.DirectoryGSuite {
			value = strings.ReplaceAll(value, `\n`, "\n")
		}
		if err := s.secrets.Save(ctx, secretKey(t), value); err != nil {
			return fmt.Errorf("save secret: %w", err)
		}
		*secret = domain.StoredSecurely
	}

	return s.setJSON(ctx, directoryKey(t), public)
}

func (s *StateService) removeSecret(ctx context.Context, t domain.DirectoryType) error {
	keys := []string{secretKey(t)}
	switch t {
	case domain.DirectoryEntraID:
		keys = append(keys, secretAzure)
	case domain.DirectoryOneLogin:
		keys = append(keys, secretOneLoginLegacy)
	}
	for _, k := range keys {
		if err := s.secrets.Remove(ctx, k); err != nil {
			return fmt.Errorf("remove secret: %w", err)
		}
	}
	return nil
}

// Secret returns the secret of t. Entra ID falls back to the key written
// under its former Azure name.
func (s *StateService) Secret(ctx context.Context, t domain.DirectoryType) (domain.SecretConfig, error) {
	keys := []string{secretKey(t)}
	switch t {
	case domain.DirectoryEntraID:
		keys = append(keys, secretAzure)
	case domain.DirectoryOneLogin:
		keys = append(keys, secretOneLoginLegacy)
	}
	for _, k := range keys {
		v, err := s.getSecret(ctx, k)
		if err != nil {
			return domain.SecretConfig{}, err
		}
		if v != "" {
			return domain.SecretConfig{Type: t, Value: v}, nil
		}
	}
	return domain.SecretConfig{Type: t}, nil
}

// Source loads everything an adapter needs for the configured directory.
func (s *StateService) Source(ctx context.Context) (*domain.DirectorySource, error) {
	t, err := s.DirectoryType(ctx)
	if err != nil {
		return nil, err
	}
	cfg, err := s.Directory(ctx, t)
	if err != nil {
		return nil, err
	}
	secret, err := s.Secret(ctx, t)
	if err != nil {
		return nil, err
	}
	syncCfg, err := s.SyncConfig(ctx)
	if err != nil {
		return nil, err
	}
	state, err := s.SyncState(ctx)
	if err != nil {
		return nil, err
	}
	return &domain.DirectorySource{Type: t, Config: cfg, Secret: secret, Sync: syncCfg, State: state}, nil
}

// SyncState returns the persisted delta record.
func (s *StateService) SyncState(ctx context.Context) (domain.SyncState, error) {
	var st domain.SyncState
	fields := []struct {
		key string
		v   any
	}{
		{keyUserDelta, &st.UserDelta},
		{keyGroupDelta, &st.GroupDelta},
		{keyLastUserSync, &st.LastUserSync},
		{keyLastGroupSync, &st.LastGroupSync},
		{keyLastSyncHash, &st.LastSyncHash},
	}
	for _, f := range fields {
		if _, err := s.getJSON(ctx, f.key, f.v); err != nil {
			return domain.SyncState{}, err
		}
	}
	return st, nil
}

// CommitSync persists the delta record in one atomic write.
func (s *StateService) CommitSync(ctx context.Context, st domain.SyncState) error {
	entries := map[string][]byte{
		keyUserDelta:     encodeString(st.UserDelta),
		keyGroupDelta:    encodeString(st.GroupDelta),
		keyLastUserSync:  encodeTime(st.LastUserSync),
		keyLastGroupSync: encodeTime(st.LastGroupSync),
		keyLastSyncHash:  encodeString(st.LastSyncHash),
	}
	if err := s.store.Apply(ctx, entries); err != nil {
		return fmt.Errorf("commit sync state: %w", err)
	}
	return nil
}

// ClearSyncSettings clears deltas and timestamps, and the hash when hashToo.
func (s *StateService) ClearSyncSettings(ctx context.Context, hashToo bool) error {
	entries := make(map[string][]byte, len(syncSettingKeys)+1)
	for _, k := range syncSettingKeys {
		entries[k] = nil
	}
	if hashToo {
		entries[keyLastSyncHash] = nil
	}
	if err := s.store.Apply(ctx, entries); err != nil {
		return fmt.Errorf("clear sync settings: %w", err)
	}
	return nil
}

// Clean clears every directory setting while keeping the state version.
func (s *StateService) Clean(ctx context.Context) error {
	entries := map[string][]byte{
		keyDirectoryType:  nil,
		keyOrganizationID: nil,
		keySync:           nil,
		keySyncingDir:     nil,
		keyLastSyncHash:   nil,
	}
	for _, t := range domain.AllDirectoryTypes {
		entries[directoryKey(t)] = nil
	}
	for _, k := range syncSettingKeys {
		entries[k] = nil
	}
	if err := s.store.Apply(ctx, entries); err != nil {
		return fmt.Errorf("clean state: %w", err)
	}
	return nil
}

// APIKey returns the organization API key credentials.
func (s *StateService) APIKey(ctx context.Context) (string, string, error) {
	var id string
	if _, err := s.getJSON(ctx, keyAPIClientID, &id); err != nil {
		return "", "", err
	}
	secret, err := s.getSecret(ctx, secretAPIClientSecret)
	if err != nil {
		return "", "", err
	}
	return id, secret, nil
}

// SetAPIKey stores the organization API key. Empty values remove them.
func (s *StateService) SetAPIKey(ctx context.Context, clientID, clientSecret string) error {
	if clientID == "" {
		if err := s.store.Remove(ctx, keyAPIClientID); err != nil {
			return err
		}
	} else if err := s.setJSON(ctx, keyAPIClientID, clientID); err != nil {
		return err
	}

	if clientSecret == "" {
		return s.secrets.Remove(ctx, secretAPIClientSecret)
	}
	if clientSecret == domain.StoredSecurely {
		return nil
	}
	return s.secrets.Save(ctx, secretAPIClientSecret, clientSecret)
}

// splitSecret copies cfg and returns the copy plus a pointer to its secret field.
func splitSecret(cfg domain.PublicConfig) (domain.PublicConfig, *string, error) {
	switch c := cfg.(type) {
	case *domain.LdapConfig:
		cp := *c
		return &cp, &cp.Password, nil
	case *domain.EntraConfig:
		cp := *c
		return &cp, &cp.Key, nil
	case *domain.GoogleConfig:
		cp := *c
		return &cp, &cp.PrivateKey, nil
	case *domain.OktaConfig:
		cp := *c
		return &cp, &cp.Token, nil
	case *domain.OneLoginConfig:
		cp := *c
		return &cp, &cp.ClientSecret, nil
	default:
		return nil, nil, fmt.Errorf("%w: config %T", domain.ErrInvalidInput, cfg)
	}
}

func encodeString(v string) []byte {
	if v == "" {
		return nil
	}
	raw, _ := json.Marshal(v)
	return raw
}

func encodeTime(t *time.Time) []byte {
	if t == nil {
		return nil
	}
	raw, _ := json.Marshal(t.UTC())
	return raw
}
