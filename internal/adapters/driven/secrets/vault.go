package secrets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"

	vault "github.com/hashicorp/vault/api"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driven"
)

// Ensure VaultStore implements the interface.
var _ driven.SecureStore = (*VaultStore)(nil)

// VaultConfig configures the Vault KV v2 store.
type VaultConfig struct {
	Address string

	// Token defaults to VAULT_TOKEN.
	Token     string
	Namespace string

	// Mount is the KV v2 mount path; defaults to "secret".
	Mount string

	// Path is the secret holding every dirsync key as a field; defaults to "dirsync".
	Path string

	// HTTPClient overrides the Vault client's transport.
	HTTPClient *http.Client
}

// VaultStore keeps secrets as fields of one KV v2 secret. Writes use
// check-and-set so concurrent writers never drop each other's fields.
type VaultStore struct {
	mu     sync.Mutex
	client *vault.Client
	path   string
}

// maxCASAttempts bounds retries after a check-and-set conflict.
const maxCASAttempts = 3

// NewVaultStore creates a Vault-backed secure store.
func NewVaultStore(cfg VaultConfig) (*VaultStore, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("%w: vault address is required", domain.ErrConfigIncomplete)
	}
	if cfg.Mount == "" {
		cfg.Mount = "secret"
	}
	if cfg.Path == "" {
		cfg.Path = "dirsync"
	}

	vaultCfg := vault.DefaultConfig()
	vaultCfg.Address = cfg.Address
	if cfg.HTTPClient != nil {
		vaultCfg.HttpClient = cfg.HTTPClient
	}

	client, err := vault.NewClient(vaultCfg)
	if err != nil {
		return nil, fmt.Errorf("creating vault client: %w", err)
	}

	token := cfg.Token
	if token == "" {
		token = os.Getenv("VAULT_TOKEN")
	}
	if token != "" {
		client.SetToken(token)
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	return &VaultStore{
		client: client,
		path:   strings.Trim(cfg.Mount, "/") + "/data/" + strings.Trim(cfg.Path, "/"),
	}, nil
}

// Get returns the secret stored under key.
func (s *VaultStore) Get(ctx context.Context, key string) (string, error) {
	fields, _, err := s.read(ctx)
	if err != nil {
		return "", err
	}
	v, ok := fields[key].(string)
	if !ok {
		return "", domain.ErrNotFound
	}
	return v, nil
}

// Save stores or replaces the secret under key.
func (s *VaultStore) Save(ctx context.Context, key, value string) error {
	return s.update(ctx, func(fields map[string]any) bool {
		if old, ok := fields[key].(string); ok && old == value {
			return false
		}
		fields[key] = value
		return true
	})
}

// Remove deletes key.
func (s *VaultStore) Remove(ctx context.Context, key string) error {
	return s.update(ctx, func(fields map[string]any) bool {
		if _, ok := fields[key]; !ok {
			return false
		}
		delete(fields, key)
		return true
	})
}

// update applies fn to the current fields and writes them back with
// check-and-set. fn reports whether anything changed.
func (s *VaultStore) update(ctx context.Context, fn func(map[string]any) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	for range maxCASAttempts {
		var (
			fields  map[string]any
			version int64
		)
		fields, version, err = s.read(ctx)
		if err != nil {
			return err
		}
		if !fn(fields) {
			return nil
		}
		_, err = s.client.Logical().WriteWithContext(ctx, s.path, map[string]any{
			"data":    fields,
			"options": map[string]any{"cas": version},
		})
		if err == nil {
			return nil
		}
		if !isCASConflict(err) {
			return s.wrap(ctx, "write", err)
		}
	}
	return s.wrap(ctx, "write", err)
}

// read returns the fields of the secret and its current version; a missing
// secret has version 0.
func (s *VaultStore) read(ctx context.Context) (map[string]any, int64, error) {
	secret, err := s.client.Logical().ReadWithContext(ctx, s.path)
	if err != nil {
		return nil, 0, s.wrap(ctx, "read", err)
	}
	fields := make(map[string]any)
	if secret == nil || secret.Data == nil {
		return fields, 0, nil
	}
	if data, ok := secret.Data["data"].(map[string]any); ok {
		for k, v := range data {
			fields[k] = v
		}
	}
	var version int64
	if meta, ok := secret.Data["metadata"].(map[string]any); ok {
		version = toInt64(meta["version"])
	}
	return fields, version, nil
}

func (s *VaultStore) wrap(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var respErr *vault.ResponseError
	if errors.As(err, &respErr) {
		if respErr.StatusCode == http.StatusForbidden || respErr.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%w: vault %s %s: permission denied", domain.ErrAuthenticationFailed, op, s.path)
		}
		return fmt.Errorf("vault %s %s: status %d: %s", op, s.path, respErr.StatusCode, strings.Join(respErr.Errors, "; "))
	}
	return fmt.Errorf("vault %s %s: %w", op, s.path, err)
}

func isCASConflict(err error) bool {
	var respErr *vault.ResponseError
	if !errors.As(err, &respErr) || respErr.StatusCode != http.StatusBadRequest {
		return false
	}
	for _, e := range respErr.Errors {
		if strings.Contains(e, "check-and-set") {
			return true
		}
	}
	return false
}

// toInt64 handles the json.Number Vault uses for numeric fields.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case interface{ Int64() (int64, error) }:
		i, _ := n.Int64()
		return i
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}
