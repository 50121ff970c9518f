package secrets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driven"
)

// Ensure DotenvStore implements the interface.
var _ driven.SecureStore = (*DotenvStore)(nil)

// EnvPrefix prefixes every variable name written to the dotenv file.
const EnvPrefix = "DIRSYNC_"

// DotenvStore keeps secrets in a dotenv file readable only by the owner.
// A variable of the same name in the process environment takes precedence,
// so containers can inject secrets without a file.
type DotenvStore struct {
	mu     sync.Mutex
	path   string
	lookup func(string) (string, bool)
}

// NewDotenvStore creates a store backed by dir/secrets.env.
// If dir is empty, defaults to ~/.dirsync.
func NewDotenvStore(dir string) (*DotenvStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, ".dirsync")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating secrets directory: %w", err)
	}
	return &DotenvStore{
		path:   filepath.Join(dir, "secrets.env"),
		lookup: os.LookupEnv,
	}, nil
}

// Path returns the dotenv file path.
func (s *DotenvStore) Path() string {
	return s.path
}

// Get returns the secret stored under key.
func (s *DotenvStore) Get(_ context.Context, key string) (string, error) {
	name := envName(key)
	if v, ok := s.lookup(name); ok {
		return v, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	env, err := s.read()
	if err != nil {
		return "", err
	}
	v, ok := env[name]
	if !ok {
		return "", domain.ErrNotFound
	}
	return v, nil
}

// Save stores or replaces the secret under key.
func (s *DotenvStore) Save(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	env, err := s.read()
	if err != nil {
		return err
	}
	env[envName(key)] = value
	return s.write(env)
}

// Remove deletes key.
func (s *DotenvStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	env, err := s.read()
	if err != nil {
		return err
	}
	name := envName(key)
	if _, ok := env[name]; !ok {
		return nil
	}
	delete(env, name)
	return s.write(env)
}

// read loads the file (caller must hold lock). A missing file is empty.
func (s *DotenvStore) read() (map[string]string, error) {
	env, err := godotenv.Read(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}
	return env, nil
}

// write replaces the file atomically (caller must hold lock).
func (s *DotenvStore) write(env map[string]string) error {
	content, err := godotenv.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding secrets: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".secrets-*.env")
	if err != nil {
		return fmt.Errorf("writing secrets: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("writing secrets: %w", err)
	}
	if _, err := tmp.WriteString(content + "\n"); err != nil {
		tmp.Close()
		return fmt.Errorf("writing secrets: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing secrets: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("writing secrets: %w", err)
	}
	return nil
}

// envName maps a secret key onto a dotenv variable name. Characters a
// variable name cannot hold are hex-escaped, e.g. "a-b" becomes
// "DIRSYNC_a_x2D_b".
func envName(key string) string {
	var b strings.Builder
	b.WriteString(EnvPrefix)
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "_x%02X_", c)
		}
	}
	return b.String()
}
