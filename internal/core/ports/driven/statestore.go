package driven

import "context"

// StateStore persists directory state as a flat key/value namespace.
// Values are JSON documents. Keys follow the persisted state layout
// (directoryType, organizationId, sync, directory_<type>, userDelta, ...).
type StateStore interface {
	// Get returns the raw value of key.
	// Returns domain.ErrNotFound if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Save stores or replaces the value of key.
	Save(ctx context.Context, key string, value []byte) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error

	// Apply writes every entry atomically. A nil value removes the key.
	Apply(ctx context.Context, entries map[string][]byte) error

	// Keys returns every stored key in ascending order.
	Keys(ctx context.Context) ([]string, error)
}
