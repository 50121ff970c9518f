package driven

import "context"

// SecureStore holds the one sensitive value per directory type and the
// organization API key. Values are opaque strings.
// Keys follow the secure-store layout (secret_<type>, ...).
type SecureStore interface {
	// Get returns the secret stored under key.
	// Returns domain.ErrNotFound if the key does not exist.
	Get(ctx context.Context, key string) (string, error)

	// Save stores or replaces the secret under key.
	Save(ctx context.Context, key, value string) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}
