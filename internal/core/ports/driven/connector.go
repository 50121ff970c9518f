package driven

import (
	"context"

	"github.com/custodia-labs/dirsync/internal/core/domain"
)

// Directory reads users and groups from one external identity directory.
// Each directory type (ldap, entra, gsuite, okta, onelogin) implements this interface.
type Directory interface {
	// Type returns the directory type.
	Type() domain.DirectoryType

	// GetEntries fetches current groups and users.
	// force disables delta optimisations and refetches everything.
	// test is a dry run: the returned delta tokens must not be persisted.
	// A collection whose sync is disabled is returned as nil, never empty.
	GetEntries(ctx context.Context, force, test bool) (*domain.Entries, error)

	// Close releases resources such as open LDAP connections.
	Close() error
}
