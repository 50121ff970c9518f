package driven

import (
	"context"

	"github.com/custodia-labs/dirsync/internal/core/domain"
)

// DirectoryBuilder creates a Directory from its source.
type DirectoryBuilder func(ctx context.Context, source domain.DirectorySource) (Directory, error)

// DirectoryFactory creates directories from configuration.
// It maintains a registry of directory types and their builders.
type DirectoryFactory interface {
	// Create returns a Directory for the given source.
	// Returns ErrUnsupportedType if no builder is registered for source.Type.
	Create(ctx context.Context, source domain.DirectorySource) (Directory, error)

	// Register adds a directory builder for the given type.
	Register(t domain.DirectoryType, builder DirectoryBuilder)

	// SupportedTypes returns all registered directory types.
	SupportedTypes() []domain.DirectoryType
}
