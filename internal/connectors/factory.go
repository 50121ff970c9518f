package connectors

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driven"
)

// Ensure Factory implements the interface.
var _ driven.DirectoryFactory = (*Factory)(nil)

// Factory creates directories from their stored configuration.
type Factory struct {
	mu       sync.RWMutex
	builders map[domain.DirectoryType]driven.DirectoryBuilder
}

// NewFactory creates an empty factory. Use Register or RegisterBuiltins
// to add directory builders.
func NewFactory() *Factory {
	return &Factory{builders: make(map[domain.DirectoryType]driven.DirectoryBuilder)}
}

// Register adds a builder for t, replacing any previous one.
func (f *Factory) Register(t domain.DirectoryType, builder driven.DirectoryBuilder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[t] = builder
}

// Create builds the directory for source.Type.
func (f *Factory) Create(ctx context.Context, source domain.DirectorySource) (driven.Directory, error) {
	f.mu.RLock()
	builder, ok := f.builders[source.Type]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedType, source.Type)
	}
	if source.Config == nil {
		return nil, fmt.Errorf("%w: %s directory is not configured", domain.ErrConfigIncomplete, source.Type)
	}
	return builder(ctx, source)
}

// SupportedTypes returns the registered types in ascending order.
func (f *Factory) SupportedTypes() []domain.DirectoryType {
	f.mu.RLock()
	defer f.mu.RUnlock()
	types := make([]domain.DirectoryType, 0, len(f.builders))
	for t := range f.builders {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
