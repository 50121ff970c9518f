package driving

import (
	"context"

	"github.com/custodia-labs/dirsync/internal/core/domain"
)

// SyncService runs directory sync cycles.
type SyncService interface {
	// Sync runs one cycle and submits changes to the organization API.
	// Returns domain.ErrSyncInProgress if a cycle is already running.
	Sync(ctx context.Context, force bool) (*domain.SyncResult, error)

	// Test reads the directory and returns what would be synced.
	// Nothing is submitted and no state is persisted.
	Test(ctx context.Context, force bool) (*domain.SyncResult, error)

	// Status returns the current sync status.
	Status() SyncStatus
}

// SyncStatus represents the current state of the sync service.
type SyncStatus struct {
	// Running indicates if a cycle is currently in progress.
	Running bool

	// LastResult is the result of the last completed cycle, if any.
	LastResult *domain.SyncResult

	// LastError is the error of the last failed cycle, if any.
	LastError error
}
