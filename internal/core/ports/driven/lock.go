package driven

import "context"

// SyncLock serialises sync cycles across processes sharing the same state.
type SyncLock interface {
	// Acquire takes the lock. It returns domain.ErrSyncInProgress when another
	// holder has it. The returned release func must be called exactly once.
	Acquire(ctx context.Context) (release func(context.Context) error, err error)
}
