package driven

import (
	"time"

	"github.com/custodia-labs/dirsync/internal/core/domain"
)

// SyncObserver receives sync lifecycle events. Implementations must not block.
type SyncObserver interface {
	// SyncFinished is called once per cycle, with err nil on success.
	SyncFinished(result *domain.SyncResult, duration time.Duration, err error)

	// RequestSubmitted is called after each accepted import request.
	RequestSubmitted(dt domain.DirectoryType)
}
