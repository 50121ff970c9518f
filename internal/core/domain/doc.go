// Package domain defines the core business entities for dirsync.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - UserEntry, GroupEntry: canonical directory records
//   - FilterSet: parsed include/exclude filter expressions
//   - SyncConfig and the per-directory configurations
//   - SyncState: delta tokens, timestamps and the last submitted hash
//   - ImportRequest: the payload submitted to the organization import API
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
