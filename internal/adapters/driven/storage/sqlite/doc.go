// Package sqlite provides the SQLite-backed implementation of driven.StateStore.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO. Directory state is a flat key/value namespace: each key
// (directoryType, organizationId, sync, directory_<type>, userDelta, ...) maps
// to one JSON document.
//
// # Schema
//
// The schema is managed through versioned migrations embedded from the
// migrations/ directory and tracked in schema_migrations.
//
// # Data Location
//
// By default, the database is stored at ~/.dirsync/data/state.db
//
// # Thread Safety
//
// All operations are safe for concurrent use. Apply runs in a single
// transaction so a batch of state keys is written all-or-nothing.
package sqlite
