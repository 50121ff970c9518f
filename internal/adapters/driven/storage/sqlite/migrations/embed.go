// Package migrations holds the schema of the SQLite state store: the state
// table that backs the flat key/value namespace (directoryType, sync,
// directory_<type>, userDelta, stateVersion, ...). Files are applied in
// name order and tracked in schema_migrations.
package migrations

import "embed"

// FS holds the *.up.sql and *.down.sql files.
//
//go:embed *.sql
var FS embed.FS
