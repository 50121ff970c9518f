// Package file provides the TOML settings file used for process-level
// configuration (server URLs, state and secrets backends, vault, redis,
// metrics and logging).
package file
