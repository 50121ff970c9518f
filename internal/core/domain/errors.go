package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown directory type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrSyncInProgress indicates a sync is already running.
	ErrSyncInProgress = errors.New("sync in progress")

	// Directory Errors.

	// ErrConfigIncomplete indicates required directory credentials or identifiers are missing.
	ErrConfigIncomplete = errors.New("directory configuration incomplete")

	// ErrAuthenticationFailed indicates the directory rejected the configured credentials.
	// Messages wrapping it must never include the secret.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrProtocol indicates a transport failure or an unexpected directory response.
	ErrProtocol = errors.New("directory protocol error")

	// Sync Errors.

	// ErrValidation indicates the entity set or options were rejected before any network call.
	ErrValidation = errors.New("validation failed")

	// ErrSubmission indicates the import endpoint rejected a request.
	ErrSubmission = errors.New("import submission failed")

	// ErrNoDirectory indicates no directory type has been configured.
	ErrNoDirectory = errors.New("no directory configured")

	// ErrOrganizationNotSet indicates the organization id is missing.
	ErrOrganizationNotSet = errors.New("organization not set")

	// State Errors.

	// ErrUnknownStateVersion indicates persisted state was written by a newer version.
	ErrUnknownStateVersion = errors.New("unknown state version")
)
