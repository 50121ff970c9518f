package domain

import "time"

// SyncResult summarises one sync cycle.
type SyncResult struct {
	RunID     string
	Directory DirectoryType
	StartedAt time.Time

	// Groups and Users are the post-processed entries. Nil when not requested.
	Groups []GroupEntry
	Users  []UserEntry

	// Requests is the number of import requests built.
	Requests int

	// Submitted is false when nothing was sent.
	Submitted bool

	// SkipReason explains why nothing was submitted.
	SkipReason string
}

// Skip reasons reported in SyncResult.
const (
	SkipNoDirectory = "no directory configured"
	SkipTest        = "test run"
	SkipEmpty       = "no entries"
	SkipUnchanged   = "no changes since last sync"
)
