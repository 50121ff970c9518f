package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestSyncState_IsZero tests detection of an empty state record
func TestSyncState_IsZero(t *testing.T) {
	assert.True(t, SyncState{}.IsZero())

	now := time.Now()
	assert.False(t, SyncState{LastUserSync: &now}.IsZero())
	assert.False(t, SyncState{LastSyncHash: "h"}.IsZero())
	assert.False(t, SyncState{GroupDelta: "d"}.IsZero())
}

// TestUserEntry_Active tests the active predicate
func TestUserEntry_Active(t *testing.T) {
	assert.True(t, UserEntry{Email: "a@x.com"}.Active())
	assert.False(t, UserEntry{Deleted: true}.Active())
	assert.False(t, UserEntry{Disabled: true}.Active())
}
