package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestNewUserPayload tests the deleted flag derivation
func TestNewUserPayload(t *testing.T) {
	tests := []struct {
		name           string
		user           UserEntry
		removeDisabled bool
		deleted        bool
	}{
		{"active", UserEntry{}, true, false},
		{"deleted", UserEntry{Deleted: true}, false, true},
		{"disabled kept", UserEntry{Disabled: true}, false, false},
		{"disabled removed", UserEntry{Disabled: true}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.user.Email = "a@x.com"
			tt.user.ExternalID = "a"
			p := NewUserPayload(tt.user, tt.removeDisabled)
			assert.Equal(t, tt.deleted, p.Deleted)
			assert.Equal(t, "a@x.com", p.Email)
			assert.Equal(t, "a", p.ExternalID)
		})
	}
}

// TestNewGroupPayload tests member ordering
func TestNewGroupPayload(t *testing.T) {
	g := NewGroupEntry("cn=g", "g1", "Group")
	g.UserMemberExternalIDs.Add("z")
	g.UserMemberExternalIDs.Add("a")
	g.GroupMemberReferenceIDs.Add("cn=nested")

	p := NewGroupPayload(g)
	assert.Equal(t, "Group", p.Name)
	assert.Equal(t, "g1", p.ExternalID)
	assert.Equal(t, []string{"a", "z"}, p.MemberExternalIDs)
}

// TestNewGroupPayload_NoMembers tests that an empty member list is not nil
func TestNewGroupPayload_NoMembers(t *testing.T) {
	p := NewGroupPayload(NewGroupEntry("r", "e", "n"))
	assert.NotNil(t, p.MemberExternalIDs)
	assert.Empty(t, p.MemberExternalIDs)
}
