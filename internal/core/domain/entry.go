package domain

import "sort"

// IDSet is an unordered set of identifiers.
type IDSet map[string]struct{}

// NewIDSet returns a set containing ids.
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Add inserts id into the set.
func (s IDSet) Add(id string) {
	s[id] = struct{}{}
}

// Has reports whether id is in the set.
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the members in ascending order.
func (s IDSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// UserEntry is a directory user in canonical form.
// A non-deleted user always has a non-empty, lower-cased and trimmed email.
type UserEntry struct {
	// ReferenceID is the directory-native identifier (DN, object id).
	ReferenceID string `json:"referenceId"`

	// ExternalID is the stable join key across syncs. Falls back to ReferenceID.
	ExternalID string `json:"externalId"`

	// Email is empty only when Deleted is true.
	Email string `json:"email"`

	Disabled bool `json:"disabled"`
	Deleted  bool `json:"deleted"`
}

// Active reports whether the user is neither deleted nor disabled.
func (u UserEntry) Active() bool {
	return !u.Deleted && !u.Disabled
}

// GroupEntry is a directory group in canonical form.
type GroupEntry struct {
	ReferenceID string `json:"referenceId"`
	ExternalID  string `json:"externalId"`
	Name        string `json:"name"`

	// UserMemberExternalIDs holds the ExternalID of each member user.
	UserMemberExternalIDs IDSet `json:"userMemberExternalIds"`

	// GroupMemberReferenceIDs holds the ReferenceID of each nested group.
	GroupMemberReferenceIDs IDSet `json:"groupMemberReferenceIds"`
}

// NewGroupEntry returns a group with initialised member sets.
func NewGroupEntry(referenceID, externalID, name string) GroupEntry {
	return GroupEntry{
		ReferenceID:             referenceID,
		ExternalID:              externalID,
		Name:                    name,
		UserMemberExternalIDs:   make(IDSet),
		GroupMemberReferenceIDs: make(IDSet),
	}
}

// Entries is the result of one directory read.
// A nil slice means the collection was not requested; an empty slice means
// it was requested and the directory returned nothing.
type Entries struct {
	Groups []GroupEntry
	Users  []UserEntry

	// UserDelta and GroupDelta are continuation tokens to persist after a
	// successful sync. Empty means the previous token stays in effect.
	UserDelta  string
	GroupDelta string
}
