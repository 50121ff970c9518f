package domain

// ImportRequest is one call to the organization import endpoint.
type ImportRequest struct {
	Groups            []GroupPayload `json:"groups"`
	Users             []UserPayload  `json:"users"`
	OverwriteExisting bool           `json:"overwriteExisting"`
	LargeImport       bool           `json:"largeImport"`
}

// GroupPayload is a group as the import endpoint expects it.
type GroupPayload struct {
	Name              string   `json:"name"`
	ExternalID        string   `json:"externalId"`
	MemberExternalIDs []string `json:"memberExternalIds"`
}

// UserPayload is a user as the import endpoint expects it.
type UserPayload struct {
	Email      string `json:"email"`
	ExternalID string `json:"externalId"`
	Deleted    bool   `json:"deleted"`
}

// BuildOptions controls how entries become import requests.
type BuildOptions struct {
	RemoveDisabled    bool
	OverwriteExisting bool
	BatchSize         int
}

// NewUserPayload converts a user, marking it deleted when it is deleted in
// the directory or disabled and removeDisabled is set.
func NewUserPayload(u UserEntry, removeDisabled bool) UserPayload {
	return UserPayload{
		Email:      u.Email,
		ExternalID: u.ExternalID,
		Deleted:    u.Deleted || (removeDisabled && u.Disabled),
	}
}

// NewGroupPayload converts a group. Members are sorted for a stable hash.
func NewGroupPayload(g GroupEntry) GroupPayload {
	members := g.UserMemberExternalIDs.Sorted()
	return GroupPayload{
		Name:              g.Name,
		ExternalID:        g.ExternalID,
		MemberExternalIDs: members,
	}
}
