package onelogin

import (
	"bytes"
	"context"
	"encoding/json"
	"regexp"
	"slices"
	"strings"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driven"
	"github.com/custodia-labs/dirsync/internal/logger"
)

// Ensure Directory implements the interface.
var _ driven.Directory = (*Directory)(nil)

// statusSuspended is the OneLogin user status reported as disabled.
const statusSuspended = 2

var validEmail = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// id accepts both numeric and string identifiers.
type id string

func (i *id) UnmarshalJSON(b []byte) error {
	if bytes.HasPrefix(b, []byte(`"`)) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*i = id(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*i = id(n.String())
	return nil
}

type oneLoginUser struct {
	ID       id     `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Status   int    `json:"status"`
	RoleIDs  []id   `json:"role_id"`
}

type oneLoginRole struct {
	ID   id     `json:"id"`
	Name string `json:"name"`
}

// Directory reads users and roles from OneLogin.
type Directory struct {
	settings *settings
	sync     domain.SyncConfig
}

// New creates a OneLogin directory from source.
func New(_ context.Context, source domain.DirectorySource) (driven.Directory, error) {
	s, err := parseConfig(source)
	if err != nil {
		return nil, err
	}
	return &Directory{settings: s, sync: source.Sync}, nil
}

// Type returns the directory type.
func (d *Directory) Type() domain.DirectoryType {
	return domain.DirectoryOneLogin
}

// Close is a no-op.
func (d *Directory) Close() error {
	return nil
}

// GetEntries implements driven.Directory. OneLogin has no change feed, so
// every call reads the full account.
func (d *Directory) GetEntries(ctx context.Context, _, _ bool) (*domain.Entries, error) {
	c := newClient(ctx, d.settings)
	if _, err := c.tokens.Token(); err != nil {
		return nil, err
	}

	entries := &domain.Entries{}
	var all []oneLoginUser
	if d.sync.Users {
		var err error
		if all, err = d.listUsers(ctx, c); err != nil {
			return nil, err
		}
		entries.Users = d.buildUsers(all)
	}

	if d.sync.Groups {
		filter := domain.ParseFilter(d.sync.GroupFilter).Restrict(domain.FilterInclude, domain.FilterExclude)
		groups, err := d.getGroups(ctx, c, filter, all)
		if err != nil {
			return nil, err
		}
		entries.Groups = groups
		entries.Users = domain.FilterUsersFromGroups(entries.Users, groups, filter, d.sync.RemoveDisabled)
	}
	return entries, nil
}

func withQuery(endpoint, expr string) string {
	if q := domain.DirectoryQuery(expr); q != "" {
		return endpoint + "?" + q
	}
	return endpoint
}

func (d *Directory) listUsers(ctx context.Context, c *client) ([]oneLoginUser, error) {
	logger.Ctx(ctx).Info().Msg("querying users")
	return getMany[oneLoginUser](ctx, c, withQuery("users", d.sync.UserFilter))
}

func (d *Directory) buildUsers(all []oneLoginUser) []domain.UserEntry {
	filter := domain.ParseFilter(d.sync.UserFilter).Restrict(domain.FilterInclude, domain.FilterExclude)
	out := make([]domain.UserEntry, 0, len(all))
	for _, u := range all {
		entry, ok := d.buildUser(u)
		if !ok || filter.FilterOut(entry.Email) {
			continue
		}
		out = append(out, entry)
	}
	return out
}

// buildUser falls back to the username for the email, or to the username
// plus the configured suffix. Users without a valid email are skipped.
func (d *Directory) buildUser(u oneLoginUser) (domain.UserEntry, bool) {
	email := u.Email
	if email == "" && u.Username != "" {
		switch {
		case validEmail.MatchString(u.Username):
			email = u.Username
		case d.sync.UseEmailPrefixSuffix && d.sync.EmailSuffix != "":
			email = u.Username + d.sync.EmailSuffix
		}
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !validEmail.MatchString(email) {
		return domain.UserEntry{}, false
	}
	return domain.UserEntry{
		ReferenceID: string(u.ID),
		ExternalID:  string(u.ID),
		Email:       email,
		Disabled:    u.Status == statusSuspended,
	}, true
}

// getGroups lists roles; a role's members are the users carrying its id.
func (d *Directory) getGroups(ctx context.Context, c *client, filter *domain.FilterSet, users []oneLoginUser) ([]domain.GroupEntry, error) {
	logger.Ctx(ctx).Info().Msg("querying roles")
	roles, err := getMany[oneLoginRole](ctx, c, withQuery("roles", d.sync.GroupFilter))
	if err != nil {
		return nil, err
	}

	out := make([]domain.GroupEntry, 0, len(roles))
	for _, r := range roles {
		if filter.FilterOut(r.Name) {
			continue
		}
		entry := domain.NewGroupEntry(string(r.ID), string(r.ID), r.Name)
		for _, u := range users {
			if slices.Contains(u.RoleIDs, r.ID) {
				entry.UserMemberExternalIDs.Add(string(u.ID))
			}
		}
		out = append(out, entry)
	}
	return out, nil
}
