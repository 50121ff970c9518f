package entra

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driven"
	"github.com/custodia-labs/dirsync/internal/logger"
)

// Ensure Directory implements the interface.
var _ driven.Directory = (*Directory)(nil)

const (
	userSelect = "$select=id,mail,userPrincipalName,displayName,accountEnabled"

	typeUser  = "#microsoft.graph.user"
	typeGroup = "#microsoft.graph.group"

	// maxFanOut bounds concurrent member and administrative unit lookups.
	maxFanOut = 4
)

type graphUser struct {
	Type              string `json:"@odata.type"`
	ID                string `json:"id"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
	AccountEnabled    *bool  `json:"accountEnabled"`
	Removed           *struct {
		Reason string `json:"reason"`
	} `json:"@removed"`
}

type graphObject struct {
	Type        string `json:"@odata.type"`
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// Directory reads users and groups from an Entra ID tenant.
type Directory struct {
	client *client
	sync   domain.SyncConfig
	state  domain.SyncState
}

// New creates an Entra ID directory from source.
func New(_ context.Context, source domain.DirectorySource) (driven.Directory, error) {
	s, err := parseConfig(source)
	if err != nil {
		return nil, err
	}
	return &Directory{client: newClient(s), sync: source.Sync, state: source.State}, nil
}

// Type returns the directory type.
func (d *Directory) Type() domain.DirectoryType {
	return domain.DirectoryEntraID
}

// Close releases idle connections.
func (d *Directory) Close() error {
	d.client.http.CloseIdleConnections()
	return nil
}

// GetEntries implements driven.Directory.
func (d *Directory) GetEntries(ctx context.Context, force, test bool) (*domain.Entries, error) {
	entries := &domain.Entries{}

	if d.sync.Users {
		users, err := d.currentUsers(ctx)
		if err != nil {
			return nil, err
		}
		deleted, delta, err := d.deletedUsers(ctx, force)
		if err != nil {
			return nil, err
		}
		entries.Users = append(users, deleted...)
		if !test {
			entries.UserDelta = delta
		}
	}

	if d.sync.Groups {
		filter, err := d.groupFilter(ctx)
		if err != nil {
			return nil, err
		}
		if entries.Groups, err = d.getGroups(ctx, filter); err != nil {
			return nil, err
		}
		entries.Users = domain.FilterUsersFromGroups(entries.Users, entries.Groups, filter, d.sync.RemoveDisabled)
	}
	return entries, nil
}

// userFilter returns the user filter; administrative unit keywords do not apply to users.
func (d *Directory) userFilter() *domain.FilterSet {
	return domain.ParseFilter(d.sync.UserFilter).Restrict(
		domain.FilterInclude, domain.FilterExclude,
		domain.FilterIncludeGroup, domain.FilterExcludeGroup,
	)
}

// emailFilter returns the user filter when it matches on email.
func (d *Directory) emailFilter() *domain.FilterSet {
	return d.userFilter().Restrict(domain.FilterInclude, domain.FilterExclude)
}

func (d *Directory) currentUsers(ctx context.Context) ([]domain.UserEntry, error) {
	filter := d.userFilter()
	exclude := make(domain.IDSet)

	var (
		users []graphUser
		err   error
	)
	switch {
	case filter != nil && filter.Mode == domain.FilterIncludeGroup:
		users, err = d.usersByGroups(ctx, filter.Values)
	case filter != nil && filter.Mode == domain.FilterExcludeGroup:
		excluded, gerr := d.usersByGroups(ctx, filter.Values)
		if gerr != nil {
			return nil, gerr
		}
		for _, u := range excluded {
			exclude.Add(u.ID)
		}
		users, err = listAll[graphUser](ctx, d.client, "users?"+userSelect)
	default:
		users, err = listAll[graphUser](ctx, d.client, "users?"+userSelect)
	}
	if err != nil {
		return nil, err
	}

	emails := d.emailFilter()
	seen := make(domain.IDSet)
	out := make([]domain.UserEntry, 0, len(users))
	for _, u := range users {
		if u.ID == "" || seen.Has(u.ID) || exclude.Has(u.ID) {
			continue
		}
		entry := buildUser(u)
		if emails.FilterOut(entry.Email) || invalidUser(entry) {
			continue
		}
		out = append(out, entry)
		seen.Add(u.ID)
	}
	return out, nil
}

// usersByGroups returns the transitive user members of each group id.
func (d *Directory) usersByGroups(ctx context.Context, groupIDs domain.IDSet) ([]graphUser, error) {
	ids := groupIDs.Sorted()
	results := make([][]graphUser, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxFanOut)
	for i, id := range ids {
		g.Go(func() error {
			members, err := listAll[graphUser](gctx, d.client, "groups/"+url.PathEscape(id)+"/transitiveMembers?"+userSelect)
			if err != nil {
				return err
			}
			for _, m := range members {
				if m.Type == "" || m.Type == typeUser {
					results[i] = append(results[i], m)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []graphUser
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

// deletedUsers walks the user delta feed and returns the removed users and
// the new delta link. A stored delta link is used unless force is set; if
// it is rejected the feed restarts from scratch.
func (d *Directory) deletedUsers(ctx context.Context, force bool) ([]domain.UserEntry, string, error) {
	l := logger.Ctx(ctx)
	emails := d.emailFilter()

	var out []domain.UserEntry
	seen := make(domain.IDSet)
	collect := func(users []graphUser) {
		for _, u := range users {
			if u.ID == "" || seen.Has(u.ID) {
				continue
			}
			entry := buildUser(u)
			if !entry.Deleted || emails.FilterOut(entry.Email) {
				continue
			}
			out = append(out, entry)
			seen.Add(u.ID)
		}
	}

	if token := d.state.UserDelta; !force && token != "" {
		delta, err := each(ctx, d.client, token, collect)
		if err == nil {
			return out, delta, nil
		}
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		l.Warn().Err(err).Msg("stored user delta rejected, starting a new delta feed")
		out, seen = nil, make(domain.IDSet)
	}

	delta, err := each(ctx, d.client, "users/delta?"+userSelect, collect)
	if err != nil {
		return nil, "", err
	}
	return out, delta, nil
}

// groupFilter parses the group filter, expanding administrative units into
// the display names of their member groups.
func (d *Directory) groupFilter(ctx context.Context) (*domain.FilterSet, error) {
	filter := domain.ParseFilter(d.sync.GroupFilter).Restrict(
		domain.FilterInclude, domain.FilterExclude,
		domain.FilterIncludeAdministrativeUnit, domain.FilterExcludeAdministrativeUnit,
	)
	if filter == nil || (filter.Mode != domain.FilterIncludeAdministrativeUnit && filter.Mode != domain.FilterExcludeAdministrativeUnit) {
		return filter, nil
	}

	var mu sync.Mutex
	names := make(domain.IDSet)
	seen := make(domain.IDSet)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxFanOut)
	for _, unit := range filter.Values.Sorted() {
		g.Go(func() error {
			path := "directory/administrativeUnits/" + url.PathEscape(unit) + "/members"
			_, err := each(gctx, d.client, path, func(members []graphObject) {
				mu.Lock()
				defer mu.Unlock()
				for _, m := range members {
					if m.Type != typeGroup || seen.Has(m.ID) {
						continue
					}
					names.Add(strings.ToLower(strings.TrimSpace(m.DisplayName)))
					seen.Add(m.ID)
				}
			})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &domain.FilterSet{Mode: filter.Mode, Values: names}, nil
}

func (d *Directory) getGroups(ctx context.Context, filter *domain.FilterSet) ([]domain.GroupEntry, error) {
	groups, err := listAll[graphObject](ctx, d.client, "groups")
	if err != nil {
		return nil, err
	}

	seen := make(domain.IDSet)
	out := make([]domain.GroupEntry, 0, len(groups))
	for _, grp := range groups {
		if grp.ID == "" || seen.Has(grp.ID) || filter.FilterOut(grp.DisplayName) {
			continue
		}
		out = append(out, domain.NewGroupEntry(grp.ID, grp.ID, grp.DisplayName))
		seen.Add(grp.ID)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxFanOut)
	for i := range out {
		entry := &out[i]
		g.Go(func() error {
			return d.resolveMembers(gctx, entry)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// resolveMembers fills the member sets of entry. Each goroutine owns its entry.
func (d *Directory) resolveMembers(ctx context.Context, entry *domain.GroupEntry) error {
	_, err := each(ctx, d.client, "groups/"+url.PathEscape(entry.ReferenceID)+"/members", func(members []graphObject) {
		for _, m := range members {
			switch m.Type {
			case typeGroup:
				entry.GroupMemberReferenceIDs.Add(m.ID)
			case typeUser:
				entry.UserMemberExternalIDs.Add(m.ID)
			}
		}
	})
	return err
}

func buildUser(u graphUser) domain.UserEntry {
	email := u.Mail
	if u.UserPrincipalName != "" && (email == "" || strings.Contains(email, "onmicrosoft.com")) {
		email = u.UserPrincipalName
	}
	return domain.UserEntry{
		ReferenceID: u.ID,
		ExternalID:  u.ID,
		Email:       strings.ToLower(strings.TrimSpace(email)),
		Disabled:    u.AccountEnabled != nil && !*u.AccountEnabled,
		Deleted:     u.Removed != nil && u.Removed.Reason == "changed",
	}
}

// invalidUser reports an active user without a usable email.
func invalidUser(u domain.UserEntry) bool {
	return !u.Disabled && !u.Deleted && (u.Email == "" || strings.Contains(u.Email, "#"))
}
