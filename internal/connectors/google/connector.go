package google

import (
	"context"
	"reflect"
	"strings"

	"golang.org/x/sync/errgroup"
	admin "google.golang.org/api/admin/directory/v1"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driven"
	"github.com/custodia-labs/dirsync/internal/logger"
)

// Ensure Directory implements the interface.
var _ driven.Directory = (*Directory)(nil)

const (
	usersPageSize   = 500
	groupsPageSize  = 200
	membersPageSize = 200

	// maxFanOut bounds concurrent member lookups.
	maxFanOut = 4
)

// Directory reads users and groups from Google Workspace.
type Directory struct {
	settings  *settings
	sync      domain.SyncConfig
	endpoints endpoints
	limiter   *RateLimiter
}

// New creates a Google Workspace directory from source.
func New(_ context.Context, source domain.DirectorySource) (driven.Directory, error) {
	s, err := parseConfig(source)
	if err != nil {
		return nil, err
	}
	return &Directory{settings: s, sync: source.Sync, limiter: NewRateLimiter(DefaultRateLimit)}, nil
}

// Type returns the directory type.
func (d *Directory) Type() domain.DirectoryType {
	return domain.DirectoryGSuite
}

// Close is a no-op.
func (d *Directory) Close() error {
	return nil
}

// GetEntries implements driven.Directory. Google has no delta feed, so force
// and test do not change what is read.
func (d *Directory) GetEntries(ctx context.Context, _, _ bool) (*domain.Entries, error) {
	svc, err := newAdminService(ctx, d.settings, d.endpoints)
	if err != nil {
		return nil, err
	}

	entries := &domain.Entries{}
	if d.sync.Users {
		if entries.Users, err = d.getUsers(ctx, svc); err != nil {
			return nil, err
		}
	}
	if d.sync.Groups {
		filter := domain.ParseFilter(d.sync.GroupFilter).Restrict(domain.FilterInclude, domain.FilterExclude)
		if entries.Groups, err = d.getGroups(ctx, svc, filter, entries.Users); err != nil {
			return nil, err
		}
		entries.Users = domain.FilterUsersFromGroups(entries.Users, entries.Groups, filter, d.sync.RemoveDisabled)
	}
	return entries, nil
}

func (d *Directory) getUsers(ctx context.Context, svc *admin.Service) ([]domain.UserEntry, error) {
	filter := domain.ParseFilter(d.sync.UserFilter).Restrict(domain.FilterInclude, domain.FilterExclude)
	query := domain.DirectoryQuery(d.sync.UserFilter)

	users := make([]domain.UserEntry, 0)
	for _, deleted := range []bool{false, true} {
		err := d.listUsers(ctx, svc, query, deleted, func(u *admin.User) {
			if filter.FilterOut(u.PrimaryEmail) {
				return
			}
			if entry, ok := buildUser(u, deleted); ok {
				users = append(users, entry)
			}
		})
		if err != nil {
			return nil, err
		}
	}
	return users, nil
}

func (d *Directory) listUsers(ctx context.Context, svc *admin.Service, query string, deleted bool, fn func(*admin.User)) error {
	l := logger.Ctx(ctx)
	token := ""
	for {
		if err := d.limiter.Wait(ctx); err != nil {
			return err
		}
		l.Debug().Bool("deleted", deleted).Str("page_token", token).Msg("querying users")

		call := svc.Users.List().Context(ctx).MaxResults(usersPageSize).Domain(d.settings.Domain)
		if d.settings.Customer != "" {
			call = call.Customer(d.settings.Customer)
		}
		if query != "" {
			call = call.Query(query)
		}
		if deleted {
			call = call.ShowDeleted("true")
		}
		if token != "" {
			call = call.PageToken(token)
		}

		res, err := call.Do()
		if err != nil {
			return WrapError(ctx, err, "list users")
		}
		for _, u := range res.Users {
			fn(u)
		}
		if token = res.NextPageToken; token == "" {
			return nil
		}
	}
}

func (d *Directory) getGroups(ctx context.Context, svc *admin.Service, filter *domain.FilterSet, users []domain.UserEntry) ([]domain.GroupEntry, error) {
	query := domain.DirectoryQuery(d.sync.GroupFilter)
	groups := make([]domain.GroupEntry, 0)

	token := ""
	for {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		call := svc.Groups.List().Context(ctx).MaxResults(groupsPageSize).Domain(d.settings.Domain)
		if d.settings.Customer != "" {
			call = call.Customer(d.settings.Customer)
		}
		if query != "" {
			call = call.Query(query)
		}
		if token != "" {
			call = call.PageToken(token)
		}

		res, err := call.Do()
		if err != nil {
			return nil, WrapError(ctx, err, "list groups")
		}
		for _, g := range res.Groups {
			if filter.FilterOut(g.Name) {
				continue
			}
			groups = append(groups, domain.NewGroupEntry(g.Id, g.Id, g.Name))
		}
		if token = res.NextPageToken; token == "" {
			break
		}
	}

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(maxFanOut)
	for i := range groups {
		entry := &groups[i]
		eg.Go(func() error {
			return d.resolveMembers(gctx, svc, entry, users)
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return groups, nil
}

// resolveMembers fills the member sets of entry. A CUSTOMER member stands
// for every user in the account.
func (d *Directory) resolveMembers(ctx context.Context, svc *admin.Service, entry *domain.GroupEntry, users []domain.UserEntry) error {
	token := ""
	for {
		if err := d.limiter.Wait(ctx); err != nil {
			return err
		}
		call := svc.Members.List(entry.ReferenceID).Context(ctx).MaxResults(membersPageSize)
		if token != "" {
			call = call.PageToken(token)
		}
		res, err := call.Do()
		if err != nil {
			return WrapError(ctx, err, "list members of "+entry.Name)
		}

		for _, m := range res.Members {
			switch strings.ToLower(m.Type) {
			case "user":
				if strings.EqualFold(m.Status, "active") {
					entry.UserMemberExternalIDs.Add(m.Id)
				}
			case "group":
				entry.GroupMemberReferenceIDs.Add(m.Id)
			case "customer":
				for _, u := range users {
					entry.UserMemberExternalIDs.Add(u.ExternalID)
				}
			}
		}
		if token = res.NextPageToken; token == "" {
			return nil
		}
	}
}

// buildUser converts u. Current accounts without any email are skipped.
func buildUser(u *admin.User, deleted bool) (domain.UserEntry, bool) {
	email := strings.ToLower(strings.TrimSpace(u.PrimaryEmail))
	if !deleted && (!hasEmails(u.Emails) || email == "") {
		return domain.UserEntry{}, false
	}
	return domain.UserEntry{
		ReferenceID: u.Id,
		ExternalID:  u.Id,
		Email:       email,
		Disabled:    u.Suspended || u.Archived,
		Deleted:     deleted,
	}, true
}

// hasEmails reports whether the loosely typed emails field holds anything.
func hasEmails(v any) bool {
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return s != ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}
