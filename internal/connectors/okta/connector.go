package okta

import (
	"context"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driven"
	"github.com/custodia-labs/dirsync/internal/logger"
)

// Ensure Directory implements the interface.
var _ driven.Directory = (*Directory)(nil)

const (
	// MemberCallInterval is the minimum spacing between group member lookups.
	MemberCallInterval = 500 * time.Millisecond

	statusDeprovisioned = "DEPROVISIONED"
	statusSuspended     = "SUSPENDED"

	maxFanOut = 4
)

type oktaUser struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Profile struct {
		Email string `json:"email"`
	} `json:"profile"`
}

type oktaGroup struct {
	ID      string `json:"id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

// Directory reads users and groups from Okta.
type Directory struct {
	client  *client
	sync    domain.SyncConfig
	state   domain.SyncState
	members *rate.Limiter
}

// New creates an Okta directory from source.
func New(_ context.Context, source domain.DirectorySource) (driven.Directory, error) {
	s, err := parseConfig(source)
	if err != nil {
		return nil, err
	}
	return &Directory{
		client:  newClient(s),
		sync:    source.Sync,
		state:   source.State,
		members: rate.NewLimiter(rate.Every(MemberCallInterval), 1),
	}, nil
}

// Type returns the directory type.
func (d *Directory) Type() domain.DirectoryType {
	return domain.DirectoryOkta
}

// Close releases idle connections.
func (d *Directory) Close() error {
	d.client.http.CloseIdleConnections()
	return nil
}

// GetEntries implements driven.Directory.
func (d *Directory) GetEntries(ctx context.Context, force, _ bool) (*domain.Entries, error) {
	entries := &domain.Entries{}
	var err error

	if d.sync.Users {
		if entries.Users, err = d.getUsers(ctx, force); err != nil {
			return nil, err
		}
	}
	if d.sync.Groups {
		filter := domain.ParseFilter(d.sync.GroupFilter).Restrict(domain.FilterInclude, domain.FilterExclude)
		if entries.Groups, err = d.getGroups(ctx, domain.ForceGroup(force, entries.Users), filter); err != nil {
			return nil, err
		}
		entries.Users = domain.FilterUsersFromGroups(entries.Users, entries.Groups, filter, d.sync.RemoveDisabled)
	}
	return entries, nil
}

// buildFilter combines the provider query of expr with a lastUpdated clause
// unless force is set or there is no previous sync.
func buildFilter(expr string, force bool, last *time.Time) string {
	query := domain.DirectoryQuery(expr)
	if force || last == nil {
		return query
	}
	updated := `lastUpdated gt "` + last.UTC().Format("2006-01-02T15:04:05.000Z07:00") + `"`
	if query == "" {
		return updated
	}
	return "(" + query + ") and " + updated
}

func withFilter(endpoint, filter string) string {
	if filter == "" {
		return endpoint
	}
	return endpoint + "?filter=" + url.QueryEscape(filter)
}

func (d *Directory) getUsers(ctx context.Context, force bool) ([]domain.UserEntry, error) {
	l := logger.Ctx(ctx)
	emails := domain.ParseFilter(d.sync.UserFilter).Restrict(domain.FilterInclude, domain.FilterExclude)
	filter := buildFilter(d.sync.UserFilter, force, d.state.LastUserSync)

	// Deprovisioned users are not listed by default and are queried
	// separately, except on incremental runs where lastUpdated includes them.
	queries := []string{filter}
	if !strings.Contains(filter, "lastUpdated ") {
		deprovisioned := `status eq "` + statusDeprovisioned + `"`
		if filter != "" {
			deprovisioned = "(" + filter + ") and " + deprovisioned
		}
		queries = append(queries, deprovisioned)
	}

	results := make([][]oktaUser, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		g.Go(func() error {
			l.Info().Str("filter", q).Msg("querying users")
			users, err := getMany[oktaUser](gctx, d.client, withFilter("users", q))
			results[i] = users
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]domain.UserEntry, 0)
	for _, users := range results {
		for _, u := range users {
			entry := buildUser(u)
			if (entry.Email == "" && !entry.Deleted) || emails.FilterOut(entry.Email) {
				continue
			}
			out = append(out, entry)
		}
	}
	return out, nil
}

func (d *Directory) getGroups(ctx context.Context, force bool, filter *domain.FilterSet) ([]domain.GroupEntry, error) {
	query := buildFilter(d.sync.GroupFilter, force, d.state.LastGroupSync)
	logger.Ctx(ctx).Info().Str("filter", query).Msg("querying groups")

	groups, err := getMany[oktaGroup](ctx, d.client, withFilter("groups", query))
	if err != nil {
		return nil, err
	}

	out := make([]domain.GroupEntry, 0, len(groups))
	for _, g := range groups {
		if filter.FilterOut(g.Profile.Name) {
			continue
		}
		out = append(out, domain.NewGroupEntry(g.ID, g.ID, g.Profile.Name))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxFanOut)
	for i := range out {
		entry := &out[i]
		g.Go(func() error {
			if err := d.members.Wait(gctx); err != nil {
				return err
			}
			users, err := getMany[oktaUser](gctx, d.client, "groups/"+url.PathEscape(entry.ReferenceID)+"/users")
			if err != nil {
				return err
			}
			for _, u := range users {
				entry.UserMemberExternalIDs.Add(u.ID)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func buildUser(u oktaUser) domain.UserEntry {
	return domain.UserEntry{
		ReferenceID: u.ID,
		ExternalID:  u.ID,
		Email:       strings.ToLower(strings.TrimSpace(u.Profile.Email)),
		Deleted:     u.Status == statusDeprovisioned,
		Disabled:    u.Status == statusSuspended,
	}
}
