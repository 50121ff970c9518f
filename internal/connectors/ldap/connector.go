package ldap

import (
	"context"
	"strconv"
	"strings"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driven"
	"github.com/custodia-labs/dirsync/internal/logger"
)

// Ensure Directory implements the interface.
var _ driven.Directory = (*Directory)(nil)

// Directory reads users and groups from LDAP.
type Directory struct {
	cfg      *domain.LdapConfig
	password string
	sync     domain.SyncConfig
	state    domain.SyncState

	connect func(ctx context.Context) (searcher, error)
}

// New creates an LDAP directory from source. The connection is opened on
// each GetEntries call.
func New(_ context.Context, source domain.DirectorySource) (driven.Directory, error) {
	cfg, password, err := ParseConfig(source)
	if err != nil {
		return nil, err
	}
	d := &Directory{cfg: cfg, password: password, sync: source.Sync, state: source.State}
	d.connect = d.dial
	return d, nil
}

// Type returns the directory type.
func (d *Directory) Type() domain.DirectoryType {
	return domain.DirectoryLdap
}

// Close is a no-op; connections do not outlive GetEntries.
func (d *Directory) Close() error {
	return nil
}

func (d *Directory) dial(ctx context.Context) (searcher, error) {
	if d.cfg.Auth == domain.LdapAuthKerberos {
		return NewLdapsearch(d.cfg, d.requiredAttributes()), nil
	}
	return Dial(ctx, d.cfg, d.password)
}

// GetEntries implements driven.Directory.
func (d *Directory) GetEntries(ctx context.Context, force, test bool) (*domain.Entries, error) {
	s, err := d.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	entries := &domain.Entries{}
	if d.sync.Users {
		if entries.Users, err = d.getUsers(ctx, s, force, test); err != nil {
			return nil, err
		}
	}
	if d.sync.Groups {
		groupForce := domain.ForceGroup(force, entries.Users)
		if entries.Groups, err = d.getGroups(ctx, s, groupForce); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

func (d *Directory) search(ctx context.Context, s searcher, base, filter string, deleted bool) ([]*entry, error) {
	return s.Search(ctx, searchRequest{
		BaseDN:      base,
		Filter:      filter,
		Attributes:  d.requiredAttributes(),
		ShowDeleted: deleted,
	})
}

func (d *Directory) getUsers(ctx context.Context, s searcher, force, test bool) ([]domain.UserEntry, error) {
	l := logger.Ctx(ctx)
	last := d.state.LastUserSync

	filter := buildBaseFilter(d.sync.UserObjectClass, d.sync.UserFilter)
	filter = buildRevisionFilter(filter, force, last, d.sync.RevisionDateAttribute)
	path := makeSearchPath(d.cfg.RootPath, d.sync.UserPath)
	l.Info().Str("path", path).Str("filter", filter).Msg("user search")

	found, err := d.search(ctx, s, path, filter, false)
	if err != nil {
		return nil, err
	}
	users := d.buildUsers(found, false)

	// Recycled AD users are soft deleted and only looked up when forced or testing.
	if !d.cfg.AD || (!force && !test) {
		return users, nil
	}

	delFilter := buildBaseFilter(d.sync.UserObjectClass, "(isDeleted=TRUE)")
	delFilter = buildRevisionFilter(delFilter, force, last, d.sync.RevisionDateAttribute)
	delPath := makeSearchPath(d.cfg.RootPath, "CN=Deleted Objects")
	l.Info().Str("path", delPath).Str("filter", delFilter).Msg("deleted user search")

	deleted, err := d.search(ctx, s, delPath, delFilter, true)
	if err != nil {
		l.Warn().Err(err).Msg("cannot query deleted users")
		return users, nil
	}
	return append(users, d.buildUsers(deleted, true)...), nil
}

func (d *Directory) buildUsers(found []*entry, deleted bool) []domain.UserEntry {
	users := make([]domain.UserEntry, 0, len(found))
	for _, e := range found {
		if u, ok := d.buildUser(e, deleted); ok {
			users = append(users, u)
		}
	}
	return users
}

func (d *Directory) buildUser(e *entry, deleted bool) (domain.UserEntry, bool) {
	if e.DN == "" {
		return domain.UserEntry{}, false
	}
	u := domain.UserEntry{
		ReferenceID: e.DN,
		ExternalID:  e.externalID(),
		Disabled:    entryDisabled(e),
		Deleted:     deleted,
	}

	email, ok := e.first(d.sync.UserEmailAttribute)
	if !ok && d.sync.UseEmailPrefixSuffix && d.sync.EmailPrefixAttribute != "" && d.sync.EmailSuffix != "" {
		if prefix, ok := e.first(d.sync.EmailPrefixAttribute); ok {
			email = prefix + d.sync.EmailSuffix
		}
	}
	u.Email = strings.ToLower(strings.TrimSpace(email))

	if !u.Deleted && u.Email == "" {
		return domain.UserEntry{}, false
	}
	return u, true
}

func entryDisabled(e *entry) bool {
	v, ok := e.first(attrUserAccountControl)
	if !ok {
		return false
	}
	control, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return false
	}
	return control&accountDisabled == accountDisabled
}

func (d *Directory) getGroups(ctx context.Context, s searcher, force bool) ([]domain.GroupEntry, error) {
	l := logger.Ctx(ctx)

	// Groups are filtered by the user sync time.
	original := buildBaseFilter(d.sync.GroupObjectClass, d.sync.GroupFilter)
	filter := buildRevisionFilter(original, force, d.state.LastUserSync, d.sync.RevisionDateAttribute)
	sinceRevision := filter != original

	path := makeSearchPath(d.cfg.RootPath, d.sync.GroupPath)
	l.Info().Str("path", path).Str("filter", filter).Msg("group search")

	found, err := d.search(ctx, s, path, filter, false)
	if err != nil {
		return nil, err
	}
	if sinceRevision {
		if len(found) == 0 {
			return []domain.GroupEntry{}, nil
		}
		// Any change refetches every group so memberships stay complete.
		if found, err = d.search(ctx, s, path, original, false); err != nil {
			return nil, err
		}
	}

	userFilter := buildBaseFilter(d.sync.UserObjectClass, d.sync.UserFilter)
	userPath := makeSearchPath(d.cfg.RootPath, d.sync.UserPath)
	userEntries, err := d.search(ctx, s, userPath, userFilter, false)
	if err != nil {
		return nil, err
	}
	byDN := make(map[string]string, len(userEntries))
	byUID := make(map[string]string, len(userEntries))
	for _, e := range userEntries {
		ext := e.externalID()
		byDN[e.DN] = ext
		if uid, ok := e.first("uid"); ok {
			byUID[strings.ToLower(uid)] = ext
		}
	}

	groups := make([]domain.GroupEntry, 0, len(found))
	for _, e := range found {
		if g, ok := d.buildGroup(e, byDN, byUID); ok {
			groups = append(groups, g)
		}
	}
	return groups, nil
}

// buildGroup resolves members given as user DNs, user uids or nested group DNs.
func (d *Directory) buildGroup(e *entry, byDN, byUID map[string]string) (domain.GroupEntry, bool) {
	if e.DN == "" {
		return domain.GroupEntry{}, false
	}
	name, ok := e.first(d.sync.GroupNameAttribute)
	if !ok {
		name, ok = e.first("cn")
	}
	if !ok {
		return domain.GroupEntry{}, false
	}

	g := domain.NewGroupEntry(e.DN, e.externalID(), name)
	for _, member := range e.values(d.sync.MemberAttribute) {
		dnLike := strings.Contains(member, "=") && strings.Contains(member, ",")
		switch {
		case dnLike:
			if ext, ok := byDN[member]; ok {
				g.UserMemberExternalIDs.Add(ext)
			} else {
				g.GroupMemberReferenceIDs.Add(member)
			}
		default:
			if ext, ok := byUID[strings.ToLower(member)]; ok {
				g.UserMemberExternalIDs.Add(ext)
			}
		}
	}
	return g, true
}

// requiredAttributes lists every attribute the adapter reads.
func (d *Directory) requiredAttributes() []string {
	seen := make(map[string]bool)
	var attrs []string
	for _, a := range []string{
		attrObjectGUID,
		d.sync.UserEmailAttribute,
		d.sync.EmailPrefixAttribute,
		attrUserAccountControl,
		"uid",
		d.sync.GroupNameAttribute,
		"cn",
		d.sync.MemberAttribute,
		d.sync.RevisionDateAttribute,
	} {
		a = strings.TrimSpace(a)
		if a != "" && !seen[strings.ToLower(a)] {
			seen[strings.ToLower(a)] = true
			attrs = append(attrs, a)
		}
	}
	return attrs
}
