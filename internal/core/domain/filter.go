package domain

import "strings"

// FilterMode is the keyword of a filter expression.
type FilterMode int

const (
	FilterInclude FilterMode = iota
	FilterExclude
	FilterIncludeGroup
	FilterExcludeGroup
	FilterIncludeAdministrativeUnit
	FilterExcludeAdministrativeUnit
)

var filterKeywords = map[string]FilterMode{
	"include":                   FilterInclude,
	"exclude":                   FilterExclude,
	"includegroup":              FilterIncludeGroup,
	"excludegroup":              FilterExcludeGroup,
	"includeadministrativeunit": FilterIncludeAdministrativeUnit,
	"excludeadministrativeunit": FilterExcludeAdministrativeUnit,
}

// String returns the filter keyword.
func (m FilterMode) String() string {
	for k, v := range filterKeywords {
		if v == m {
			return k
		}
	}
	return "unknown"
}

// Inclusive reports whether the mode keeps only set members.
func (m FilterMode) Inclusive() bool {
	switch m {
	case FilterInclude, FilterIncludeGroup, FilterIncludeAdministrativeUnit:
		return true
	default:
		return false
	}
}

// FilterSet is a parsed filter expression.
// Values are lower-cased and trimmed.
type FilterSet struct {
	Mode   FilterMode
	Values IDSet
}

// ParseFilter parses "<keyword>:<csv>[|<query>]".
// It returns nil, meaning no filtering, for an empty or malformed expression,
// an unknown keyword or an empty value set.
func ParseFilter(expr string) *FilterSet {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil
	}
	if i := strings.Index(expr, "|"); i >= 0 {
		expr = expr[:i]
	}

	parts := strings.Split(expr, ":")
	if len(parts) != 2 {
		return nil
	}

	mode, ok := filterKeywords[strings.ToLower(strings.TrimSpace(parts[0]))]
	if !ok {
		return nil
	}

	values := make(IDSet)
	for _, v := range strings.Split(parts[1], ",") {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			values.Add(v)
		}
	}
	if len(values) == 0 {
		return nil
	}
	return &FilterSet{Mode: mode, Values: values}
}

// Restrict returns f when its mode is one of modes, nil otherwise.
// Adapters use it to ignore keywords that do not apply to them.
func (f *FilterSet) Restrict(modes ...FilterMode) *FilterSet {
	if f == nil {
		return nil
	}
	for _, m := range modes {
		if f.Mode == m {
			return f
		}
	}
	return nil
}

// FilterOut reports whether candidate should be dropped.
// A nil set never filters. An empty candidate is compared as "--".
func (f *FilterSet) FilterOut(candidate string) bool {
	if f == nil {
		return false
	}
	c := strings.ToLower(strings.TrimSpace(candidate))
	if c == "" {
		c = "--"
	}
	in := f.Values.Has(c)
	if f.Mode.Inclusive() {
		return !in
	}
	return in
}

// DirectoryQuery returns the provider-native query following "|" in expr,
// or "" when there is none.
func DirectoryQuery(expr string) string {
	i := strings.Index(expr, "|")
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(expr[i+1:])
}

// FilterUsersFromGroups keeps the users that belong to at least one of
// groups when a group filter is in effect. Deleted users are always kept,
// and so are disabled users when removeDisabled is set.
func FilterUsersFromGroups(users []UserEntry, groups []GroupEntry, filter *FilterSet, removeDisabled bool) []UserEntry {
	if filter == nil || users == nil {
		return users
	}
	members := make(IDSet)
	for _, g := range groups {
		for id := range g.UserMemberExternalIDs {
			members.Add(id)
		}
	}

	out := make([]UserEntry, 0, len(users))
	for _, u := range users {
		if u.Deleted || (removeDisabled && u.Disabled) || members.Has(u.ExternalID) {
			out = append(out, u)
		}
	}
	return out
}

// ForceGroup reports whether groups must be fully refetched, which is when
// the sync is forced or an active user changed since the last run.
func ForceGroup(force bool, users []UserEntry) bool {
	if force {
		return true
	}
	for _, u := range users {
		if u.Active() {
			return true
		}
	}
	return false
}
