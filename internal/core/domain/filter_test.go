package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseFilter tests parsing of filter expressions
func TestParseFilter(t *testing.T) {
	tests := []struct {
		name   string
		expr   string
		mode   FilterMode
		values []string
		isNil  bool
	}{
		{name: "include", expr: "include:a@x.com, B@x.com", mode: FilterInclude, values: []string{"a@x.com", "b@x.com"}},
		{name: "exclude", expr: "exclude:Admins", mode: FilterExclude, values: []string{"admins"}},
		{name: "keyword case", expr: " IncludeGroup : g1,g2 ", mode: FilterIncludeGroup, values: []string{"g1", "g2"}},
		{name: "exclude group", expr: "excludegroup:g1", mode: FilterExcludeGroup, values: []string{"g1"}},
		{name: "admin unit", expr: "includeadministrativeunit:au1", mode: FilterIncludeAdministrativeUnit, values: []string{"au1"}},
		{name: "exclude admin unit", expr: "excludeadministrativeunit:au1", mode: FilterExcludeAdministrativeUnit, values: []string{"au1"}},
		{name: "with query", expr: "include:a|status eq \"ACTIVE\"", mode: FilterInclude, values: []string{"a"}},
		{name: "empty pieces dropped", expr: "include:a,,", mode: FilterInclude, values: []string{"a"}},
		{name: "empty", expr: "", isNil: true},
		{name: "missing colon", expr: "include a", isNil: true},
		{name: "too many colons", expr: "include:a:b", isNil: true},
		{name: "unknown keyword", expr: "only:a", isNil: true},
		{name: "empty set", expr: "include: , ", isNil: true},
		{name: "query only", expr: "|name eq \"x\"", isNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := ParseFilter(tt.expr)
			if tt.isNil {
				assert.Nil(t, f)
				return
			}
			require.NotNil(t, f)
			assert.Equal(t, tt.mode, f.Mode)
			assert.Equal(t, tt.values, f.Values.Sorted())
		})
	}
}

// TestFilterSet_FilterOut tests include and exclude semantics
func TestFilterSet_FilterOut(t *testing.T) {
	include := ParseFilter("include:alice@x.com")
	exclude := ParseFilter("exclude:alice@x.com")

	candidates := []string{"alice@x.com", " ALICE@x.com ", "bob@x.com", "", "--"}
	for _, c := range candidates {
		assert.Equal(t, !include.FilterOut(c), exclude.FilterOut(c), "candidate %q", c)
	}

	assert.False(t, include.FilterOut(" Alice@X.com"))
	assert.True(t, include.FilterOut("bob@x.com"))
	assert.True(t, exclude.FilterOut("alice@x.com"))
	assert.False(t, exclude.FilterOut("bob@x.com"))
}

// TestFilterSet_FilterOut_Nil tests that a nil set filters nothing
func TestFilterSet_FilterOut_Nil(t *testing.T) {
	var f *FilterSet
	assert.False(t, f.FilterOut("anything"))
	assert.False(t, f.FilterOut(""))
}

// TestFilterSet_FilterOut_EmptyCandidate tests the placeholder for missing values
func TestFilterSet_FilterOut_EmptyCandidate(t *testing.T) {
	f := ParseFilter("exclude:--")
	assert.True(t, f.FilterOut(""))
	assert.True(t, f.FilterOut("  "))
}

// TestFilterSet_Restrict tests mode restriction
func TestFilterSet_Restrict(t *testing.T) {
	f := ParseFilter("includegroup:g1")
	assert.Nil(t, f.Restrict(FilterInclude, FilterExclude))
	assert.Same(t, f, f.Restrict(FilterIncludeGroup))

	var nilSet *FilterSet
	assert.Nil(t, nilSet.Restrict(FilterInclude))
}

// TestDirectoryQuery tests extraction of the provider-native query
func TestDirectoryQuery(t *testing.T) {
	assert.Equal(t, "", DirectoryQuery(""))
	assert.Equal(t, "", DirectoryQuery("include:a"))
	assert.Equal(t, "", DirectoryQuery("include:a|  "))
	assert.Equal(t, `status eq "ACTIVE"`, DirectoryQuery(`include:a| status eq "ACTIVE" `))
	assert.Equal(t, "orgUnitPath='/Sales'", DirectoryQuery("|orgUnitPath='/Sales'"))
}

// TestFilterUsersFromGroups tests group-based user restriction
func TestFilterUsersFromGroups(t *testing.T) {
	g := NewGroupEntry("g", "g", "group")
	g.UserMemberExternalIDs.Add("member")

	users := []UserEntry{
		{ExternalID: "member", Email: "m@x.com"},
		{ExternalID: "outsider", Email: "o@x.com"},
		{ExternalID: "gone", Deleted: true},
		{ExternalID: "off", Email: "off@x.com", Disabled: true},
	}
	filter := ParseFilter("include:group")

	got := FilterUsersFromGroups(users, []GroupEntry{g}, filter, false)
	assert.Equal(t, []string{"member", "gone"}, externalIDs(got))

	got = FilterUsersFromGroups(users, []GroupEntry{g}, filter, true)
	assert.Equal(t, []string{"member", "gone", "off"}, externalIDs(got))

	assert.Len(t, FilterUsersFromGroups(users, nil, nil, false), 4)
	assert.Nil(t, FilterUsersFromGroups(nil, []GroupEntry{g}, filter, false))
}

// TestForceGroup tests the group refetch decision
func TestForceGroup(t *testing.T) {
	assert.True(t, ForceGroup(true, nil))
	assert.False(t, ForceGroup(false, nil))
	assert.False(t, ForceGroup(false, []UserEntry{{Deleted: true}, {Disabled: true}}))
	assert.True(t, ForceGroup(false, []UserEntry{{Email: "a@x.com"}}))
}

func externalIDs(users []UserEntry) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.ExternalID)
	}
	return out
}
