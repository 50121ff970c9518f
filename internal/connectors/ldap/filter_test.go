package ldap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMakeSearchPath(t *testing.T) {
	tests := []struct {
		name   string
		root   string
		prefix string
		want   string
	}{
		{name: "root only", root: "DC=Example,DC=Com", want: "dc=example,dc=com"},
		{name: "prefix", root: "dc=example,dc=com", prefix: " ou=users ", want: "ou=users,dc=example,dc=com"},
		{name: "root with ou", root: "OU=Corp,DC=example,DC=com", prefix: "ou=staff", want: "ou=staff,dc=example,dc=com"},
		{name: "no dc in root", root: "o=example", prefix: "ou=users,o=example", want: "ou=users,o=example"},
		{name: "empty root", root: "", prefix: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, makeSearchPath(tt.root, tt.prefix))
		})
	}
}

func TestBuildBaseFilter(t *testing.T) {
	assert.Equal(t, "(&(objectClass=person))", buildBaseFilter("person", "  "))
	assert.Equal(t, "(&(&(objectClass=person))(mail=*))", buildBaseFilter("person", "(mail=*)"))
}

func TestBuildRevisionFilter(t *testing.T) {
	last := time.Date(2023, 12, 31, 23, 59, 58, 900_000_000, time.FixedZone("CET", 3600))

	assert.Equal(t, "(base)", buildRevisionFilter("(base)", false, nil, "whenChanged"))
	assert.Equal(t, "(base)", buildRevisionFilter("(base)", true, &last, "whenChanged"))
	assert.Equal(t, "(base)", buildRevisionFilter("(base)", false, &last, " "))
	assert.Equal(t, "(&(base)(whenChanged>=20231231225958.9Z))", buildRevisionFilter("(base)", false, &last, "whenChanged"))
}
