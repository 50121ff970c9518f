package ldap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGUIDString(t *testing.T) {
	b := []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f}

	got, ok := guidString(b)
	assert.True(t, ok)
	assert.Equal(t, "03020100-0504-0706-0809-0a0b0c0d0e0f", got)

	_, ok = guidString(b[:15])
	assert.False(t, ok)
}

func TestEntry_ExternalID(t *testing.T) {
	e := newEntry("cn=a,dc=example,dc=com")
	assert.Equal(t, "cn=a,dc=example,dc=com", e.externalID())

	e.add("objectGUID", []byte{0x10, 0x32, 0x54, 0x76, 0x98, 0xba, 0xdc, 0xfe, 0, 1, 2, 3, 4, 5, 6, 7})
	assert.Equal(t, "76543210-ba98-fedc-0001-020304050607", e.externalID())
}

func TestEntry_CaseInsensitiveAttributes(t *testing.T) {
	e := newEntry("cn=a")
	e.add("Mail", []byte("a@example.com"))
	e.add("MAIL", []byte("b@example.com"))

	v, ok := e.first("mail")
	assert.True(t, ok)
	assert.Equal(t, "a@example.com", v)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, e.values("mail"))
	assert.Nil(t, e.values("missing"))
}

func TestEntryDisabled(t *testing.T) {
	tests := map[string]bool{"512": false, "514": true, "66050": true, "x": false}
	for v, want := range tests {
		e := newEntry("cn=a")
		e.add("userAccountControl", []byte(v))
		assert.Equal(t, want, entryDisabled(e), v)
	}
	assert.False(t, entryDisabled(newEntry("cn=b")))
}
