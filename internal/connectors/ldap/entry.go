package ldap

import (
	"strings"

	"github.com/google/uuid"
)

const (
	// attrObjectGUID is the Active Directory unique identifier.
	attrObjectGUID = "objectGUID"

	attrUserAccountControl = "userAccountControl"

	// accountDisabled is the ACCOUNTDISABLE bit of userAccountControl.
	accountDisabled = 2

	// oidShowDeleted is the Active Directory show-deleted-objects control.
	oidShowDeleted = "1.2.840.113556.1.4.417"
)

// entry is one search result. Attribute names are matched case-insensitively.
type entry struct {
	DN    string
	attrs map[string][][]byte
}

func newEntry(dn string) *entry {
	return &entry{DN: dn, attrs: make(map[string][][]byte)}
}

func (e *entry) add(name string, value []byte) {
	k := strings.ToLower(name)
	e.attrs[k] = append(e.attrs[k], value)
}

// values returns every value of name as text.
func (e *entry) values(name string) []string {
	raw := e.attrs[strings.ToLower(name)]
	if len(raw) == 0 {
		return nil
	}
	out := make([]string, len(raw))
	for i, v := range raw {
		out[i] = string(v)
	}
	return out
}

// first returns the first value of name, or "" and false.
func (e *entry) first(name string) (string, bool) {
	raw := e.attrs[strings.ToLower(name)]
	if len(raw) == 0 {
		return "", false
	}
	return string(raw[0]), true
}

func (e *entry) raw(name string) []byte {
	raw := e.attrs[strings.ToLower(name)]
	if len(raw) == 0 {
		return nil
	}
	return raw[0]
}

// externalID is the objectGUID when present, otherwise the DN.
func (e *entry) externalID() string {
	if guid, ok := guidString(e.raw(attrObjectGUID)); ok {
		return guid
	}
	return e.DN
}

// guidString converts a 16-byte mixed-endian Active Directory GUID into
// its canonical lower-case form.
func guidString(b []byte) (string, bool) {
	if len(b) != 16 {
		return "", false
	}
	swapped := make([]byte, 16)
	swapped[0], swapped[1], swapped[2], swapped[3] = b[3], b[2], b[1], b[0]
	swapped[4], swapped[5] = b[5], b[4]
	swapped[6], swapped[7] = b[7], b[6]
	copy(swapped[8:], b[8:])

	id, err := uuid.FromBytes(swapped)
	if err != nil {
		return "", false
	}
	return id.String(), true
}
