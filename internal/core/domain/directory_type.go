package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// DirectoryType identifies the external identity directory being synced.
// The numeric values are persisted and must not change.
type DirectoryType int

// Supported directory types.
const (
	DirectoryLdap     DirectoryType = 0
	DirectoryEntraID  DirectoryType = 1
	DirectoryGSuite   DirectoryType = 2
	DirectoryOkta     DirectoryType = 3
	DirectoryOneLogin DirectoryType = 4
)

// AllDirectoryTypes lists every supported type in persisted order.
var AllDirectoryTypes = []DirectoryType{
	DirectoryLdap, DirectoryEntraID, DirectoryGSuite, DirectoryOkta, DirectoryOneLogin,
}

// String returns the canonical lower-case name.
func (t DirectoryType) String() string {
	switch t {
	case DirectoryLdap:
		return "ldap"
	case DirectoryEntraID:
		return "entra"
	case DirectoryGSuite:
		return "gsuite"
	case DirectoryOkta:
		return "okta"
	case DirectoryOneLogin:
		return "onelogin"
	default:
		return "unknown"
	}
}

// IsValid returns true if the type is recognised.
func (t DirectoryType) IsValid() bool {
	return t >= DirectoryLdap && t <= DirectoryOneLogin
}

// ParseDirectoryType accepts a canonical name, a legacy alias
// ("azure", "google") or the persisted number.
func ParseDirectoryType(s string) (DirectoryType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ldap", "ad", "activedirectory":
		return DirectoryLdap, nil
	case "entra", "entraid", "azure", "azuread":
		return DirectoryEntraID, nil
	case "gsuite", "google", "googleworkspace":
		return DirectoryGSuite, nil
	case "okta":
		return DirectoryOkta, nil
	case "onelogin":
		return DirectoryOneLogin, nil
	}
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil && DirectoryType(n).IsValid() {
		return DirectoryType(n), nil
	}
	return 0, fmt.Errorf("%w: directory %q", ErrUnsupportedType, s)
}
