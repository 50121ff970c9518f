package ldap

import (
	"strings"
	"time"
)

// revisionTimeFormat renders times as generalized time truncated to tenths.
const revisionTimeFormat = "20060102150405.0"

func buildObjectClassFilter(objectClass string) string {
	return "(&(objectClass=" + objectClass + "))"
}

// buildBaseFilter combines the object class filter with an optional raw
// LDAP sub-filter.
func buildBaseFilter(objectClass, subFilter string) string {
	filter := buildObjectClassFilter(objectClass)
	if strings.TrimSpace(subFilter) != "" {
		filter = "(&" + filter + subFilter + ")"
	}
	return filter
}

// buildRevisionFilter restricts base to entries changed since last, unless
// the sync is forced or no revision attribute is configured.
func buildRevisionFilter(base string, force bool, last *time.Time, attr string) string {
	if force || last == nil || strings.TrimSpace(attr) == "" {
		return base
	}
	stamp := last.UTC().Format(revisionTimeFormat) + "Z"
	return "(&" + base + "(" + attr + ">=" + stamp + "))"
}

// makeSearchPath joins prefix with the dc= portion of rootPath. A root
// path without a dc= component leaves prefix untouched.
func makeSearchPath(rootPath, prefix string) string {
	root := strings.ToLower(strings.TrimSpace(rootPath))
	i := strings.Index(root, "dc=")
	if i < 0 {
		return prefix
	}
	path := root[i:]
	if p := strings.TrimSpace(prefix); p != "" {
		path = p + "," + path
	}
	return path
}
