package okta

import (
	"regexp"
	"strings"
)

// linkRegex matches Link header entries: <url>; rel="type".
var linkRegex = regexp.MustCompile(`<([^>]+)>;\s*rel="([^"]+)"`)

// parseNextLink returns the "next" URL among Link header values.
// Okta sends self and next as separate headers; some proxies join them.
func parseNextLink(values []string) string {
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			m := linkRegex.FindStringSubmatch(strings.TrimSpace(part))
			if len(m) == 3 && m[2] == "next" {
				return m[1]
			}
		}
	}
	return ""
}
