package ldap

import (
	"encoding/base64"
	"strings"
)

// parseLDIF reads the entries of ldapsearch -LLL output. Folded lines are
// joined, "attr:: value" is base64 decoded and attribute options such as
// ";binary" are dropped.
func parseLDIF(text string) []*entry {
	var lines []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if strings.HasPrefix(line, " ") && len(lines) > 0 {
			lines[len(lines)-1] += line[1:]
			continue
		}
		lines = append(lines, line)
	}

	var entries []*entry
	var cur *entry
	flush := func() {
		if cur != nil && cur.DN != "" {
			entries = append(entries, cur)
		}
		cur = nil
	}

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}

		i := strings.Index(line, ":")
		if i <= 0 {
			continue
		}
		name := strings.TrimSpace(line[:i])
		rest := line[i+1:]
		encoded := strings.HasPrefix(rest, ":")
		if encoded {
			rest = rest[1:]
		}
		value := []byte(strings.TrimSpace(rest))
		if encoded {
			decoded, err := base64.StdEncoding.DecodeString(string(value))
			if err != nil {
				continue
			}
			value = decoded
		}

		if strings.EqualFold(name, "dn") {
			flush()
			cur = newEntry(string(value))
			continue
		}
		if cur == nil {
			continue
		}
		if j := strings.Index(name, ";"); j >= 0 {
			name = name[:j]
		}
		cur.add(name, value)
	}
	flush()
	return entries
}
