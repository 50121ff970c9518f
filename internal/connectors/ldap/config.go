package ldap

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/custodia-labs/dirsync/internal/core/domain"
)

// ParseConfig extracts the LDAP settings and bind password from source.
func ParseConfig(source domain.DirectorySource) (*domain.LdapConfig, string, error) {
	cfg, ok := source.Config.(*domain.LdapConfig)
	if !ok || cfg == nil {
		return nil, "", fmt.Errorf("%w: ldap config has type %T", domain.ErrInvalidInput, source.Config)
	}
	c := *cfg
	c.Auth = strings.ToLower(strings.TrimSpace(c.Auth))
	if c.Auth == "" {
		c.Auth = domain.LdapAuthSimple
	}

	if strings.TrimSpace(c.Hostname) == "" || c.Port <= 0 {
		return nil, "", fmt.Errorf("%w: ldap hostname and port are required", domain.ErrConfigIncomplete)
	}

	password := source.Secret.Value
	if c.Auth == domain.LdapAuthSimple && (strings.TrimSpace(c.Username) == "" || strings.TrimSpace(password) == "") {
		return nil, "", fmt.Errorf("%w: username and password not configured", domain.ErrConfigIncomplete)
	}
	return &c, password, nil
}

// useLDAPS reports whether the connection starts with TLS.
func useLDAPS(cfg *domain.LdapConfig) bool {
	return cfg.SSL && !cfg.StartTLS
}

// useStartTLS reports whether a plain connection is upgraded.
func useStartTLS(cfg *domain.LdapConfig) bool {
	return cfg.SSL && cfg.StartTLS
}

// serverURL returns the ldap:// or ldaps:// URL of the server.
func serverURL(cfg *domain.LdapConfig) string {
	scheme := "ldap"
	if useLDAPS(cfg) {
		scheme = "ldaps"
	}
	return strings.ToLower(scheme + "://" + strings.TrimSpace(cfg.Hostname) + ":" + strconv.Itoa(cfg.Port))
}
