package google

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/dirsync/internal/core/domain"
)

// settings is a validated Google Workspace configuration.
type settings struct {
	ClientEmail string
	PrivateKey  string
	AdminUser   string
	Domain      string
	Customer    string
}

// parseConfig validates source. The private key comes from the secret and
// may have been stored with literal "\n" sequences.
func parseConfig(source domain.DirectorySource) (*settings, error) {
	cfg, ok := source.Config.(*domain.GoogleConfig)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("%w: google config has type %T", domain.ErrInvalidInput, source.Config)
	}

	s := &settings{
		ClientEmail: strings.TrimSpace(cfg.ClientEmail),
		PrivateKey:  NormalizePrivateKey(source.Secret.Value),
		AdminUser:   strings.TrimSpace(cfg.AdminUser),
		Domain:      strings.TrimSpace(cfg.Domain),
		Customer:    strings.TrimSpace(cfg.Customer),
	}
	if s.ClientEmail == "" || s.PrivateKey == "" || s.AdminUser == "" || s.Domain == "" {
		return nil, fmt.Errorf("%w: client email, private key, admin user and domain are required", domain.ErrConfigIncomplete)
	}
	return s, nil
}

// NormalizePrivateKey turns escaped newlines into real ones and strips
// leading whitespace.
func NormalizePrivateKey(key string) string {
	return strings.TrimLeft(strings.ReplaceAll(key, `\n`, "\n"), " \t\r\n")
}
