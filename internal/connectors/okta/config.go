package okta

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/dirsync/internal/core/domain"
)

// settings is a validated Okta configuration.
type settings struct {
	OrgURL string
	Token  string
}

func parseConfig(source domain.DirectorySource) (*settings, error) {
	cfg, ok := source.Config.(*domain.OktaConfig)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("%w: okta config has type %T", domain.ErrInvalidInput, source.Config)
	}
	s := &settings{
		OrgURL: strings.TrimRight(strings.TrimSpace(cfg.OrgURL), "/"),
		Token:  strings.TrimSpace(source.Secret.Value),
	}
	if s.OrgURL == "" || s.Token == "" {
		return nil, fmt.Errorf("%w: organization url and token are required", domain.ErrConfigIncomplete)
	}
	return s, nil
}
