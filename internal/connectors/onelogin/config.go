package onelogin

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/dirsync/internal/core/domain"
)

// settings is a validated OneLogin configuration.
type settings struct {
	ClientID     string
	ClientSecret string

	// BaseURL is the region-scoped API host, https://api.<region>.onelogin.com.
	BaseURL string
}

func parseConfig(source domain.DirectorySource) (*settings, error) {
	cfg, ok := source.Config.(*domain.OneLoginConfig)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("%w: onelogin config has type %T", domain.ErrInvalidInput, source.Config)
	}
	s := &settings{
		ClientID:     strings.TrimSpace(cfg.ClientID),
		ClientSecret: source.Secret.Value,
	}
	if s.ClientID == "" || s.ClientSecret == "" {
		return nil, fmt.Errorf("%w: client id and client secret are required", domain.ErrConfigIncomplete)
	}

	region := strings.ToLower(strings.TrimSpace(cfg.Region))
	if region == "" {
		region = "us"
	}
	s.BaseURL = "https://api." + region + ".onelogin.com"
	return s, nil
}
