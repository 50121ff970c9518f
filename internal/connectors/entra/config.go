package entra

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/dirsync/internal/core/domain"
)

// Identity authorities and their Graph endpoints.
const (
	PublicAuthority     = "login.microsoftonline.com"
	PublicGraph         = "https://graph.microsoft.com"
	GovernmentAuthority = "login.microsoftonline.us"
	GovernmentGraph     = "https://graph.microsoft.us"
)

// endpoints are the resolved token and Graph URLs of one tenant.
type endpoints struct {
	Token string
	Graph string
}

// settings is a validated Entra configuration.
type settings struct {
	ApplicationID string
	Key           string
	Tenant        string
	Endpoints     endpoints
}

// parseConfig validates source and resolves the tenant endpoints.
func parseConfig(source domain.DirectorySource) (*settings, error) {
	cfg, ok := source.Config.(*domain.EntraConfig)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("%w: entra config has type %T", domain.ErrInvalidInput, source.Config)
	}

	s := &settings{
		ApplicationID: strings.TrimSpace(cfg.ApplicationID),
		Key:           source.Secret.Value,
		Tenant:        strings.TrimSpace(cfg.Tenant),
	}
	if s.ApplicationID == "" || s.Tenant == "" || s.Key == "" {
		return nil, fmt.Errorf("%w: application id, key and tenant are required", domain.ErrConfigIncomplete)
	}

	authority := strings.ToLower(strings.TrimSpace(cfg.IdentityAuthority))
	graph := PublicGraph
	switch authority {
	case "", PublicAuthority:
		authority = PublicAuthority
	case GovernmentAuthority:
		graph = GovernmentGraph
	default:
		return nil, fmt.Errorf("%w: unknown identity authority %q", domain.ErrConfigIncomplete, cfg.IdentityAuthority)
	}

	s.Endpoints = endpoints{
		Token: "https://" + authority + "/" + s.Tenant + "/oauth2/v2.0/token",
		Graph: graph,
	}
	return s, nil
}
