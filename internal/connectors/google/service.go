package google

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	admin "google.golang.org/api/admin/directory/v1"
	"google.golang.org/api/option"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/logger"
)

// Scopes are the read-only Directory API scopes the service account needs.
var Scopes = []string{
	admin.AdminDirectoryUserReadonlyScope,
	admin.AdminDirectoryGroupReadonlyScope,
	admin.AdminDirectoryGroupMemberReadonlyScope,
}

// endpoints overrides the Google URLs. Empty values use the defaults.
type endpoints struct {
	Token string
	API   string
}

// jwtConfig returns the service account configuration impersonating the admin user.
func jwtConfig(s *settings, tokenURL string) *jwt.Config {
	if tokenURL == "" {
		tokenURL = googleoauth.JWTTokenURL
	}
	return &jwt.Config{
		Email:      s.ClientEmail,
		PrivateKey: []byte(s.PrivateKey),
		Subject:    s.AdminUser,
		Scopes:     Scopes,
		TokenURL:   tokenURL,
	}
}

// newAdminService authorizes the service account and returns a Directory
// API client. Authorization happens eagerly so credential errors surface
// before any listing, and the underlying error is only logged by type.
func newAdminService(ctx context.Context, s *settings, ep endpoints) (*admin.Service, error) {
	ts := jwtConfig(s, ep.Token).TokenSource(ctx)
	if _, err := ts.Token(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Ctx(ctx).Error().Str("error_type", fmt.Sprintf("%T", err)).Msg("google workspace authentication failed")
		return nil, fmt.Errorf("%w: google workspace service account", domain.ErrAuthenticationFailed)
	}

	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, ts))}
	if ep.API != "" {
		opts = append(opts, option.WithEndpoint(ep.API))
	}
	svc, err := admin.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: create directory service: %w", domain.ErrProtocol, err)
	}
	return svc, nil
}
