package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"github.com/custodia-labs/dirsync/internal/core/domain"
)

// WrapError maps a Directory API failure onto the directory errors.
// op names the failing call. Token errors never carry the key material.
func WrapError(ctx context.Context, err error, op string) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		return fmt.Errorf("%w: google workspace token request rejected", domain.ErrAuthenticationFailed)
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %s: %d %s", domain.ErrAuthenticationFailed, op, gerr.Code, gerr.Message)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %s: rate limit exceeded", domain.ErrProtocol, op)
		default:
			return fmt.Errorf("%w: %s: %d %s", domain.ErrProtocol, op, gerr.Code, gerr.Message)
		}
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrProtocol, op, err)
}
