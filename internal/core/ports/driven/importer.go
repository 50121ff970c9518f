package driven

import (
	"context"

	"github.com/custodia-labs/dirsync/internal/core/domain"
)

// ImportClient submits import requests to the organization API.
type ImportClient interface {
	// Submit sends one request. A non-nil error means the request was rejected
	// or could not be delivered.
	Submit(ctx context.Context, organizationID string, req domain.ImportRequest) error

	// APIURL returns the base URL requests are sent to. It is part of the
	// sync hash so switching servers forces a resubmission.
	APIURL() string
}
