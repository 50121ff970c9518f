package importapi

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/custodia-labs/dirsync/internal/core/domain"
)

// APIError is a non-success response from the organization API.
type APIError struct {
	StatusCode       int
	Message          string
	ValidationErrors map[string][]string
	URL              string
}

func (e *APIError) Error() string {
	msg := e.Message
	if details := e.details(); details != "" {
		if msg != "" {
			msg += ": "
		}
		msg += details
	}
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("import API error %d: %s (URL: %s)", e.StatusCode, msg, e.URL)
}

// Unwrap maps the status onto the error taxonomy.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.ErrAuthenticationFailed
	default:
		return domain.ErrSubmission
	}
}

func (e *APIError) details() string {
	keys := make([]string, 0, len(e.ValidationErrors))
	for k := range e.ValidationErrors {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		parts = append(parts, e.ValidationErrors[k]...)
	}
	return strings.Join(parts, " ")
}

// IsRateLimited reports whether err is a 429 response.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}
