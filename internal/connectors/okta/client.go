package okta

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/dirsync/internal/core/domain"
)

// DefaultTimeout bounds each API request.
const DefaultTimeout = 30 * time.Second

// client issues authenticated Okta API requests.
type client struct {
	http  *http.Client
	base  string
	token string
}

func newClient(s *settings) *client {
	return &client{
		http:  &http.Client{Timeout: DefaultTimeout},
		base:  s.OrgURL + "/api/v1/",
		token: s.Token,
	}
}

// getMany fetches every page of a collection, following Link rel="next"
// headers. An empty page ends the walk.
func getMany[T any](ctx context.Context, c *client, endpoint string) ([]T, error) {
	next := endpoint
	if !strings.HasPrefix(next, "https://") && !strings.HasPrefix(next, "http://") {
		next = c.base + strings.TrimLeft(endpoint, "/")
	}

	var out []T
	for next != "" {
		var page []T
		link, err := c.get(ctx, next, &page)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		out = append(out, page...)
		next = link
	}
	return out, nil
}

// get decodes one page into out and returns the next link.
func (c *client) get(ctx context.Context, url string, out any) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: build request: %w", domain.ErrProtocol, err)
	}
	req.Header.Set("Authorization", "SSWS "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: okta request: %w", domain.ErrProtocol, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %w", domain.ErrProtocol, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return "", fmt.Errorf("%w: okta rejected the api token", domain.ErrAuthenticationFailed)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("%w: okta returned %d: %s", domain.ErrProtocol, resp.StatusCode, errorSummary(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return "", fmt.Errorf("%w: okta returned an unexpected body: %w", domain.ErrProtocol, err)
	}
	return parseNextLink(resp.Header.Values("Link")), nil
}

func errorSummary(body []byte) string {
	var e struct {
		Code    string `json:"errorCode"`
		Summary string `json:"errorSummary"`
	}
	if json.Unmarshal(body, &e) == nil && e.Summary != "" {
		return e.Code + " " + e.Summary
	}
	return strings.TrimSpace(string(body))
}
