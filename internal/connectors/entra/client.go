package entra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/custodia-labs/dirsync/internal/core/domain"
)

const (
	// DefaultTimeout bounds each Graph request.
	DefaultTimeout = 30 * time.Second

	// tokenEarlyExpiry refreshes the access token this long before it expires.
	tokenEarlyExpiry = 2 * time.Minute
)

// page is one Graph collection response.
type page[T any] struct {
	Value     []T    `json:"value"`
	NextLink  string `json:"@odata.nextLink"`
	DeltaLink string `json:"@odata.deltaLink"`
}

// graphError is the error body returned by Graph.
type graphError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// client issues authenticated Graph requests.
type client struct {
	http *http.Client
	base string
}

// newClient returns a Graph client whose token source is shared by every
// request, so concurrent requests reuse a single refresh.
func newClient(s *settings) *client {
	cc := &clientcredentials.Config{
		ClientID:     s.ApplicationID,
		ClientSecret: s.Key,
		TokenURL:     s.Endpoints.Token,
		Scopes:       []string{s.Endpoints.Graph + "/.default"},
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	ts := oauth2.ReuseTokenSourceWithExpiry(nil, cc.TokenSource(context.Background()), tokenEarlyExpiry)
	hc := oauth2.NewClient(context.Background(), ts)
	hc.Timeout = DefaultTimeout
	return &client{http: hc, base: strings.TrimRight(s.Endpoints.Graph, "/") + "/v1.0"}
}

// resolve turns a path relative to /v1.0 into an absolute URL. Absolute
// URLs such as next and delta links are returned unchanged.
func (c *client) resolve(path string) string {
	if strings.HasPrefix(path, "https://") || strings.HasPrefix(path, "http://") {
		return path
	}
	return c.base + "/" + strings.TrimLeft(path, "/")
}

// get fetches path and decodes the JSON body into out.
func (c *client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolve(path), nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %w", domain.ErrProtocol, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return wrapTransportError(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %w", domain.ErrProtocol, err)
	}
	if resp.StatusCode != http.StatusOK {
		return statusError(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode response: %w", domain.ErrProtocol, err)
	}
	return nil
}

// each walks every page starting at path and calls fn with its values.
// It returns the delta link of the last page, if any.
func each[T any](ctx context.Context, c *client, path string, fn func([]T)) (string, error) {
	next := path
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		var p page[T]
		if err := c.get(ctx, next, &p); err != nil {
			return "", err
		}
		fn(p.Value)
		if p.NextLink == "" {
			return p.DeltaLink, nil
		}
		next = p.NextLink
	}
}

// listAll collects every value of a paged collection.
func listAll[T any](ctx context.Context, c *client, path string) ([]T, error) {
	var out []T
	_, err := each(ctx, c, path, func(v []T) { out = append(out, v...) })
	return out, err
}

func statusError(code int, body []byte) error {
	var ge graphError
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &ge) == nil && ge.Error.Code != "" {
		msg = ge.Error.Code + ": " + ge.Error.Message
	}
	if code == http.StatusUnauthorized || code == http.StatusForbidden {
		return fmt.Errorf("%w: graph returned %d: %s", domain.ErrAuthenticationFailed, code, msg)
	}
	return fmt.Errorf("%w: graph returned %d: %s", domain.ErrProtocol, code, msg)
}

// wrapTransportError maps a failed round trip. Token endpoint rejections
// surface as *oauth2.RetrieveError inside the transport error.
func wrapTransportError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		if re.ErrorCode == "" {
			return fmt.Errorf("%w: token request failed (%d)", domain.ErrAuthenticationFailed, status)
		}
		desc, _, _ := strings.Cut(re.ErrorDescription, "\n")
		return fmt.Errorf("%w: %s (%d): %s", domain.ErrAuthenticationFailed, re.ErrorCode, status, strings.TrimSpace(desc))
	}
	return fmt.Errorf("%w: %w", domain.ErrProtocol, err)
}
