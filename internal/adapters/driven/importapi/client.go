package importapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driven"
	"github.com/custodia-labs/dirsync/internal/logger"
)

// Ensure Client implements the interface.
var _ driven.ImportClient = (*Client)(nil)

const (
	// DefaultTimeout bounds each submission. Large imports can take a while
	// on the server side.
	DefaultTimeout = 5 * time.Minute

	// Scope is the OAuth scope granted to organization API keys.
	Scope = "api.organization"

	importPath = "/public/organization/import"
)

// Credentials returns the organization API key. It is called on every
// submission so a key changed with `dirsync config` is picked up by a
// running daemon.
type Credentials func(ctx context.Context) (clientID, clientSecret string, err error)

// Config configures the import client.
type Config struct {
	APIURL      string
	IdentityURL string
	Credentials Credentials

	// DeviceID identifies this installation to the identity service.
	// Defaults to a random id per process.
	DeviceID string

	HTTPClient *http.Client
}

// Client submits import requests.
type Client struct {
	apiURL      string
	identityURL string
	credentials Credentials
	deviceID    string
	http        *http.Client

	mu     sync.Mutex
	key    string
	tokens oauth2.TokenSource
}

// New creates an import client.
func New(cfg Config) (*Client, error) {
	if cfg.APIURL == "" || cfg.IdentityURL == "" {
		return nil, fmt.Errorf("%w: api and identity urls are required", domain.ErrConfigIncomplete)
	}
	if cfg.Credentials == nil {
		return nil, fmt.Errorf("%w: api key credentials are required", domain.ErrConfigIncomplete)
	}
	if cfg.DeviceID == "" {
		cfg.DeviceID = uuid.NewString()
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		apiURL:      strings.TrimRight(cfg.APIURL, "/"),
		identityURL: strings.TrimRight(cfg.IdentityURL, "/"),
		credentials: cfg.Credentials,
		deviceID:    cfg.DeviceID,
		http:        hc,
	}, nil
}

// APIURL returns the base URL requests are sent to.
func (c *Client) APIURL() string {
	return c.apiURL
}

// Submit posts one import request.
func (c *Client) Submit(ctx context.Context, organizationID string, req domain.ImportRequest) error {
	ts, err := c.tokenSource(ctx)
	if err != nil {
		return err
	}
	tok, err := ts.Token()
	if err != nil {
		return c.wrapTokenError(ctx, err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("%w: encode request: %w", domain.ErrSubmission, err)
	}

	endpoint := c.apiURL + importPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %w", domain.ErrSubmission, err)
	}
	httpReq.Header.Set("Content-Type", "application/json; charset=utf-8")
	httpReq.Header.Set("Accept", "application/json")
	tok.SetAuthHeader(httpReq)

	logger.Ctx(ctx).Debug().
		Str("organization", organizationID).
		Int("groups", len(req.Groups)).
		Int("users", len(req.Users)).
		Bool("overwrite", req.OverwriteExisting).
		Msg("submitting import request")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", domain.ErrSubmission, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if resp.StatusCode == http.StatusUnauthorized {
		// Force a fresh login next time.
		c.reset()
	}
	return decodeError(resp, endpoint)
}

// tokenSource returns a cached token source for the current API key,
// replacing it when the key changed.
func (c *Client) tokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	clientID, clientSecret, err := c.credentials(ctx)
	if err != nil {
		return nil, err
	}
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("%w: organization api key is not set", domain.ErrConfigIncomplete)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := clientID + "\x00" + clientSecret
	if c.tokens != nil && c.key == key {
		return c.tokens, nil
	}

	cc := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     c.identityURL + "/connect/token",
		Scopes:       []string{Scope},
		EndpointParams: url.Values{
			"deviceIdentifier": {c.deviceID},
			"deviceName":       {"dirsync"},
		},
		AuthStyle: oauth2.AuthStyleInParams,
	}
	// The token source outlives this call, so it gets its own context
	// carrying only the HTTP client.
	tctx := context.WithValue(context.Background(), oauth2.HTTPClient, c.http)
	c.tokens = oauth2.ReuseTokenSourceWithExpiry(nil, cc.TokenSource(tctx), time.Minute)
	c.key = key
	return c.tokens, nil
}

func (c *Client) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = nil
	c.key = ""
}

func (c *Client) wrapTokenError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		desc := re.ErrorDescription
		if desc == "" {
			desc = re.ErrorCode
		}
		if desc == "" && re.Response != nil {
			desc = re.Response.Status
		}
		return fmt.Errorf("%w: identity login failed: %s", domain.ErrAuthenticationFailed, desc)
	}
	return fmt.Errorf("%w: identity login failed: %w", domain.ErrAuthenticationFailed, err)
}

func decodeError(resp *http.Response, endpoint string) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, URL: endpoint}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var body struct {
		Message          string              `json:"message"`
		ValidationErrors map[string][]string `json:"validationErrors"`
	}
	if len(raw) > 0 && json.Unmarshal(raw, &body) == nil {
		apiErr.Message = body.Message
		apiErr.ValidationErrors = body.ValidationErrors
	}
	if apiErr.Message == "" && resp.StatusCode == http.StatusTooManyRequests {
		apiErr.Message = "Rate limit exceeded. Try again later."
	}
	return apiErr
}
