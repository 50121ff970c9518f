package onelogin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/dirsync/internal/core/domain"
)

// DefaultTimeout bounds each API request.
const DefaultTimeout = 30 * time.Second

// tokenSource obtains access tokens with the OneLogin client-credentials
// call, which takes a JSON body rather than a form.
type tokenSource struct {
	ctx  context.Context
	http *http.Client
	s    *settings
}

// Token implements oauth2.TokenSource.
func (t *tokenSource) Token() (*oauth2.Token, error) {
	body := []byte(`{"grant_type":"client_credentials"}`)
	req, err := http.NewRequestWithContext(t.ctx, http.MethodPost, t.s.BaseURL+"/auth/oauth2/v2/token", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build token request: %w", domain.ErrProtocol, err)
	}
	req.SetBasicAuth(t.s.ClientID, t.s.ClientSecret)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Accept", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		if t.ctx.Err() != nil {
			return nil, t.ctx.Err()
		}
		return nil, fmt.Errorf("%w: token request: %w", domain.ErrProtocol, err)
	}
	defer resp.Body.Close()

	var res struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: onelogin token request returned %d", domain.ErrAuthenticationFailed, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil || res.AccessToken == "" {
		return nil, fmt.Errorf("%w: onelogin returned no access token", domain.ErrAuthenticationFailed)
	}

	tok := &oauth2.Token{AccessToken: res.AccessToken, TokenType: "bearer"}
	if res.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(res.ExpiresIn) * time.Second)
	}
	return tok, nil
}

// envelope is the OneLogin API v1 response shape.
type envelope[T any] struct {
	Status struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"status"`
	Pagination struct {
		NextLink string `json:"next_link"`
	} `json:"pagination"`
	Data []T `json:"data"`
}

// client issues authenticated OneLogin API requests.
type client struct {
	http   *http.Client
	base   string
	tokens oauth2.TokenSource
}

func newClient(ctx context.Context, s *settings) *client {
	hc := &http.Client{Timeout: DefaultTimeout}
	return &client{
		http:   hc,
		base:   s.BaseURL + "/api/1/",
		tokens: oauth2.ReuseTokenSource(nil, &tokenSource{ctx: ctx, http: hc, s: s}),
	}
}

// getMany fetches every page of endpoint, following pagination.next_link.
func getMany[T any](ctx context.Context, c *client, endpoint string) ([]T, error) {
	next := endpoint
	if !strings.HasPrefix(next, "https://") && !strings.HasPrefix(next, "http://") {
		next = c.base + endpoint
	}

	var out []T
	for next != "" {
		var page envelope[T]
		if err := c.get(ctx, next, &page); err != nil {
			return nil, err
		}
		if page.Data == nil {
			break
		}
		if page.Status.Code != http.StatusOK {
			return nil, fmt.Errorf("%w: onelogin status %d: %s", domain.ErrProtocol, page.Status.Code, page.Status.Message)
		}
		out = append(out, page.Data...)
		next = page.Pagination.NextLink
	}
	return out, nil
}

func (c *client) get(ctx context.Context, url string, out any) error {
	tok, err := c.tokens.Token()
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %w", domain.ErrProtocol, err)
	}
	req.Header.Set("Authorization", "bearer:"+tok.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: onelogin request: %w", domain.ErrProtocol, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %w", domain.ErrProtocol, err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: onelogin rejected the access token", domain.ErrAuthenticationFailed)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: onelogin returned %d", domain.ErrProtocol, resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode response: %w", domain.ErrProtocol, err)
	}
	return nil
}
