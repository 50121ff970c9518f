package importapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/dirsync/internal/core/domain"
)

// --- Fake identity and API server ---

type fakeServer struct {
	t      *testing.T
	srv    *httptest.Server
	mux    *http.ServeMux
	logins atomic.Int32
	posts  atomic.Int32

	// importStatus and importBody are returned by the import endpoint.
	importStatus int
	importBody   string
	lastRequest  domain.ImportRequest
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	f := &fakeServer{t: t, mux: http.NewServeMux(), importStatus: http.StatusOK}
	f.mux.HandleFunc("POST /identity/connect/token", func(w http.ResponseWriter, r *http.Request) {
		f.logins.Add(1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, Scope, r.PostForm.Get("scope"))
		assert.Equal(t, "device-1", r.PostForm.Get("deviceIdentifier"))
		if r.PostForm.Get("client_id") != "organization.org-1" || r.PostForm.Get("client_secret") != "s3cret" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_client","error_description":"invalid_client"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"api-token","token_type":"Bearer","expires_in":3600}`))
	})
	f.mux.HandleFunc("POST /api/public/organization/import", func(w http.ResponseWriter, r *http.Request) {
		f.posts.Add(1)
		assert.Equal(t, "Bearer api-token", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&f.lastRequest))
		w.WriteHeader(f.importStatus)
		_, _ = w.Write([]byte(f.importBody))
	})
	f.srv = httptest.NewServer(f.mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeServer) client(t *testing.T, secret string) *Client {
	t.Helper()
	c, err := New(Config{
		APIURL:      f.srv.URL + "/api/",
		IdentityURL: f.srv.URL + "/identity",
		DeviceID:    "device-1",
		Credentials: func(context.Context) (string, string, error) {
			return "organization.org-1", secret, nil
		},
	})
	require.NoError(t, err)
	return c
}

func sampleRequest() domain.ImportRequest {
	return domain.ImportRequest{
		Groups: []domain.GroupPayload{{Name: "Eng", ExternalID: "g1", MemberExternalIDs: []string{"u1"}}},
		Users:  []domain.UserPayload{{Email: "alice@corp.com", ExternalID: "u1"}},
	}
}

// --- Tests ---

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{APIURL: "https://api"})
	assert.ErrorIs(t, err, domain.ErrConfigIncomplete)

	_, err = New(Config{APIURL: "https://api", IdentityURL: "https://id"})
	assert.ErrorIs(t, err, domain.ErrConfigIncomplete)

	c, err := New(Config{
		APIURL:      "https://api/",
		IdentityURL: "https://id",
		Credentials: func(context.Context) (string, string, error) { return "", "", nil },
	})
	require.NoError(t, err)
	assert.Equal(t, "https://api", c.APIURL())
	assert.NotEmpty(t, c.deviceID)
}

func TestSubmit_Success(t *testing.T) {
	f := newFakeServer(t)
	c := f.client(t, "s3cret")
	ctx := context.Background()

	require.NoError(t, c.Submit(ctx, "org-1", sampleRequest()))
	require.NoError(t, c.Submit(ctx, "org-1", sampleRequest()))

	assert.Equal(t, int32(1), f.logins.Load(), "token is reused")
	assert.Equal(t, int32(2), f.posts.Load())
	assert.Equal(t, sampleRequest(), f.lastRequest)
}

func TestSubmit_BadCredentials(t *testing.T) {
	f := newFakeServer(t)
	err := f.client(t, "wrong").Submit(context.Background(), "org-1", sampleRequest())

	require.ErrorIs(t, err, domain.ErrAuthenticationFailed)
	assert.NotContains(t, err.Error(), "wrong")
	assert.Equal(t, int32(0), f.posts.Load())
}

func TestSubmit_MissingKey(t *testing.T) {
	f := newFakeServer(t)
	err := f.client(t, "").Submit(context.Background(), "org-1", sampleRequest())
	assert.ErrorIs(t, err, domain.ErrConfigIncomplete)
}

func TestSubmit_CredentialsError(t *testing.T) {
	boom := errors.New("secure store unavailable")
	c, err := New(Config{
		APIURL:      "https://api",
		IdentityURL: "https://id",
		Credentials: func(context.Context) (string, string, error) { return "", "", boom },
	})
	require.NoError(t, err)
	assert.ErrorIs(t, c.Submit(context.Background(), "org-1", sampleRequest()), boom)
}

func TestSubmit_Rejected(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		want     error
		contains string
	}{
		{
			name:     "validation",
			status:   http.StatusBadRequest,
			body:     `{"message":"The model state is invalid.","validationErrors":{"Users[0].Email":["The Email field is not a valid e-mail address."]}}`,
			want:     domain.ErrSubmission,
			contains: "not a valid e-mail",
		},
		{
			name:     "rate limited",
			status:   http.StatusTooManyRequests,
			want:     domain.ErrSubmission,
			contains: "Rate limit exceeded",
		},
		{
			name:   "unauthorized",
			status: http.StatusUnauthorized,
			want:   domain.ErrAuthenticationFailed,
		},
		{
			name:     "server error",
			status:   http.StatusInternalServerError,
			body:     "oops",
			want:     domain.ErrSubmission,
			contains: "Internal Server Error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeServer(t)
			f.importStatus = tt.status
			f.importBody = tt.body

			err := f.client(t, "s3cret").Submit(context.Background(), "org-1", sampleRequest())
			require.ErrorIs(t, err, tt.want)
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Contains(t, err.Error(), tt.contains)
			assert.Equal(t, tt.status == http.StatusTooManyRequests, IsRateLimited(err))
		})
	}
}

func TestSubmit_UnauthorizedForcesLogin(t *testing.T) {
	f := newFakeServer(t)
	c := f.client(t, "s3cret")
	ctx := context.Background()

	f.importStatus = http.StatusUnauthorized
	require.Error(t, c.Submit(ctx, "org-1", sampleRequest()))

	f.importStatus = http.StatusOK
	require.NoError(t, c.Submit(ctx, "org-1", sampleRequest()))
	assert.Equal(t, int32(2), f.logins.Load())
}

func TestSubmit_Cancelled(t *testing.T) {
	f := newFakeServer(t)
	c := f.client(t, "s3cret")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Submit(ctx, "org-1", sampleRequest())
	assert.ErrorIs(t, err, context.Canceled)
}
