package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/dirsync/internal/core/domain"
)

func TestObserver_SyncFinished(t *testing.T) {
	o := NewObserver()
	start := time.Unix(1_700_000_000, 0)

	o.SyncFinished(&domain.SyncResult{
		Directory: domain.DirectoryOkta,
		StartedAt: start,
		Groups:    make([]domain.GroupEntry, 2),
		Users:     make([]domain.UserEntry, 5),
		Submitted: true,
	}, 3*time.Second, nil)
	o.SyncFinished(&domain.SyncResult{
		Directory:  domain.DirectoryOkta,
		StartedAt:  start,
		SkipReason: domain.SkipUnchanged,
		Users:      make([]domain.UserEntry, 4),
	}, time.Second, nil)
	o.SyncFinished(&domain.SyncResult{Directory: domain.DirectoryOkta}, time.Second, errors.New("boom"))
	o.SyncFinished(&domain.SyncResult{SkipReason: domain.SkipNoDirectory}, 0, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(o.runs.WithLabelValues("okta", OutcomeSubmitted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.runs.WithLabelValues("okta", OutcomeUnchanged)))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.runs.WithLabelValues("okta", OutcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.runs.WithLabelValues("none", OutcomeNoDirectory)))

	assert.Equal(t, 2.0, testutil.ToFloat64(o.entries.WithLabelValues("groups")), "groups kept from the first run")
	assert.Equal(t, 4.0, testutil.ToFloat64(o.entries.WithLabelValues("users")))
	assert.Equal(t, float64(start.Unix()+1), testutil.ToFloat64(o.lastSuccess))
	assert.Equal(t, 1, testutil.CollectAndCount(o.duration))
}

func TestObserver_RequestSubmitted(t *testing.T) {
	o := NewObserver()
	o.RequestSubmitted(domain.DirectoryEntraID)
	o.RequestSubmitted(domain.DirectoryEntraID)
	o.RequestSubmitted(domain.DirectoryLdap)

	assert.Equal(t, 2.0, testutil.ToFloat64(o.requests.WithLabelValues("entra")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.requests.WithLabelValues("ldap")))
}

func TestObserver_Handler(t *testing.T) {
	o := NewObserver()
	o.RequestSubmitted(domain.DirectoryGSuite)

	srv := httptest.NewServer(o.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `dirsync_import_requests_total{directory="gsuite"} 1`))
	assert.Contains(t, string(body), "go_goroutines")

	health, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, OutcomeError, outcome(nil, nil))
	assert.Equal(t, OutcomeEmpty, outcome(&domain.SyncResult{SkipReason: domain.SkipEmpty}, nil))
	assert.Equal(t, OutcomeSubmitted, outcome(&domain.SyncResult{Submitted: true}, nil))
}
