package cli

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/dirsync/internal/core/domain"
)

// stopAfterSync makes the daemon exit once the first sync has run.
func stopAfterSync(t *testing.T, env *testEnv) {
	t.Helper()
	var cancel context.CancelFunc
	prev := notifyContext
	notifyContext = func(parent context.Context) (context.Context, context.CancelFunc) {
		var ctx context.Context
		ctx, cancel = context.WithCancel(parent)
		return ctx, cancel
	}
	env.sync.onSync = func() { cancel() }
	t.Cleanup(func() { notifyContext = prev })
}

func TestDaemonCmd_RunsImmediately(t *testing.T) {
	env := setupCLI(t)
	stopAfterSync(t, env)

	out, err := execute(t, "", "daemon")

	require.NoError(t, err)
	assert.Contains(t, out, "Daemon started.")
	assert.Contains(t, out, "Daemon stopped.")
	assert.Equal(t, []syncCall{{force: false}}, env.sync.Calls())
}

func TestDaemonCmd_SyncErrorsDoNotStopTheLoop(t *testing.T) {
	env := setupCLI(t)
	env.sync.err = domain.ErrProtocol
	stopAfterSync(t, env)

	_, err := execute(t, "", "daemon")
	require.NoError(t, err)
	assert.Len(t, env.sync.Calls(), 1)
}

func TestDaemonCmd_ServesMetrics(t *testing.T) {
	env := setupCLI(t)
	metricsHandler = http.NotFoundHandler()
	stopAfterSync(t, env)

	out, err := execute(t, "", "daemon", "--metrics-addr", "127.0.0.1:0")

	require.NoError(t, err)
	assert.Contains(t, out, "Serving metrics on 127.0.0.1:0")
}

func TestDaemonCmd_BadMetricsAddr(t *testing.T) {
	env := setupCLI(t)
	metricsHandler = http.NotFoundHandler()
	stopAfterSync(t, env)

	_, err := execute(t, "", "daemon", "--metrics-addr", "not-an-address")
	assert.Error(t, err)
	assert.Empty(t, env.sync.Calls())
}

func TestSyncInterval(t *testing.T) {
	env := setupCLI(t)
	ctx := t.Context()

	assert.Equal(t, 5*time.Minute, syncInterval(ctx), "default")

	cfg, err := env.state.SyncConfig(ctx)
	require.NoError(t, err)
	cfg.Interval = 30
	require.NoError(t, env.state.SetSyncConfig(ctx, cfg))
	assert.Equal(t, 30*time.Minute, syncInterval(ctx))

	cfg.Interval = 1
	require.NoError(t, env.state.SetSyncConfig(ctx, cfg))
	assert.Equal(t, minInterval, syncInterval(ctx))
}
