package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/dirsync/internal/core/domain"
)

// setupTestRedis creates a miniredis instance for testing.
func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return s, client
}

func TestRedisLock_AcquireRelease(t *testing.T) {
	s, client := setupTestRedis(t)
	l := NewWithClient(client, Config{})
	ctx := context.Background()

	release, err := l.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, s.Exists("dirsync:sync-lock"))
	assert.Equal(t, time.Minute, s.TTL("dirsync:sync-lock"))

	_, err = l.Acquire(ctx)
	assert.ErrorIs(t, err, domain.ErrSyncInProgress)

	require.NoError(t, release(ctx))
	assert.False(t, s.Exists("dirsync:sync-lock"))
	assert.NoError(t, release(ctx), "release is idempotent")

	release, err = l.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, release(ctx))
}

func TestRedisLock_SharedAcrossInstances(t *testing.T) {
	s, client := setupTestRedis(t)
	other := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer other.Close()
	ctx := context.Background()

	a := NewWithClient(client, Config{Key: "org-1"})
	b := NewWithClient(other, Config{Key: "org-1"})

	release, err := a.Acquire(ctx)
	require.NoError(t, err)
	_, err = b.Acquire(ctx)
	assert.ErrorIs(t, err, domain.ErrSyncInProgress)
	require.NoError(t, release(ctx))
}

func TestRedisLock_ExpiredLeaseIsNotReleasedByOldHolder(t *testing.T) {
	s, client := setupTestRedis(t)
	l := NewWithClient(client, Config{TTL: time.Hour})
	ctx := context.Background()

	release, err := l.Acquire(ctx)
	require.NoError(t, err)

	// The lease expires and another process takes over.
	s.FastForward(2 * time.Hour)
	require.NoError(t, s.Set("dirsync:sync-lock", "someone-else"))

	require.NoError(t, release(ctx))
	got, err := s.Get("dirsync:sync-lock")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRedisLock_RenewsLease(t *testing.T) {
	s, client := setupTestRedis(t)
	ttl := 60 * time.Millisecond
	l := NewWithClient(client, Config{TTL: ttl})
	ctx := context.Background()

	release, err := l.Acquire(ctx)
	require.NoError(t, err)
	defer func() { assert.NoError(t, release(ctx)) }()

	s.SetTTL("dirsync:sync-lock", time.Millisecond)
	assert.Eventually(t, func() bool {
		return s.TTL("dirsync:sync-lock") == ttl
	}, time.Second, 5*time.Millisecond)
}

func TestRedisLock_RedisDown(t *testing.T) {
	s, client := setupTestRedis(t)
	l := NewWithClient(client, Config{})
	s.Close()

	_, err := l.Acquire(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrSyncInProgress)
}

func TestNew_PingFails(t *testing.T) {
	s := miniredis.RunT(t)
	addr := s.Addr()
	s.Close()

	_, err := New(context.Background(), Config{Addr: addr})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis connection failed")
}
