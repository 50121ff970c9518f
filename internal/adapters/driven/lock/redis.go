// Package lock provides a Redis-backed driven.SyncLock so that several
// dirsync processes sharing one organization never run a cycle at once.
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driven"
	"github.com/custodia-labs/dirsync/internal/logger"
)

// Ensure RedisLock implements the interface.
var _ driven.SyncLock = (*RedisLock)(nil)

// Config configures the Redis lock.
type Config struct {
	Addr     string
	Password string
	DB       int

	// Key is the lock key; defaults to "dirsync:sync-lock".
	Key string

	// TTL bounds how long a crashed holder blocks others. The lease is
	// renewed every TTL/3 while held. Defaults to 1 minute.
	TTL time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr: "localhost:6379",
		Key:  "dirsync:sync-lock",
		TTL:  time.Minute,
	}
}

// RedisLock is a single-holder lease stored in one Redis key.
type RedisLock struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

// releaseScript deletes the key only when it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the lease only when it still holds our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// New connects to Redis and returns a lock.
func New(ctx context.Context, cfg Config) (*RedisLock, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return NewWithClient(client, cfg), nil
}

// NewWithClient creates a lock with an existing Redis client.
func NewWithClient(client redis.UniversalClient, cfg Config) *RedisLock {
	defaults := DefaultConfig()
	if cfg.Key == "" {
		cfg.Key = defaults.Key
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaults.TTL
	}
	return &RedisLock{client: client, key: cfg.Key, ttl: cfg.TTL}
}

// Close closes the Redis client.
func (l *RedisLock) Close() error {
	return l.client.Close()
}

// Acquire takes the lock or returns domain.ErrSyncInProgress.
func (l *RedisLock) Acquire(ctx context.Context) (func(context.Context) error, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}

	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquiring sync lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: lock %s is held by another process", domain.ErrSyncInProgress, l.key)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.renew(token, stop, done)

	var once sync.Once
	release := func(ctx context.Context) error {
		var err error
		once.Do(func() {
			close(stop)
			<-done
			err = releaseScript.Run(ctx, l.client, []string{l.key}, token).Err()
			if errors.Is(err, redis.Nil) {
				err = nil
			}
			if err != nil {
				err = fmt.Errorf("releasing sync lock: %w", err)
			}
		})
		return err
	}
	return release, nil
}

// renew extends the lease until stop is closed.
func (l *RedisLock) renew(token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.ttl/3)
			n, err := renewScript.Run(ctx, l.client, []string{l.key}, token, l.ttl.Milliseconds()).Int()
			cancel()
			switch {
			case err != nil:
				logger.Warn("failed to renew sync lock: %v", err)
			case n == 0:
				logger.Warn("sync lock %s was lost", l.key)
				return
			}
		}
	}
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
