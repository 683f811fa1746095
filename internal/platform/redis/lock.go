package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrLockHeld is returned by TryLock when another owner holds the key.
var ErrLockHeld = errors.New("lock is held by another owner")

// Locker claims keys for a bounded time.
type Locker interface {
	// TryLock claims key for ttl and returns an ownership token. It returns
	// ErrLockHeld without waiting when the key is already claimed.
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)

	// Unlock releases key if token still owns it.
	Unlock(ctx context.Context, key, token string) error
}

// RedisLocker implements Locker with SET NX and a compare-and-delete script.
type RedisLocker struct {
	cli redis.UniversalClient
}

var _ Locker = (*RedisLocker)(nil)

// NewLocker returns a Locker backed by cli.
func NewLocker(cli redis.UniversalClient) *RedisLocker {
	return &RedisLocker{cli: cli}
}

// TryLock implements Locker.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := l.cli.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("failed to claim %s: %w", key, err)
	}
	if !ok {
		return "", ErrLockHeld
	}
	return token, nil
}

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

// Unlock implements Locker. Releasing a key that expired or was taken over
// is not an error.
func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	if err := luaUnlock.Run(ctx, l.cli, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to release %s: %w", key, err)
	}
	return nil
}
