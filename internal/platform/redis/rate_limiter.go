package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// RateLimiter admits at most limit events per key per window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// WindowLimiter is a fixed-window counter. The count and its expiry are set
// by one script, so a key never outlives its window.
type WindowLimiter struct {
	cli    redis.Scripter
	prefix string
}

var _ RateLimiter = (*WindowLimiter)(nil)

// NewRateLimiter returns a RateLimiter whose keys are namespaced under
// prefix. A ":" separator is added when prefix lacks one.
func NewRateLimiter(cli redis.Scripter, prefix string) *WindowLimiter {
	if prefix != "" && !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return &WindowLimiter{cli: cli, prefix: prefix}
}

// luaHit increments the counter and gives it the window as TTL whenever it
// has none, including keys left without one by an older client.
var luaHit = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n`)

// Allow implements RateLimiter.
func (r *WindowLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	full := r.prefix + key

	count, err := luaHit.Run(ctx, r.cli, []string{full}, window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to count %s: %w", full, err)
	}
	return count <= int64(limit), nil
}
