// Package redis provides the Redis-backed coordination primitives: a
// token-owned Locker for idempotency keys and a fixed-window RateLimiter.
package redis
