package redisinfra

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-api-auth/internal/domain"
	"github.com/redis/go-redis/v9"
)

// consumeScript deletes KEYS[1] only when it holds ARGV[1]. A mismatch bumps
// the miss counter at KEYS[2]; reaching ARGV[2] misses deletes both keys.
// ARGV[2] <= 0 disables counting.
// Returns -1 when the key is absent, 0 on mismatch, 1 when deleted, 2 when
// the mismatch exhausted the allowed misses.
var consumeScript = redis.NewScript(`
local v = redis.call("GET", KEYS[1])
if not v then
	return -1
end
if v == ARGV[1] then
	redis.call("DEL", KEYS[1], KEYS[2])
	return 1
end
local limit = tonumber(ARGV[2])
if limit <= 0 then
	return 0
end
local misses = redis.call("INCR", KEYS[2])
if misses >= limit then
	redis.call("DEL", KEYS[1], KEYS[2])
	return 2
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl > 0 then
	redis.call("PEXPIRE", KEYS[2], ttl)
end
return 0
`)

// Store is the ephemeral key-value state of the service: verification
// codes, verified flags, refresh tokens and blacklist entries. Every
// operation touches a single key, so Redis serializes them.
type Store struct {
	db redis.UniversalClient
}

func NewStore(db redis.UniversalClient) *Store {
	return &Store{db: db}
}

// Put upserts key with the given TTL. A zero TTL keeps the key forever.
func (s *Store) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.db.Set(ctx, key, value, ttl).Err(); err != nil {
		return unavailable("put", key, err)
	}
	return nil
}

// Get returns the value under key and whether it exists.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.db.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, unavailable("get", key, err)
	}
	return v, true, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.db.Del(ctx, key).Err(); err != nil {
		return unavailable("delete", key, err)
	}
	return nil
}

// ConsumeIfEqual atomically deletes key when its value equals expected and
// reports whether it did. Mismatches are counted under missKey, which lives
// no longer than key; after maxMisses of them key is deleted and
// domain.ErrAttemptsExceeded returned. A missing key yields
// domain.ErrKeyNotFound.
func (s *Store) ConsumeIfEqual(ctx context.Context, key, missKey, expected string, maxMisses int) (bool, error) {
	n, err := consumeScript.Run(ctx, s.db, []string{key, missKey}, expected, maxMisses).Int()
	if err != nil {
		return false, unavailable("consume", key, err)
	}
	switch n {
	case -1:
		return false, domain.ErrKeyNotFound
	case 1:
		return true, nil
	case 2:
		return false, domain.ErrAttemptsExceeded
	default:
		return false, nil
	}
}

func unavailable(op, key string, err error) error {
	slog.Error("redis operation failed", "op", op, "key", redactKey(key), "err", err)
	return fmt.Errorf("kv %s: %w", op, domain.ErrUnavailable)
}

// redactKey keeps the key prefix only; blacklist keys embed whole tokens.
func redactKey(key string) string {
	if prefix, _, ok := strings.Cut(key, ":"); ok {
		return prefix + ":…"
	}
	return "…"
}
