package presence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "jotlet:presence:"

var joinScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
redis.call("EXPIRE", KEYS[1], ARGV[1])
return n
`)

var leaveScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return 0
end
local n = redis.call("DECR", KEYS[1])
if n <= 0 then
	redis.call("DEL", KEYS[1])
	return 0
end
redis.call("EXPIRE", KEYS[1], ARGV[1])
return n
`)

// RedisStore is a Store shared by every process pointed at the same Redis.
// Each operation runs as one Lua script so the count and its expiry never
// diverge.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Join(ctx context.Context, key string) (int64, error) {
	n, err := joinScript.Run(ctx, s.client, []string{keyPrefix + key}, s.ttlSeconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("presence join %s: %w", key, err)
	}
	return n, nil
}

func (s *RedisStore) Leave(ctx context.Context, key string) (int64, error) {
	n, err := leaveScript.Run(ctx, s.client, []string{keyPrefix + key}, s.ttlSeconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("presence leave %s: %w", key, err)
	}
	return n, nil
}

func (s *RedisStore) Count(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Get(ctx, keyPrefix+key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("presence count %s: %w", key, err)
	}
	return n, nil
}

func (s *RedisStore) ttlSeconds() int64 {
	secs := int64(s.ttl / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
