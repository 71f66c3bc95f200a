package replay

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "tap:replay:"

// RedisStore is a Store backed by Redis. SET NX gives a strongly consistent
// atomic check-and-mark across every instance sharing the same Redis, which
// is what a multi-process deployment needs.
type RedisStore struct {
	rdb  *redis.Client
	salt string
}

// NewRedisStore creates a Redis-backed replay store. The salt feeds key
// derivation; it should be constant across instances sharing the store.
func NewRedisStore(rdb *redis.Client, salt string) *RedisStore {
	return &RedisStore{rdb: rdb, salt: salt}
}

// Seen implements Store via SET NX with expiry: the first caller sets the
// key and proceeds, every later caller within the TTL is rejected.
func (s *RedisStore) Seen(ctx context.Context, rc Context) (bool, error) {
	ttl := rc.TTL
	if ttl <= 0 {
		ttl = time.Second
	}

	set, err := s.rdb.SetNX(ctx, redisKeyPrefix+Key(s.salt, rc), "1", ttl).Result()
	if err != nil {
		return false, err
	}

	return !set, nil
}
