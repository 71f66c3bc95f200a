package replay

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisStore(client, "test-salt"), s
}

func TestRedisStoreSeen(t *testing.T) {
	ctx := context.Background()

	t.Run("first sight is not a replay", func(t *testing.T) {
		store, _ := newRedisStore(t)

		seen, err := store.Seen(ctx, testContext("n1"))
		require.NoError(t, err)
		assert.False(t, seen)
	})

	t.Run("second sight before ttl is a replay", func(t *testing.T) {
		store, _ := newRedisStore(t)

		_, err := store.Seen(ctx, testContext("n1"))
		require.NoError(t, err)

		seen, err := store.Seen(ctx, testContext("n1"))
		require.NoError(t, err)
		assert.True(t, seen)
	})

	t.Run("nonce usable again after ttl", func(t *testing.T) {
		store, mr := newRedisStore(t)

		rc := testContext("n1")
		rc.TTL = 10 * time.Second

		_, err := store.Seen(ctx, rc)
		require.NoError(t, err)

		mr.FastForward(11 * time.Second)

		seen, err := store.Seen(ctx, rc)
		require.NoError(t, err)
		assert.False(t, seen)
	})

	t.Run("raw tuple never stored", func(t *testing.T) {
		store, mr := newRedisStore(t)

		_, err := store.Seen(ctx, testContext("secret-nonce"))
		require.NoError(t, err)

		for _, key := range mr.Keys() {
			assert.NotContains(t, key, "secret-nonce")
			assert.NotContains(t, key, "issuer.example")
		}
	})

	t.Run("backend failure surfaces as error", func(t *testing.T) {
		store, mr := newRedisStore(t)
		mr.Close()

		_, err := store.Seen(ctx, testContext("n1"))
		assert.Error(t, err)
	})
}

func TestNoopStore(t *testing.T) {
	store := NoopStore{}

	for i := 0; i < 3; i++ {
		seen, err := store.Seen(context.Background(), testContext("same-nonce"))
		require.NoError(t, err)
		assert.False(t, seen)
	}
}
