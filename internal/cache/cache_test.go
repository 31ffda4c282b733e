package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, 30*time.Second), mr
}

func TestSetThenGet(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "user-1", []byte(`{"id":"cart-1"}`)))

	got, err := c.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"cart-1"}`, string(got))

	ttl := mr.TTL(cacheKey("user-1"))
	assert.GreaterOrEqual(t, ttl, 30*time.Second)
	assert.Less(t, ttl, 36*time.Second)
}

func TestGetMiss(t *testing.T) {
	c, _ := setupTestRedis(t)
	_, err := c.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestExpiry(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "user-1", []byte(`{}`)))

	mr.FastForward(time.Minute)

	_, err := c.Get(ctx, "user-1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestDelete(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "user-1", []byte(`{}`)))
	require.NoError(t, c.Delete(ctx, "user-1"))
	assert.False(t, mr.Exists(cacheKey("user-1")))
}

func TestMissesDoNotTripBreaker(t *testing.T) {
	c, _ := setupTestRedis(t)
	for i := 0; i < 10; i++ {
		_, err := c.Get(context.Background(), "nobody")
		require.ErrorIs(t, err, ErrCacheMiss)
	}
	assert.Equal(t, gobreaker.StateClosed.String(), c.State())
}

func TestBreakerOpensWhenRedisIsDown(t *testing.T) {
	c, mr := setupTestRedis(t)
	mr.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := c.Get(ctx, "user-1")
		require.Error(t, err)
	}
	_, err := c.Get(ctx, "user-1")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, gobreaker.StateOpen.String(), c.State())
}
