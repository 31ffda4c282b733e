// Package cache keeps rendered cart views in Redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/ariefcatur/go-cart-reservation/internal/redisx"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
)

var ErrCacheMiss = errors.New("cache miss")

// ViewCache publishes opaque, already encoded views keyed by user id. The
// cart service only writes it; RedisCache.Get is the read side for other
// consumers of the published views.
type ViewCache interface {
	Set(ctx context.Context, userID string, view []byte) error
	Delete(ctx context.Context, userID string) error
}

// RedisCache guards every call with a circuit breaker so a sick Redis costs
// one fast error instead of a timeout per request.
type RedisCache struct {
	client  redis.Cmdable
	baseTTL time.Duration
	cb      *gobreaker.CircuitBreaker[[]byte]
}

func NewRedisCache(client redis.Cmdable, baseTTL time.Duration) *RedisCache {
	if baseTTL <= 0 {
		baseTTL = redisx.TTLCartView
	}
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "cart-view-cache",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrCacheMiss)
		},
	})
	return &RedisCache{client: client, baseTTL: baseTTL, cb: cb}
}

func (r *RedisCache) Get(ctx context.Context, userID string) ([]byte, error) {
	return r.cb.Execute(func() ([]byte, error) {
		data, err := r.client.Get(ctx, cacheKey(userID)).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		if err != nil {
			return nil, fmt.Errorf("redis get failed: %w", err)
		}
		return data, nil
	})
}

func (r *RedisCache) Set(ctx context.Context, userID string, view []byte) error {
	_, err := r.cb.Execute(func() ([]byte, error) {
		if err := r.client.Set(ctx, cacheKey(userID), view, r.ttl()).Err(); err != nil {
			return nil, fmt.Errorf("redis set failed: %w", err)
		}
		return nil, nil
	})
	return err
}

func (r *RedisCache) Delete(ctx context.Context, userID string) error {
	_, err := r.cb.Execute(func() ([]byte, error) {
		if err := r.client.Del(ctx, cacheKey(userID)).Err(); err != nil {
			return nil, fmt.Errorf("redis delete failed: %w", err)
		}
		return nil, nil
	})
	return err
}

// ttl spreads expiry over up to a fifth of the base TTL.
func (r *RedisCache) ttl() time.Duration {
	spread := int64(r.baseTTL / 5)
	if spread <= 0 {
		return r.baseTTL
	}
	return r.baseTTL + time.Duration(rand.Int63n(spread))
}

// State reports the breaker state, for health output.
func (r *RedisCache) State() string { return r.cb.State().String() }

func cacheKey(userID string) string {
	return fmt.Sprintf(redisx.KeyCartView, userID)
}
