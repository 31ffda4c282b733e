package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const pendingMarker = "__pending__"

// ErrInFlight means another request with the same key has claimed it and
// has not stored a response yet.
var ErrInFlight = errors.New("idempotent request in flight")

// Idempotency remembers the response of a keyed request.
type Idempotency struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewIdempotency(rdb redis.Cmdable, ttl time.Duration) *Idempotency {
	if ttl <= 0 {
		ttl = TTLIdempotency
	}
	return &Idempotency{rdb: rdb, ttl: ttl}
}

func PlaceOrderKey(userID, key string) string {
	return fmt.Sprintf(KeyIdemOrderPlace, userID, key)
}

// Claim reserves key. It returns the stored response when a previous request
// already completed, ErrInFlight when one is still running, and (nil, nil)
// when the caller now owns the key.
func (i *Idempotency) Claim(ctx context.Context, key string) ([]byte, error) {
	ok, err := i.rdb.SetNX(ctx, key, pendingMarker, i.ttl).Result()
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, nil
	}
	b, err := i.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; let the caller retry
		return nil, ErrInFlight
	}
	if err != nil {
		return nil, err
	}
	if string(b) == pendingMarker {
		return nil, ErrInFlight
	}
	return b, nil
}

// Store records the response for a claimed key.
func (i *Idempotency) Store(ctx context.Context, key string, response []byte) error {
	return i.rdb.Set(ctx, key, response, i.ttl).Err()
}

// Release drops a claim after a failed request so it can be retried.
func (i *Idempotency) Release(ctx context.Context, key string) error {
	return i.rdb.Del(ctx, key).Err()
}
