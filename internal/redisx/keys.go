package redisx

import "time"

const (
	// Cached cart view: cart_view:{user_id} -> cart view JSON
	KeyCartView = "cart_view:%s"

	// Place-order idempotency: idem:order:place:{user_id}:{key} -> response JSON
	KeyIdemOrderPlace = "idem:order:place:%s:%s"

	// Event dedup for consumers: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLCartView    = 30 * time.Second
	TTLDedup       = 48 * time.Hour
)
