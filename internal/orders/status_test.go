package orders

import (
	"testing"

	"github.com/ariefcatur/go-cart-reservation/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to store.OrderStatus
		ok       bool
	}{
		{store.OrderPending, store.OrderProcessing, true},
		{store.OrderProcessing, store.OrderShipped, true},
		{store.OrderShipped, store.OrderDelivered, true},
		{store.OrderPending, store.OrderDelivered, false},
		{store.OrderProcessing, store.OrderDelivered, false},
		{store.OrderPending, store.OrderCancelled, true},
		{store.OrderShipped, store.OrderReturned, true},
		{store.OrderDelivered, store.OrderCancelled, false},
		{store.OrderDelivered, store.OrderReturned, false},
		{store.OrderCancelled, store.OrderPending, false},
		{store.OrderShipped, store.OrderPending, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.ok, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestParseStatus(t *testing.T) {
	st, ok := ParseStatus(" shipped ")
	assert.True(t, ok)
	assert.Equal(t, store.OrderShipped, st)

	_, ok = ParseStatus("LOST")
	assert.False(t, ok)
}
