package orders

import (
	"strings"

	"github.com/ariefcatur/go-cart-reservation/internal/store"
)

var validNext = map[store.OrderStatus]map[store.OrderStatus]bool{
	store.OrderPending:    {store.OrderProcessing: true, store.OrderCancelled: true, store.OrderReturned: true},
	store.OrderProcessing: {store.OrderShipped: true, store.OrderCancelled: true, store.OrderReturned: true},
	store.OrderShipped:    {store.OrderDelivered: true, store.OrderCancelled: true, store.OrderReturned: true},
	store.OrderDelivered:  {},
	store.OrderCancelled:  {},
	store.OrderReturned:   {},
}

func CanTransition(from, to store.OrderStatus) bool {
	return validNext[from][to]
}

// ParseStatus accepts any letter case.
func ParseStatus(s string) (store.OrderStatus, bool) {
	st := store.OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := validNext[st]
	return st, ok
}
