// Package inventory owns the per-product stock counter.
package inventory

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-cart-reservation/internal/store"
	"github.com/google/uuid"
)

// Ledger applies stock deltas inside a caller's transaction. It never reads
// stock into memory and writes it back; the store applies the change as one
// conditional update, so concurrent callers cannot drive stock below zero.
type Ledger struct{}

// Reserve applies stock -= delta. A negative delta releases stock. It fails
// with store.ErrInsufficientStock, leaving stock untouched, when the result
// would be negative.
func (Ledger) Reserve(ctx context.Context, tx store.Tx, productID uuid.UUID, delta int) (int, error) {
	if delta == 0 {
		p, err := tx.GetProduct(ctx, productID)
		if err != nil {
			return 0, fmt.Errorf("reserve %s: %w", productID, err)
		}
		return p.Stock, nil
	}
	left, err := tx.AdjustStock(ctx, productID, delta)
	if err != nil {
		return 0, fmt.Errorf("reserve %d of %s: %w", delta, productID, err)
	}
	return left, nil
}

// Release gives qty units back to the product.
func (l Ledger) Release(ctx context.Context, tx store.Tx, productID uuid.UUID, qty int) (int, error) {
	if qty < 0 {
		return 0, fmt.Errorf("release %s: negative quantity %d", productID, qty)
	}
	return l.Reserve(ctx, tx, productID, -qty)
}
