package postgres

import (
	"context"
	"time"

	"github.com/ariefcatur/go-cart-reservation/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func (t *txStore) InsertOrder(ctx context.Context, o store.Order) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO orders(id, order_number, customer_id, cart_id, order_status, payment_status,
		                   total_amount, shipping_address, billing_address, order_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		o.ID, o.OrderNumber, o.CustomerID, o.CartID, o.Status, o.PaymentStatus,
		o.TotalAmount, o.ShippingAddress, o.BillingAddress, o.OrderDate,
	)
	return classify(err)
}

func (t *txStore) InsertOrderLines(ctx context.Context, lines []store.OrderLine) error {
	for _, l := range lines {
		if _, err := t.q.Exec(ctx, `
			INSERT INTO order_lines(id, order_id, product_id, product_name, quantity, price)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			l.ID, l.OrderID, l.ProductID, l.ProductName, l.Quantity, l.Price,
		); err != nil {
			return classify(err)
		}
	}
	return nil
}

func (t *txStore) SetOrderTotal(ctx context.Context, orderID uuid.UUID, total decimal.Decimal) error {
	ct, err := t.q.Exec(ctx, `UPDATE orders SET total_amount=$2, updated_at=now() WHERE id=$1`, orderID, total)
	if err != nil {
		return classify(err)
	}
	if ct.RowsAffected() != 1 {
		return store.ErrNotFound
	}
	return nil
}

func (t *txStore) LockOrder(ctx context.Context, id uuid.UUID) (store.Order, error) {
	var o store.Order
	if err := scanOrder(t.q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, id), &o); err != nil {
		return store.Order{}, classify(err)
	}
	return o, nil
}

func (t *txStore) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status store.OrderStatus, deliveredAt *time.Time) error {
	ct, err := t.q.Exec(ctx, `
		UPDATE orders
		SET order_status = $2, delivery_date = COALESCE($3, delivery_date), updated_at = now()
		WHERE id = $1`, id, status, deliveredAt)
	if err != nil {
		return classify(err)
	}
	if ct.RowsAffected() != 1 {
		return store.ErrNotFound
	}
	return nil
}
