package postgres

import (
	"context"

	"github.com/ariefcatur/go-cart-reservation/internal/store"
	"github.com/google/uuid"
)

const productColumns = `p.id, p.sku, p.name, p.brand, COALESCE(c.name, ''), p.price, p.discount,
	p.stock, p.is_active, p.created_at, p.updated_at`

const productFrom = `FROM products p LEFT JOIN categories c ON c.id = p.category_id`

const cartItemColumns = `ci.id, ci.cart_id, ci.product_id, ci.quantity, ci.created_at, ci.updated_at`

const orderColumns = `id, order_number, customer_id, cart_id, order_status, payment_status, total_amount,
	shipping_address, billing_address, order_date, delivery_date, updated_at`

// rowScanner is the common part of pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// queries holds the lock-free reads shared by the pool and transactions.
type queries struct{ q querier }

func scanProduct(r rowScanner, dst *store.Product, extra ...any) error {
	dest := []any{&dst.ID, &dst.SKU, &dst.Name, &dst.Brand, &dst.Category, &dst.Price, &dst.Discount,
		&dst.Stock, &dst.IsActive, &dst.CreatedAt, &dst.UpdatedAt}
	return r.Scan(append(extra, dest...)...)
}

func cartItemDest(ci *store.CartItem) []any {
	return []any{&ci.ID, &ci.CartID, &ci.ProductID, &ci.Quantity, &ci.CreatedAt, &ci.UpdatedAt}
}

func scanOrder(r rowScanner, o *store.Order) error {
	return r.Scan(&o.ID, &o.OrderNumber, &o.CustomerID, &o.CartID, &o.Status, &o.PaymentStatus, &o.TotalAmount,
		&o.ShippingAddress, &o.BillingAddress, &o.OrderDate, &o.DeliveryDate, &o.UpdatedAt)
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

func (r queries) GetUser(ctx context.Context, id uuid.UUID) (store.User, error) {
	var u store.User
	err := r.q.QueryRow(ctx, `SELECT id, username, is_active, is_deleted FROM users WHERE id=$1`, id).
		Scan(&u.ID, &u.Username, &u.IsActive, &u.IsDeleted)
	if err != nil {
		return store.User{}, classify(err)
	}
	return u, nil
}

func (r queries) GetProduct(ctx context.Context, id uuid.UUID) (store.Product, error) {
	var p store.Product
	row := r.q.QueryRow(ctx, `SELECT `+productColumns+` `+productFrom+` WHERE p.id=$1`, id)
	if err := scanProduct(row, &p); err != nil {
		return store.Product{}, classify(err)
	}
	return p, nil
}

func (r queries) ListProducts(ctx context.Context) ([]store.Product, error) {
	rows, err := r.q.Query(ctx, `SELECT `+productColumns+` `+productFrom+` ORDER BY p.sku`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []store.Product
	for rows.Next() {
		var p store.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, classify(err)
		}
		out = append(out, p)
	}
	return out, classify(rows.Err())
}

func (r queries) FindCartByUser(ctx context.Context, userID uuid.UUID) (store.Cart, error) {
	var c store.Cart
	err := r.q.QueryRow(ctx, `SELECT id, user_id, created_at, updated_at FROM carts WHERE user_id=$1`, userID).
		Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return store.Cart{}, classify(err)
	}
	return c, nil
}

func (r queries) GetCart(ctx context.Context, cartID uuid.UUID) (store.Cart, error) {
	var c store.Cart
	err := r.q.QueryRow(ctx, `SELECT id, user_id, created_at, updated_at FROM carts WHERE id=$1`, cartID).
		Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return store.Cart{}, classify(err)
	}
	return c, nil
}

func (r queries) ListCartLines(ctx context.Context, cartID uuid.UUID) ([]store.CartLine, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+cartItemColumns+`, `+productColumns+`
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at, ci.id`, cartID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []store.CartLine
	for rows.Next() {
		var l store.CartLine
		if err := scanProduct(rows, &l.Product, cartItemDest(&l.Item)...); err != nil {
			return nil, classify(err)
		}
		out = append(out, l)
	}
	return out, classify(rows.Err())
}

func (r queries) GetOrder(ctx context.Context, id uuid.UUID) (store.Order, []store.OrderLine, error) {
	var o store.Order
	if err := scanOrder(r.q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id), &o); err != nil {
		return store.Order{}, nil, classify(err)
	}

	rows, err := r.q.Query(ctx, `
		SELECT id, order_id, product_id, product_name, quantity, price
		FROM order_lines WHERE order_id=$1 ORDER BY product_name, product_id`, id)
	if err != nil {
		return store.Order{}, nil, classify(err)
	}
	defer rows.Close()

	var lines []store.OrderLine
	for rows.Next() {
		var l store.OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.ProductName, &l.Quantity, &l.Price); err != nil {
			return store.Order{}, nil, classify(err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return store.Order{}, nil, classify(err)
	}
	return o, lines, nil
}

func (r queries) StockReport(ctx context.Context, productID uuid.UUID) (store.StockReport, error) {
	var rep store.StockReport
	p, err := r.GetProduct(ctx, productID)
	if err != nil {
		return rep, err
	}
	rep.Product = p

	rows, err := r.q.Query(ctx, `
		SELECT c.user_id, c.id, ci.quantity
		FROM cart_items ci JOIN carts c ON c.id = ci.cart_id
		WHERE ci.product_id = $1
		ORDER BY ci.quantity DESC, c.id`, productID)
	if err != nil {
		return rep, classify(err)
	}
	defer rows.Close()

	for rows.Next() {
		var res store.StockReservation
		if err := rows.Scan(&res.UserID, &res.CartID, &res.Quantity); err != nil {
			return rep, classify(err)
		}
		rep.Reserved += res.Quantity
		rep.Reservations = append(rep.Reservations, res)
	}
	return rep, classify(rows.Err())
}
