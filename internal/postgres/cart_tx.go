package postgres

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-cart-reservation/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// EnsureCart relies on ON CONFLICT DO UPDATE, which takes the row lock on
// the existing cart, so the first mutation of a user never races a second
// insert.
func (t *txStore) EnsureCart(ctx context.Context, userID uuid.UUID) (store.Cart, error) {
	var c store.Cart
	err := t.q.QueryRow(ctx, `
		INSERT INTO carts(id, user_id) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = carts.updated_at
		RETURNING id, user_id, created_at, updated_at`, uuid.New(), userID).
		Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return store.Cart{}, classify(err)
	}
	return c, nil
}

func (t *txStore) LockCart(ctx context.Context, userID uuid.UUID) (store.Cart, error) {
	var c store.Cart
	err := t.q.QueryRow(ctx, `SELECT id, user_id, created_at, updated_at FROM carts WHERE user_id=$1 FOR UPDATE`, userID).
		Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return store.Cart{}, classify(err)
	}
	return c, nil
}

func (t *txStore) TouchCart(ctx context.Context, cartID uuid.UUID) error {
	_, err := t.q.Exec(ctx, `UPDATE carts SET updated_at = now() WHERE id=$1`, cartID)
	return classify(err)
}

// LockProducts: LockRows sits above the sort, so rows are locked in id order.
func (t *txStore) LockProducts(ctx context.Context, ids []uuid.UUID) ([]store.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := t.q.Query(ctx, `
		SELECT `+productColumns+` `+productFrom+`
		WHERE p.id = ANY($1::uuid[])
		ORDER BY p.id
		FOR UPDATE OF p`, idStrings(ids))
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

func (t *txStore) AdjustStock(ctx context.Context, productID uuid.UUID, delta int) (int, error) {
	var stock int
	err := t.q.QueryRow(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock - $2 >= 0
		RETURNING stock`, productID, delta).Scan(&stock)
	if err == nil {
		return stock, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, classify(err)
	}

	var exists bool
	if err := t.q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM products WHERE id=$1)`, productID).Scan(&exists); err != nil {
		return 0, classify(err)
	}
	if !exists {
		return 0, store.ErrNotFound
	}
	return 0, store.ErrInsufficientStock
}

func (t *txStore) LockCartItems(ctx context.Context, cartID uuid.UUID) ([]store.CartItem, error) {
	rows, err := t.q.Query(ctx, `
		SELECT `+cartItemColumns+` FROM cart_items ci
		WHERE ci.cart_id = $1
		ORDER BY ci.product_id
		FOR UPDATE`, cartID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []store.CartItem
	for rows.Next() {
		var ci store.CartItem
		if err := rows.Scan(cartItemDest(&ci)...); err != nil {
			return nil, classify(err)
		}
		out = append(out, ci)
	}
	return out, classify(rows.Err())
}

func (t *txStore) LockCartItem(ctx context.Context, cartID, productID uuid.UUID) (store.CartItem, error) {
	var ci store.CartItem
	err := t.q.QueryRow(ctx, `
		SELECT `+cartItemColumns+` FROM cart_items ci
		WHERE ci.cart_id = $1 AND ci.product_id = $2
		FOR UPDATE`, cartID, productID).Scan(cartItemDest(&ci)...)
	if err != nil {
		return store.CartItem{}, classify(err)
	}
	return ci, nil
}

// UpsertCartItem is an atomic upsert on (cart_id, product_id); a repeated
// add replaces the quantity instead of inserting a second row.
func (t *txStore) UpsertCartItem(ctx context.Context, cartID, productID uuid.UUID, qty int) (store.CartItem, error) {
	var ci store.CartItem
	err := t.q.QueryRow(ctx, `
		INSERT INTO cart_items AS ci (id, cart_id, product_id, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cart_id, product_id) DO UPDATE
			SET quantity = EXCLUDED.quantity, updated_at = now()
		RETURNING `+cartItemColumns, uuid.New(), cartID, productID, qty).Scan(cartItemDest(&ci)...)
	if err != nil {
		return store.CartItem{}, classify(err)
	}
	return ci, nil
}

func (t *txStore) DeleteCartItem(ctx context.Context, cartID, productID uuid.UUID) error {
	ct, err := t.q.Exec(ctx, `DELETE FROM cart_items WHERE cart_id=$1 AND product_id=$2`, cartID, productID)
	if err != nil {
		return classify(err)
	}
	if ct.RowsAffected() != 1 {
		return store.ErrNotFound
	}
	return nil
}

func (t *txStore) DeleteCartItems(ctx context.Context, cartID uuid.UUID) error {
	_, err := t.q.Exec(ctx, `DELETE FROM cart_items WHERE cart_id=$1`, cartID)
	return classify(err)
}
