package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/ariefcatur/go-cart-reservation/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	queries
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

var _ store.Store = (*Store)(nil)

// NewStore wraps pool. lockTimeout bounds every row-lock wait inside
// WithTx; zero leaves the server default.
func NewStore(pool *pgxpool.Pool, lockTimeout time.Duration) *Store {
	return &Store{queries: queries{q: pool}, pool: pool, lockTimeout: lockTimeout}
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return classify(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if s.lockTimeout > 0 {
		// SET does not take bind parameters.
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return classify(err)
		}
	}

	if err := fn(ctx, &txStore{queries: queries{q: tx}}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return classify(err)
	}
	return nil
}

func (s *Store) SaveOrderSummary(ctx context.Context, sum store.OrderSummary) (store.OrderSummary, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO order_summaries(id, cart_id, cart_amount, cart_item_discount, shipping_charge,
		                            round_of_val, can_cod, total_items, total_quantity, currency)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (cart_id) DO UPDATE SET
			cart_amount        = EXCLUDED.cart_amount,
			cart_item_discount = EXCLUDED.cart_item_discount,
			shipping_charge    = EXCLUDED.shipping_charge,
			round_of_val       = EXCLUDED.round_of_val,
			can_cod            = EXCLUDED.can_cod,
			total_items        = EXCLUDED.total_items,
			total_quantity     = EXCLUDED.total_quantity,
			currency           = EXCLUDED.currency,
			updated_at         = now()
		RETURNING id, cart_id, cart_amount, cart_item_discount, shipping_charge, round_of_val,
		          can_cod, total_items, total_quantity, currency, created_at, updated_at`,
		sum.ID, sum.CartID, sum.CartAmount, sum.CartItemDiscount, sum.ShippingCharge,
		sum.RoundOfVal, sum.CanCOD, sum.TotalItems, sum.TotalQuantity, sum.Currency,
	)
	var out store.OrderSummary
	err := row.Scan(&out.ID, &out.CartID, &out.CartAmount, &out.CartItemDiscount, &out.ShippingCharge,
		&out.RoundOfVal, &out.CanCOD, &out.TotalItems, &out.TotalQuantity, &out.Currency,
		&out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return store.OrderSummary{}, classify(err)
	}
	return out, nil
}

type txStore struct {
	queries
}

var _ store.Tx = (*txStore)(nil)
