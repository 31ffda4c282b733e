package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrDuplicate         = errors.New("duplicate key")
	// ErrLockTimeout covers lock wait timeouts, deadlock victims and
	// serialization failures. The operation can be retried.
	ErrLockTimeout = errors.New("lock wait timeout")
)

// Reader exposes plain reads. They take no row locks.
type Reader interface {
	GetUser(ctx context.Context, id uuid.UUID) (User, error)
	GetProduct(ctx context.Context, id uuid.UUID) (Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	FindCartByUser(ctx context.Context, userID uuid.UUID) (Cart, error)
	GetCart(ctx context.Context, cartID uuid.UUID) (Cart, error)
	// ListCartLines returns the cart's items with their products, ordered by
	// item creation time.
	ListCartLines(ctx context.Context, cartID uuid.UUID) ([]CartLine, error)
	GetOrder(ctx context.Context, id uuid.UUID) (Order, []OrderLine, error)
	StockReport(ctx context.Context, productID uuid.UUID) (StockReport, error)
}

// Tx is one database transaction. Lock* methods hold the row until the
// transaction ends.
type Tx interface {
	Reader

	// EnsureCart returns the user's cart, creating it when absent, and
	// holds its row lock.
	EnsureCart(ctx context.Context, userID uuid.UUID) (Cart, error)
	LockCart(ctx context.Context, userID uuid.UUID) (Cart, error)
	TouchCart(ctx context.Context, cartID uuid.UUID) error

	// LockProducts locks the given products in ascending id order. Unknown
	// ids are omitted from the result.
	LockProducts(ctx context.Context, ids []uuid.UUID) ([]Product, error)
	// AdjustStock applies stock -= delta when the result stays >= 0 and
	// returns the new stock. Otherwise it fails with ErrInsufficientStock
	// and changes nothing.
	AdjustStock(ctx context.Context, productID uuid.UUID, delta int) (int, error)

	LockCartItems(ctx context.Context, cartID uuid.UUID) ([]CartItem, error)
	LockCartItem(ctx context.Context, cartID, productID uuid.UUID) (CartItem, error)
	UpsertCartItem(ctx context.Context, cartID, productID uuid.UUID, qty int) (CartItem, error)
	DeleteCartItem(ctx context.Context, cartID, productID uuid.UUID) error
	DeleteCartItems(ctx context.Context, cartID uuid.UUID) error

	// InsertOrder fails with ErrDuplicate when the cart already backs an order.
	InsertOrder(ctx context.Context, o Order) error
	InsertOrderLines(ctx context.Context, lines []OrderLine) error
	SetOrderTotal(ctx context.Context, orderID uuid.UUID, total decimal.Decimal) error
	LockOrder(ctx context.Context, id uuid.UUID) (Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status OrderStatus, deliveredAt *time.Time) error
}

type Store interface {
	Reader

	// WithTx runs fn in a transaction. It commits when fn returns nil and
	// rolls back otherwise, returning fn's error.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// SaveOrderSummary upserts the summary keyed by cart id.
	SaveOrderSummary(ctx context.Context, s OrderSummary) (OrderSummary, error)
}
