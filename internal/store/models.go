package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type User struct {
	ID        uuid.UUID
	Username  string
	IsActive  bool
	IsDeleted bool
}

type Product struct {
	ID       uuid.UUID
	SKU      string
	Name     string
	Brand    string
	Category string
	Price    decimal.Decimal
	// Discount is a percentage, e.g. 10 for 10%.
	Discount  decimal.Decimal
	Stock     int
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Cart struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

type CartItem struct {
	ID        uuid.UUID
	CartID    uuid.UUID
	ProductID uuid.UUID
	Quantity  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CartLine is a cart item joined with its product.
type CartLine struct {
	Item    CartItem
	Product Product
}

type OrderSummary struct {
	ID               uuid.UUID
	CartID           uuid.UUID
	CartAmount       decimal.Decimal
	CartItemDiscount decimal.Decimal
	ShippingCharge   decimal.Decimal
	RoundOfVal       decimal.Decimal
	CanCOD           string
	TotalItems       int
	TotalQuantity    int
	Currency         string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type OrderStatus string

const (
	OrderPending    OrderStatus = "PENDING"
	OrderProcessing OrderStatus = "PROCESSING"
	OrderShipped    OrderStatus = "SHIPPED"
	OrderDelivered  OrderStatus = "DELIVERED"
	OrderCancelled  OrderStatus = "CANCELLED"
	OrderReturned   OrderStatus = "RETURNED"
)

type PaymentStatus string

const (
	PaymentUnpaid        PaymentStatus = "UNPAID"
	PaymentPaid          PaymentStatus = "PAID"
	PaymentRefunded      PaymentStatus = "REFUNDED"
	PaymentPartiallyPaid PaymentStatus = "PARTIALLY_PAID"
	PaymentFailed        PaymentStatus = "FAILED"
)

type Order struct {
	ID              uuid.UUID
	OrderNumber     string
	CustomerID      uuid.UUID
	CartID          uuid.NullUUID
	Status          OrderStatus
	PaymentStatus   PaymentStatus
	TotalAmount     decimal.Decimal
	ShippingAddress string
	BillingAddress  string
	OrderDate       time.Time
	DeliveryDate    *time.Time
	UpdatedAt       time.Time
}

// OrderLine copies product data at order time; it never follows later
// product changes.
type OrderLine struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	ProductID   uuid.UUID
	ProductName string
	Quantity    int
	Price       decimal.Decimal
}

// StockReport compares a product's available stock with what carts hold.
type StockReport struct {
	Product      Product
	Reserved     int
	Reservations []StockReservation
}

// TotalStock is the stock that existed before any cart reservation.
func (r StockReport) TotalStock() int { return r.Product.Stock + r.Reserved }

type StockReservation struct {
	UserID   uuid.UUID
	CartID   uuid.UUID
	Quantity int
}
