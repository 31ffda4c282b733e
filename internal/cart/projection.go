package cart

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/go-cart-reservation/internal/config"
	"github.com/ariefcatur/go-cart-reservation/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type ItemView struct {
	ID              uuid.UUID       `json:"id"`
	ProductID       uuid.UUID       `json:"product_id"`
	ProductName     string          `json:"product_name"`
	ProductSKU      string          `json:"product_sku"`
	ProductPrice    decimal.Decimal `json:"product_price"`
	ProductDiscount decimal.Decimal `json:"product_discount"`
	Category        string          `json:"category"`
	Brand           string          `json:"brand"`
	Quantity        int             `json:"quantity"`
	StockLeft       int             `json:"stock_left"`
	IsActive        bool            `json:"is_active"`
	IsAvailable     bool            `json:"is_available"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	LineDiscount    decimal.Decimal `json:"line_discount"`
	FinalPrice      decimal.Decimal `json:"final_price"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type SummaryView struct {
	CartAmount       decimal.Decimal `json:"cart_amount"`
	CartItemDiscount decimal.Decimal `json:"cart_item_discount"`
	ShippingCharge   decimal.Decimal `json:"shipping_charge"`
	RoundOfVal       decimal.Decimal `json:"round_of_val"`
	CanCOD           string          `json:"can_cod"`
	TotalItems       int             `json:"total_items"`
	TotalQuantity    int             `json:"total_quantity"`
	Currency         string          `json:"currency"`
}

// View is the exported cart. ID and the timestamps are nil for a user who
// never had a cart.
type View struct {
	ID           *uuid.UUID  `json:"id"`
	UserID       uuid.UUID   `json:"user_id"`
	Items        []ItemView  `json:"items"`
	OrderSummary SummaryView `json:"order_summary"`
	CreatedAt    *time.Time  `json:"created_at"`
	UpdatedAt    *time.Time  `json:"updated_at"`
}

// Projector builds cart views. It takes no locks; a view is consistent as of
// its own reads only.
type Projector struct {
	Store   store.Store
	Pricing config.Pricing
}

// ExportForUser resolves the user's cart and exports it. A user without a
// cart gets an empty view and nothing is written.
func (p *Projector) ExportForUser(ctx context.Context, userID uuid.UUID) (View, error) {
	if _, err := CheckUser(ctx, p.Store, userID); err != nil {
		return View{}, Classify(err)
	}
	c, err := p.Store.FindCartByUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		_, sum := Price(nil, p.Pricing)
		return View{UserID: userID, Items: []ItemView{}, OrderSummary: sum}, nil
	}
	if err != nil {
		return View{}, Classify(err)
	}
	return p.Export(ctx, c)
}

// Export prices the cart's current lines and upserts its order summary.
// Running it twice without a mutation in between yields the same view.
func (p *Projector) Export(ctx context.Context, c store.Cart) (View, error) {
	lines, err := p.Store.ListCartLines(ctx, c.ID)
	if err != nil {
		return View{}, Classify(err)
	}
	items, sum := Price(lines, p.Pricing)

	if _, err := p.Store.SaveOrderSummary(ctx, store.OrderSummary{
		ID:               uuid.New(),
		CartID:           c.ID,
		CartAmount:       sum.CartAmount,
		CartItemDiscount: sum.CartItemDiscount,
		ShippingCharge:   sum.ShippingCharge,
		RoundOfVal:       sum.RoundOfVal,
		CanCOD:           sum.CanCOD,
		TotalItems:       sum.TotalItems,
		TotalQuantity:    sum.TotalQuantity,
		Currency:         sum.Currency,
	}); err != nil {
		return View{}, Classify(err)
	}

	id, created, updated := c.ID, c.CreatedAt, c.UpdatedAt
	return View{
		ID:           &id,
		UserID:       c.UserID,
		Items:        items,
		OrderSummary: sum,
		CreatedAt:    &created,
		UpdatedAt:    &updated,
	}, nil
}

// Price computes line and cart totals. The product's percentage discount is
// applied per line and rounded half up to cents.
func Price(lines []store.CartLine, pr config.Pricing) ([]ItemView, SummaryView) {
	items := make([]ItemView, 0, len(lines))
	amount := decimal.Zero
	discount := decimal.Zero
	qty := 0

	for _, l := range lines {
		p := l.Product
		total := p.Price.Mul(decimal.NewFromInt(int64(l.Item.Quantity))).Round(2)
		lineDiscount := total.Mul(p.Discount).Div(hundred).Round(2)
		final := total.Sub(lineDiscount)

		items = append(items, ItemView{
			ID:              l.Item.ID,
			ProductID:       p.ID,
			ProductName:     p.Name,
			ProductSKU:      p.SKU,
			ProductPrice:    p.Price,
			ProductDiscount: p.Discount,
			Category:        p.Category,
			Brand:           p.Brand,
			Quantity:        l.Item.Quantity,
			StockLeft:       p.Stock,
			IsActive:        p.IsActive,
			IsAvailable:     p.IsActive && p.Stock >= 0,
			TotalPrice:      total,
			LineDiscount:    lineDiscount,
			FinalPrice:      final,
			CreatedAt:       l.Item.CreatedAt,
			UpdatedAt:       l.Item.UpdatedAt,
		})
		amount = amount.Add(final)
		discount = discount.Add(lineDiscount)
		qty += l.Item.Quantity
	}

	shipping := pr.ShippingCharge
	if len(lines) == 0 || amount.GreaterThanOrEqual(pr.FreeShippingOver) {
		shipping = decimal.Zero
	}
	payable := amount.Add(shipping)
	rounded := payable.Round(0)
	canCOD := "NO"
	if rounded.LessThanOrEqual(pr.CODLimit) {
		canCOD = "YES"
	}

	return items, SummaryView{
		CartAmount:       amount,
		CartItemDiscount: discount,
		ShippingCharge:   shipping,
		RoundOfVal:       rounded.Sub(payable),
		CanCOD:           canCOD,
		TotalItems:       len(lines),
		TotalQuantity:    qty,
		Currency:         pr.Currency,
	}
}
