// Package orders turns carts into immutable orders and moves orders through
// their lifecycle.
package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-cart-reservation/internal/apperr"
	"github.com/ariefcatur/go-cart-reservation/internal/cart"
	"github.com/ariefcatur/go-cart-reservation/internal/events"
	"github.com/ariefcatur/go-cart-reservation/internal/metrics"
	"github.com/ariefcatur/go-cart-reservation/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Placed is an order with its lines.
type Placed struct {
	Order store.Order
	Lines []store.OrderLine
}

type Materializer struct {
	Store   store.Store
	Events  events.Emitter
	Metrics *metrics.Metrics
	Log     *zap.Logger
	Now     func() time.Time
}

func NewMaterializer(s store.Store, em events.Emitter, m *metrics.Metrics, log *zap.Logger) *Materializer {
	if em == nil {
		em = events.Discard{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Materializer{Store: s, Events: em, Metrics: m, Log: log, Now: func() time.Time { return time.Now().UTC() }}
}

// NewOrderNumber formats ORD-YYYYMMDD-XXXXXXXX.
func NewOrderNumber(now time.Time) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), strings.ToUpper(hex[:8]))
}

// PlaceForUser materializes the user's current cart.
func (m *Materializer) PlaceForUser(ctx context.Context, userID uuid.UUID, shipping, billing string) (Placed, error) {
	if _, err := cart.CheckUser(ctx, m.Store, userID); err != nil {
		err = cart.Classify(err)
		m.Metrics.Observe("place_order", outcomeOf(err))
		return Placed{}, err
	}
	c, err := m.Store.FindCartByUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		m.Metrics.Observe("place_order", metrics.OutcomeRejected)
		return Placed{}, apperr.Validation("Cannot place an order from an empty cart.")
	}
	if err != nil {
		return Placed{}, cart.Classify(err)
	}
	return m.CreateFromCart(ctx, c.ID, shipping, billing)
}

// CreateFromCart copies the cart's lines, with current product names and
// prices, into a new PENDING order. Stock is left alone; it was taken when
// the items entered the cart. The cart is kept and can back one order only.
func (m *Materializer) CreateFromCart(ctx context.Context, cartID uuid.UUID, shipping, billing string) (p Placed, err error) {
	defer func() { m.Metrics.Observe("place_order", outcomeOf(err)) }()

	// Addresses are optional; billing falls back to shipping.
	shipping = strings.TrimSpace(shipping)
	billing = strings.TrimSpace(billing)
	if billing == "" {
		billing = shipping
	}

	err = m.Store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		c, err := tx.GetCart(ctx, cartID)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("Cart not found.")
		}
		if err != nil {
			return err
		}
		// Holding the cart row keeps its items still while they are copied.
		if _, err := tx.LockCart(ctx, c.UserID); err != nil {
			return err
		}
		lines, err := tx.ListCartLines(ctx, c.ID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return apperr.Validation("Cannot place an order from an empty cart.")
		}

		now := m.Now()
		o := store.Order{
			ID:              uuid.New(),
			OrderNumber:     NewOrderNumber(now),
			CustomerID:      c.UserID,
			CartID:          uuid.NullUUID{UUID: c.ID, Valid: true},
			Status:          store.OrderPending,
			PaymentStatus:   store.PaymentUnpaid,
			TotalAmount:     decimal.Zero,
			ShippingAddress: shipping,
			BillingAddress:  billing,
			OrderDate:       now,
		}
		if err := tx.InsertOrder(ctx, o); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return apperr.Conflict("Cart already has an order.", err)
			}
			return err
		}

		out := make([]store.OrderLine, 0, len(lines))
		total := decimal.Zero
		for _, l := range lines {
			ol := store.OrderLine{
				ID:          uuid.New(),
				OrderID:     o.ID,
				ProductID:   l.Product.ID,
				ProductName: l.Product.Name,
				Quantity:    l.Item.Quantity,
				Price:       l.Product.Price,
			}
			total = total.Add(ol.Price.Mul(decimal.NewFromInt(int64(ol.Quantity))))
			out = append(out, ol)
		}
		if err := tx.InsertOrderLines(ctx, out); err != nil {
			return err
		}
		o.TotalAmount = total.Round(2)
		if err := tx.SetOrderTotal(ctx, o.ID, o.TotalAmount); err != nil {
			return err
		}
		p = Placed{Order: o, Lines: out}
		return nil
	})
	if err != nil {
		return Placed{}, cart.Classify(err)
	}

	m.Log.Info("order placed",
		zap.String("order_id", p.Order.ID.String()),
		zap.String("order_number", p.Order.OrderNumber),
		zap.String("cart_id", cartID.String()),
		zap.String("total", p.Order.TotalAmount.StringFixed(2)))
	items := make([]events.ItemQty, 0, len(p.Lines))
	for _, l := range p.Lines {
		items = append(items, events.ItemQty{ProductID: l.ProductID.String(), Qty: l.Quantity})
	}
	m.Events.Emit(ctx, events.Event{
		Topic: events.TopicOrderPlaced,
		Type:  events.EventOrderPlaced,
		Key:   p.Order.ID.String(),
		Payload: events.OrderPlacedPayload{
			OrderID:     p.Order.ID.String(),
			OrderNumber: p.Order.OrderNumber,
			CartID:      cartID.String(),
			UserID:      p.Order.CustomerID.String(),
			TotalAmount: p.Order.TotalAmount.StringFixed(2),
			Items:       items,
		},
	})
	return p, nil
}

// Actor is the caller of a status change as identified by the gateway.
type Actor struct {
	UserID   uuid.UUID
	Operator bool
}

// Customers may only give up their own orders; fulfilment moves belong to
// operators.
var customerMoves = map[store.OrderStatus]bool{
	store.OrderCancelled: true,
	store.OrderReturned:  true,
}

func authorize(a Actor, o store.Order, to store.OrderStatus) error {
	if a.Operator {
		return nil
	}
	if o.CustomerID != a.UserID {
		// same answer as a missing order; ids of other customers stay private
		return apperr.NotFoundf("Order with ID %s not found.", o.ID)
	}
	if !customerMoves[to] {
		return apperr.Forbiddenf("Only operators can move an order to %s.", to)
	}
	return nil
}

// Transition moves an order to status to on behalf of an operator.
func (m *Materializer) Transition(ctx context.Context, orderID uuid.UUID, to store.OrderStatus) (store.Order, error) {
	return m.TransitionAs(ctx, Actor{Operator: true}, orderID, to)
}

// TransitionAs moves an order to status to when actor may do so. Only the
// edges of the lifecycle are allowed; reaching DELIVERED stamps the delivery
// date.
func (m *Materializer) TransitionAs(ctx context.Context, actor Actor, orderID uuid.UUID, to store.OrderStatus) (store.Order, error) {
	var from store.OrderStatus
	var o store.Order
	err := m.Store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		o, err = tx.LockOrder(ctx, orderID)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFoundf("Order with ID %s not found.", orderID)
		}
		if err != nil {
			return err
		}
		if err := authorize(actor, o, to); err != nil {
			return err
		}
		from = o.Status
		if !CanTransition(from, to) {
			return apperr.Validationf("Order cannot move from %s to %s.", from, to)
		}
		var delivered *time.Time
		if to == store.OrderDelivered {
			now := m.Now()
			delivered = &now
			o.DeliveryDate = &now
		}
		o.Status = to
		return tx.UpdateOrderStatus(ctx, orderID, to, delivered)
	})
	err = cart.Classify(err)
	m.Metrics.Observe("order_status", outcomeOf(err))
	if err != nil {
		return store.Order{}, err
	}

	m.Log.Info("order status changed",
		zap.String("order_id", orderID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	m.Events.Emit(ctx, events.Event{
		Topic:   events.TopicOrderStatusChanged,
		Type:    events.EventOrderStatusChanged,
		Key:     orderID.String(),
		Payload: events.OrderStatusChangedPayload{OrderID: orderID.String(), From: string(from), To: string(to)},
	})
	return o, nil
}

// MarkDelivered is only legal from SHIPPED.
func (m *Materializer) MarkDelivered(ctx context.Context, orderID uuid.UUID) (store.Order, error) {
	return m.Transition(ctx, orderID, store.OrderDelivered)
}

func (m *Materializer) Get(ctx context.Context, orderID uuid.UUID) (Placed, error) {
	o, lines, err := m.Store.GetOrder(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return Placed{}, apperr.NotFoundf("Order with ID %s not found.", orderID)
	}
	if err != nil {
		return Placed{}, cart.Classify(err)
	}
	return Placed{Order: o, Lines: lines}, nil
}

func outcomeOf(err error) string {
	if err == nil {
		return metrics.OutcomeApplied
	}
	switch apperr.KindOf(err) {
	case apperr.KindValidation, apperr.KindForbidden:
		return metrics.OutcomeRejected
	case apperr.KindNotFound:
		return metrics.OutcomeNotFound
	case apperr.KindConflict:
		return metrics.OutcomeConflict
	default:
		return metrics.OutcomeError
	}
}
