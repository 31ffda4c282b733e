// Package cart keeps product stock and cart contents consistent.
//
// Every mutation runs in one store transaction and takes row locks in the
// same order: the cart row, then the cart's items, then products by
// ascending id. Overlapping operations therefore queue behind each other
// instead of deadlocking.
package cart

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ariefcatur/go-cart-reservation/internal/apperr"
	"github.com/ariefcatur/go-cart-reservation/internal/events"
	"github.com/ariefcatur/go-cart-reservation/internal/inventory"
	"github.com/ariefcatur/go-cart-reservation/internal/metrics"
	"github.com/ariefcatur/go-cart-reservation/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ItemRequest is one requested (product, quantity) pair. Quantity is the
// quantity the cart should hold afterwards, not an increment.
type ItemRequest struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// Result describes a committed mutation.
type Result struct {
	Cart store.Cart
	// Changed is false when the call was accepted but left everything as it
	// was.
	Changed bool
}

type Engine struct {
	Store   store.Store
	Ledger  inventory.Ledger
	Events  events.Emitter
	Metrics *metrics.Metrics
	Log     *zap.Logger
}

func NewEngine(s store.Store, em events.Emitter, m *metrics.Metrics, log *zap.Logger) *Engine {
	if em == nil {
		em = events.Discard{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{Store: s, Events: em, Metrics: m, Log: log}
}

type reservation struct {
	productID uuid.UUID
	qty       int
	delta     int
}

// AddOrUpdateItems sets the quantity of every requested product. The request
// must name every product already in the cart; otherwise nothing changes and
// the cart is returned as is. The batch is validated as a whole under lock
// and either fully applied or rejected.
func (e *Engine) AddOrUpdateItems(ctx context.Context, userID uuid.UUID, items []ItemRequest) (res Result, err error) {
	defer func() { e.observe("add_items", res, err) }()

	if len(items) == 0 {
		return Result{}, apperr.Validation("Product list is empty.")
	}
	seen := make(map[uuid.UUID]bool, len(items))
	for _, it := range items {
		if seen[it.ProductID] {
			return Result{}, apperr.Validationf("Product with ID %s appears more than once in the request.", it.ProductID)
		}
		seen[it.ProductID] = true
	}

	var applied []reservation
	err = e.Store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := CheckUser(ctx, tx, userID); err != nil {
			return err
		}
		c, err := tx.EnsureCart(ctx, userID)
		if err != nil {
			return err
		}
		res.Cart = c

		current, err := tx.LockCartItems(ctx, c.ID)
		if err != nil {
			return err
		}
		existing := make(map[uuid.UUID]int, len(current))
		for _, ci := range current {
			existing[ci.ProductID] = ci.Quantity
			if !seen[ci.ProductID] {
				// Not a superset of the cart: accepted, nothing applied.
				return nil
			}
		}

		applied, err = e.reserve(ctx, tx, c, items, existing)
		if err != nil {
			return err
		}
		res.Changed = len(applied) > 0
		if res.Changed {
			return tx.TouchCart(ctx, c.ID)
		}
		return nil
	})
	if err != nil {
		return Result{}, Classify(err)
	}
	if res.Changed {
		e.emitReserved(ctx, userID, res.Cart, applied)
	}
	return res, nil
}

// AddItem adds one product that is not yet in the cart. When the product is
// already present the cart is returned unchanged.
func (e *Engine) AddItem(ctx context.Context, userID uuid.UUID, item ItemRequest) (res Result, err error) {
	defer func() { e.observe("add_item", res, err) }()

	var applied []reservation
	err = e.Store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := CheckUser(ctx, tx, userID); err != nil {
			return err
		}
		c, err := tx.EnsureCart(ctx, userID)
		if err != nil {
			return err
		}
		res.Cart = c

		if _, err := tx.LockCartItem(ctx, c.ID, item.ProductID); err == nil {
			return nil
		} else if !isNotFound(err) {
			return err
		}

		applied, err = e.reserve(ctx, tx, c, []ItemRequest{item}, nil)
		if err != nil {
			return err
		}
		res.Changed = len(applied) > 0
		if res.Changed {
			return tx.TouchCart(ctx, c.ID)
		}
		return nil
	})
	if err != nil {
		return Result{}, Classify(err)
	}
	if res.Changed {
		e.emitReserved(ctx, userID, res.Cart, applied)
	}
	return res, nil
}

// reserve validates items against locked product rows and applies them.
// existing maps product id to the quantity this cart already holds.
func (e *Engine) reserve(ctx context.Context, tx store.Tx, c store.Cart, items []ItemRequest, existing map[uuid.UUID]int) ([]reservation, error) {
	ids := make([]uuid.UUID, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	locked, err := tx.LockProducts(ctx, ids)
	if err != nil {
		return nil, err
	}
	products := make(map[uuid.UUID]store.Product, len(locked))
	for _, p := range locked {
		products[p.ID] = p
	}

	if msgs := validate(items, products, existing); len(msgs) > 0 {
		return nil, apperr.Validation(msgs...)
	}

	plan := make([]reservation, 0, len(items))
	for _, it := range items {
		cur, held := existing[it.ProductID]
		if held && cur == it.Quantity {
			continue
		}
		plan = append(plan, reservation{productID: it.ProductID, qty: it.Quantity, delta: it.Quantity - cur})
	}
	// Same order as the product locks.
	sort.Slice(plan, func(i, j int) bool { return plan[i].productID.String() < plan[j].productID.String() })

	for _, r := range plan {
		if _, err := e.Ledger.Reserve(ctx, tx, r.productID, r.delta); err != nil {
			return nil, err
		}
		if _, err := tx.UpsertCartItem(ctx, c.ID, r.productID, r.qty); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

// validate checks every item and returns one message per failing item, in
// request order. Stock already held by this cart counts as available.
func validate(items []ItemRequest, products map[uuid.UUID]store.Product, existing map[uuid.UUID]int) []string {
	var msgs []string
	for _, it := range items {
		p, ok := products[it.ProductID]
		if !ok {
			msgs = append(msgs, fmt.Sprintf("Product with ID %s not found in database.", it.ProductID))
			continue
		}
		available := p.Stock + existing[it.ProductID]
		switch {
		case !p.IsActive:
			msgs = append(msgs, fmt.Sprintf("Product '%s' is inactive and cannot be added to cart.", p.Name))
		case available < it.Quantity:
			msgs = append(msgs, fmt.Sprintf("Product '%s' has insufficient stock: %d available (including current cart), but %d requested.",
				p.Name, available, it.Quantity))
		case it.Quantity <= 0:
			msgs = append(msgs, fmt.Sprintf("Product '%s': Quantity must be greater than 0.", p.Name))
		}
	}
	return msgs
}

// RemoveItem deletes one product from the cart and gives its stock back.
func (e *Engine) RemoveItem(ctx context.Context, userID, productID uuid.UUID) (res Result, err error) {
	defer func() { e.observe("remove_item", res, err) }()

	var released int
	err = e.Store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := CheckUser(ctx, tx, userID); err != nil {
			return err
		}
		c, err := tx.LockCart(ctx, userID)
		if isNotFound(err) {
			return apperr.NotFound("Cart not found.")
		}
		if err != nil {
			return err
		}
		res.Cart = c

		ci, err := tx.LockCartItem(ctx, c.ID, productID)
		if isNotFound(err) {
			return apperr.NotFoundf("Product with ID %s is not in the cart.", productID)
		}
		if err != nil {
			return err
		}
		if _, err := tx.LockProducts(ctx, []uuid.UUID{productID}); err != nil {
			return err
		}
		if _, err := e.Ledger.Release(ctx, tx, productID, ci.Quantity); err != nil {
			return err
		}
		if err := tx.DeleteCartItem(ctx, c.ID, productID); err != nil {
			return err
		}
		released = ci.Quantity
		res.Changed = true
		return tx.TouchCart(ctx, c.ID)
	})
	if err != nil {
		return Result{}, Classify(err)
	}

	e.Log.Info("cart item removed",
		zap.String("user_id", userID.String()),
		zap.String("cart_id", res.Cart.ID.String()),
		zap.String("product_id", productID.String()),
		zap.Int("released", released))
	e.Events.Emit(ctx, events.Event{
		Topic: events.TopicCartChanged,
		Type:  events.EventCartItemRemoved,
		Key:   res.Cart.ID.String(),
		Payload: events.CartItemRemovedPayload{
			CartRef:   events.CartRef{CartID: res.Cart.ID.String(), UserID: userID.String()},
			ProductID: productID.String(),
			Released:  released,
		},
	})
	return res, nil
}

// ClearCart empties the cart and gives all of its stock back. A user without
// a cart, or with an empty one, is a successful no-op; no cart is created.
func (e *Engine) ClearCart(ctx context.Context, userID uuid.UUID) (res Result, err error) {
	defer func() { e.observe("clear_cart", res, err) }()

	var released []reservation
	err = e.Store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := CheckUser(ctx, tx, userID); err != nil {
			return err
		}
		c, err := tx.LockCart(ctx, userID)
		if isNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		res.Cart = c

		items, err := tx.LockCartItems(ctx, c.ID)
		if err != nil || len(items) == 0 {
			return err
		}
		ids := make([]uuid.UUID, 0, len(items))
		for _, ci := range items {
			ids = append(ids, ci.ProductID)
		}
		if _, err := tx.LockProducts(ctx, ids); err != nil {
			return err
		}
		for _, ci := range items {
			if _, err := e.Ledger.Release(ctx, tx, ci.ProductID, ci.Quantity); err != nil {
				return err
			}
			released = append(released, reservation{productID: ci.ProductID, delta: -ci.Quantity})
		}
		if err := tx.DeleteCartItems(ctx, c.ID); err != nil {
			return err
		}
		res.Changed = true
		return tx.TouchCart(ctx, c.ID)
	})
	if err != nil {
		return Result{}, Classify(err)
	}
	if !res.Changed {
		return res, nil
	}

	e.Log.Info("cart cleared",
		zap.String("user_id", userID.String()),
		zap.String("cart_id", res.Cart.ID.String()),
		zap.Int("items", len(released)))
	e.Events.Emit(ctx, events.Event{
		Topic: events.TopicCartChanged,
		Type:  events.EventCartCleared,
		Key:   res.Cart.ID.String(),
		Payload: events.CartClearedPayload{
			CartRef: events.CartRef{CartID: res.Cart.ID.String(), UserID: userID.String()},
			Items:   itemQtys(released),
		},
	})
	return res, nil
}

func (e *Engine) emitReserved(ctx context.Context, userID uuid.UUID, c store.Cart, applied []reservation) {
	e.Log.Info("cart items reserved",
		zap.String("user_id", userID.String()),
		zap.String("cart_id", c.ID.String()),
		zap.Int("items", len(applied)))
	e.Events.Emit(ctx, events.Event{
		Topic: events.TopicCartChanged,
		Type:  events.EventCartItemsReserved,
		Key:   c.ID.String(),
		Payload: events.CartItemsReservedPayload{
			CartRef: events.CartRef{CartID: c.ID.String(), UserID: userID.String()},
			Items:   itemQtys(applied),
		},
	})
}

func (e *Engine) observe(op string, res Result, err error) {
	switch {
	case err == nil && !res.Changed:
		e.Metrics.Observe(op, metrics.OutcomeNoop)
	default:
		e.Metrics.Observe(op, outcome(err))
	}
	if apperr.Is(err, apperr.KindConflict) {
		e.Log.Warn("cart operation contended", zap.String("op", op), zap.Error(err))
	}
}

func itemQtys(rs []reservation) []events.ItemQty {
	out := make([]events.ItemQty, 0, len(rs))
	for _, r := range rs {
		out = append(out, events.ItemQty{ProductID: r.productID.String(), Qty: r.qty, Delta: r.delta})
	}
	return out
}

func isNotFound(err error) bool {
	return err != nil && errors.Is(err, store.ErrNotFound)
}
