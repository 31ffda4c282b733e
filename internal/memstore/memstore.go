// Package memstore is an in-memory store.Store. Transactions are fully
// serialized behind one mutex and work on a copy of the data that replaces
// the live copy on commit, so a failed transaction leaves nothing behind.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-cart-reservation/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type data struct {
	users      map[uuid.UUID]store.User
	products   map[uuid.UUID]store.Product
	carts      map[uuid.UUID]store.Cart
	cartByUser map[uuid.UUID]uuid.UUID
	// items: cart id -> product id -> item
	items        map[uuid.UUID]map[uuid.UUID]store.CartItem
	summaries    map[uuid.UUID]store.OrderSummary
	orders       map[uuid.UUID]store.Order
	orderByCart  map[uuid.UUID]uuid.UUID
	orderLines   map[uuid.UUID][]store.OrderLine
	orderNumbers map[string]bool
}

func newData() *data {
	return &data{
		users:        map[uuid.UUID]store.User{},
		products:     map[uuid.UUID]store.Product{},
		carts:        map[uuid.UUID]store.Cart{},
		cartByUser:   map[uuid.UUID]uuid.UUID{},
		items:        map[uuid.UUID]map[uuid.UUID]store.CartItem{},
		summaries:    map[uuid.UUID]store.OrderSummary{},
		orders:       map[uuid.UUID]store.Order{},
		orderByCart:  map[uuid.UUID]uuid.UUID{},
		orderLines:   map[uuid.UUID][]store.OrderLine{},
		orderNumbers: map[string]bool{},
	}
}

func (d *data) clone() *data {
	c := newData()
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.products {
		c.products[k] = v
	}
	for k, v := range d.carts {
		c.carts[k] = v
	}
	for k, v := range d.cartByUser {
		c.cartByUser[k] = v
	}
	for k, m := range d.items {
		cm := make(map[uuid.UUID]store.CartItem, len(m))
		for pk, it := range m {
			cm[pk] = it
		}
		c.items[k] = cm
	}
	for k, v := range d.summaries {
		c.summaries[k] = v
	}
	for k, v := range d.orders {
		c.orders[k] = v
	}
	for k, v := range d.orderByCart {
		c.orderByCart[k] = v
	}
	for k, v := range d.orderLines {
		c.orderLines[k] = append([]store.OrderLine(nil), v...)
	}
	for k, v := range d.orderNumbers {
		c.orderNumbers[k] = v
	}
	return c
}

type Store struct {
	mu   sync.Mutex
	data *data
	now  func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{data: newData(), now: func() time.Time { return time.Now().UTC() }}
}

// PutUser and PutProduct seed collaborator data owned by the auth and
// catalog services.
func (s *Store) PutUser(u store.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.data.clone()
	next.users[u.ID] = u
	s.data = next
}

func (s *Store) PutProduct(p store.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	next := s.data.clone()
	next.products[p.ID] = p
	s.data = next
}

// SetClock replaces the time source used for created/updated stamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.data.clone()
	if err := fn(ctx, &tx{reader: reader{d: work}, now: s.now}); err != nil {
		return err
	}
	s.data = work
	return nil
}

func (s *Store) SaveOrderSummary(_ context.Context, sum store.OrderSummary) (store.OrderSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.carts[sum.CartID]; !ok {
		return store.OrderSummary{}, store.ErrNotFound
	}
	now := s.now()
	if prev, ok := s.data.summaries[sum.CartID]; ok {
		sum.ID = prev.ID
		sum.CreatedAt = prev.CreatedAt
	} else {
		if sum.ID == uuid.Nil {
			sum.ID = uuid.New()
		}
		sum.CreatedAt = now
	}
	sum.UpdatedAt = now
	sum.CartAmount = sum.CartAmount.Round(2)
	sum.CartItemDiscount = sum.CartItemDiscount.Round(2)
	sum.ShippingCharge = sum.ShippingCharge.Round(2)
	sum.RoundOfVal = sum.RoundOfVal.Round(2)
	next := s.data.clone()
	next.summaries[sum.CartID] = sum
	s.data = next
	return sum, nil
}

// Summary returns the stored summary for a cart.
func (s *Store) Summary(cartID uuid.UUID) (store.OrderSummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum, ok := s.data.summaries[cartID]
	return sum, ok
}

func (s *Store) read() reader {
	s.mu.Lock()
	d := s.data
	s.mu.Unlock()
	return reader{d: d}
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (store.User, error) {
	return s.read().GetUser(ctx, id)
}

func (s *Store) GetProduct(ctx context.Context, id uuid.UUID) (store.Product, error) {
	return s.read().GetProduct(ctx, id)
}

func (s *Store) ListProducts(ctx context.Context) ([]store.Product, error) {
	return s.read().ListProducts(ctx)
}

func (s *Store) FindCartByUser(ctx context.Context, userID uuid.UUID) (store.Cart, error) {
	return s.read().FindCartByUser(ctx, userID)
}

func (s *Store) GetCart(ctx context.Context, cartID uuid.UUID) (store.Cart, error) {
	return s.read().GetCart(ctx, cartID)
}

func (s *Store) ListCartLines(ctx context.Context, cartID uuid.UUID) ([]store.CartLine, error) {
	return s.read().ListCartLines(ctx, cartID)
}

func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (store.Order, []store.OrderLine, error) {
	return s.read().GetOrder(ctx, id)
}

func (s *Store) StockReport(ctx context.Context, productID uuid.UUID) (store.StockReport, error) {
	return s.read().StockReport(ctx, productID)
}

// reader works on one data snapshot. Committed snapshots are never
// mutated in place, which keeps lock-free reads safe.
type reader struct{ d *data }

func (r reader) GetUser(_ context.Context, id uuid.UUID) (store.User, error) {
	u, ok := r.d.users[id]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return u, nil
}

func (r reader) GetProduct(_ context.Context, id uuid.UUID) (store.Product, error) {
	p, ok := r.d.products[id]
	if !ok {
		return store.Product{}, store.ErrNotFound
	}
	return p, nil
}

func (r reader) ListProducts(_ context.Context) ([]store.Product, error) {
	out := make([]store.Product, 0, len(r.d.products))
	for _, p := range r.d.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}

func (r reader) FindCartByUser(_ context.Context, userID uuid.UUID) (store.Cart, error) {
	id, ok := r.d.cartByUser[userID]
	if !ok {
		return store.Cart{}, store.ErrNotFound
	}
	return r.d.carts[id], nil
}

func (r reader) GetCart(_ context.Context, cartID uuid.UUID) (store.Cart, error) {
	c, ok := r.d.carts[cartID]
	if !ok {
		return store.Cart{}, store.ErrNotFound
	}
	return c, nil
}

func (r reader) ListCartLines(_ context.Context, cartID uuid.UUID) ([]store.CartLine, error) {
	items := r.d.items[cartID]
	out := make([]store.CartLine, 0, len(items))
	for pid, it := range items {
		out = append(out, store.CartLine{Item: it, Product: r.d.products[pid]})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Item, out[j].Item
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
	return out, nil
}

func (r reader) GetOrder(_ context.Context, id uuid.UUID) (store.Order, []store.OrderLine, error) {
	o, ok := r.d.orders[id]
	if !ok {
		return store.Order{}, nil, store.ErrNotFound
	}
	lines := append([]store.OrderLine(nil), r.d.orderLines[id]...)
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].ProductName != lines[j].ProductName {
			return lines[i].ProductName < lines[j].ProductName
		}
		return lines[i].ProductID.String() < lines[j].ProductID.String()
	})
	return o, lines, nil
}

func (r reader) StockReport(ctx context.Context, productID uuid.UUID) (store.StockReport, error) {
	p, err := r.GetProduct(ctx, productID)
	if err != nil {
		return store.StockReport{}, err
	}
	rep := store.StockReport{Product: p}
	for cartID, items := range r.d.items {
		it, ok := items[productID]
		if !ok {
			continue
		}
		rep.Reserved += it.Quantity
		rep.Reservations = append(rep.Reservations, store.StockReservation{
			UserID: r.d.carts[cartID].UserID, CartID: cartID, Quantity: it.Quantity,
		})
	}
	sort.Slice(rep.Reservations, func(i, j int) bool {
		a, b := rep.Reservations[i], rep.Reservations[j]
		if a.Quantity != b.Quantity {
			return a.Quantity > b.Quantity
		}
		return a.CartID.String() < b.CartID.String()
	})
	return rep, nil
}

// tx mutates a private copy; the whole store is locked for its lifetime,
// so the Lock* methods only need to read.
type tx struct {
	reader
	now func() time.Time
}

var _ store.Tx = (*tx)(nil)

func (t *tx) EnsureCart(ctx context.Context, userID uuid.UUID) (store.Cart, error) {
	if c, err := t.FindCartByUser(ctx, userID); err == nil {
		return c, nil
	}
	if _, ok := t.d.users[userID]; !ok {
		return store.Cart{}, store.ErrNotFound
	}
	now := t.now()
	c := store.Cart{ID: uuid.New(), UserID: userID, CreatedAt: now, UpdatedAt: now}
	t.d.carts[c.ID] = c
	t.d.cartByUser[userID] = c.ID
	return c, nil
}

func (t *tx) LockCart(ctx context.Context, userID uuid.UUID) (store.Cart, error) {
	return t.FindCartByUser(ctx, userID)
}

func (t *tx) TouchCart(_ context.Context, cartID uuid.UUID) error {
	c, ok := t.d.carts[cartID]
	if !ok {
		return store.ErrNotFound
	}
	c.UpdatedAt = t.now()
	t.d.carts[cartID] = c
	return nil
}

func (t *tx) LockProducts(_ context.Context, ids []uuid.UUID) ([]store.Product, error) {
	out := make([]store.Product, 0, len(ids))
	seen := map[uuid.UUID]bool{}
	for _, id := range ids {
		p, ok := t.d.products[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (t *tx) AdjustStock(_ context.Context, productID uuid.UUID, delta int) (int, error) {
	p, ok := t.d.products[productID]
	if !ok {
		return 0, store.ErrNotFound
	}
	if p.Stock-delta < 0 {
		return 0, store.ErrInsufficientStock
	}
	p.Stock -= delta
	p.UpdatedAt = t.now()
	t.d.products[productID] = p
	return p.Stock, nil
}

func (t *tx) LockCartItems(_ context.Context, cartID uuid.UUID) ([]store.CartItem, error) {
	items := t.d.items[cartID]
	out := make([]store.CartItem, 0, len(items))
	for _, it := range items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID.String() < out[j].ProductID.String() })
	return out, nil
}

func (t *tx) LockCartItem(_ context.Context, cartID, productID uuid.UUID) (store.CartItem, error) {
	it, ok := t.d.items[cartID][productID]
	if !ok {
		return store.CartItem{}, store.ErrNotFound
	}
	return it, nil
}

func (t *tx) UpsertCartItem(_ context.Context, cartID, productID uuid.UUID, qty int) (store.CartItem, error) {
	if _, ok := t.d.carts[cartID]; !ok {
		return store.CartItem{}, store.ErrNotFound
	}
	if _, ok := t.d.products[productID]; !ok {
		return store.CartItem{}, store.ErrNotFound
	}
	if qty <= 0 {
		return store.CartItem{}, store.ErrInsufficientStock
	}
	now := t.now()
	items := t.d.items[cartID]
	if items == nil {
		items = map[uuid.UUID]store.CartItem{}
		t.d.items[cartID] = items
	}
	it, ok := items[productID]
	if !ok {
		it = store.CartItem{ID: uuid.New(), CartID: cartID, ProductID: productID, CreatedAt: now}
	}
	it.Quantity = qty
	it.UpdatedAt = now
	items[productID] = it
	return it, nil
}

func (t *tx) DeleteCartItem(_ context.Context, cartID, productID uuid.UUID) error {
	items := t.d.items[cartID]
	if _, ok := items[productID]; !ok {
		return store.ErrNotFound
	}
	delete(items, productID)
	return nil
}

func (t *tx) DeleteCartItems(_ context.Context, cartID uuid.UUID) error {
	delete(t.d.items, cartID)
	return nil
}

func (t *tx) InsertOrder(_ context.Context, o store.Order) error {
	if _, ok := t.d.orders[o.ID]; ok {
		return store.ErrDuplicate
	}
	if t.d.orderNumbers[o.OrderNumber] {
		return store.ErrDuplicate
	}
	if o.CartID.Valid {
		if _, ok := t.d.orderByCart[o.CartID.UUID]; ok {
			return store.ErrDuplicate
		}
		t.d.orderByCart[o.CartID.UUID] = o.ID
	}
	o.UpdatedAt = t.now()
	t.d.orders[o.ID] = o
	t.d.orderNumbers[o.OrderNumber] = true
	return nil
}

func (t *tx) InsertOrderLines(_ context.Context, lines []store.OrderLine) error {
	for _, l := range lines {
		if _, ok := t.d.orders[l.OrderID]; !ok {
			return store.ErrNotFound
		}
		for _, existing := range t.d.orderLines[l.OrderID] {
			if existing.ProductID == l.ProductID {
				return store.ErrDuplicate
			}
		}
		t.d.orderLines[l.OrderID] = append(t.d.orderLines[l.OrderID], l)
	}
	return nil
}

func (t *tx) SetOrderTotal(_ context.Context, orderID uuid.UUID, total decimal.Decimal) error {
	o, ok := t.d.orders[orderID]
	if !ok {
		return store.ErrNotFound
	}
	o.TotalAmount = total
	o.UpdatedAt = t.now()
	t.d.orders[orderID] = o
	return nil
}

func (t *tx) LockOrder(_ context.Context, id uuid.UUID) (store.Order, error) {
	o, ok := t.d.orders[id]
	if !ok {
		return store.Order{}, store.ErrNotFound
	}
	return o, nil
}

func (t *tx) UpdateOrderStatus(_ context.Context, id uuid.UUID, status store.OrderStatus, deliveredAt *time.Time) error {
	o, ok := t.d.orders[id]
	if !ok {
		return store.ErrNotFound
	}
	o.Status = status
	if deliveredAt != nil {
		d := *deliveredAt
		o.DeliveryDate = &d
	}
	o.UpdatedAt = t.now()
	t.d.orders[id] = o
	return nil
}
