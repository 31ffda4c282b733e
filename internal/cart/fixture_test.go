package cart

import (
	"context"
	"testing"

	"github.com/ariefcatur/go-cart-reservation/internal/config"
	"github.com/ariefcatur/go-cart-reservation/internal/events"
	"github.com/ariefcatur/go-cart-reservation/internal/memstore"
	"github.com/ariefcatur/go-cart-reservation/internal/metrics"
	"github.com/ariefcatur/go-cart-reservation/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type harness struct {
	store    *memstore.Store
	engine   *Engine
	proj     *Projector
	events   *events.Recorder
	metrics  *metrics.Metrics
	user     uuid.UUID
	products map[string]uuid.UUID
}

func newHarness() *harness {
	s := memstore.New()
	rec := &events.Recorder{}
	m := metrics.New()
	h := &harness{
		store:    s,
		engine:   NewEngine(s, rec, m, zap.NewNop()),
		proj:     &Projector{Store: s, Pricing: config.DefaultPricing()},
		events:   rec,
		metrics:  m,
		user:     uuid.New(),
		products: map[string]uuid.UUID{},
	}
	s.PutUser(store.User{ID: h.user, Username: "budi", IsActive: true})
	return h
}

func (h *harness) product(name string, price int64, stock int) uuid.UUID {
	id := uuid.New()
	h.store.PutProduct(store.Product{
		ID: id, SKU: "SKU-" + name, Name: name, Brand: "Acme", Category: "Kitchen",
		Price: decimal.NewFromInt(price), Discount: decimal.Zero, Stock: stock, IsActive: true,
	})
	h.products[name] = id
	return id
}

func (h *harness) stock(t *testing.T, id uuid.UUID) int {
	t.Helper()
	p, err := h.store.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

// held returns product id -> quantity in the user's cart.
func (h *harness) held(t *testing.T, userID uuid.UUID) map[uuid.UUID]int {
	t.Helper()
	ctx := context.Background()
	out := map[uuid.UUID]int{}
	c, err := h.store.FindCartByUser(ctx, userID)
	if err != nil {
		return out
	}
	lines, err := h.store.ListCartLines(ctx, c.ID)
	require.NoError(t, err)
	for _, l := range lines {
		out[l.Product.ID] = l.Item.Quantity
	}
	return out
}
