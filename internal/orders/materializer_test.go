package orders

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/ariefcatur/go-cart-reservation/internal/apperr"
	"github.com/ariefcatur/go-cart-reservation/internal/cart"
	"github.com/ariefcatur/go-cart-reservation/internal/events"
	kafkax "github.com/ariefcatur/go-cart-reservation/internal/kafka"
	"github.com/ariefcatur/go-cart-reservation/internal/memstore"
	"github.com/ariefcatur/go-cart-reservation/internal/metrics"
	"github.com/ariefcatur/go-cart-reservation/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	store  *memstore.Store
	engine *cart.Engine
	mat    *Materializer
	rec    *events.Recorder
	user   uuid.UUID
}

func newFixture() *fixture {
	s := memstore.New()
	rec := &events.Recorder{}
	m := metrics.New()
	f := &fixture{
		store:  s,
		engine: cart.NewEngine(s, rec, m, zap.NewNop()),
		mat:    NewMaterializer(s, rec, m, zap.NewNop()),
		rec:    rec,
		user:   uuid.New(),
	}
	s.PutUser(store.User{ID: f.user, Username: "budi", IsActive: true})
	f.mat.Now = func() time.Time { return time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC) }
	return f
}

func (f *fixture) product(name, price string, stock int) uuid.UUID {
	id := uuid.New()
	f.store.PutProduct(store.Product{ID: id, SKU: name, Name: name, Price: decimal.RequireFromString(price), Discount: decimal.NewFromInt(10), Stock: stock, IsActive: true})
	return id
}

func TestCreateFromCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	p := f.product("Kettle", "10.00", 5)

	res, err := f.engine.AddOrUpdateItems(ctx, f.user, []cart.ItemRequest{{ProductID: p, Quantity: 2}})
	require.NoError(t, err)

	placed, err := f.mat.CreateFromCart(ctx, res.Cart.ID, "Jl. Merdeka 1", "")
	require.NoError(t, err)

	o := placed.Order
	assert.True(t, o.TotalAmount.Equal(decimal.RequireFromString("20.00")), "undiscounted price times quantity")
	assert.Equal(t, store.OrderPending, o.Status)
	assert.Equal(t, store.PaymentUnpaid, o.PaymentStatus)
	assert.Equal(t, "Jl. Merdeka 1", o.BillingAddress, "billing defaults to shipping")
	assert.Regexp(t, regexp.MustCompile(`^ORD-20260309-[0-9A-F]{8}$`), o.OrderNumber)
	require.Len(t, placed.Lines, 1)
	assert.Equal(t, 2, placed.Lines[0].Quantity)
	assert.True(t, placed.Lines[0].Price.Equal(decimal.RequireFromString("10")))

	// stock untouched, cart kept
	pr, err := f.store.GetProduct(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 3, pr.Stock)
	lines, err := f.store.ListCartLines(ctx, res.Cart.ID)
	require.NoError(t, err)
	assert.Len(t, lines, 1)

	got, err := f.mat.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, got.Order.TotalAmount.Equal(o.TotalAmount))
	assert.Len(t, got.Lines, 1)

	envs := f.rec.Envelopes(events.TopicOrderPlaced)
	require.Len(t, envs, 1)
	payload, err := kafkax.UnwrapPayload[events.OrderPlacedPayload](envs[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, "20.00", payload.TotalAmount)
}

func TestOrderLinesIgnoreLaterPriceChanges(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	p := f.product("Kettle", "10.00", 5)
	_, err := f.engine.AddOrUpdateItems(ctx, f.user, []cart.ItemRequest{{ProductID: p, Quantity: 1}})
	require.NoError(t, err)

	placed, err := f.mat.PlaceForUser(ctx, f.user, "addr", "bill")
	require.NoError(t, err)

	pr, _ := f.store.GetProduct(ctx, p)
	pr.Price = decimal.NewFromInt(99)
	pr.Name = "Renamed"
	f.store.PutProduct(pr)

	got, err := f.mat.Get(ctx, placed.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kettle", got.Lines[0].ProductName)
	assert.True(t, got.Lines[0].Price.Equal(decimal.NewFromInt(10)))
}

func TestCreateFromCartRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	p := f.product("Kettle", "10.00", 5)

	_, err := f.mat.PlaceForUser(ctx, f.user, "addr", "")
	assert.True(t, apperr.Is(err, apperr.KindValidation), "no cart")

	res, err := f.engine.AddOrUpdateItems(ctx, f.user, []cart.ItemRequest{{ProductID: p, Quantity: 1}})
	require.NoError(t, err)

	_, err = f.mat.CreateFromCart(ctx, uuid.New(), "addr", "")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = f.engine.ClearCart(ctx, f.user)
	require.NoError(t, err)
	_, err = f.mat.CreateFromCart(ctx, res.Cart.ID, "addr", "")
	assert.Equal(t, []string{"Cannot place an order from an empty cart."}, apperr.MessagesOf(err))

	_, err = f.mat.PlaceForUser(ctx, uuid.New(), "addr", "")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestCreateFromCartWithoutAddresses(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	p := f.product("Kettle", "10.00", 5)
	res, err := f.engine.AddOrUpdateItems(ctx, f.user, []cart.ItemRequest{{ProductID: p, Quantity: 2}})
	require.NoError(t, err)

	placed, err := f.mat.CreateFromCart(ctx, res.Cart.ID, "", "")
	require.NoError(t, err)
	assert.Equal(t, "20.00", placed.Order.TotalAmount.StringFixed(2))
	assert.Empty(t, placed.Order.ShippingAddress)
	assert.Empty(t, placed.Order.BillingAddress)
	assert.Equal(t, store.OrderPending, placed.Order.Status)
}

func TestOneOrderPerCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	p := f.product("Kettle", "10.00", 5)
	res, err := f.engine.AddOrUpdateItems(ctx, f.user, []cart.ItemRequest{{ProductID: p, Quantity: 1}})
	require.NoError(t, err)

	_, err = f.mat.CreateFromCart(ctx, res.Cart.ID, "addr", "")
	require.NoError(t, err)
	_, err = f.mat.CreateFromCart(ctx, res.Cart.ID, "addr", "")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Equal(t, []string{"Cart already has an order."}, apperr.MessagesOf(err))
}

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	p := f.product("Kettle", "10.00", 5)
	_, err := f.engine.AddOrUpdateItems(ctx, f.user, []cart.ItemRequest{{ProductID: p, Quantity: 1}})
	require.NoError(t, err)
	placed, err := f.mat.PlaceForUser(ctx, f.user, "addr", "")
	require.NoError(t, err)
	id := placed.Order.ID

	_, err = f.mat.MarkDelivered(ctx, id)
	assert.True(t, apperr.Is(err, apperr.KindValidation), "delivered only from shipped")

	for _, st := range []store.OrderStatus{store.OrderProcessing, store.OrderShipped} {
		o, err := f.mat.Transition(ctx, id, st)
		require.NoError(t, err)
		assert.Equal(t, st, o.Status)
	}
	o, err := f.mat.MarkDelivered(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, o.DeliveryDate)

	_, err = f.mat.Transition(ctx, id, store.OrderCancelled)
	assert.True(t, apperr.Is(err, apperr.KindValidation), "delivered is terminal")

	got, err := f.mat.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, store.OrderDelivered, got.Order.Status)
	assert.NotNil(t, got.Order.DeliveryDate)

	_, err = f.mat.Transition(ctx, uuid.New(), store.OrderShipped)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	assert.Len(t, f.rec.Envelopes(events.TopicOrderStatusChanged), 3)
}

func TestTransitionAsChecksCaller(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	p := f.product("Kettle", "10.00", 5)
	_, err := f.engine.AddOrUpdateItems(ctx, f.user, []cart.ItemRequest{{ProductID: p, Quantity: 1}})
	require.NoError(t, err)
	placed, err := f.mat.PlaceForUser(ctx, f.user, "addr", "")
	require.NoError(t, err)
	id := placed.Order.ID

	_, err = f.mat.TransitionAs(ctx, Actor{UserID: uuid.New()}, id, store.OrderCancelled)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = f.mat.TransitionAs(ctx, Actor{UserID: f.user}, id, store.OrderProcessing)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	o, err := f.mat.TransitionAs(ctx, Actor{UserID: uuid.New(), Operator: true}, id, store.OrderProcessing)
	require.NoError(t, err)
	assert.Equal(t, store.OrderProcessing, o.Status)

	o, err = f.mat.TransitionAs(ctx, Actor{UserID: f.user}, id, store.OrderCancelled)
	require.NoError(t, err)
	assert.Equal(t, store.OrderCancelled, o.Status)
}
