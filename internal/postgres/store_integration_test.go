package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-cart-reservation/internal/apperr"
	"github.com/ariefcatur/go-cart-reservation/internal/cart"
	"github.com/ariefcatur/go-cart-reservation/internal/config"
	"github.com/ariefcatur/go-cart-reservation/internal/orders"
	"github.com/ariefcatur/go-cart-reservation/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) (*Store, *pgxpool.Pool) {
	t.Helper()
	if testing.Short() {
		t.Skip("needs docker")
	}
	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("cart"),
		tcpostgres.WithUsername("app"),
		tcpostgres.WithPassword("secret"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	testcontainers.CleanupContainer(t, pgContainer)
	require.NoError(t, err)

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, Migrate(dsn))
	// a second run is a no-op
	require.NoError(t, Migrate(dsn))

	pool, err := Connect(ctx, dsn, "store-test")
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return NewStore(pool, 2*time.Second), pool
}

func seedUser(t *testing.T, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO users (id, username) VALUES ($1, $2)`, id, "u-"+id.String()[:8])
	require.NoError(t, err)
	return id
}

func seedProduct(t *testing.T, pool *pgxpool.Pool, name string, price string, stock int) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO products (id, sku, name, price, stock) VALUES ($1, $2, $3, $4::numeric, $5)`,
		id, "SKU-"+id.String()[:8], name, price, stock)
	require.NoError(t, err)
	return id
}

func stockOf(t *testing.T, s *Store, id uuid.UUID) int {
	t.Helper()
	p, err := s.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func TestPostgresReservationLifecycle(t *testing.T) {
	s, pool := setupTestDB(t)
	ctx := context.Background()
	engine := cart.NewEngine(s, nil, nil, nil)
	proj := &cart.Projector{Store: s, Pricing: config.DefaultPricing()}

	user := seedUser(t, pool)
	kettle := seedProduct(t, pool, "Kettle", "199.99", 10)
	mug := seedProduct(t, pool, "Mug", "25.50", 4)

	res, err := engine.AddOrUpdateItems(ctx, user, []cart.ItemRequest{
		{ProductID: kettle, Quantity: 3},
		{ProductID: mug, Quantity: 4},
	})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, 7, stockOf(t, s, kettle))
	assert.Equal(t, 0, stockOf(t, s, mug))

	// shrink the kettle line, keep the mug
	_, err = engine.AddOrUpdateItems(ctx, user, []cart.ItemRequest{
		{ProductID: kettle, Quantity: 1},
		{ProductID: mug, Quantity: 4},
	})
	require.NoError(t, err)
	assert.Equal(t, 9, stockOf(t, s, kettle))

	view, err := proj.ExportForUser(ctx, user)
	require.NoError(t, err)
	require.Len(t, view.Items, 2)
	assert.Equal(t, "301.99", view.OrderSummary.CartAmount.StringFixed(2))

	rep, err := s.StockReport(ctx, mug)
	require.NoError(t, err)
	assert.Equal(t, 4, rep.TotalStock())
	require.Len(t, rep.Reservations, 1)
	assert.Equal(t, user, rep.Reservations[0].UserID)

	_, err = engine.RemoveItem(ctx, user, mug)
	require.NoError(t, err)
	assert.Equal(t, 4, stockOf(t, s, mug))

	_, err = engine.ClearCart(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 10, stockOf(t, s, kettle))
}

func TestPostgresInsufficientStockRollsBack(t *testing.T) {
	s, pool := setupTestDB(t)
	ctx := context.Background()
	engine := cart.NewEngine(s, nil, nil, nil)

	user := seedUser(t, pool)
	kettle := seedProduct(t, pool, "Kettle", "10", 5)
	mug := seedProduct(t, pool, "Mug", "10", 1)

	_, err := engine.AddOrUpdateItems(ctx, user, []cart.ItemRequest{
		{ProductID: kettle, Quantity: 2},
		{ProductID: mug, Quantity: 2},
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, 5, stockOf(t, s, kettle))
	assert.Equal(t, 1, stockOf(t, s, mug))
}

func TestPostgresConcurrentLastUnit(t *testing.T) {
	s, pool := setupTestDB(t)
	ctx := context.Background()
	engine := cart.NewEngine(s, nil, nil, nil)
	lamp := seedProduct(t, pool, "Lamp", "50", 1)

	const buyers = 8
	users := make([]uuid.UUID, buyers)
	for i := range users {
		users[i] = seedUser(t, pool)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for _, u := range users {
		wg.Add(1)
		go func(u uuid.UUID) {
			defer wg.Done()
			_, err := engine.AddItem(ctx, u, cart.ItemRequest{ProductID: lamp, Quantity: 1})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(u)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	rep, err := s.StockReport(ctx, lamp)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Product.Stock)
	assert.Equal(t, 1, rep.Reserved)
}

func TestPostgresPlaceOrder(t *testing.T) {
	s, pool := setupTestDB(t)
	ctx := context.Background()
	engine := cart.NewEngine(s, nil, nil, nil)
	m := orders.NewMaterializer(s, nil, nil, nil)

	user := seedUser(t, pool)
	kettle := seedProduct(t, pool, "Kettle", "120.00", 5)
	_, err := engine.AddItem(ctx, user, cart.ItemRequest{ProductID: kettle, Quantity: 2})
	require.NoError(t, err)

	placed, err := m.PlaceForUser(ctx, user, "Jl. Sudirman 5", "")
	require.NoError(t, err)
	assert.Equal(t, store.OrderPending, placed.Order.Status)
	assert.Equal(t, "240.00", placed.Order.TotalAmount.StringFixed(2))
	assert.Equal(t, "Jl. Sudirman 5", placed.Order.BillingAddress)

	got, err := m.Get(ctx, placed.Order.ID)
	require.NoError(t, err)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, "Kettle", got.Lines[0].ProductName)

	_, err = m.PlaceForUser(ctx, user, "Jl. Sudirman 5", "")
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	for _, to := range []store.OrderStatus{store.OrderProcessing, store.OrderShipped, store.OrderDelivered} {
		_, err = m.Transition(ctx, placed.Order.ID, to)
		require.NoError(t, err)
	}
	got, err = m.Get(ctx, placed.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, store.OrderDelivered, got.Order.Status)
	assert.NotNil(t, got.Order.DeliveryDate)
}
