package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-cart-reservation/internal/cache"
	"github.com/ariefcatur/go-cart-reservation/internal/cart"
	"github.com/ariefcatur/go-cart-reservation/internal/config"
	"github.com/ariefcatur/go-cart-reservation/internal/events"
	"github.com/ariefcatur/go-cart-reservation/internal/memstore"
	"github.com/ariefcatur/go-cart-reservation/internal/metrics"
	"github.com/ariefcatur/go-cart-reservation/internal/orders"
	"github.com/ariefcatur/go-cart-reservation/internal/redisx"
	"github.com/ariefcatur/go-cart-reservation/internal/store"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testServer struct {
	srv    *httptest.Server
	store  *memstore.Store
	events *events.Recorder
	redis  *miniredis.Miniredis
	user   uuid.UUID
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	s := memstore.New()
	rec := &events.Recorder{}
	m := metrics.New()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	log := zap.NewNop()
	views := cart.NewViews(&cart.Projector{Store: s, Pricing: config.DefaultPricing()},
		cache.NewRedisCache(rdb, 30*time.Second), log)
	router := NewRouter(Deps{
		Engine:  cart.NewEngine(s, rec, m, log),
		Views:   views,
		Orders:  orders.NewMaterializer(s, rec, m, log),
		Store:   s,
		Idem:    redisx.NewIdempotency(rdb, time.Hour),
		Metrics: m,
		Log:     log,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	ts := &testServer{srv: srv, store: s, events: rec, redis: mr, user: uuid.New()}
	s.PutUser(store.User{ID: ts.user, Username: "sari", IsActive: true})
	return ts
}

func (ts *testServer) product(name string, price int64, stock int) uuid.UUID {
	id := uuid.New()
	ts.store.PutProduct(store.Product{
		ID: id, SKU: "SKU-" + name, Name: name, Price: decimal.NewFromInt(price),
		Discount: decimal.Zero, Stock: stock, IsActive: true,
	})
	return id
}

func (ts *testServer) stock(t *testing.T, id uuid.UUID) int {
	t.Helper()
	p, err := ts.store.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

type response struct {
	Code   int
	Header http.Header
	Body   map[string]any
}

func (ts *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := response{Code: resp.StatusCode, Header: resp.Header}
	if resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out.Body))
	}
	return out
}

func data(t *testing.T, r response) map[string]any {
	t.Helper()
	d, ok := r.Body["data"].(map[string]any)
	require.True(t, ok, "response has no data object: %v", r.Body)
	return d
}

func items(t *testing.T, r response) []any {
	t.Helper()
	list, _ := data(t, r)["items"].([]any)
	return list
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpointCountsRoutes(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodGet, "/cart/get_cart?user_id="+ts.user.String(), nil, nil)

	resp, err := http.Get(ts.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `cartsvc_http_requests_total{route="/cart/get_cart",status="200"} 1`)
}
