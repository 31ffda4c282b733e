package httpx

import (
	"net/http"
	"time"

	"github.com/ariefcatur/go-cart-reservation/internal/cart"
	"github.com/ariefcatur/go-cart-reservation/internal/metrics"
	"github.com/ariefcatur/go-cart-reservation/internal/orders"
	"github.com/ariefcatur/go-cart-reservation/internal/redisx"
	"github.com/ariefcatur/go-cart-reservation/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Deps struct {
	Engine  *cart.Engine
	Views   *cart.Views
	Orders  *orders.Materializer
	Store   store.Reader
	Idem    *redisx.Idempotency // optional
	Metrics *metrics.Metrics    // optional
	Log     *zap.Logger
	Timeout time.Duration
}

func NewRouter(d Deps) *chi.Mux {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Timeout <= 0 {
		d.Timeout = 15 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(d.Log), middleware.Recoverer)
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(d.Timeout))
		(&CartHandler{Engine: d.Engine, Views: d.Views, Log: d.Log}).Register(r)
		(&OrdersHandler{Orders: d.Orders, Idem: d.Idem, Log: d.Log}).Register(r)
		(&ProductsHandler{Store: d.Store, Log: d.Log}).Register(r)
	})
	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("http request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)))
		})
	}
}
