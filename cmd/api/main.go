package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-cart-reservation/internal/cache"
	"github.com/ariefcatur/go-cart-reservation/internal/cart"
	"github.com/ariefcatur/go-cart-reservation/internal/config"
	"github.com/ariefcatur/go-cart-reservation/internal/events"
	"github.com/ariefcatur/go-cart-reservation/internal/httpx"
	kafkax "github.com/ariefcatur/go-cart-reservation/internal/kafka"
	"github.com/ariefcatur/go-cart-reservation/internal/logging"
	"github.com/ariefcatur/go-cart-reservation/internal/memstore"
	"github.com/ariefcatur/go-cart-reservation/internal/metrics"
	"github.com/ariefcatur/go-cart-reservation/internal/orders"
	"github.com/ariefcatur/go-cart-reservation/internal/postgres"
	"github.com/ariefcatur/go-cart-reservation/internal/redisx"
	"github.com/ariefcatur/go-cart-reservation/internal/store"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logging.New(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("api exited", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	// Store
	var st store.Store
	switch cfg.StoreDriver {
	case "memory":
		log.Warn("using in-memory store; data is lost on exit")
		st = memstore.New()
	default:
		if cfg.MigrateOnStart {
			if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
				return err
			}
		}
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.ServiceName)
		if err != nil {
			return err
		}
		defer db.Close()
		st = postgres.NewStore(db, cfg.LockTimeout)
	}

	// Redis: cart view cache and idempotency keys
	var viewCache cache.ViewCache
	var idem *redisx.Idempotency
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		viewCache = cache.NewRedisCache(rdb, cfg.CartCacheTTL)
		idem = redisx.NewIdempotency(rdb, redisx.TTLIdempotency)
	}

	// Kafka producer
	var emitter events.Emitter = events.Discard{}
	var prod *kafkax.Producer
	if len(cfg.KafkaBrokers) > 0 {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, 1024, log)
		prod.Start(context.WithoutCancel(ctx))
		emitter = &events.KafkaEmitter{P: prod, Service: cfg.ServiceName, Log: log}
	}

	m := metrics.New()
	engine := cart.NewEngine(st, emitter, m, log)
	views := cart.NewViews(&cart.Projector{Store: st, Pricing: cfg.Pricing}, viewCache, log)
	router := httpx.NewRouter(httpx.Deps{
		Engine:  engine,
		Views:   views,
		Orders:  orders.NewMaterializer(st, emitter, m, log),
		Store:   st,
		Idem:    idem,
		Metrics: m,
		Log:     log,
		Timeout: cfg.RequestTimeout,
	})
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(sctx)
		if prod != nil {
			// flush whatever the handlers queued before exit
			prod.Close()
			prod.WaitClosed()
		}
		return err
	})
	return g.Wait()
}
