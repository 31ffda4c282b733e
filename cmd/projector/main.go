package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-cart-reservation/internal/cache"
	"github.com/ariefcatur/go-cart-reservation/internal/cart"
	"github.com/ariefcatur/go-cart-reservation/internal/config"
	"github.com/ariefcatur/go-cart-reservation/internal/events"
	kafkax "github.com/ariefcatur/go-cart-reservation/internal/kafka"
	"github.com/ariefcatur/go-cart-reservation/internal/logging"
	"github.com/ariefcatur/go-cart-reservation/internal/postgres"
	"github.com/ariefcatur/go-cart-reservation/internal/projector"
	"github.com/ariefcatur/go-cart-reservation/internal/redisx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// projector rebuilds cached cart views from cart.changed, so API instances
// that did not perform a mutation still serve fresh carts.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logging.New(cfg.ServiceName+"-projector", cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.ServiceName+"-projector")
	if err != nil {
		log.Error("db connect", zap.Error(err))
		os.Exit(1)
	}
	defer db.Close()
	st := postgres.NewStore(db, cfg.LockTimeout)

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &projector.Service{
		Views: cart.NewViews(&cart.Projector{Store: st, Pricing: cfg.Pricing}, cache.NewRedisCache(rdb, cfg.CartCacheTTL), log),
		Redis: rdb,
		Name:  "projector",
		Log:   log,
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ProjectorGroup, events.TopicCartChanged, cfg.ProjectorWorkers, log)
	log.Info("projector consumer started",
		zap.String("group", cfg.ProjectorGroup),
		zap.String("topic", events.TopicCartChanged),
		zap.Int("workers", cfg.ProjectorWorkers))
	if err := cons.Start(ctx, svc.HandleCartChanged); err != nil {
		log.Error("consumer exit", zap.Error(err))
		os.Exit(1)
	}
	log.Info("projector stopped")
}
