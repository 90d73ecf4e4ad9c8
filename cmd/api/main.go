package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/config"
	"storefront/internal/handler"
	infraRepo "storefront/internal/infra/repository"
	"storefront/internal/logger"
	appmw "storefront/internal/middleware"
	"storefront/internal/server"
	"storefront/internal/store"
	"storefront/internal/usecase"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type uuidGenerator struct{}

func (g *uuidGenerator) NewID() string {
	return uuid.NewString()
}

type realClock struct{}

func (c *realClock) Now() time.Time {
	return time.Now()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.GoEnv, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//永続スロットとカタログ
	storage, err := infraRepo.Open(ctx, cfg)
	if err != nil {
		log.Fatal("open storage", zap.String("driver", cfg.StorageDriver), zap.Error(err))
	}
	defer func() { _ = storage.Close() }()

	//カートストア（ここで復元を予約）
	cartStore := store.New(ctx, storage.KV,
		store.WithKey(cfg.CartKey),
		store.WithLogger(log.Named("cart")),
		store.WithHydrateTimeout(cfg.HydrateTimeout),
		store.WithWriteTimeout(cfg.WriteTimeout),
	)
	unsubscribe := cartStore.Subscribe(func(st store.State) {
		log.Debug("cart changed",
			zap.Int("items", len(st.Cart)),
			zap.Int("count", st.Cart.Count()),
			zap.Bool("hydrated", st.HasHydrated),
		)
	})
	defer unsubscribe()

	//Usecase生成
	productUC := usecase.NewProductUsecase(storage.Products)
	cartUC := usecase.NewCartUsecase(cartStore, storage.Products)
	checkoutUC := usecase.NewCheckoutUsecase(cartStore, &uuidGenerator{}, &realClock{})

	//Handler生成
	productH := handler.NewProductHandler(productUC)
	cartH := handler.NewCartHandler(cartUC, cartStore)
	checkoutH := handler.NewCheckoutHandler(checkoutUC)

	//Server起動
	e := server.New(log, productH, cartH, checkoutH)
	e.Use(appmw.RateLimit(cfg.RateLimit))

	log.Info("server starting",
		zap.String("addr", cfg.Addr()),
		zap.String("storage", cfg.StorageDriver),
	)
	if err := server.Start(ctx, e, cfg.Addr()); err != nil {
		log.Error("server stopped", zap.Error(err))
		return
	}
	log.Info("server stopped")
}
