// Package main запускает HTTP-сервер витрины пекарни.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/bakery-storefront/internal/cart"
	"github.com/mmeshcher/bakery-storefront/internal/catalog"
	"github.com/mmeshcher/bakery-storefront/internal/config"
	"github.com/mmeshcher/bakery-storefront/internal/discount"
	"github.com/mmeshcher/bakery-storefront/internal/handler"
	"github.com/mmeshcher/bakery-storefront/internal/loyalty"
	"github.com/mmeshcher/bakery-storefront/internal/middleware"
	"github.com/mmeshcher/bakery-storefront/internal/repository"
	"github.com/mmeshcher/bakery-storefront/internal/service"
	"github.com/mmeshcher/bakery-storefront/internal/storage"
)

func main() {
	cfg, err := config.Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	sugar := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cat, err := catalog.Default()
	if err != nil {
		sugar.Fatalw("catalog error", "error", err.Error())
	}

	var (
		repo      service.Repository
		directory cart.Directory
	)
	if cfg.DatabaseURI != "" {
		pg, err := repository.NewPostgresRepository(cfg.DatabaseURI)
		if err != nil {
			sugar.Fatalw("database initialization error", "error", err.Error())
		}
		repo = pg
		directory = discount.NewStoreDirectory(pg)
	} else {
		sugar.Warn("DATABASE_URI is not set, orders are kept in memory")
		repo = repository.NewMemoryRepository()
		directory = discount.NewMemoryDirectory(discount.DefaultRules())
	}
	if cfg.DiscountServiceAddress != "" {
		directory = discount.NewRemoteDirectory(cfg.DiscountServiceAddress, cfg.DiscountTimeout)
	}

	var store interface {
		cart.Store
		Close() error
	}
	if cfg.RedisAddress != "" {
		rs, err := storage.Connect(ctx, cfg.RedisAddress)
		if err != nil {
			sugar.Fatalw("redis initialization error", "error", err.Error())
		}
		store = rs
	} else {
		store = storage.NewMemoryStore()
	}
	defer store.Close()

	var loyaltyClient service.LoyaltyClient
	if cfg.LoyaltySystemAddress != "" {
		loyaltyClient = loyalty.NewClient(cfg.LoyaltySystemAddress)
	}

	svc := service.NewService(service.Deps{
		Repo:          repo,
		Catalog:       cat,
		Store:         store,
		Directory:     directory,
		LoyaltyClient: loyaltyClient,
		Logger:        logger,
	}, service.Config{
		DeliveryFee:       cfg.DeliveryFee,
		FreeDeliveryFrom:  cfg.FreeDeliveryFrom,
		StrictCart:        cfg.StrictCart,
		ValidationTimeout: cfg.DiscountTimeout,
		CartCacheSize:     cfg.CartCacheSize,
		CartCacheTTL:      cfg.CartCacheTTL,
	})
	defer svc.Close()

	sessions := middleware.NewSessionMiddleware(cfg.SessionSecret)
	h := handler.NewHandler(svc, logger, sessions)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	// Передача баллов в систему лояльности
	g.Go(func() error {
		svc.StartLoyaltySync(ctx)
		return nil
	})

	g.Go(func() error {
		sugar.Infow("starting storefront server",
			"addr", cfg.RunAddress,
			"postgres", cfg.DatabaseURI != "",
			"redis", cfg.RedisAddress != "",
			"remote_discounts", cfg.DiscountServiceAddress != "",
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}
