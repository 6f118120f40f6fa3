package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/threadline/threadline-backend/api/routes"
	"github.com/threadline/threadline-backend/internal/cart"
	"github.com/threadline/threadline-backend/internal/inventory"
	"github.com/threadline/threadline-backend/internal/orders"
	"github.com/threadline/threadline-backend/internal/sequence"
	"github.com/threadline/threadline-backend/internal/shipping"
	"github.com/threadline/threadline-backend/internal/wallet"
	"github.com/threadline/threadline-backend/pkg/clock"
	"github.com/threadline/threadline-backend/pkg/config"
	"github.com/threadline/threadline-backend/pkg/db"
	"github.com/threadline/threadline-backend/pkg/logger"
	"github.com/threadline/threadline-backend/pkg/metrics"
	"github.com/threadline/threadline-backend/pkg/migrate"
	"github.com/threadline/threadline-backend/pkg/outbox"
	"github.com/threadline/threadline-backend/pkg/redis"
	"github.com/threadline/threadline-backend/pkg/retry"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	services, err := buildServices(cfg, logg, dbClient, redisClient, prometheus.DefaultRegisterer)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":         cfg.App.Env,
		"addr":        addr,
		"serviceKind": cfg.Service.Kind,
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			promhttp.Handler(),
			services.cart,
			services.orders,
			services.shipping,
			services.inventory,
			services.wallet,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "api server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}
}

type serviceSet struct {
	cart      cart.Service
	orders    orders.Service
	shipping  shipping.Service
	inventory inventory.Service
	wallet    wallet.Service
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, cache redis.CacheStore, reg prometheus.Registerer) (*serviceSet, error) {
	clk := clock.NewSystem()
	opMetrics := metrics.NewOperationMetrics(reg)
	emitter := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	counter, err := sequence.NewCounter(clk, cfg.Orders.DailyLimit)
	if err != nil {
		return nil, err
	}

	inventoryRepo := inventory.NewRepository(dbClient.DB())
	ledger, err := inventory.NewLedger(inventoryRepo, clk)
	if err != nil {
		return nil, err
	}
	inventoryService, err := inventory.NewService(dbClient, inventoryRepo, ledger, opMetrics, logg)
	if err != nil {
		return nil, err
	}

	cartRepo := cart.NewRepository(dbClient.DB())
	cartService, err := cart.NewService(cartRepo, dbClient, ledger, opMetrics, logg)
	if err != nil {
		return nil, err
	}

	shippingService, err := shipping.NewService(shipping.NewRepository(dbClient.DB()), cache, cfg.Shipping.RuleCacheTTL, logg)
	if err != nil {
		return nil, err
	}

	ordersService, err := orders.NewService(orders.Deps{
		Tx:       dbClient,
		Repo:     orders.NewRepository(dbClient.DB()),
		Carts:    cartRepo,
		Sequence: counter,
		Shipping: shippingService,
		Ledger:   ledger,
		Outbox:   emitter,
		Clock:    clk,
		Retry: retry.Policy{
			MaxAttempts: cfg.Orders.CreateMaxAttempts,
			Base:        cfg.Orders.CreateRetryBase,
		},
		Metrics: opMetrics,
		Logger:  logg,
	})
	if err != nil {
		return nil, err
	}

	walletService, err := wallet.NewService(dbClient, wallet.NewRepository(dbClient.DB()), emitter, clk, opMetrics, logg)
	if err != nil {
		return nil, err
	}

	return &serviceSet{
		cart:      cartService,
		orders:    ordersService,
		shipping:  shippingService,
		inventory: inventoryService,
		wallet:    walletService,
	}, nil
}
