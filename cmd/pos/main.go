package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/tiendacaps/pos-api/internal/clients/catalog"
	"github.com/tiendacaps/pos-api/internal/clients/sales"
	"github.com/tiendacaps/pos-api/internal/handlers"
	"github.com/tiendacaps/pos-api/internal/platform/config"
	"github.com/tiendacaps/pos-api/internal/platform/idempotency"
	"github.com/tiendacaps/pos-api/internal/platform/observability"
	"github.com/tiendacaps/pos-api/internal/repositories"
	"github.com/tiendacaps/pos-api/internal/repositories/memory"
	"github.com/tiendacaps/pos-api/internal/services"

	"github.com/oklog/ulid/v2"
)

func main() {
	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("pos")

	cfg, err := config.Load()
	if err != nil {
		var invalid *config.ValidationError
		if errors.As(err, &invalid) {
			logger.Fatal("invalid configuration", zap.Strings("fields", invalid.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	catalogClient, err := catalog.NewClient(cfg.Backend.CatalogBaseURL,
		catalog.WithTimeout(cfg.Backend.ClientTimeout),
	)
	if err != nil {
		logger.Fatal("failed to initialise catalog client", zap.Error(err))
	}

	breakerLogger := logger.Named("breaker")
	salesClient, err := sales.NewClient(cfg.Backend.SalesBaseURL,
		sales.WithBreakerSettings(sales.BreakerSettings{
			MaxRequests:         cfg.Checkout.BreakerMaxRequests,
			Interval:            cfg.Checkout.BreakerInterval,
			Timeout:             cfg.Checkout.BreakerTimeout,
			ConsecutiveFailures: cfg.Checkout.BreakerConsecutiveFailures,
		}),
		sales.WithStateChangeHook(func(name string, from, to gobreaker.State) {
			breakerLogger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		}),
	)
	if err != nil {
		logger.Fatal("failed to initialise sales client", zap.Error(err))
	}

	cartRepo := memory.NewCartRepository()

	cartService, err := services.NewCartService(services.CartServiceDeps{
		Repository:  cartRepo,
		Clock:       time.Now,
		IDGenerator: func() string { return ulid.Make().String() },
		Logger:      observability.ServiceLogger(logger.Named("cart")),
	})
	if err != nil {
		logger.Fatal("failed to initialise cart service", zap.Error(err))
	}

	totalsCalculator := services.NewTotalsCalculator(services.TotalsCalculatorDeps{
		Clock:    time.Now,
		CacheTTL: cfg.Cart.TotalsCacheTTL,
	})

	catalogService, err := services.NewCatalogService(services.CatalogServiceDeps{
		Lookup:           catalogClient,
		Clock:            time.Now,
		CacheTTL:         cfg.Catalog.CacheTTL,
		QuickSearchLimit: cfg.Catalog.QuickSearchLimit,
		Logger:           observability.ServiceLogger(logger.Named("catalog")),
	})
	if err != nil {
		logger.Fatal("failed to initialise catalog service", zap.Error(err))
	}

	checkoutService, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Carts:     cartService,
		Submitter: salesClient,
		Totals:    totalsCalculator,
		Clock:     time.Now,
		Logger:    observability.ServiceLogger(logger.Named("checkout")),
	})
	if err != nil {
		logger.Fatal("failed to initialise checkout service", zap.Error(err))
	}

	cartHandlers := handlers.NewCartHandlers(cartService, catalogService, totalsCalculator)
	checkoutHandlers := handlers.NewCheckoutHandlers(checkoutService)
	productHandlers := handlers.NewProductHandlers(catalogService,
		handlers.WithScanRateLimit(30, time.Second, time.Now),
	)

	idempotencyStore := idempotency.NewMemoryStore()
	idempotencyMiddleware := idempotency.Middleware(idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
	)

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	var cleanupWG sync.WaitGroup
	cleanupTicker := time.NewTicker(cfg.Idempotency.CleanupInterval)
	cleanupWG.Add(1)
	go func() {
		defer cleanupWG.Done()
		for {
			select {
			case <-cleanupCtx.Done():
				return
			case now := <-cleanupTicker.C:
				removed, err := idempotencyStore.CleanupExpired(cleanupCtx, now, cfg.Idempotency.CleanupBatchSize)
				if err != nil {
					logger.Warn("idempotency cleanup failed", zap.Error(err))
					continue
				}
				if removed > 0 {
					logger.Debug("idempotency records expired", zap.Int("removed", removed))
				}
			}
		}
	}()

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthVersion(buildVersion()),
		handlers.WithReadinessCheck("cart_store", func(ctx context.Context) error {
			_, err := cartRepo.GetCart(ctx, "readiness-probe")
			var repoErr repositories.RepositoryError
			if err != nil && (!errors.As(err, &repoErr) || !repoErr.IsNotFound()) {
				return err
			}
			return nil
		}),
	)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.TraceMiddleware(),
			observability.InjectLoggerMiddleware(logger.Named("http")),
			observability.RecoveryMiddleware(logger.Named("http")),
			observability.RequestLoggerMiddleware(),
		),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithRegisterRoutes(func(r chi.Router) {
			cartHandlers.Routes(r)
			r.Group(func(checkout chi.Router) {
				checkout.Use(idempotencyMiddleware)
				checkoutHandlers.Routes(checkout)
			})
		}),
		handlers.WithProductRoutes(productHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("pos api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	cleanupTicker.Stop()
	cleanupCancel()
	cleanupWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildVersion() string {
	if version := strings.TrimSpace(os.Getenv("POS_BUILD_VERSION")); version != "" {
		return version
	}
	return "dev"
}
