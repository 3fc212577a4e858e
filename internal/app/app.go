package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/mahmoodamara/storefront/internal/auth"
	"github.com/mahmoodamara/storefront/internal/config"
	"github.com/mahmoodamara/storefront/internal/event"
	"github.com/mahmoodamara/storefront/internal/gateway"
	"github.com/mahmoodamara/storefront/internal/gateway/hosted"
	gwmock "github.com/mahmoodamara/storefront/internal/gateway/mock"
	handler "github.com/mahmoodamara/storefront/internal/handler/http"
	"github.com/mahmoodamara/storefront/internal/repository/postgres"
	redisrepo "github.com/mahmoodamara/storefront/internal/repository/redis"
	"github.com/mahmoodamara/storefront/internal/service"
	"github.com/mahmoodamara/storefront/migrations"
	"github.com/mahmoodamara/storefront/pkg/database"
	"github.com/mahmoodamara/storefront/pkg/health"
	"github.com/mahmoodamara/storefront/pkg/httpclient"
	pkgkafka "github.com/mahmoodamara/storefront/pkg/kafka"
	"github.com/mahmoodamara/storefront/pkg/middleware"
	"github.com/mahmoodamara/storefront/pkg/tracing"
)

// App wires together all dependencies and runs the storefront service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *goredis.Client
	producer       *pkgkafka.Producer
	sweeper        *service.Sweeper
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "storefront",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize PostgreSQL connection pool.
	pgCfg := database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: time.Duration(cfg.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(cfg.DBMaxConnIdleTimeMins) * time.Minute,
	}

	pool, err := database.NewPostgresPool(ctx, &pgCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	database.RegisterPoolMetrics(pool, "storefront")

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.Files, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Configure slow query logging.
	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	}

	// Initialize Redis for cart storage.
	redisClient, err := database.NewRedisClient(ctx, database.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis",
		slog.String("host", cfg.RedisHost),
		slog.Int("port", cfg.RedisPort),
	)

	// Initialize Kafka producer.
	kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
	producer := pkgkafka.NewProducer(kafkaCfg, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Build the repository layer.
	txRunner := database.NewTxRunner(pool, false)
	catalogRepo := postgres.NewCatalogRepository(pool)
	inventoryRepo := postgres.NewInventoryRepository(pool, txRunner)
	couponRepo := postgres.NewCouponRepository(pool, txRunner)
	promotionRepo := postgres.NewPromotionRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool, txRunner)
	shippingRepo := postgres.NewShippingRepository(pool)
	cartRepo := redisrepo.NewCartRepository(redisClient, time.Duration(cfg.CartTTLHours)*time.Hour)

	eventProducer := event.NewProducer(producer, logger)

	// Select the payment gateway.
	gw, err := newGateway(cfg, logger)
	if err != nil {
		redisClient.Close()
		pool.Close()
		return nil, err
	}
	logger.Info("payment gateway initialized", slog.String("provider", gw.Name()))

	// Build the service layer.
	pricingService := service.NewPricingService(
		catalogRepo, promotionRepo, couponRepo, inventoryRepo, shippingRepo,
		service.PricingConfig{
			Currency:            cfg.Currency,
			VATBasisPoints:      cfg.VATBasisPoints,
			StorePickupFeeMinor: cfg.StorePickupFeeMinor,
		},
		logger,
	)
	checkoutService := service.NewCheckoutService(
		orderRepo, inventoryRepo, couponRepo, cartRepo,
		pricingService, gw, eventProducer, logger,
		service.CheckoutConfig{
			ReservationTTL: time.Duration(cfg.ReservationTTLMins) * time.Minute,
			SuccessURL:     cfg.PaymentSuccessURL,
			CancelURL:      cfg.PaymentCancelURL,
		},
	)
	refundService := service.NewRefundService(orderRepo, inventoryRepo, gw, eventProducer, logger)
	webhookService := service.NewWebhookService(
		orderRepo, inventoryRepo, couponRepo, cartRepo,
		refundService, eventProducer, logger,
		service.WebhookConfig{
			Secret:                   cfg.GatewayWebhookSecret,
			AutoRefundOnStockFailure: cfg.AutoRefundOnStockFailure,
		},
	)
	cartService := service.NewCartService(cartRepo, catalogRepo, logger)
	catalogService := service.NewCatalogService(catalogRepo, inventoryRepo, shippingRepo, logger)
	adminService := service.NewAdminService(catalogRepo, inventoryRepo, couponRepo, promotionRepo, shippingRepo, logger)

	sweeper := service.NewSweeper(inventoryRepo, logger, service.SweeperConfig{
		Interval:  time.Duration(cfg.SweepIntervalSecs) * time.Second,
		BatchSize: cfg.SweepBatchSize,
	})

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, time.Duration(cfg.JWTAccessExpiryHours)*time.Hour)

	// Health checks. Postgres is critical; redis and kafka degrade the
	// service but carts and events fail soft.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})

	// HTTP router.
	router := handler.NewRouter(handler.RouterConfig{
		Checkout:   checkoutService,
		Carts:      cartService,
		Catalog:    catalogService,
		Webhooks:   webhookService,
		Refunds:    refundService,
		Admin:      adminService,
		JWTManager: jwtManager,
		Health:     healthHandler,
		Logger:     logger,
		CORS: middleware.CORSConfig{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			Environment:    cfg.Environment,
		},
		PprofCIDRs:     cfg.PprofAllowedCIDRs,
		RequestTimeout: time.Duration(cfg.RequestTimeout) * time.Second,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redis:          redisClient,
		producer:       producer,
		sweeper:        sweeper,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// newGateway builds the configured payment gateway. The hosted provider gets
// a retrying HTTP client behind a circuit breaker so a provider outage cannot
// pile up checkout requests.
func newGateway(cfg *config.Config, logger *slog.Logger) (gateway.Gateway, error) {
	switch cfg.GatewayProvider {
	case "mock":
		return gwmock.New(), nil
	case "hosted":
		baseClient := httpclient.New(httpclient.Config{
			Timeout:         10 * time.Second,
			MaxRetries:      3,
			RetryWaitMin:    500 * time.Millisecond,
			RetryWaitMax:    5 * time.Second,
			MaxConnsPerHost: 100,
		})
		cbCfg := httpclient.CircuitBreakerConfig{
			Name:         "payment-gateway",
			MaxRequests:  cfg.CBMaxRequests,
			Interval:     time.Duration(cfg.CBInterval) * time.Second,
			Timeout:      time.Duration(cfg.CBTimeout) * time.Second,
			FailureRatio: cfg.CBFailureRatio,
			MinRequests:  cfg.CBMinRequests,
		}
		cbClient := httpclient.NewCircuitBreakerClient(baseClient, cbCfg, logger)
		return hosted.New(hosted.Config{
			BaseURL:    cfg.GatewayBaseURL,
			APIKey:     cfg.GatewayAPIKey,
			SuccessURL: cfg.PaymentSuccessURL,
			CancelURL:  cfg.PaymentCancelURL,
		}, cbClient, logger), nil
	default:
		return nil, fmt.Errorf("unknown gateway provider %q", cfg.GatewayProvider)
	}
}

// Run starts the HTTP server and the reservation sweeper, blocking until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go a.sweeper.Run(sweepCtx)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush pending spans from drained requests)
// 3. Kafka producer
// 4. Redis client
// 5. PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.redis.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
