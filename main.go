package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"storefront/internal/billing"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/handlers"
	"storefront/internal/logger"
	"storefront/internal/middleware"
	"storefront/internal/repositories"
	"storefront/internal/services"
	"storefront/internal/telemetry"
	"storefront/pkg/events"
	"storefront/pkg/kafka"
	"storefront/pkg/rabbitmq"
)

const orderEventsQueue = "storefront.order-events"

// appDeps are the resources newApp wires into handlers. main builds them from
// config; tests build them from fakes.
type appDeps struct {
	cfg       *config.Config
	db        *gorm.DB
	carts     repositories.CartRepository
	publisher events.Publisher
	billing   billing.CheckoutProvider
	registry  *prometheus.Registry
	log       *slog.Logger
	accessLog io.Writer // nil disables the request log
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(os.Stdout, cfg.Env, cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server gracefully stopped")
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(db); err != nil {
			log.Error("database close failed", "error", err)
		}
	}()

	if err := database.Migrate(db); err != nil {
		return err
	}
	if cfg.SeedData {
		if err := database.Seed(ctx, db, log); err != nil {
			return err
		}
	}

	carts, closeCarts, err := newCartRepository(ctx, cfg.Redis, log)
	if err != nil {
		return err
	}
	defer closeCarts()

	publisher, closePublisher, err := newPublisher(ctx, cfg.Events, log)
	if err != nil {
		return err
	}
	defer closePublisher()

	var provider billing.CheckoutProvider
	if cfg.Stripe.SecretKey != "" {
		provider = billing.NewStripeProvider(cfg.Stripe.SecretKey)
	} else {
		log.Warn("STRIPE_SECRET_KEY not set, checkout sessions are simulated")
		provider = billing.NewMockProvider()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	app := newApp(appDeps{
		cfg:       cfg,
		db:        db,
		carts:     carts,
		publisher: publisher,
		billing:   provider,
		registry:  registry,
		log:       log,
		accessLog: os.Stdout,
	})

	listenErr := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", cfg.Port, "env", cfg.Env)
		listenErr <- app.Listen(cfg.Port)
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("server failed to start: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		return fmt.Errorf("fiber shutdown: %w", err)
	}
	return nil
}

// newApp builds the Fiber app with every route registered.
func newApp(d appDeps) *fiber.App {
	cfg, log := d.cfg, d.log

	app := fiber.New(fiber.Config{
		AppName:      "storefront",
		ErrorHandler: errorHandler(log),
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	if d.accessLog != nil {
		app.Use(fiberlogger.New(fiberlogger.Config{
			Format: "${time} ${locals:requestid} ${status} ${method} ${path} ${latency}\n",
			Output: d.accessLog,
		}))
	}

	metrics := telemetry.NewOrderMetrics(d.registry, "storefront")
	limits := services.OrderLimits{
		MaxOrderRate:        cfg.Orders.MaxOrderRate,
		MaxOrderQuantityCap: cfg.Orders.MaxOrderQuantityCap,
	}
	store := repositories.NewGORMStore(d.db)

	// --- Services ---
	productService := services.NewProductService(repositories.NewGORMProductRepository(d.db), limits)
	authService := services.NewAuthService(repositories.NewGORMUserRepository(d.db), cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	cartService := services.NewCartService(d.carts, productService, cfg.Redis.CartTTL, metrics, log)
	orderService := services.NewOrderService(store, d.carts, d.publisher, services.OrderServiceConfig{
		Limits:  limits,
		BaseURL: cfg.BaseURL,
	}, metrics, log)
	checkoutService := services.NewCheckoutService(store, d.billing, services.CheckoutConfig{
		SuccessURL: cfg.Stripe.SuccessURL,
		CancelURL:  cfg.Stripe.CancelURL,
		Currency:   cfg.Stripe.Currency,
	}, metrics, log)

	// --- Routes ---
	auth := middleware.AuthRequired(authService, log)
	apiV1 := app.Group("/api/v1")
	handlers.NewAuthHandler(authService, log).RegisterRoutes(apiV1)
	handlers.NewProductHandler(productService, log).RegisterRoutes(apiV1, auth)
	handlers.NewCartHandler(cartService, log).RegisterRoutes(apiV1)
	handlers.NewOrderHandler(orderService, checkoutService, log).RegisterRoutes(apiV1, auth)
	handlers.NewCheckoutHandler(checkoutService, log).RegisterRoutes(apiV1, auth)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{})))

	app.Get("/health", func(c *fiber.Ctx) error {
		status, code := "healthy", fiber.StatusOK
		dbStatus := "connected"
		if err := pingDB(c.UserContext(), d.db); err != nil {
			log.Warn("health check: database unreachable", "error", err)
			status, code, dbStatus = "degraded", fiber.StatusServiceUnavailable, "unreachable"
		}
		return c.Status(code).JSON(fiber.Map{
			"status":   status,
			"time":     time.Now().Format(time.RFC3339),
			"database": dbStatus,
		})
	})

	return app
}

func errorHandler(log *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}
		if code >= fiber.StatusInternalServerError {
			log.Error("unhandled request error", "path", c.Path(), "error", err)
			return c.Status(code).JSON(fiber.Map{"message": "internal server error"})
		}
		return c.Status(code).JSON(fiber.Map{"message": err.Error()})
	}
}

func pingDB(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// newCartRepository uses Redis when an address is configured and falls back
// to process memory otherwise.
func newCartRepository(ctx context.Context, cfg config.RedisConfig, log *slog.Logger) (repositories.CartRepository, func(), error) {
	if cfg.Addr == "" {
		log.Warn("REDIS_ADDR not set, carts are kept in memory")
		return repositories.NewMemoryCartRepository(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	log.Info("redis connection established", "addr", cfg.Addr)

	return repositories.NewRedisCartRepository(client), func() {
		if err := client.Close(); err != nil {
			log.Error("redis close failed", "error", err)
		}
	}, nil
}

// newPublisher connects the configured event broker.
func newPublisher(ctx context.Context, cfg config.EventsConfig, log *slog.Logger) (events.Publisher, func(), error) {
	switch cfg.Broker {
	case "rabbitmq":
		client, err := rabbitmq.NewClient(rabbitmq.Config{
			URL:      cfg.RabbitMQURL,
			Exchange: cfg.Exchange,
			Logger:   log,
		})
		if err != nil {
			return nil, nil, err
		}
		if err := client.ConsumeOrderEvents(orderEventsQueue, logOrderEvent(log)); err != nil {
			log.Error("failed to start order event consumer", "error", err)
		}
		return client, func() {
			if err := client.Close(); err != nil {
				log.Error("rabbitmq close failed", "error", err)
			}
		}, nil

	case "kafka":
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, 256, log)
		producer.Start(ctx)
		return producer, func() {
			producer.Close()
			producer.WaitClosed()
		}, nil

	default:
		log.Info("no event broker configured, order events are dropped")
		return events.NopPublisher{}, func() {}, nil
	}
}

func logOrderEvent(log *slog.Logger) func(events.Envelope) error {
	return func(env events.Envelope) error {
		log.Info("order event received",
			"event_type", env.EventType,
			"event_id", env.EventID,
			"order_id", env.CorrelationID,
		)
		return nil
	}
}
