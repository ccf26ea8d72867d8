package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/utafrali/storefront/internal/config"
	"github.com/utafrali/storefront/internal/event"
	handler "github.com/utafrali/storefront/internal/handler/http"
	"github.com/utafrali/storefront/internal/repository"
	mongorepo "github.com/utafrali/storefront/internal/repository/mongo"
	pgrepo "github.com/utafrali/storefront/internal/repository/postgres"
	redisrepo "github.com/utafrali/storefront/internal/repository/redis"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/health"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/pkg/tracing"
)

// App wires together all dependencies and runs the storefront service.
type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	// closers run in reverse order on shutdown.
	closers []closer
}

type closer struct {
	name string
	fn   func(context.Context) error
}

// stores are the repositories selected by CATALOG_STORE and CART_STORE.
type stores struct {
	products repository.ProductRepository
	carts    repository.CartRepository
}

// NewApp creates a new application instance, connecting to every configured
// backend. Connections opened before a failure are closed again.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.close(context.Background())
		}
	}()

	shutdownTracer, err := tracing.InitTracer(ctx, cfg.TracingConfig())
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.onClose("tracer", shutdownTracer)

	database.SetSlowQueryLogging(cfg.SlowQueryThreshold(), logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	healthHandler := health.NewHandler()

	st, err := a.openStores(ctx, reg, healthHandler)
	if err != nil {
		return nil, err
	}

	publisher := a.newPublisher(reg, healthHandler)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           newRouter(cfg, logger, st, publisher, reg, healthHandler),
		ReadTimeout:       time.Duration(cfg.HTTPReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTPWriteTimeoutSec) * time.Second,
		IdleTimeout:       time.Duration(cfg.HTTPIdleTimeoutSec) * time.Second,
	}
	return a, nil
}

// newRouter builds the service graph on top of already opened stores.
func newRouter(
	cfg *config.Config,
	logger *slog.Logger,
	st stores,
	publisher pkgkafka.Publisher,
	reg *prometheus.Registry,
	healthHandler *health.Handler,
) http.Handler {
	producer := event.NewProducer(publisher, logger)
	productService := service.NewProductService(st.products, producer, logger)
	cartService := service.NewCartService(st.carts, st.products, producer, logger)

	return handler.NewRouter(handler.RouterConfig{
		Products:       productService,
		Carts:          cartService,
		Health:         healthHandler,
		Metrics:        middleware.NewHTTPMetrics(config.ServiceName, reg),
		Gatherer:       reg,
		Logger:         logger,
		CORSOrigins:    cfg.CORSAllowedOrigins,
		PprofCIDRs:     cfg.PprofAllowedCIDRs,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		RequestTimeout: time.Duration(cfg.RequestTimeoutSec) * time.Second,
	})
}

func (a *App) openStores(ctx context.Context, reg prometheus.Registerer, h *health.Handler) (stores, error) {
	var st stores

	if a.cfg.UsesMongo() {
		mongoCfg := a.cfg.MongoConfig()
		mongoCfg.PoolMonitor = database.NewMongoPoolMetrics(reg, config.ServiceName).Monitor()

		client, err := database.NewMongoClient(ctx, mongoCfg, a.logger)
		if err != nil {
			return st, fmt.Errorf("connect to mongo: %w", err)
		}
		a.onClose("mongo", client.Disconnect)
		h.RegisterCritical("mongo", database.MongoPing(client))

		db := client.Database(mongoCfg.Database)
		if err := mongorepo.EnsureIndexes(ctx, db); err != nil {
			return st, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		a.logger.Info("connected to MongoDB", slog.String("database", mongoCfg.Database))

		if a.cfg.CatalogStore == config.StoreMongo {
			st.products = mongorepo.NewProductRepository(db)
		}
		if a.cfg.CartStore == config.StoreMongo {
			st.carts = mongorepo.NewCartRepository(db)
		}
	}

	if a.cfg.CatalogStore == config.StorePostgres {
		pool, err := database.NewPostgresPool(ctx, a.cfg.PostgresConfig(), a.logger)
		if err != nil {
			return st, fmt.Errorf("connect to postgres: %w", err)
		}
		a.onClose("postgres", func(context.Context) error {
			pool.Close()
			return nil
		})
		h.RegisterCritical("postgres", pool.Ping)

		if err := database.RegisterPoolMetrics(reg, pool, config.ServiceName); err != nil {
			return st, fmt.Errorf("register pool metrics: %w", err)
		}
		if err := database.RunMigrations(ctx, pool, pgrepo.Migrations(), a.logger); err != nil {
			return st, fmt.Errorf("run migrations: %w", err)
		}
		a.logger.Info("connected to PostgreSQL", slog.String("database", a.cfg.PostgresDB))

		st.products = pgrepo.NewProductRepository(pool)
	}

	if a.cfg.CartStore == config.StoreRedis {
		rdb, err := database.NewRedisClient(ctx, a.cfg.RedisConfig(), a.logger)
		if err != nil {
			return st, fmt.Errorf("connect to redis: %w", err)
		}
		a.onClose("redis", func(context.Context) error { return rdb.Close() })
		h.RegisterCritical("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		a.logger.Info("connected to Redis", slog.String("addr", a.cfg.RedisConfig().Addr()))

		st.carts = redisrepo.NewCartRepository(rdb, a.cfg.CartTTL(),
			redisrepo.WithMaxRetries(a.cfg.CartMaxRetries),
			redisrepo.WithMetrics(redisrepo.NewMetrics(reg)),
		)
	}

	return st, nil
}

// newPublisher returns the Kafka producer behind a circuit breaker, or a
// no-op publisher when Kafka is disabled.
func (a *App) newPublisher(reg prometheus.Registerer, h *health.Handler) pkgkafka.Publisher {
	if !a.cfg.KafkaEnabled {
		a.logger.Info("kafka disabled, domain events will not be published")
		return pkgkafka.NoopPublisher{}
	}

	metrics := pkgkafka.NewMetrics(reg)
	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(a.cfg.KafkaBrokers), metrics, a.logger)
	a.onClose("kafka", func(context.Context) error { return producer.Close() })
	h.RegisterNonCritical("kafka", producer.Ping)
	a.logger.Info("kafka producer initialized", slog.Any("brokers", a.cfg.KafkaBrokers))

	return pkgkafka.NewBreakerPublisher(producer, pkgkafka.DefaultBreakerConfig("kafka-producer"), metrics, a.logger)
}

func (a *App) onClose(name string, fn func(context.Context) error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.Shutdown()
		return err
	}

	a.Shutdown()
	return nil
}

// Shutdown gracefully stops the HTTP server and closes every backend.
func (a *App) Shutdown() {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(a.cfg.ShutdownTimeoutSec)*time.Second)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		}
	}
	a.close(shutdownCtx)

	a.logger.Info("application shutdown complete")
}

func (a *App) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(ctx); err != nil {
			a.logger.Error("close error",
				slog.String("component", c.name),
				slog.String("error", err.Error()),
			)
		}
	}
	a.closers = nil
}
