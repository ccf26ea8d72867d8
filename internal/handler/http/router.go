package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/middleware"
)

// RouterConfig carries everything NewRouter mounts.
type RouterConfig struct {
	Products    *service.ProductService
	Carts       *service.CartService
	Health      *health.Handler
	Metrics     *middleware.HTTPMetrics
	Gatherer    prometheus.Gatherer
	Logger      *slog.Logger
	CORSOrigins []string
	PprofCIDRs  []string
	// RateLimitRPS is the per-IP request rate; zero disables limiting.
	RateLimitRPS   float64
	RateLimitBurst int
	// RequestTimeout bounds each request; zero disables the timeout.
	RequestTimeout time.Duration
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSOrigins)))
	r.Use(chimw.Compress(5))
	if cfg.RequestTimeout > 0 {
		r.Use(chimw.Timeout(cfg.RequestTimeout))
	}
	r.Use(middleware.RequestLogging(cfg.Logger))
	r.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Handler)
	}
	r.Use(middleware.Tracing())
	r.Use(middleware.RequestLogger(cfg.Logger))

	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	// Health check endpoints
	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofCIDRs, cfg.Logger)

	// Catalog endpoints
	productHandler := NewProductHandler(cfg.Products, cfg.Logger)

	r.Route("/products", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(LimitBody(maxBodyBytes))

		r.Get("/", productHandler.ListProducts)
		r.Post("/", productHandler.CreateProduct)
		r.Get("/category", productHandler.ListByCategory)
		r.Post("/{productId}", productHandler.GetProduct)
		r.Put("/{productId}", productHandler.ReplaceProduct)
		r.Delete("/{productId}", productHandler.DeleteProduct)
	})

	// Cart endpoints
	cartHandler := NewCartHandler(cfg.Carts, cfg.Logger)

	r.Route("/cart", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(LimitBody(maxBodyBytes))

		r.Post("/add", cartHandler.AddItem)
		r.Post("/remove", cartHandler.RemoveItem)
		r.Get("/{userId}", cartHandler.GetCart)
		r.Delete("/{userId}", cartHandler.ClearCart)
	})

	return r
}
