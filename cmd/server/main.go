package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/utafrali/storefront/internal/app"
	"github.com/utafrali/storefront/internal/config"
	pkgconfig "github.com/utafrali/storefront/pkg/config"
	"github.com/utafrali/storefront/pkg/logger"
)

func main() {
	if err := pkgconfig.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Load configuration from environment variables.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize structured logger.
	log := logger.New(config.ServiceName, cfg.LogLevel,
		slog.String("environment", cfg.Environment),
	)
	log.Info("starting storefront service",
		slog.Int("http_port", cfg.HTTPPort),
		slog.String("catalog_store", cfg.CatalogStore),
		slog.String("cart_store", cfg.CartStore),
		slog.Bool("kafka_enabled", cfg.KafkaEnabled),
	)

	// Create a context that is cancelled on SIGINT or SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	initCtx, initCancel := context.WithTimeout(ctx, time.Minute)
	application, err := app.NewApp(initCtx, cfg, log)
	initCancel()
	if err != nil {
		log.Error("failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Run the application. This blocks until shutdown.
	if err := application.Run(ctx); err != nil {
		log.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("storefront service stopped")
}
