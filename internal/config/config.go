package config

import (
	"fmt"
	"net/netip"
	"time"

	pkgconfig "github.com/utafrali/storefront/pkg/config"
	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/tracing"
)

// ServiceName is reported in logs, metrics and traces.
const ServiceName = "storefront"

// Store drivers.
const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Config holds all configuration for the storefront service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	Version     string `env:"SERVICE_VERSION" envDefault:"dev"`

	// HTTP server
	HTTPPort            int `env:"STOREFRONT_HTTP_PORT" envDefault:"3000"`
	HTTPReadTimeoutSec  int `env:"HTTP_READ_TIMEOUT_SECONDS" envDefault:"15"`
	HTTPWriteTimeoutSec int `env:"HTTP_WRITE_TIMEOUT_SECONDS" envDefault:"30"`
	HTTPIdleTimeoutSec  int `env:"HTTP_IDLE_TIMEOUT_SECONDS" envDefault:"60"`
	RequestTimeoutSec   int `env:"HTTP_REQUEST_TIMEOUT_SECONDS" envDefault:"30"`
	ShutdownTimeoutSec  int `env:"SHUTDOWN_TIMEOUT_SECONDS" envDefault:"15"`

	// Store selection
	CatalogStore string `env:"CATALOG_STORE" envDefault:"mongo"`
	CartStore    string `env:"CART_STORE" envDefault:"mongo"`

	// MongoDB
	MongoURI         string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDB          string `env:"MONGO_DB" envDefault:"storefront"`
	MongoMaxPoolSize uint64 `env:"MONGO_MAX_POOL_SIZE" envDefault:"100"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"storefront"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"storefront_secret"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"storefront"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Redis
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPass     string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"10"`

	// Cart TTL in hours for the Redis store. 0 keeps carts forever.
	CartTTLHours int `env:"CART_TTL_HOURS" envDefault:"0"`
	// Optimistic-lock attempts per Redis cart write.
	CartMaxRetries int `env:"CART_MAX_RETRIES" envDefault:"10"`

	// Kafka
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.0/8,::1/128" envSeparator:","`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Per-IP rate limiting. 0 disables it.
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"0"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"20"`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	switch c.CatalogStore {
	case StoreMongo, StorePostgres:
	default:
		return fmt.Errorf("CATALOG_STORE must be %q or %q, got %q", StoreMongo, StorePostgres, c.CatalogStore)
	}
	switch c.CartStore {
	case StoreMongo, StoreRedis:
	default:
		return fmt.Errorf("CART_STORE must be %q or %q, got %q", StoreMongo, StoreRedis, c.CartStore)
	}
	if c.UsesMongo() && c.MongoURI == "" {
		return fmt.Errorf("MONGO_URI is required")
	}
	if c.CatalogStore == StorePostgres {
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required")
		}
		if c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_USER is required")
		}
	}
	if c.CartTTLHours < 0 {
		return fmt.Errorf("CART_TTL_HOURS must not be negative, got %d", c.CartTTLHours)
	}
	if c.CartMaxRetries < 1 {
		return fmt.Errorf("CART_MAX_RETRIES must be at least 1, got %d", c.CartMaxRetries)
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED is set")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must not be negative, got %f", c.RateLimitRPS)
	}
	for _, cidr := range c.PprofAllowedCIDRs {
		if _, err := netip.ParsePrefix(cidr); err != nil {
			return fmt.Errorf("invalid PPROF_ALLOWED_CIDRS entry %q: %w", cidr, err)
		}
	}
	return nil
}

// UsesMongo reports whether any store is backed by MongoDB.
func (c *Config) UsesMongo() bool {
	return c.CatalogStore == StoreMongo || c.CartStore == StoreMongo
}

// MongoConfig returns the connection settings for database.NewMongoClient.
func (c *Config) MongoConfig() database.MongoConfig {
	return database.MongoConfig{
		URI:            c.MongoURI,
		Database:       c.MongoDB,
		MaxPoolSize:    c.MongoMaxPoolSize,
		ConnectTimeout: 10 * time.Second,
	}
}

// PostgresConfig returns the connection settings for database.NewPostgresPool.
func (c *Config) PostgresConfig() *database.PostgresConfig {
	return &database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: time.Duration(c.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(c.DBMaxConnIdleTimeMins) * time.Minute,
	}
}

// RedisConfig returns the connection settings for database.NewRedisClient.
func (c *Config) RedisConfig() database.RedisConfig {
	return database.RedisConfig{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPass,
		DB:       c.RedisDB,
		PoolSize: c.RedisPoolSize,
	}
}

// TracingConfig returns the settings for tracing.InitTracer.
func (c *Config) TracingConfig() tracing.Config {
	return tracing.Config{
		ServiceName:    ServiceName,
		ServiceVersion: c.Version,
		Environment:    c.Environment,
		OTLPEndpoint:   c.OTELEndpoint,
		SampleRate:     c.OTELSampleRate,
		Enabled:        c.OTELEnabled,
	}
}

// CartTTL is the expiry applied to Redis carts.
func (c *Config) CartTTL() time.Duration {
	return time.Duration(c.CartTTLHours) * time.Hour
}

// SlowQueryThreshold is the duration above which store calls are logged.
func (c *Config) SlowQueryThreshold() time.Duration {
	return time.Duration(c.SlowQueryThresholdMs) * time.Millisecond
}
