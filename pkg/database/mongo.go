package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoConfig holds MongoDB connection configuration.
type MongoConfig struct {
	URI            string
	Database       string
	MaxPoolSize    uint64
	ConnectTimeout time.Duration
	// PoolMonitor receives connection pool events, typically from NewMongoPoolMetrics.
	PoolMonitor *event.PoolMonitor
}

// NewMongoClient connects to MongoDB and pings the primary, retrying startup
// failures the same way NewPostgresPool does.
func NewMongoClient(ctx context.Context, cfg MongoConfig, logger *slog.Logger) (*mongo.Client, error) {
	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	if cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(cfg.ConnectTimeout).SetServerSelectionTimeout(cfg.ConnectTimeout)
	}
	if cfg.PoolMonitor != nil {
		opts.SetPoolMonitor(cfg.PoolMonitor)
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("parse mongo config: %w", err)
	}

	var client *mongo.Client
	err := connectWithRetry(ctx, "mongo", logger, func(ctx context.Context) error {
		c, err := mongo.Connect(ctx, opts)
		if err != nil {
			return err
		}
		if err := c.Ping(ctx, readpref.Primary()); err != nil {
			_ = c.Disconnect(context.Background())
			return err
		}
		client = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// MongoPing returns a health checker for the client.
func MongoPing(client *mongo.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		return client.Ping(ctx, readpref.Primary())
	}
}
