package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
}

// Addr returns the Redis address string.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NewRedisClient creates a Redis client with tracing enabled and verifies
// the connection, retrying startup failures.
func NewRedisClient(ctx context.Context, cfg RedisConfig, logger *slog.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	client.AddHook(TracingHook{})

	err := connectWithRetry(ctx, "redis", logger, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// TracingHook is a redis.Hook that wraps every command and pipeline in a
// TraceQuery span. redis.Nil is a miss, not a failure.
type TracingHook struct{}

var _ redis.Hook = TracingHook{}

func (TracingHook) DialHook(next redis.DialHook) redis.DialHook { return next }

func (TracingHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		ctx, end := TraceQuery(ctx, SystemRedis, cmd.Name(), "")
		err := next(ctx, cmd)
		end(ignoreNil(err))
		return err
	}
}

func (TracingHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		ctx, end := TraceQuery(ctx, SystemRedis, "pipeline", fmt.Sprintf("%d commands", len(cmds)))
		err := next(ctx, cmds)
		end(ignoreNil(err))
		return err
	}
}

func ignoreNil(err error) error {
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
