package database

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/utafrali/storefront/pkg/database"

// Values for the db.system span attribute.
const (
	SystemPostgres = "postgresql"
	SystemMongo    = "mongodb"
	SystemRedis    = "redis"
)

var slowQueryCfg struct {
	mu        sync.RWMutex
	threshold time.Duration
	logger    *slog.Logger
}

// SetSlowQueryLogging configures slow query detection. Operations exceeding
// the threshold are logged as warnings. A zero threshold disables it.
func SetSlowQueryLogging(threshold time.Duration, logger *slog.Logger) {
	slowQueryCfg.mu.Lock()
	defer slowQueryCfg.mu.Unlock()
	slowQueryCfg.threshold = threshold
	slowQueryCfg.logger = logger
}

func getSlowQueryConfig() (time.Duration, *slog.Logger) {
	slowQueryCfg.mu.RLock()
	defer slowQueryCfg.mu.RUnlock()
	return slowQueryCfg.threshold, slowQueryCfg.logger
}

// TraceQuery starts a client span for one store operation. The returned
// function must be called when the operation completes:
//
//	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "carts.findOneAndUpdate", "")
//	defer func() { end(err) }()
func TraceQuery(ctx context.Context, system, operation, statement string) (context.Context, func(error)) {
	start := time.Now()
	attrs := []attribute.KeyValue{
		attribute.String("db.system", system),
		attribute.String("db.operation", operation),
	}
	if statement != "" {
		attrs = append(attrs, attribute.String("db.statement", statement))
	}
	ctx, span := otel.Tracer(tracerName).Start(ctx, "db."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		threshold, logger := getSlowQueryConfig()
		if threshold <= 0 || logger == nil {
			return
		}
		elapsed := time.Since(start)
		if elapsed < threshold {
			return
		}
		logAttrs := []any{
			slog.String("db_system", system),
			slog.String("operation", operation),
			slog.Duration("duration", elapsed),
		}
		if statement != "" {
			logAttrs = append(logAttrs, slog.String("statement", statement))
		}
		if err != nil {
			logAttrs = append(logAttrs, slog.String("error", err.Error()))
		}
		logger.WarnContext(ctx, "slow query detected", logAttrs...)
	}
}
