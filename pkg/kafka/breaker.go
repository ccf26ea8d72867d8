package kafka

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned when the breaker rejects a publish without trying it.
var ErrCircuitOpen = gobreaker.ErrOpenState

// BreakerConfig configures the circuit breaker guarding a Publisher.
type BreakerConfig struct {
	Name string
	// MaxRequests is the number of trial publishes allowed while half-open.
	MaxRequests uint32
	// Interval clears the failure counts while closed. 0 never clears them.
	Interval time.Duration
	// Timeout is how long the breaker stays open before going half-open.
	Timeout time.Duration
	// FailureRatio trips the breaker once at least MinRequests were seen.
	FailureRatio float64
	MinRequests  uint32
}

// DefaultBreakerConfig returns the settings used for the event publisher.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:         name,
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// BreakerPublisher short-circuits publishing while the broker keeps failing,
// so a broker outage costs requests nothing but a log line.
type BreakerPublisher struct {
	next    Publisher
	breaker *gobreaker.CircuitBreaker[struct{}]
	name    string
	metrics *Metrics
	logger  *slog.Logger
}

// NewBreakerPublisher wraps next with a circuit breaker.
func NewBreakerPublisher(next Publisher, cfg BreakerConfig, metrics *Metrics, logger *slog.Logger) *BreakerPublisher {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		// A caller giving up is not a broker failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			if metrics != nil {
				metrics.breakerState.WithLabelValues(name).Set(stateToFloat(to))
			}
		},
	}

	if metrics != nil {
		metrics.breakerState.WithLabelValues(cfg.Name).Set(0)
	}

	return &BreakerPublisher{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[struct{}](settings),
		name:    cfg.Name,
		metrics: metrics,
		logger:  logger,
	}
}

// Publish forwards to the wrapped publisher unless the breaker is open.
func (b *BreakerPublisher) Publish(ctx context.Context, topic string, event *Event) error {
	_, err := b.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, b.next.Publish(ctx, topic, event)
	})
	if err != nil && (errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)) {
		if b.metrics != nil {
			b.metrics.shortCircuit.WithLabelValues(b.name).Inc()
		}
	}
	return err
}

// State returns the current state of the circuit breaker.
func (b *BreakerPublisher) State() gobreaker.State {
	return b.breaker.State()
}
