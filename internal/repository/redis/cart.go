package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

const (
	keyPrefix = "cart:"

	// DefaultMaxRetries bounds optimistic transaction attempts per mutation.
	DefaultMaxRetries = 10
)

// Metrics counts optimistic-lock retries on cart mutations.
type Metrics struct {
	retries   *prometheus.CounterVec
	conflicts *prometheus.CounterVec
}

// NewMetrics registers the cart store collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cart_merge_retries_total",
			Help: "Cart mutations retried because the cart changed between WATCH and EXEC.",
		}, []string{"operation"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cart_merge_conflicts_total",
			Help: "Cart mutations abandoned after exhausting retries.",
		}, []string{"operation"}),
	}
	reg.MustRegister(m.retries, m.conflicts)
	return m
}

// Option configures a CartRepository.
type Option func(*CartRepository)

// WithMaxRetries overrides DefaultMaxRetries.
func WithMaxRetries(n int) Option {
	return func(r *CartRepository) {
		if n > 0 {
			r.maxRetries = n
		}
	}
}

// WithMetrics records retries and conflicts on m.
func WithMetrics(m *Metrics) Option {
	return func(r *CartRepository) { r.metrics = m }
}

// CartRepository implements repository.CartRepository using Redis. Each cart
// is one JSON value; mutations run as WATCH/MULTI/EXEC transactions and are
// retried when another client touched the key in between.
type CartRepository struct {
	client     *redis.Client
	ttl        time.Duration
	maxRetries int
	metrics    *Metrics
	now        func() time.Time
}

var _ repository.CartRepository = (*CartRepository)(nil)

// NewCartRepository creates a new Redis-backed cart repository. A zero ttl
// keeps carts until they are deleted.
func NewCartRepository(client *redis.Client, ttl time.Duration, opts ...Option) *CartRepository {
	r := &CartRepository{
		client:     client,
		ttl:        ttl,
		maxRetries: DefaultMaxRetries,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get retrieves a cart by user ID from Redis.
func (r *CartRepository) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := load(ctx, r.client, keyPrefix+userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, apperrors.NotFound(repository.ResourceCart, userID)
	}
	return cart, nil
}

// AddItem merges item into the user's cart, creating the cart if needed.
func (r *CartRepository) AddItem(ctx context.Context, userID string, item domain.LineItem) (*domain.Cart, error) {
	cart, err := r.update(ctx, "add", userID, true, func(c *domain.Cart) error {
		if err := c.AddItem(item); err != nil {
			return repository.QuantityLimitError(item.ProductID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("add cart item: %w", err)
	}
	return cart, nil
}

// RemoveItem subtracts quantity from the line for productID.
func (r *CartRepository) RemoveItem(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	cart, err := r.update(ctx, "remove", userID, false, func(c *domain.Cart) error {
		if !c.RemoveQuantity(productID, quantity) {
			return apperrors.NotFound(repository.ResourceCartItem, productID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("remove cart item: %w", err)
	}
	return cart, nil
}

// Delete removes a cart from Redis by user ID.
func (r *CartRepository) Delete(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, keyPrefix+userID).Err(); err != nil {
		return fmt.Errorf("redis del cart: %w", err)
	}
	return nil
}

// update applies mutate to the stored cart inside an optimistic transaction.
// Errors returned by mutate abort the transaction without writing.
func (r *CartRepository) update(ctx context.Context, op, userID string, create bool, mutate func(*domain.Cart) error) (*domain.Cart, error) {
	key := keyPrefix + userID
	var result *domain.Cart

	txf := func(tx *redis.Tx) error {
		cart, err := load(ctx, tx, key)
		if err != nil {
			return err
		}
		if cart == nil {
			if !create {
				return apperrors.NotFound(repository.ResourceCart, userID)
			}
			cart = domain.NewCart(userID)
		}

		if err := mutate(cart); err != nil {
			return err
		}
		cart.UpdatedAt = r.now()

		data, err := json.Marshal(cart)
		if err != nil {
			return fmt.Errorf("marshal cart: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, r.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		result = cart
		return nil
	}

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, err
		}
		if r.metrics != nil {
			r.metrics.retries.WithLabelValues(op).Inc()
		}
	}

	if r.metrics != nil {
		r.metrics.conflicts.WithLabelValues(op).Inc()
	}
	return nil, apperrors.Conflict("cart was modified concurrently, please retry")
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// load returns nil without error when the key does not exist.
func load(ctx context.Context, c getter, key string) (*domain.Cart, error) {
	data, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get cart: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}
	if cart.Products == nil {
		cart.Products = []domain.LineItem{}
	}
	return &cart, nil
}
