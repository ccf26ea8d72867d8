package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// CartItemInput identifies a product and quantity within a user's cart. A
// zero Quantity means domain.DefaultQuantity.
type CartItemInput struct {
	UserID    string
	ProductID string
	Quantity  int
}

func (in *CartItemInput) normalize() error {
	if in.UserID == "" {
		return apperrors.InvalidInput("userId is required")
	}
	if in.ProductID == "" {
		return apperrors.InvalidInput("productId is required")
	}
	if in.Quantity == 0 {
		in.Quantity = domain.DefaultQuantity
	}
	if in.Quantity < 0 {
		return apperrors.InvalidInput("quantity must be greater than 0")
	}
	if in.Quantity > domain.MaxQuantity {
		return apperrors.InvalidInput(fmt.Sprintf("quantity must be at most %d", domain.MaxQuantity))
	}
	return nil
}

// CartService implements the business logic for cart operations.
type CartService struct {
	carts    repository.CartRepository
	products repository.ProductRepository
	producer *event.Producer
	logger   *slog.Logger
}

// NewCartService creates a new cart service.
func NewCartService(carts repository.CartRepository, products repository.ProductRepository, producer *event.Producer, logger *slog.Logger) *CartService {
	return &CartService{
		carts:    carts,
		products: products,
		producer: producer,
		logger:   logger,
	}
}

// GetCart retrieves the cart for a user. If no cart exists, an empty,
// unsaved cart is returned.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("userId is required")
	}

	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return domain.NewCart(userID), nil
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return cart, nil
}

// AddItem snapshots the product and merges it into the user's cart, creating
// the cart on first use. Nothing is written when the product does not exist.
func (s *CartService) AddItem(ctx context.Context, in CartItemInput) (*domain.Cart, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	product, err := s.products.GetByID(ctx, in.ProductID)
	if err != nil {
		return nil, fmt.Errorf("resolve product: %w", err)
	}

	cart, err := s.carts.AddItem(ctx, in.UserID, domain.NewLineItem(product, in.Quantity))
	if err != nil {
		return nil, fmt.Errorf("add item: %w", err)
	}

	if err := s.producer.PublishCartUpdated(ctx, cart); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.updated event",
			slog.String("user_id", in.UserID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "item added to cart",
		slog.String("user_id", in.UserID),
		slog.String("product_id", in.ProductID),
		slog.Int("quantity", in.Quantity),
	)

	return cart, nil
}

// RemoveItem lowers the quantity of a line, dropping it once it reaches zero.
func (s *CartService) RemoveItem(ctx context.Context, in CartItemInput) (*domain.Cart, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	cart, err := s.carts.RemoveItem(ctx, in.UserID, in.ProductID, in.Quantity)
	if err != nil {
		return nil, fmt.Errorf("remove item: %w", err)
	}

	if err := s.producer.PublishCartUpdated(ctx, cart); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.updated event",
			slog.String("user_id", in.UserID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "item removed from cart",
		slog.String("user_id", in.UserID),
		slog.String("product_id", in.ProductID),
		slog.Int("quantity", in.Quantity),
	)

	return cart, nil
}

// ClearCart deletes the user's cart.
func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	if userID == "" {
		return apperrors.InvalidInput("userId is required")
	}

	if err := s.carts.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}

	if err := s.producer.PublishCartCleared(ctx, userID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.cleared event",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "cart cleared",
		slog.String("user_id", userID),
	)

	return nil
}
