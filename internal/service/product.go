package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// ProductService implements the business logic for catalog operations.
type ProductService struct {
	repo     repository.ProductRepository
	producer *event.Producer
	logger   *slog.Logger
	now      func() time.Time
}

// NewProductService creates a new product service.
func NewProductService(repo repository.ProductRepository, producer *event.Producer, logger *slog.Logger) *ProductService {
	return &ProductService{
		repo:     repo,
		producer: producer,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateProduct persists a new product built from fields.
func (s *ProductService) CreateProduct(ctx context.Context, fields domain.ProductFields) (*domain.Product, error) {
	if err := validateFields(fields); err != nil {
		return nil, err
	}

	product := domain.NewProduct(fields, s.now())
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	if err := s.producer.PublishProductCreated(ctx, product); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish product.created event",
			slog.String("product_id", product.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "product created",
		slog.String("product_id", product.ID),
		slog.String("category", product.Category),
	)

	return product, nil
}

// GetProduct retrieves a product by its ID.
func (s *ProductService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product by id: %w", err)
	}
	return product, nil
}

// ListProducts returns the whole catalog.
func (s *ProductService) ListProducts(ctx context.Context) ([]domain.Product, error) {
	products, err := s.repo.List(ctx, repository.ProductFilter{})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// ListByCategory returns every product whose category equals category
// exactly. A blank category is rejected.
func (s *ProductService) ListByCategory(ctx context.Context, category string) ([]domain.Product, error) {
	if strings.TrimSpace(category) == "" {
		return nil, apperrors.InvalidInput("category is required")
	}

	products, err := s.repo.List(ctx, repository.ProductFilter{Category: &category})
	if err != nil {
		return nil, fmt.Errorf("list products by category: %w", err)
	}
	return products, nil
}

// ReplaceProduct overwrites every editable field of the product.
func (s *ProductService) ReplaceProduct(ctx context.Context, id string, fields domain.ProductFields) (*domain.Product, error) {
	if err := validateFields(fields); err != nil {
		return nil, err
	}

	product, err := s.repo.Replace(ctx, id, fields, s.now())
	if err != nil {
		return nil, fmt.Errorf("replace product: %w", err)
	}

	if err := s.producer.PublishProductUpdated(ctx, product); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish product.updated event",
			slog.String("product_id", product.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "product replaced",
		slog.String("product_id", product.ID),
	)

	return product, nil
}

// DeleteProduct removes a product by its ID. Cart snapshots of the product
// are left in place.
func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	if err := s.producer.PublishProductDeleted(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish product.deleted event",
			slog.String("product_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "product deleted",
		slog.String("product_id", id),
	)

	return nil
}

// validateFields rejects field sets that bypassed request validation.
func validateFields(f domain.ProductFields) error {
	switch {
	case f.ProductName == "":
		return apperrors.InvalidInput("productName is required")
	case f.ImgURL == "":
		return apperrors.InvalidInput("imgUrl is required")
	case f.Category == "":
		return apperrors.InvalidInput("category is required")
	case math.IsNaN(f.Price) || math.IsInf(f.Price, 0):
		return apperrors.InvalidInput("price must be a number")
	case f.ShortDesc == "":
		return apperrors.InvalidInput("shortDesc is required")
	case f.Description == "":
		return apperrors.InvalidInput("description is required")
	}
	return nil
}
