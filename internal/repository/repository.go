package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// ProductFilter defines filter criteria for listing products.
type ProductFilter struct {
	Category *string
}

// ProductRepository defines the interface for product persistence operations.
type ProductRepository interface {
	// Create inserts a new product and sets its store-assigned ID.
	Create(ctx context.Context, product *domain.Product) error

	// GetByID retrieves a product by its identifier.
	GetByID(ctx context.Context, id string) (*domain.Product, error)

	// List returns every product matching the filter, in insertion order.
	List(ctx context.Context, filter ProductFilter) ([]domain.Product, error)

	// Replace overwrites the editable fields of a product in one operation and
	// returns the stored result.
	Replace(ctx context.Context, id string, fields domain.ProductFields, updatedAt time.Time) (*domain.Product, error)

	// Delete removes a product by its identifier.
	Delete(ctx context.Context, id string) error
}

// CartRepository defines the interface for cart persistence operations.
// AddItem and RemoveItem are each a single atomic operation against the store
// so concurrent requests for the same user cannot lose updates.
type CartRepository interface {
	// Get retrieves the cart owned by userID.
	Get(ctx context.Context, userID string) (*domain.Cart, error)

	// AddItem upserts the user's cart, incrementing the matching line's
	// quantity or appending item when no line for its product exists. A merge
	// that would exceed domain.MaxQuantity writes nothing and fails with
	// QuantityLimitError.
	AddItem(ctx context.Context, userID string, item domain.LineItem) (*domain.Cart, error)

	// RemoveItem subtracts quantity from the matching line, dropping the line
	// when it reaches zero or below.
	RemoveItem(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error)

	// Delete removes the user's cart. Deleting a missing cart is not an error.
	Delete(ctx context.Context, userID string) error
}

// Resource names used in not-found errors.
const (
	ResourceProduct  = "product"
	ResourceCart     = "cart"
	ResourceCartItem = "cart item"
)

// QuantityLimitError reports an add that would push the line for productID
// past domain.MaxQuantity.
func QuantityLimitError(productID string) error {
	return apperrors.InvalidInput(fmt.Sprintf(
		"quantity for product %s cannot exceed %d", productID, domain.MaxQuantity))
}
