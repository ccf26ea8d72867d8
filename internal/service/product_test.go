package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

func newTestProductService(repo *mockProductRepository, pub *mockPublisher) *ProductService {
	svc := NewProductService(repo, newTestProducer(pub), newTestLogger())
	svc.now = func() time.Time { return fixedNow }
	return svc
}

// ============================================================================
// CreateProduct
// ============================================================================

func TestCreateProduct_Success(t *testing.T) {
	repo := new(mockProductRepository)
	pub := new(mockPublisher)
	svc := newTestProductService(repo, pub)
	ctx := context.Background()

	repo.On("Create", ctx, mock.AnythingOfType("*domain.Product")).
		Run(func(args mock.Arguments) { args.Get(1).(*domain.Product).ID = "p1" }).
		Return(nil)
	pub.On("Publish", ctx, event.TopicProductCreated, mock.Anything).Return(nil)

	p, err := svc.CreateProduct(ctx, sampleFields())
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, sampleFields(), p.Fields())
	assert.Equal(t, fixedNow, p.CreatedAt)
	assert.NotNil(t, p.Reviews)
	repo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestCreateProduct_PublishFailureDoesNotFail(t *testing.T) {
	repo := new(mockProductRepository)
	pub := new(mockPublisher)
	svc := newTestProductService(repo, pub)
	ctx := context.Background()

	repo.On("Create", ctx, mock.Anything).Return(nil)
	pub.On("Publish", ctx, event.TopicProductCreated, mock.Anything).Return(errors.New("broker down"))

	_, err := svc.CreateProduct(ctx, sampleFields())
	assert.NoError(t, err)
}

func TestCreateProduct_InvalidFieldsSkipStore(t *testing.T) {
	cases := map[string]func(*domain.ProductFields){
		"no name":        func(f *domain.ProductFields) { f.ProductName = "" },
		"no image":       func(f *domain.ProductFields) { f.ImgURL = "" },
		"no category":    func(f *domain.ProductFields) { f.Category = "" },
		"nan price":      func(f *domain.ProductFields) { f.Price = math.NaN() },
		"inf price":      func(f *domain.ProductFields) { f.Price = math.Inf(1) },
		"no short desc":  func(f *domain.ProductFields) { f.ShortDesc = "" },
		"no description": func(f *domain.ProductFields) { f.Description = "" },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			repo := new(mockProductRepository)
			svc := newTestProductService(repo, new(mockPublisher))

			fields := sampleFields()
			mutate(&fields)
			_, err := svc.CreateProduct(context.Background(), fields)

			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestCreateProduct_StoreError(t *testing.T) {
	repo := new(mockProductRepository)
	svc := newTestProductService(repo, new(mockPublisher))
	ctx := context.Background()

	repo.On("Create", ctx, mock.Anything).Return(errors.New("disk full"))

	_, err := svc.CreateProduct(ctx, sampleFields())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create product")
}

// ============================================================================
// Reads
// ============================================================================

func TestGetProduct_NotFound(t *testing.T) {
	repo := new(mockProductRepository)
	svc := newTestProductService(repo, new(mockPublisher))
	ctx := context.Background()

	repo.On("GetByID", ctx, "missing").Return(nil, apperrors.NotFound("product", "missing"))

	_, err := svc.GetProduct(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestListProducts_Unfiltered(t *testing.T) {
	repo := new(mockProductRepository)
	svc := newTestProductService(repo, new(mockPublisher))
	ctx := context.Background()

	repo.On("List", ctx, repository.ProductFilter{}).Return([]domain.Product{*sampleProduct("p1")}, nil)

	products, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 1)
}

func TestListByCategory(t *testing.T) {
	repo := new(mockProductRepository)
	svc := newTestProductService(repo, new(mockPublisher))
	ctx := context.Background()

	repo.On("List", ctx, mock.MatchedBy(func(f repository.ProductFilter) bool {
		return f.Category != nil && *f.Category == "lighting"
	})).Return([]domain.Product{}, nil)

	products, err := svc.ListByCategory(ctx, "lighting")
	require.NoError(t, err)
	assert.Empty(t, products)
	repo.AssertExpectations(t)
}

func TestListByCategory_BlankRejected(t *testing.T) {
	for _, category := range []string{"", " ", "\t\n"} {
		repo := new(mockProductRepository)
		svc := newTestProductService(repo, new(mockPublisher))

		_, err := svc.ListByCategory(context.Background(), category)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		assert.Equal(t, 400, apperrors.HTTPStatus(err))
		repo.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
	}
}

// ============================================================================
// ReplaceProduct
// ============================================================================

func TestReplaceProduct_Success(t *testing.T) {
	repo := new(mockProductRepository)
	pub := new(mockPublisher)
	svc := newTestProductService(repo, pub)
	ctx := context.Background()

	fields := sampleFields()
	fields.ProductName = "Floor Lamp"
	updated := sampleProduct("p1")
	updated.Apply(fields, fixedNow)

	repo.On("Replace", ctx, "p1", fields, fixedNow).Return(updated, nil)
	pub.On("Publish", ctx, event.TopicProductUpdated, mock.Anything).Return(nil)

	p, err := svc.ReplaceProduct(ctx, "p1", fields)
	require.NoError(t, err)
	assert.Equal(t, "Floor Lamp", p.ProductName)
	repo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestReplaceProduct_NotFound(t *testing.T) {
	repo := new(mockProductRepository)
	pub := new(mockPublisher)
	svc := newTestProductService(repo, pub)
	ctx := context.Background()

	repo.On("Replace", ctx, "missing", sampleFields(), fixedNow).Return(nil, apperrors.NotFound("product", "missing"))

	_, err := svc.ReplaceProduct(ctx, "missing", sampleFields())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

// ============================================================================
// DeleteProduct
// ============================================================================

func TestDeleteProduct_Success(t *testing.T) {
	repo := new(mockProductRepository)
	pub := new(mockPublisher)
	svc := newTestProductService(repo, pub)
	ctx := context.Background()

	repo.On("Delete", ctx, "p1").Return(nil)
	pub.On("Publish", ctx, event.TopicProductDeleted, mock.Anything).Return(nil)

	assert.NoError(t, svc.DeleteProduct(ctx, "p1"))
	pub.AssertExpectations(t)
}

func TestDeleteProduct_NotFound(t *testing.T) {
	repo := new(mockProductRepository)
	pub := new(mockPublisher)
	svc := newTestProductService(repo, pub)
	ctx := context.Background()

	repo.On("Delete", ctx, "missing").Return(apperrors.NotFound("product", "missing"))

	err := svc.DeleteProduct(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Equal(t, 404, apperrors.HTTPStatus(err))
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}
