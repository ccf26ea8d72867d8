package http

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// =============================================================================
// POST /products
// =============================================================================

func TestCreateProduct_Success(t *testing.T) {
	env := newTestEnv(t)
	env.products.On("Create", mock.Anything, mock.AnythingOfType("*domain.Product")).
		Run(func(args mock.Arguments) { args.Get(1).(*domain.Product).ID = "6650c0ffee0000000000abcd" }).
		Return(nil)

	rec := env.do(http.MethodPost, "/products", validProductBody())

	assert.Equal(t, http.StatusCreated, rec.Code)
	var got map[string]any
	decodeInto(t, rec, &got)
	assert.Equal(t, "6650c0ffee0000000000abcd", got["_id"])
	assert.Equal(t, "Desk Lamp", got["productName"])
	assert.Equal(t, false, got["onSale"])
	assert.Equal(t, []any{}, got["reviews"])
	env.products.AssertExpectations(t)
}

func TestCreateProduct_MissingFieldRejected(t *testing.T) {
	for _, field := range []string{"productName", "imgUrl", "category", "onSale", "price", "shortDesc", "description"} {
		t.Run(field, func(t *testing.T) {
			env := newTestEnv(t)
			body := validProductBody()
			delete(body, field)

			rec := env.do(http.MethodPost, "/products", body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			errBody := decodeError(t, rec)
			assert.Equal(t, "VALIDATION_ERROR", errBody.Code)
			assert.Contains(t, errBody.Fields, field)
			env.products.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestCreateProduct_ZeroPriceAccepted(t *testing.T) {
	env := newTestEnv(t)
	env.products.On("Create", mock.Anything, mock.Anything).Return(nil)

	body := validProductBody()
	body["price"] = 0
	rec := env.do(http.MethodPost, "/products", body)

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestCreateProduct_InvalidURL(t *testing.T) {
	env := newTestEnv(t)
	body := validProductBody()
	body["imgUrl"] = "not a url"

	rec := env.do(http.MethodPost, "/products", body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	errBody := decodeError(t, rec)
	assert.Contains(t, errBody.Fields, "imgUrl")
}

func TestCreateProduct_WrongTypes(t *testing.T) {
	cases := map[string]struct {
		field string
		value any
		msg   string
	}{
		"price as string":  {"price", "12", "price must be a number"},
		"onSale as string": {"onSale", "yes", "onSale must be a boolean"},
		"name as number":   {"productName", 7, "productName must be a string"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t)
			body := validProductBody()
			body[tc.field] = tc.value

			rec := env.do(http.MethodPost, "/products", body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			errBody := decodeError(t, rec)
			assert.Equal(t, "INVALID_INPUT", errBody.Code)
			assert.Equal(t, tc.msg, errBody.Message)
		})
	}
}

func TestCreateProduct_UnknownFieldRejected(t *testing.T) {
	env := newTestEnv(t)
	body := validProductBody()
	body["avgRating"] = 5

	rec := env.do(http.MethodPost, "/products", body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env.products.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateProduct_MalformedJSON(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/products", `{"productName":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", decodeError(t, rec).Code)
}

func TestCreateProduct_StoreErrorHidesDetail(t *testing.T) {
	env := newTestEnv(t)
	env.products.On("Create", mock.Anything, mock.Anything).Return(assert.AnError)

	rec := env.do(http.MethodPost, "/products", validProductBody())

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	errBody := decodeError(t, rec)
	assert.Equal(t, "INTERNAL_ERROR", errBody.Code)
	assert.NotContains(t, errBody.Message, assert.AnError.Error())
}

func TestCreateProduct_WrongContentType(t *testing.T) {
	env := newTestEnv(t)

	req := newRequest(http.MethodPost, "/products", `{}`)
	req.Header.Set("Content-Type", "text/plain")
	rec := serve(env, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestCreateProduct_BodyOverLimit(t *testing.T) {
	env := newTestEnv(t)
	body := validProductBody()
	body["description"] = strings.Repeat("d", maxBodyBytes)

	rec := env.do(http.MethodPost, "/products", body)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "PAYLOAD_TOO_LARGE", decodeError(t, rec).Code)
	env.products.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestReplaceProduct_BodyOverLimit(t *testing.T) {
	env := newTestEnv(t)
	body := validProductBody()
	body["shortDesc"] = strings.Repeat("s", maxBodyBytes+1)

	rec := env.do(http.MethodPut, "/products/6650c0ffee0000000000abcd", body)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	env.products.AssertNotCalled(t, "Replace", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// =============================================================================
// GET /products, GET /products/category
// =============================================================================

func TestListProducts(t *testing.T) {
	env := newTestEnv(t)
	env.products.On("List", mock.Anything, repository.ProductFilter{}).
		Return([]domain.Product{*sampleProduct("a"), *sampleProduct("b")}, nil)

	rec := env.do(http.MethodGet, "/products", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var got []domain.Product
	decodeInto(t, rec, &got)
	assert.Len(t, got, 2)
}

func TestListProducts_EmptyIsArray(t *testing.T) {
	env := newTestEnv(t)
	env.products.On("List", mock.Anything, repository.ProductFilter{}).Return([]domain.Product{}, nil)

	rec := env.do(http.MethodGet, "/products", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestListByCategory(t *testing.T) {
	env := newTestEnv(t)
	env.products.On("List", mock.Anything, mock.MatchedBy(func(f repository.ProductFilter) bool {
		return f.Category != nil && *f.Category == "lighting"
	})).Return([]domain.Product{*sampleProduct("a")}, nil)

	rec := env.do(http.MethodGet, "/products/category?category=lighting", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	env.products.AssertExpectations(t)
}

func TestListByCategory_Blank(t *testing.T) {
	for _, target := range []string{"/products/category", "/products/category?category=", "/products/category?category=%20"} {
		env := newTestEnv(t)

		rec := env.do(http.MethodGet, target, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		env.products.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
	}
}

// =============================================================================
// POST /products/{productId}
// =============================================================================

func TestGetProduct(t *testing.T) {
	env := newTestEnv(t)
	env.products.On("GetByID", mock.Anything, "p1").Return(sampleProduct("p1"), nil)

	rec := env.do(http.MethodPost, "/products/p1", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var got domain.Product
	decodeInto(t, rec, &got)
	assert.Equal(t, "p1", got.ID)
}

func TestGetProduct_NotFound(t *testing.T) {
	env := newTestEnv(t)
	env.products.On("GetByID", mock.Anything, "nope").Return(nil, apperrors.NotFound("product", "nope"))

	rec := env.do(http.MethodPost, "/products/nope", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, rec).Code)
}

// =============================================================================
// PUT /products/{productId}
// =============================================================================

func TestReplaceProduct(t *testing.T) {
	env := newTestEnv(t)
	updated := sampleProduct("p1")
	updated.ProductName = "Floor Lamp"
	env.products.On("Replace", mock.Anything, "p1", mock.MatchedBy(func(f domain.ProductFields) bool {
		return f.ProductName == "Floor Lamp"
	}), mock.Anything).Return(updated, nil)

	body := validProductBody()
	body["productName"] = "Floor Lamp"
	rec := env.do(http.MethodPut, "/products/p1", body)

	assert.Equal(t, http.StatusOK, rec.Code)
	var got domain.Product
	decodeInto(t, rec, &got)
	assert.Equal(t, "Floor Lamp", got.ProductName)
}

func TestReplaceProduct_PartialBodyRejected(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPut, "/products/p1", map[string]any{"productName": "Floor Lamp"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env.products.AssertNotCalled(t, "Replace", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReplaceProduct_NotFound(t *testing.T) {
	env := newTestEnv(t)
	env.products.On("Replace", mock.Anything, "nope", mock.Anything, mock.Anything).
		Return(nil, apperrors.NotFound("product", "nope"))

	rec := env.do(http.MethodPut, "/products/nope", validProductBody())

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// DELETE /products/{productId}
// =============================================================================

func TestDeleteProduct(t *testing.T) {
	env := newTestEnv(t)
	env.products.On("Delete", mock.Anything, "p1").Return(nil)

	rec := env.do(http.MethodDelete, "/products/p1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Product deleted successfully"}`, rec.Body.String())
}

func TestDeleteProduct_NotFound(t *testing.T) {
	env := newTestEnv(t)
	env.products.On("Delete", mock.Anything, "nope").Return(apperrors.NotFound("product", "nope"))

	rec := env.do(http.MethodDelete, "/products/nope", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "product with id nope not found", decodeError(t, rec).Message)
}
