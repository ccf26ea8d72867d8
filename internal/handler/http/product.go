package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/validator"
)

// ProductHandler handles HTTP requests for catalog endpoints.
type ProductHandler struct {
	service *service.ProductService
	logger  *slog.Logger
}

// NewProductHandler creates a new product HTTP handler.
func NewProductHandler(svc *service.ProductService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// ProductRequest is the JSON body for creating or replacing a product. Every
// editable field is required; OnSale and Price are pointers so that false and
// 0 are distinguishable from absent.
type ProductRequest struct {
	ProductName string   `json:"productName" validate:"required"`
	ImgURL      string   `json:"imgUrl" validate:"required,url"`
	Category    string   `json:"category" validate:"required"`
	OnSale      *bool    `json:"onSale" validate:"required"`
	Price       *float64 `json:"price" validate:"required"`
	ShortDesc   string   `json:"shortDesc" validate:"required"`
	Description string   `json:"description" validate:"required"`
}

func (req ProductRequest) fields() domain.ProductFields {
	return domain.ProductFields{
		ProductName: req.ProductName,
		ImgURL:      req.ImgURL,
		Category:    req.Category,
		OnSale:      *req.OnSale,
		Price:       *req.Price,
		ShortDesc:   req.ShortDesc,
		Description: req.Description,
	}
}

// --- Handlers ---

// ListProducts handles GET /products
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, products)
}

// ListByCategory handles GET /products/category?category=
func (h *ProductHandler) ListByCategory(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListByCategory(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, products)
}

// GetProduct handles POST /products/{productId}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.service.GetProduct(r.Context(), chi.URLParam(r, "productId"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, product)
}

// CreateProduct handles POST /products
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := validator.DecodeAndValidate(r, &req, validator.DisallowUnknownFields()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	product, err := h.service.CreateProduct(r.Context(), req.fields())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, product)
}

// ReplaceProduct handles PUT /products/{productId}
func (h *ProductHandler) ReplaceProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := validator.DecodeAndValidate(r, &req, validator.DisallowUnknownFields()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	product, err := h.service.ReplaceProduct(r.Context(), chi.URLParam(r, "productId"), req.fields())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, product)
}

// DeleteProduct handles DELETE /products/{productId}
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteProduct(r.Context(), chi.URLParam(r, "productId")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Product deleted successfully")
}
