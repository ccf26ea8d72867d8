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

// CartHandler handles HTTP requests for cart endpoints.
type CartHandler struct {
	service *service.CartService
	logger  *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(svc *service.CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CartItemRequest is the JSON body of /cart/add and /cart/remove.
type CartItemRequest struct {
	UserID   string          `json:"userId" validate:"required"`
	Products CartProductBody `json:"products"`
}

// CartProductBody names the product and the quantity to add or remove.
// Quantity defaults to 1 when omitted and is capped at domain.MaxQuantity.
type CartProductBody struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  *int   `json:"quantity" validate:"omitempty,gt=0,lte=2147483647"`
}

func (req CartItemRequest) input() service.CartItemInput {
	in := service.CartItemInput{
		UserID:    req.UserID,
		ProductID: req.Products.ProductID,
	}
	if req.Products.Quantity != nil {
		in.Quantity = *req.Products.Quantity
	}
	return in
}

// --- Response DTOs ---

type addItemResponse struct {
	Message  string       `json:"message"`
	CartItem *domain.Cart `json:"cartItem"`
}

type removeItemResponse struct {
	CartItem *domain.Cart `json:"cartItem"`
	Message  string       `json:"message"`
}

// --- Handlers ---

// AddItem handles POST /cart/add
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req CartItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	cart, err := h.service.AddItem(r.Context(), req.input())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, addItemResponse{
		Message:  "Product added to cart successfully",
		CartItem: cart,
	})
}

// RemoveItem handles POST /cart/remove
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	var req CartItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	cart, err := h.service.RemoveItem(r.Context(), req.input())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, removeItemResponse{
		CartItem: cart,
		Message:  "Product quantity updated successfully",
	})
}

// GetCart handles GET /cart/{userId}
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.service.GetCart(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cart)
}

// ClearCart handles DELETE /cart/{userId}
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearCart(r.Context(), chi.URLParam(r, "userId")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Cart cleared successfully")
}
