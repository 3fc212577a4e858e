// Package http exposes the store, webhook and admin HTTP APIs.
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mahmoodamara/storefront/internal/domain"
	"github.com/mahmoodamara/storefront/internal/service"
	"github.com/mahmoodamara/storefront/pkg/httputil"
	"github.com/mahmoodamara/storefront/pkg/middleware"
	"github.com/mahmoodamara/storefront/pkg/pagination"
	"github.com/mahmoodamara/storefront/pkg/validator"
)

// StorefrontHandler handles HTTP requests for quotes, checkout and orders.
type StorefrontHandler struct {
	checkout *service.CheckoutService
	logger   *slog.Logger
}

// NewStorefrontHandler creates a new storefront HTTP handler.
func NewStorefrontHandler(checkout *service.CheckoutService, logger *slog.Logger) *StorefrontHandler {
	return &StorefrontHandler{
		checkout: checkout,
		logger:   logger,
	}
}

// --- Request DTOs ---

// QuoteItemRequest represents a single item in a quote or checkout request.
type QuoteItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	VariantID string `json:"variant_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

// QuoteRequest is the JSON request body for price quotes.
type QuoteRequest struct {
	Items          []QuoteItemRequest `json:"items" validate:"required,min=1,dive"`
	ShippingMode   string             `json:"shipping_mode" validate:"required,oneof=delivery pickup_point store_pickup"`
	DeliveryAreaID string             `json:"delivery_area_id" validate:"omitempty,uuid"`
	PickupPointID  string             `json:"pickup_point_id" validate:"omitempty,uuid"`
	CouponCode     string             `json:"coupon_code"`
}

// CheckoutRequest is the JSON request body for placing an order.
type CheckoutRequest struct {
	Items          []QuoteItemRequest `json:"items" validate:"required,min=1,dive"`
	ShippingMode   string             `json:"shipping_mode" validate:"required,oneof=delivery pickup_point store_pickup"`
	DeliveryAreaID string             `json:"delivery_area_id" validate:"omitempty,uuid"`
	PickupPointID  string             `json:"pickup_point_id" validate:"omitempty,uuid"`
	CouponCode     string             `json:"coupon_code"`
	PaymentMethod  string             `json:"payment_method" validate:"required,oneof=card cash_on_delivery"`
	Address        *AddressRequest    `json:"address"`
}

// AddressRequest is the JSON shape of a delivery address.
type AddressRequest struct {
	FullName    string `json:"full_name" validate:"required"`
	AddressLine string `json:"address_line" validate:"required"`
	City        string `json:"city" validate:"required"`
	PostalCode  string `json:"postal_code" validate:"required"`
	Country     string `json:"country" validate:"required"`
	Phone       string `json:"phone"`
}

func (a *AddressRequest) toDomain() *domain.Address {
	if a == nil {
		return nil
	}
	return &domain.Address{
		FullName:    a.FullName,
		AddressLine: a.AddressLine,
		City:        a.City,
		PostalCode:  a.PostalCode,
		Country:     a.Country,
		Phone:       a.Phone,
	}
}

func toCartItems(items []QuoteItemRequest) []domain.CartItem {
	out := make([]domain.CartItem, len(items))
	for i, item := range items {
		out[i] = domain.CartItem{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
		}
	}
	return out
}

// --- Handlers ---

// Quote handles POST /api/v1/quote. Quoting has no side effects and can be
// repeated freely.
func (h *StorefrontHandler) Quote(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	quote, err := h.checkout.Quote(r.Context(), userID, &domain.QuoteRequest{
		Items:          toCartItems(req.Items),
		ShippingMode:   req.ShippingMode,
		DeliveryAreaID: req.DeliveryAreaID,
		PickupPointID:  req.PickupPointID,
		CouponCode:     req.CouponCode,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: quote})
}

// Checkout handles POST /api/v1/checkout. The Idempotency-Key header makes
// retried requests return the order created by the first attempt.
func (h *StorefrontHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	idempotencyKey := r.Header.Get("Idempotency-Key")
	if idempotencyKey == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "MISSING_IDEMPOTENCY_KEY", Message: "Idempotency-Key header is required"},
		})
		return
	}

	result, err := h.checkout.Checkout(r.Context(), userID, &service.CheckoutInput{
		Items:          toCartItems(req.Items),
		ShippingMode:   req.ShippingMode,
		DeliveryAreaID: req.DeliveryAreaID,
		PickupPointID:  req.PickupPointID,
		CouponCode:     req.CouponCode,
		PaymentMethod:  req.PaymentMethod,
		Address:        req.Address.toDomain(),
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: result})
}

// GetOrder handles GET /api/v1/orders/{id}. Only the order owner may read it.
func (h *StorefrontHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := httputil.ParseUUID(w, id); !ok {
		return
	}

	order, err := h.checkout.GetOrder(r.Context(), middleware.UserIDFromContext(r.Context()), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// ListOrders handles GET /api/v1/orders.
func (h *StorefrontHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)

	orders, total, err := h.checkout.ListOrders(r.Context(), middleware.UserIDFromContext(r.Context()), params.Page, params.PerPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(orders, total, params.Page, params.PerPage))
}

// CancelOrder handles POST /api/v1/orders/{id}/cancel. Only orders still
// awaiting payment can be cancelled by the customer.
func (h *StorefrontHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := httputil.ParseUUID(w, id); !ok {
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	order, err := h.checkout.GetOrder(r.Context(), userID, id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if err := h.checkout.CancelPendingPayment(r.Context(), order.ID, "cancelled by customer"); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"status": domain.OrderStatusCancelled}})
}
