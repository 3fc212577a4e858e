package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mahmoodamara/storefront/internal/domain"
	"github.com/mahmoodamara/storefront/internal/service"
	"github.com/mahmoodamara/storefront/pkg/httputil"
	"github.com/mahmoodamara/storefront/pkg/validator"
)

// AdminHandler handles the admin API: catalog and promotion management,
// stock corrections, refunds and returns.
type AdminHandler struct {
	admin    *service.AdminService
	refunds  *service.RefundService
	checkout *service.CheckoutService
	logger   *slog.Logger
}

// NewAdminHandler creates a new admin HTTP handler.
func NewAdminHandler(
	admin *service.AdminService,
	refunds *service.RefundService,
	checkout *service.CheckoutService,
	logger *slog.Logger,
) *AdminHandler {
	return &AdminHandler{
		admin:    admin,
		refunds:  refunds,
		checkout: checkout,
		logger:   logger,
	}
}

// decodeAndValidate reads a JSON body into dst and runs struct validation.
// It writes the error response itself and reports whether to continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return false
	}
	if err := validator.Validate(dst); err != nil {
		httputil.WriteValidationError(w, err)
		return false
	}
	return true
}

// --- Catalog ---

// CreateCategoryRequest is the JSON request body for creating a category.
type CreateCategoryRequest struct {
	Name   string `json:"name" validate:"required"`
	Slug   string `json:"slug" validate:"required"`
	Active bool   `json:"active"`
}

// CreateCategory handles POST /api/v1/admin/categories.
func (h *AdminHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	category, err := h.admin.CreateCategory(r.Context(), &domain.Category{
		Name:   req.Name,
		Slug:   req.Slug,
		Active: req.Active,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: category})
}

// CreateProductRequest is the JSON request body for creating a product.
type CreateProductRequest struct {
	SKU            string     `json:"sku" validate:"required"`
	Name           string     `json:"name" validate:"required"`
	Description    string     `json:"description"`
	CategoryID     string     `json:"category_id" validate:"omitempty,uuid"`
	PriceMinor     int64      `json:"price_minor" validate:"required,gt=0"`
	SalePriceMinor *int64     `json:"sale_price_minor"`
	SaleStartsAt   *time.Time `json:"sale_starts_at"`
	SaleEndsAt     *time.Time `json:"sale_ends_at"`
	Active         bool       `json:"active"`
}

// CreateProduct handles POST /api/v1/admin/products.
func (h *AdminHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	product, err := h.admin.CreateProduct(r.Context(), &domain.Product{
		SKU:            req.SKU,
		Name:           req.Name,
		Description:    req.Description,
		CategoryID:     req.CategoryID,
		PriceMinor:     req.PriceMinor,
		SalePriceMinor: req.SalePriceMinor,
		SaleStartsAt:   req.SaleStartsAt,
		SaleEndsAt:     req.SaleEndsAt,
		Active:         req.Active,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: product})
}

// CreateVariantRequest is the JSON request body for creating a variant.
type CreateVariantRequest struct {
	SKU    string `json:"sku" validate:"required"`
	Name   string `json:"name" validate:"required"`
	Stock  int    `json:"stock" validate:"gte=0"`
	Active bool   `json:"active"`
}

// CreateVariant handles POST /api/v1/admin/products/{id}/variants.
func (h *AdminHandler) CreateVariant(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")
	if _, ok := httputil.ParseUUID(w, productID); !ok {
		return
	}

	var req CreateVariantRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	variant, err := h.admin.CreateVariant(r.Context(), &domain.ProductVariant{
		ProductID: productID,
		SKU:       req.SKU,
		Name:      req.Name,
		Stock:     req.Stock,
		Active:    req.Active,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: variant})
}

// AdjustStockRequest is the JSON request body for a manual stock correction.
type AdjustStockRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	VariantID string `json:"variant_id" validate:"required,uuid"`
	Delta     int    `json:"delta" validate:"required"`
}

// AdjustStock handles POST /api/v1/admin/stock/adjust.
func (h *AdminHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	var req AdjustStockRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.admin.AdjustStock(r.Context(), req.ProductID, req.VariantID, req.Delta); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"status": "adjusted"}})
}

// --- Promotions ---

// CreateCouponRequest is the JSON request body for creating a coupon.
type CreateCouponRequest struct {
	Code             string    `json:"code" validate:"required"`
	DiscountType     string    `json:"discount_type" validate:"required,oneof=percent fixed"`
	DiscountValue    int64     `json:"discount_value" validate:"required,gt=0"`
	MinOrderMinor    int64     `json:"min_order_minor" validate:"gte=0"`
	MaxDiscountMinor *int64    `json:"max_discount_minor"`
	UsageLimit       *int      `json:"usage_limit" validate:"omitempty,gt=0"`
	StartsAt         time.Time `json:"starts_at" validate:"required"`
	ExpiresAt        time.Time `json:"expires_at" validate:"required"`
	Active           bool      `json:"active"`
}

// CreateCoupon handles POST /api/v1/admin/coupons.
func (h *AdminHandler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req CreateCouponRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	coupon, err := h.admin.CreateCoupon(r.Context(), &domain.Coupon{
		Code:             req.Code,
		DiscountType:     req.DiscountType,
		DiscountValue:    req.DiscountValue,
		MinOrderMinor:    req.MinOrderMinor,
		MaxDiscountMinor: req.MaxDiscountMinor,
		UsageLimit:       req.UsageLimit,
		StartsAt:         req.StartsAt,
		ExpiresAt:        req.ExpiresAt,
		Active:           req.Active,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: coupon})
}

// CreateCampaignRequest is the JSON request body for creating a campaign.
type CreateCampaignRequest struct {
	Name                string    `json:"name" validate:"required"`
	DiscountBasisPoints int64     `json:"discount_basis_points" validate:"gte=0,lte=10000"`
	FixedDiscountMinor  int64     `json:"fixed_discount_minor" validate:"gte=0"`
	MaxDiscountMinor    *int64    `json:"max_discount_minor"`
	Priority            int       `json:"priority"`
	ProductIDs          []string  `json:"product_ids" validate:"omitempty,dive,uuid"`
	CategoryIDs         []string  `json:"category_ids" validate:"omitempty,dive,uuid"`
	StartsAt            time.Time `json:"starts_at" validate:"required"`
	EndsAt              time.Time `json:"ends_at" validate:"required"`
	Active              bool      `json:"active"`
}

// CreateCampaign handles POST /api/v1/admin/campaigns.
func (h *AdminHandler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req CreateCampaignRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	campaign, err := h.admin.CreateCampaign(r.Context(), &domain.Campaign{
		Name:                req.Name,
		DiscountBasisPoints: req.DiscountBasisPoints,
		FixedDiscountMinor:  req.FixedDiscountMinor,
		MaxDiscountMinor:    req.MaxDiscountMinor,
		Priority:            req.Priority,
		ProductIDs:          req.ProductIDs,
		CategoryIDs:         req.CategoryIDs,
		StartsAt:            req.StartsAt,
		EndsAt:              req.EndsAt,
		Active:              req.Active,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: campaign})
}

// CreateOfferRequest is the JSON request body for creating an offer.
type CreateOfferRequest struct {
	Name          string          `json:"name" validate:"required"`
	Type          string          `json:"type" validate:"required,oneof=free_shipping buy_x_get_y percent_off fixed_off"`
	Priority      int             `json:"priority"`
	MinOrderMinor int64           `json:"min_order_minor" validate:"gte=0"`
	Params        json.RawMessage `json:"params"`
	StartsAt      time.Time       `json:"starts_at" validate:"required"`
	EndsAt        time.Time       `json:"ends_at" validate:"required"`
	Active        bool            `json:"active"`
}

// CreateOffer handles POST /api/v1/admin/offers.
func (h *AdminHandler) CreateOffer(w http.ResponseWriter, r *http.Request) {
	var req CreateOfferRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	offer, err := h.admin.CreateOffer(r.Context(), &domain.Offer{
		Name:          req.Name,
		Type:          req.Type,
		Priority:      req.Priority,
		MinOrderMinor: req.MinOrderMinor,
		Params:        req.Params,
		StartsAt:      req.StartsAt,
		EndsAt:        req.EndsAt,
		Active:        req.Active,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: offer})
}

// CreateGiftRuleRequest is the JSON request body for creating a gift rule.
type CreateGiftRuleRequest struct {
	Name               string    `json:"name" validate:"required"`
	MinOrderMinor      int64     `json:"min_order_minor" validate:"required,gt=0"`
	GiftProductID      string    `json:"gift_product_id" validate:"required,uuid"`
	GiftVariantID      string    `json:"gift_variant_id" validate:"required,uuid"`
	GiftQuantity       int       `json:"gift_quantity" validate:"required,gt=0"`
	RequiredProductID  string    `json:"required_product_id" validate:"omitempty,uuid"`
	RequiredCategoryID string    `json:"required_category_id" validate:"omitempty,uuid"`
	StartsAt           time.Time `json:"starts_at" validate:"required"`
	EndsAt             time.Time `json:"ends_at" validate:"required"`
	Active             bool      `json:"active"`
}

// CreateGiftRule handles POST /api/v1/admin/gift-rules.
func (h *AdminHandler) CreateGiftRule(w http.ResponseWriter, r *http.Request) {
	var req CreateGiftRuleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	rule, err := h.admin.CreateGiftRule(r.Context(), &domain.GiftRule{
		Name:               req.Name,
		MinOrderMinor:      req.MinOrderMinor,
		GiftProductID:      req.GiftProductID,
		GiftVariantID:      req.GiftVariantID,
		GiftQuantity:       req.GiftQuantity,
		RequiredProductID:  req.RequiredProductID,
		RequiredCategoryID: req.RequiredCategoryID,
		StartsAt:           req.StartsAt,
		EndsAt:             req.EndsAt,
		Active:             req.Active,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: rule})
}

// --- Shipping catalog ---

// CreateDeliveryAreaRequest is the JSON request body for creating a
// delivery area.
type CreateDeliveryAreaRequest struct {
	Name     string `json:"name" validate:"required"`
	FeeMinor int64  `json:"fee_minor" validate:"gte=0"`
	Active   bool   `json:"active"`
}

// CreateDeliveryArea handles POST /api/v1/admin/shipping/delivery-areas.
func (h *AdminHandler) CreateDeliveryArea(w http.ResponseWriter, r *http.Request) {
	var req CreateDeliveryAreaRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	area, err := h.admin.CreateDeliveryArea(r.Context(), &domain.DeliveryArea{
		Name:     req.Name,
		FeeMinor: req.FeeMinor,
		Active:   req.Active,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: area})
}

// CreatePickupPointRequest is the JSON request body for creating a pickup
// point.
type CreatePickupPointRequest struct {
	Name     string `json:"name" validate:"required"`
	Address  string `json:"address"`
	FeeMinor int64  `json:"fee_minor" validate:"gte=0"`
	Active   bool   `json:"active"`
}

// CreatePickupPoint handles POST /api/v1/admin/shipping/pickup-points.
func (h *AdminHandler) CreatePickupPoint(w http.ResponseWriter, r *http.Request) {
	var req CreatePickupPointRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	point, err := h.admin.CreatePickupPoint(r.Context(), &domain.PickupPoint{
		Name:     req.Name,
		Address:  req.Address,
		FeeMinor: req.FeeMinor,
		Active:   req.Active,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: point})
}

// --- Refunds and returns ---

// RefundRequest is the JSON request body for refunding an order. Omitting
// amount_minor refunds everything still refundable.
type RefundRequest struct {
	AmountMinor int64  `json:"amount_minor" validate:"omitempty,gt=0"`
	Reason      string `json:"reason"`
}

// RefundOrder handles POST /api/v1/admin/orders/{id}/refund. The
// Idempotency-Key header makes redelivered requests settle once.
func (h *AdminHandler) RefundOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if _, ok := httputil.ParseUUID(w, orderID); !ok {
		return
	}

	var req RefundRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	refund, err := h.refunds.Refund(r.Context(), &service.RefundInput{
		OrderID:        orderID,
		AmountMinor:    req.AmountMinor,
		Reason:         req.Reason,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: refund})
}

// ReturnLineRequest is a single returned line in a return request.
type ReturnLineRequest struct {
	OrderItemID string `json:"order_item_id" validate:"required,uuid"`
	Quantity    int    `json:"quantity" validate:"required,gt=0"`
	Restock     bool   `json:"restock"`
}

// ReturnRequest is the JSON request body for returning items of an order.
type ReturnRequest struct {
	Lines  []ReturnLineRequest `json:"lines" validate:"required,min=1,dive"`
	Reason string              `json:"reason"`
}

// ReturnItems handles POST /api/v1/admin/orders/{id}/returns.
func (h *AdminHandler) ReturnItems(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if _, ok := httputil.ParseUUID(w, orderID); !ok {
		return
	}

	var req ReturnRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	lines := make([]service.ReturnLine, len(req.Lines))
	for i, line := range req.Lines {
		lines[i] = service.ReturnLine{
			OrderItemID: line.OrderItemID,
			Quantity:    line.Quantity,
			Restock:     line.Restock,
		}
	}

	refund, err := h.refunds.ReturnItems(r.Context(), &service.ReturnInput{
		OrderID:        orderID,
		Lines:          lines,
		Reason:         req.Reason,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: refund})
}

// CancelOrderRequest is the JSON request body for an admin cancellation.
type CancelOrderRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// CancelOrder handles POST /api/v1/admin/orders/{id}/cancel. Only orders
// still awaiting payment can be cancelled; settled orders go through refunds.
func (h *AdminHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if _, ok := httputil.ParseUUID(w, orderID); !ok {
		return
	}

	var req CancelOrderRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.checkout.CancelPendingPayment(r.Context(), orderID, req.Reason); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"status": domain.OrderStatusCancelled}})
}
