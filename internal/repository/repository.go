// Package repository defines the persistence interfaces implemented by the
// postgres and redis backends.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/mahmoodamara/storefront/internal/domain"
)

// ErrAlreadySettled is returned by MarkPaidBySession when the order already
// left pending_payment, so the caller can acknowledge a replay as a no-op.
var ErrAlreadySettled = errors.New("order already settled")

// ErrInsufficientStock is returned by Reserve and DecrementForOrder when
// sellable stock cannot cover a requested pair.
var ErrInsufficientStock = errors.New("insufficient stock")

// ErrHoldsLapsed is returned by ConfirmForOrder when any of the order's holds
// expired before confirmation.
var ErrHoldsLapsed = errors.New("reservation holds lapsed")

// ErrCouponExhausted is returned by the coupon ledger when reserving would
// exceed the coupon's usage limit.
var ErrCouponExhausted = errors.New("coupon capacity exhausted")

// CatalogRepository provides read and admin access to products, variants and
// categories.
type CatalogRepository interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]*domain.Product, error)
	GetVariant(ctx context.Context, id string) (*domain.ProductVariant, error)
	GetVariantsByIDs(ctx context.Context, ids []string) (map[string]*domain.ProductVariant, error)
	ListProducts(ctx context.Context, page, perPage int) ([]domain.Product, int, error)
	CreateProduct(ctx context.Context, p *domain.Product) (*domain.Product, error)
	CreateVariant(ctx context.Context, v *domain.ProductVariant) (*domain.ProductVariant, error)
	GetCategory(ctx context.Context, id string) (*domain.Category, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	CreateCategory(ctx context.Context, c *domain.Category) (*domain.Category, error)
}

// ShippingRepository provides the delivery area and pickup point catalog.
type ShippingRepository interface {
	GetDeliveryArea(ctx context.Context, id string) (*domain.DeliveryArea, error)
	GetPickupPoint(ctx context.Context, id string) (*domain.PickupPoint, error)
	ListDeliveryAreas(ctx context.Context) ([]domain.DeliveryArea, error)
	ListPickupPoints(ctx context.Context) ([]domain.PickupPoint, error)
	CreateDeliveryArea(ctx context.Context, a *domain.DeliveryArea) (*domain.DeliveryArea, error)
	CreatePickupPoint(ctx context.Context, p *domain.PickupPoint) (*domain.PickupPoint, error)
}

// AvailabilityResult reports sellable stock for one requested pair after
// subtracting active reservations.
type AvailabilityResult struct {
	ProductID string
	VariantID string
	Requested int
	Available int
	InStock   bool
}

// InventoryRepository manages variant stock, reservations and the movement
// audit trail. Multi-statement operations are atomic.
type InventoryRepository interface {
	// Reserve places an all-or-nothing hold for every item, checking sellable
	// stock (on-hand minus active holds) under row locks. On any shortfall no
	// hold is placed and the failing pair is reported.
	Reserve(ctx context.Context, orderID string, items []domain.CartItem, ttl time.Duration) ([]domain.StockReservation, error)

	// ConfirmForOrder flips the order's active holds to confirmed and
	// decrements on-hand stock, recording movements. Expired holds fail the
	// whole operation; nothing is decremented.
	ConfirmForOrder(ctx context.Context, orderID string, now time.Time) error

	// DecrementForOrder decrements on-hand stock directly, bypassing holds.
	// Used when holds lapsed but stock still covers the order.
	DecrementForOrder(ctx context.Context, orderID string, items []domain.CartItem) error

	// ReleaseForOrder returns the order's active holds to the sellable pool.
	ReleaseForOrder(ctx context.Context, orderID string) error

	GetByOrderID(ctx context.Context, orderID string) ([]domain.StockReservation, error)

	// ExpireSweep marks up to limit lapsed active holds as expired and
	// returns how many were flipped.
	ExpireSweep(ctx context.Context, now time.Time, limit int) (int, error)

	// CheckAvailability reports sellable stock for the requested pairs
	// without locking. Quote-time advisory only.
	CheckAvailability(ctx context.Context, items []domain.CartItem) ([]AvailabilityResult, error)

	// AdjustStock changes on-hand stock by delta and records a movement.
	AdjustStock(ctx context.Context, productID, variantID string, delta int, reason string, orderID *string) error
}

// CouponRepository is the coupon capacity ledger. Reserve, Consume and
// Release are idempotent per (coupon, order).
type CouponRepository interface {
	GetByCode(ctx context.Context, code string) (*domain.Coupon, error)
	Reserve(ctx context.Context, couponID, orderID string) error
	Consume(ctx context.Context, couponID, orderID string) error
	Release(ctx context.Context, couponID, orderID string) error
	Create(ctx context.Context, c *domain.Coupon) (*domain.Coupon, error)
}

// PromotionRepository provides the promotion sets in effect at a given time.
type PromotionRepository interface {
	ListRunningCampaigns(ctx context.Context, now time.Time) ([]domain.Campaign, error)
	ListRunningOffers(ctx context.Context, now time.Time) ([]domain.Offer, error)
	ListRunningGiftRules(ctx context.Context, now time.Time) ([]domain.GiftRule, error)
	CreateCampaign(ctx context.Context, c *domain.Campaign) (*domain.Campaign, error)
	CreateOffer(ctx context.Context, o *domain.Offer) (*domain.Offer, error)
	CreateGiftRule(ctx context.Context, g *domain.GiftRule) (*domain.GiftRule, error)
}

// OrderRepository persists orders, refunds and returns.
type OrderRepository interface {
	// Create assigns the next year-scoped order number and inserts the order
	// with its items atomically. The caller supplies the order ID so holds
	// can be keyed to it before the row exists.
	Create(ctx context.Context, order *domain.Order) (*domain.Order, error)
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// GetByIdempotencyKey resolves a prior checkout by its idempotency key,
	// scoped to the submitting user and payment method so distinct requests
	// can never replay each other's orders.
	GetByIdempotencyKey(ctx context.Context, userID, key, paymentMethod string) (*domain.Order, error)
	GetByPaymentSession(ctx context.Context, sessionID string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string, page, perPage int) ([]domain.Order, int, error)
	GetItems(ctx context.Context, orderID string) ([]domain.OrderItem, error)

	SetPaymentSession(ctx context.Context, orderID, sessionID string) error

	// MarkPaidBySession transitions the order owning the payment session from
	// pending_payment to paid. Returns the order when the transition was won,
	// ErrAlreadySettled when another delivery got there first.
	MarkPaidBySession(ctx context.Context, sessionID string) (*domain.Order, error)

	// UpdateStatus performs a guarded transition; it fails if the order is no
	// longer in fromStatus.
	UpdateStatus(ctx context.Context, orderID, fromStatus, toStatus string) error
	Cancel(ctx context.Context, orderID, fromStatus, reason string) error

	CreateRefund(ctx context.Context, r *domain.Refund) (*domain.Refund, error)
	GetRefundByIdempotencyKey(ctx context.Context, key string) (*domain.Refund, error)
	MarkRefundFailed(ctx context.Context, refundID string) error

	// ApplyRefund settles a refund row and bumps the order's refunded total
	// and status in one atomic unit.
	ApplyRefund(ctx context.Context, refundID, orderID string, amount int64, orderStatus string) error

	CreateReturn(ctx context.Context, ret *domain.Return) (*domain.Return, error)
}

// CartRepository stores server-side carts.
type CartRepository interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Save(ctx context.Context, cart *domain.Cart) error
	Delete(ctx context.Context, userID string) error
}
