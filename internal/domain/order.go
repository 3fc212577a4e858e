package domain

import (
	"encoding/json"
	"time"
)

// Order status constants.
const (
	OrderStatusPending           = "pending"
	OrderStatusPendingPayment    = "pending_payment"
	OrderStatusPaid              = "paid"
	OrderStatusConfirmed         = "confirmed"
	OrderStatusCancelled         = "cancelled"
	OrderStatusRefundPending     = "refund_pending"
	OrderStatusRefunded          = "refunded"
	OrderStatusPartiallyRefunded = "partially_refunded"
)

// Payment method constants.
const (
	PaymentMethodCard           = "card"
	PaymentMethodCashOnDelivery = "cash_on_delivery"
)

// Order represents a customer order with its VAT-inclusive totals breakdown.
type Order struct {
	ID                   string      `json:"id"`
	OrderNumber          string      `json:"order_number"`
	UserID               string      `json:"user_id"`
	Status               string      `json:"status"`
	PaymentMethod        string      `json:"payment_method"`
	PaymentSessionID     string      `json:"payment_session_id,omitempty"`
	IdempotencyKey       string      `json:"-"`
	Currency             string      `json:"currency"`
	CouponID             string      `json:"coupon_id,omitempty"`
	CouponCode           string      `json:"coupon_code,omitempty"`
	CampaignID           string      `json:"campaign_id,omitempty"`
	ShippingMode         string      `json:"shipping_mode"`
	DeliveryAreaID       string      `json:"delivery_area_id,omitempty"`
	PickupPointID        string      `json:"pickup_point_id,omitempty"`
	ShippingAddress      *Address    `json:"shipping_address,omitempty"`
	Items                []OrderItem `json:"items,omitempty"`
	SubtotalMinor        int64       `json:"subtotal_minor"`
	ShippingFeeMinor     int64       `json:"shipping_fee_minor"`
	CampaignDiscount     int64       `json:"campaign_discount_minor"`
	CouponDiscount       int64       `json:"coupon_discount_minor"`
	OfferDiscount        int64       `json:"offer_discount_minor"`
	TotalMinor           int64       `json:"total_minor"`
	TotalBeforeVATMinor  int64       `json:"total_before_vat_minor"`
	VATMinor             int64       `json:"vat_minor"`
	RefundedMinor        int64       `json:"refunded_minor"`
	CancelReason         string      `json:"cancel_reason,omitempty"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`
}

// OrderItem is a priced line on an order. Gift lines carry a zero unit price.
type OrderItem struct {
	ID             string `json:"id"`
	OrderID        string `json:"order_id"`
	ProductID      string `json:"product_id"`
	VariantID      string `json:"variant_id"`
	Name           string `json:"name"`
	Category       string `json:"category,omitempty"`
	UnitPriceMinor int64  `json:"unit_price_minor"`
	Quantity       int    `json:"quantity"`
	LineTotalMinor int64  `json:"line_total_minor"`
	IsGift         bool   `json:"is_gift"`
}

// Address represents a delivery address.
type Address struct {
	FullName    string `json:"full_name"`
	AddressLine string `json:"address_line"`
	City        string `json:"city"`
	PostalCode  string `json:"postal_code"`
	Country     string `json:"country"`
	Phone       string `json:"phone,omitempty"`
}

// MarshalAddress serializes an address for JSONB storage. Nil addresses
// (pickup orders) store as SQL NULL.
func MarshalAddress(a *Address) ([]byte, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

// AllowedTransitions defines which order status transitions are valid.
// Cash-on-delivery orders go pending -> confirmed directly; card orders pass
// through pending_payment and paid first.
func AllowedTransitions() map[string][]string {
	return map[string][]string{
		OrderStatusPending:           {OrderStatusPendingPayment, OrderStatusConfirmed, OrderStatusCancelled},
		OrderStatusPendingPayment:    {OrderStatusPaid, OrderStatusCancelled},
		OrderStatusPaid:              {OrderStatusConfirmed, OrderStatusRefundPending, OrderStatusRefunded},
		OrderStatusConfirmed:         {OrderStatusCancelled, OrderStatusRefundPending, OrderStatusRefunded, OrderStatusPartiallyRefunded},
		OrderStatusCancelled:         {},
		OrderStatusRefundPending:     {OrderStatusRefunded, OrderStatusPartiallyRefunded},
		OrderStatusPartiallyRefunded: {OrderStatusRefundPending, OrderStatusRefunded, OrderStatusPartiallyRefunded},
		OrderStatusRefunded:          {},
	}
}

// CanTransitionTo checks if the order can transition to the target status.
func (o *Order) CanTransitionTo(target string) bool {
	allowed, ok := AllowedTransitions()[o.Status]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the order can no longer change status.
func (o *Order) IsTerminal() bool {
	return len(AllowedTransitions()[o.Status]) == 0
}

// RemainingRefundable returns how much of the order total is still refundable.
func (o *Order) RemainingRefundable() int64 {
	if o.RefundedMinor >= o.TotalMinor {
		return 0
	}
	return o.TotalMinor - o.RefundedMinor
}
