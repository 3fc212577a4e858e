package domain

import "time"

// Coupon discount types.
const (
	CouponTypePercent = "percent"
	CouponTypeFixed   = "fixed"
)

// Coupon reservation statuses.
const (
	CouponReservationReserved = "reserved"
	CouponReservationConsumed = "consumed"
	CouponReservationReleased = "released"
)

// Coupon is a single-use-per-order discount code with bounded capacity.
// Capacity accounting splits into used_count (consumed by settled orders) and
// reserved_count (held by in-flight checkouts); the sum never exceeds
// UsageLimit. A nil UsageLimit means unlimited redemptions.
type Coupon struct {
	ID               string    `json:"id"`
	Code             string    `json:"code"`
	DiscountType     string    `json:"discount_type"`
	DiscountValue    int64     `json:"discount_value"`
	MinOrderMinor    int64     `json:"min_order_minor"`
	MaxDiscountMinor *int64    `json:"max_discount_minor,omitempty"`
	UsageLimit       *int      `json:"usage_limit,omitempty"`
	UsedCount        int       `json:"used_count"`
	ReservedCount    int       `json:"reserved_count"`
	StartsAt         time.Time `json:"starts_at"`
	ExpiresAt        time.Time `json:"expires_at"`
	Active           bool      `json:"active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// IsRedeemable reports whether the coupon can be applied at the given time.
// Capacity is checked separately by the ledger's atomic reserve.
func (c *Coupon) IsRedeemable(now time.Time) bool {
	if !c.Active {
		return false
	}
	if now.Before(c.StartsAt) || now.After(c.ExpiresAt) {
		return false
	}
	return true
}

// Exhausted reports whether the coupon's capacity is fully used or reserved.
// Unlimited coupons are never exhausted. This is an advisory check; the
// ledger's atomic reserve is authoritative.
func (c *Coupon) Exhausted() bool {
	return c.UsageLimit != nil && c.UsedCount+c.ReservedCount >= *c.UsageLimit
}

// MeetsMinimum reports whether the eligible subtotal satisfies the coupon's
// minimum order requirement.
func (c *Coupon) MeetsMinimum(subtotalMinor int64) bool {
	return subtotalMinor >= c.MinOrderMinor
}

// DiscountFor computes the coupon's discount against the given eligible
// amount, applying the percentage or fixed value and then the per-coupon cap.
// The result never exceeds the eligible amount.
func (c *Coupon) DiscountFor(eligibleMinor int64) int64 {
	if eligibleMinor <= 0 {
		return 0
	}
	var discount int64
	switch c.DiscountType {
	case CouponTypePercent:
		discount = eligibleMinor * c.DiscountValue / 10000
	case CouponTypeFixed:
		discount = c.DiscountValue
	default:
		return 0
	}
	if c.MaxDiscountMinor != nil && discount > *c.MaxDiscountMinor {
		discount = *c.MaxDiscountMinor
	}
	if discount > eligibleMinor {
		discount = eligibleMinor
	}
	if discount < 0 {
		return 0
	}
	return discount
}

// CouponReservation ties a capacity hold to a specific order, making reserve
// and consume idempotent per (coupon, order).
type CouponReservation struct {
	ID        string    `json:"id"`
	CouponID  string    `json:"coupon_id"`
	OrderID   string    `json:"order_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
