package domain

import "time"

// QuoteRequest is the input to price computation: the desired items plus the
// pricing context. DeliveryAreaID is required for delivery, PickupPointID for
// pickup_point; store_pickup needs neither.
type QuoteRequest struct {
	UserID         string     `json:"user_id"`
	Items          []CartItem `json:"items"`
	ShippingMode   string     `json:"shipping_mode"`
	DeliveryAreaID string     `json:"delivery_area_id,omitempty"`
	PickupPointID  string     `json:"pickup_point_id,omitempty"`
	CouponCode     string     `json:"coupon_code,omitempty"`
}

// QuoteLine is one priced line of a quote. Gift lines have a zero unit price
// and IsGift set.
type QuoteLine struct {
	ProductID      string `json:"product_id"`
	VariantID      string `json:"variant_id"`
	Name           string `json:"name"`
	CategoryID     string `json:"category_id,omitempty"`
	Category       string `json:"category,omitempty"`
	UnitPriceMinor int64  `json:"unit_price_minor"`
	Quantity       int    `json:"quantity"`
	LineTotalMinor int64  `json:"line_total_minor"`
	IsGift         bool   `json:"is_gift"`
}

// AppliedPromotion records one promotion stage's contribution to the total.
type AppliedPromotion struct {
	Kind          string `json:"kind"` // campaign, coupon, offer, gift
	ID            string `json:"id"`
	Name          string `json:"name"`
	DiscountMinor int64  `json:"discount_minor"`
}

// GiftShortfall reports a gift line that could not be granted in full because
// sellable stock ran short. A partially granted gift surfaces as a quote
// warning; a fully unavailable one rejects the quote.
type GiftShortfall struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id"`
	Name      string `json:"name"`
	Requested int    `json:"requested"`
	Granted   int    `json:"granted"`
}

// Quote is the full price breakdown for a prospective order. Totals are
// VAT-inclusive; the VAT component is derived from the final total.
type Quote struct {
	Lines               []QuoteLine        `json:"lines"`
	Promotions          []AppliedPromotion `json:"promotions,omitempty"`
	GiftWarnings        []GiftShortfall    `json:"gift_warnings,omitempty"`
	Currency            string             `json:"currency"`
	SubtotalMinor       int64              `json:"subtotal_minor"`
	ShippingMode        string             `json:"shipping_mode"`
	ShippingLabel       string             `json:"shipping_label,omitempty"`
	DeliveryAreaID      string             `json:"delivery_area_id,omitempty"`
	PickupPointID       string             `json:"pickup_point_id,omitempty"`
	ShippingFeeMinor    int64              `json:"shipping_fee_minor"`
	CampaignID          string             `json:"campaign_id,omitempty"`
	CampaignDiscount    int64              `json:"campaign_discount_minor"`
	CouponID            string             `json:"-"`
	CouponCode          string             `json:"coupon_code,omitempty"`
	CouponDiscount      int64              `json:"coupon_discount_minor"`
	OfferDiscount       int64              `json:"offer_discount_minor"`
	TotalMinor          int64              `json:"total_minor"`
	TotalBeforeVATMinor int64              `json:"total_before_vat_minor"`
	VATMinor            int64              `json:"vat_minor"`
	GeneratedAt         time.Time          `json:"generated_at"`
}
