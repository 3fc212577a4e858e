package domain

import (
	"encoding/json"
	"time"
)

// Offer types. Offers stack with one another and apply after the campaign and
// coupon stages, in priority order.
const (
	OfferTypeFreeShipping = "free_shipping"
	OfferTypeBuyXGetY     = "buy_x_get_y"
	OfferTypePercentOff   = "percent_off"
	OfferTypeFixedOff     = "fixed_off"
)

// Campaign is a storewide or product-scoped promotional discount. At most one
// campaign applies to a quote; when several match, the highest priority wins.
type Campaign struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	DiscountBasisPoints int64     `json:"discount_basis_points"`
	FixedDiscountMinor  int64     `json:"fixed_discount_minor"`
	MaxDiscountMinor    *int64    `json:"max_discount_minor,omitempty"`
	Priority            int       `json:"priority"`
	ProductIDs          []string  `json:"product_ids,omitempty"`
	CategoryIDs         []string  `json:"category_ids,omitempty"`
	StartsAt            time.Time `json:"starts_at"`
	EndsAt              time.Time `json:"ends_at"`
	Active              bool      `json:"active"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// IsRunning reports whether the campaign window covers the given time.
func (c *Campaign) IsRunning(now time.Time) bool {
	return c.Active && !now.Before(c.StartsAt) && now.Before(c.EndsAt)
}

// AppliesTo reports whether the campaign covers the given product, either
// directly or through the product's category. A campaign with neither scope
// is storewide.
func (c *Campaign) AppliesTo(productID, categoryID string) bool {
	if len(c.ProductIDs) == 0 && len(c.CategoryIDs) == 0 {
		return true
	}
	for _, id := range c.ProductIDs {
		if id == productID {
			return true
		}
	}
	if categoryID != "" {
		for _, id := range c.CategoryIDs {
			if id == categoryID {
				return true
			}
		}
	}
	return false
}

// DiscountFor computes the campaign discount for the eligible amount,
// percentage plus fixed component, capped to both the campaign's own cap and
// the eligible amount.
func (c *Campaign) DiscountFor(eligibleMinor int64) int64 {
	if eligibleMinor <= 0 {
		return 0
	}
	discount := eligibleMinor*c.DiscountBasisPoints/10000 + c.FixedDiscountMinor
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

// Offer is a stackable promotion. Type-specific settings live in Params.
type Offer struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Type          string          `json:"type"`
	Priority      int             `json:"priority"`
	MinOrderMinor int64           `json:"min_order_minor"`
	Params        json.RawMessage `json:"params"`
	StartsAt      time.Time       `json:"starts_at"`
	EndsAt        time.Time       `json:"ends_at"`
	Active        bool            `json:"active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// BuyXGetYParams configures a buy-X-get-Y offer: buying Buy units of the
// product makes Get further units of the same product free.
type BuyXGetYParams struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	Buy       int    `json:"buy"`
	Get       int    `json:"get"`
}

// IsRunning reports whether the offer window covers the given time.
func (o *Offer) IsRunning(now time.Time) bool {
	return o.Active && !now.Before(o.StartsAt) && now.Before(o.EndsAt)
}

// BuyXGetY decodes the offer's parameters as a buy-X-get-Y configuration.
func (o *Offer) BuyXGetY() (*BuyXGetYParams, error) {
	var p BuyXGetYParams
	if err := json.Unmarshal(o.Params, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// PercentOffParams configures a percent_off offer: a basis-point discount on
// the subtotal remaining after earlier stages, optionally capped.
type PercentOffParams struct {
	BasisPoints      int64  `json:"basis_points"`
	MaxDiscountMinor *int64 `json:"max_discount_minor,omitempty"`
}

// PercentOff decodes the offer's parameters as a percent_off configuration.
func (o *Offer) PercentOff() (*PercentOffParams, error) {
	var p PercentOffParams
	if err := json.Unmarshal(o.Params, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// FixedOffParams configures a fixed_off offer: a flat amount off the subtotal
// remaining after earlier stages.
type FixedOffParams struct {
	AmountMinor int64 `json:"amount_minor"`
}

// FixedOff decodes the offer's parameters as a fixed_off configuration.
func (o *Offer) FixedOff() (*FixedOffParams, error) {
	var p FixedOffParams
	if err := json.Unmarshal(o.Params, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GiftRule grants a free item when the order's eligible subtotal reaches the
// threshold. A rule may additionally require a specific product or category
// to be present in the cart. Gift lines from multiple rules merge by
// (product, variant).
type GiftRule struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	MinOrderMinor      int64     `json:"min_order_minor"`
	RequiredProductID  string    `json:"required_product_id,omitempty"`
	RequiredCategoryID string    `json:"required_category_id,omitempty"`
	GiftProductID      string    `json:"gift_product_id"`
	GiftVariantID      string    `json:"gift_variant_id"`
	GiftQuantity       int       `json:"gift_quantity"`
	StartsAt           time.Time `json:"starts_at"`
	EndsAt             time.Time `json:"ends_at"`
	Active             bool      `json:"active"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// IsRunning reports whether the gift rule window covers the given time.
func (g *GiftRule) IsRunning(now time.Time) bool {
	return g.Active && !now.Before(g.StartsAt) && now.Before(g.EndsAt)
}

// RequirementMet reports whether the cart contents satisfy the rule's
// required product or category, if any.
func (g *GiftRule) RequirementMet(lines []QuoteLine) bool {
	if g.RequiredProductID == "" && g.RequiredCategoryID == "" {
		return true
	}
	for _, line := range lines {
		if line.IsGift {
			continue
		}
		if g.RequiredProductID != "" && line.ProductID == g.RequiredProductID {
			return true
		}
		if g.RequiredCategoryID != "" && line.CategoryID == g.RequiredCategoryID {
			return true
		}
	}
	return false
}
