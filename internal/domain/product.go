package domain

import "time"

// Stock movement reasons recorded in the audit trail.
const (
	MovementReasonOrderConfirmed = "order_confirmed"
	MovementReasonReturnRestock  = "return_restock"
	MovementReasonAdminAdjust    = "admin_adjust"
)

// Category groups products for promotion targeting and reporting.
type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Product represents a sellable catalog item.
type Product struct {
	ID             string     `json:"id"`
	SKU            string     `json:"sku"`
	Name           string     `json:"name"`
	Description    string     `json:"description,omitempty"`
	CategoryID     string     `json:"category_id,omitempty"`
	CategoryName   string     `json:"category_name,omitempty"`
	PriceMinor     int64      `json:"price_minor"`
	SalePriceMinor *int64     `json:"sale_price_minor,omitempty"`
	SaleStartsAt   *time.Time `json:"sale_starts_at,omitempty"`
	SaleEndsAt     *time.Time `json:"sale_ends_at,omitempty"`
	Active         bool       `json:"active"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// EffectivePrice returns the unit price in effect at the given time. The sale
// price applies only when set, strictly below the list price, and the time
// falls inside the sale window; an open-ended window bound is treated as
// unbounded on that side.
func (p *Product) EffectivePrice(now time.Time) int64 {
	if p.SalePriceMinor == nil || *p.SalePriceMinor >= p.PriceMinor {
		return p.PriceMinor
	}
	if p.SaleStartsAt != nil && now.Before(*p.SaleStartsAt) {
		return p.PriceMinor
	}
	if p.SaleEndsAt != nil && !now.Before(*p.SaleEndsAt) {
		return p.PriceMinor
	}
	return *p.SalePriceMinor
}

// ProductVariant represents a concrete purchasable variation of a product.
// Stock is tracked per variant.
type ProductVariant struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	SKU       string    `json:"sku"`
	Name      string    `json:"name"`
	Stock     int       `json:"stock"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StockMovement is an audit record of a stock level change.
type StockMovement struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	VariantID string    `json:"variant_id"`
	Delta     int       `json:"delta"`
	Reason    string    `json:"reason"`
	OrderID   string    `json:"order_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
