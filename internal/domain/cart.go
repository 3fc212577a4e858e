package domain

import "time"

// Cart is the server-side cart for a user. It is a staging area only; pricing
// and stock are settled at quote and checkout time.
type Cart struct {
	UserID    string     `json:"user_id"`
	Items     []CartItem `json:"items"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CartItem identifies a desired (product, variant) pair and quantity.
type CartItem struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

// Upsert adds the item to the cart, merging quantity with an existing line for
// the same (product, variant) pair. A resulting quantity of zero or less
// removes the line.
func (c *Cart) Upsert(item CartItem) {
	for i, existing := range c.Items {
		if existing.ProductID == item.ProductID && existing.VariantID == item.VariantID {
			q := existing.Quantity + item.Quantity
			if q <= 0 {
				c.Items = append(c.Items[:i], c.Items[i+1:]...)
				return
			}
			c.Items[i].Quantity = q
			return
		}
	}
	if item.Quantity > 0 {
		c.Items = append(c.Items, item)
	}
}

// Remove deletes the line for the given pair, if present.
func (c *Cart) Remove(productID, variantID string) {
	for i, existing := range c.Items {
		if existing.ProductID == productID && existing.VariantID == variantID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return
		}
	}
}

// RemovePurchased drops exactly the purchased (product, variant) pairs,
// leaving any other lines in place.
func (c *Cart) RemovePurchased(purchased []CartItem) {
	for _, p := range purchased {
		c.Remove(p.ProductID, p.VariantID)
	}
}
