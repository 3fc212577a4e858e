package domain

import "time"

// Shipping mode constants.
const (
	ShippingModeDelivery    = "delivery"
	ShippingModePickupPoint = "pickup_point"
	ShippingModeStorePickup = "store_pickup"
)

// ValidShippingMode reports whether the given mode is one we fulfil.
func ValidShippingMode(mode string) bool {
	switch mode {
	case ShippingModeDelivery, ShippingModePickupPoint, ShippingModeStorePickup:
		return true
	}
	return false
}

// DeliveryArea is a serviced delivery zone with its own courier fee.
type DeliveryArea struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	FeeMinor  int64     `json:"fee_minor"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PickupPoint is a partner locker or counter customers can collect from.
type PickupPoint struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	FeeMinor  int64     `json:"fee_minor"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
