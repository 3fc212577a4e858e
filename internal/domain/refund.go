package domain

import "time"

// Refund status constants.
const (
	RefundStatusPending   = "pending"
	RefundStatusSucceeded = "succeeded"
	RefundStatusFailed    = "failed"
)

// Refund is a money-back operation against a settled order, full or partial.
type Refund struct {
	ID               string    `json:"id"`
	OrderID          string    `json:"order_id"`
	ProviderRefundID string    `json:"provider_refund_id,omitempty"`
	AmountMinor      int64     `json:"amount_minor"`
	Reason           string    `json:"reason,omitempty"`
	Status           string    `json:"status"`
	IdempotencyKey   string    `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Return records returned units of an order line and whether they went back
// into sellable stock.
type Return struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"order_id"`
	OrderItemID string    `json:"order_item_id"`
	Quantity    int       `json:"quantity"`
	Restock     bool      `json:"restock"`
	RefundID    string    `json:"refund_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
