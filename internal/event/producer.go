// Package event publishes order lifecycle events to Kafka. Publishing is
// fire-and-forget from the caller's perspective: failures are logged, never
// surfaced to the request path.
package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mahmoodamara/storefront/internal/domain"
	pkgkafka "github.com/mahmoodamara/storefront/pkg/kafka"
)

// Kafka topic constants for order lifecycle events.
const (
	TopicOrderConfirmed = "storefront.order.confirmed"
	TopicOrderCancelled = "storefront.order.cancelled"
	TopicOrderRefunded  = "storefront.order.refunded"
)

// Aggregate type constant.
const AggregateTypeOrder = "order"

// Source identifier for events originating from this service.
const SourceStorefront = "storefront"

// OrderConfirmedData is the payload for an order.confirmed event.
type OrderConfirmedData struct {
	OrderID       string          `json:"order_id"`
	OrderNumber   string          `json:"order_number"`
	UserID        string          `json:"user_id"`
	PaymentMethod string          `json:"payment_method"`
	Items         []OrderItemData `json:"items"`
	TotalMinor    int64           `json:"total_minor"`
	VATMinor      int64           `json:"vat_minor"`
	Currency      string          `json:"currency"`
}

// OrderItemData is the event payload for an order line.
type OrderItemData struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	IsGift    bool   `json:"is_gift"`
}

// OrderCancelledData is the payload for an order.cancelled event.
type OrderCancelledData struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	UserID      string `json:"user_id"`
	Reason      string `json:"reason"`
}

// OrderRefundedData is the payload for an order.refunded event.
type OrderRefundedData struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	UserID      string `json:"user_id"`
	RefundID    string `json:"refund_id"`
	AmountMinor int64  `json:"amount_minor"`
	Partial     bool   `json:"partial"`
}

// Producer publishes order lifecycle events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishOrderConfirmed publishes an order.confirmed event.
func (p *Producer) PublishOrderConfirmed(ctx context.Context, order *domain.Order) error {
	items := make([]OrderItemData, len(order.Items))
	for i, item := range order.Items {
		items[i] = OrderItemData{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			IsGift:    item.IsGift,
		}
	}

	data := OrderConfirmedData{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		UserID:        order.UserID,
		PaymentMethod: order.PaymentMethod,
		Items:         items,
		TotalMinor:    order.TotalMinor,
		VATMinor:      order.VATMinor,
		Currency:      order.Currency,
	}

	event, err := pkgkafka.NewEvent(TopicOrderConfirmed, order.ID, AggregateTypeOrder, SourceStorefront, data)
	if err != nil {
		return fmt.Errorf("create order.confirmed event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicOrderConfirmed, event); err != nil {
		return fmt.Errorf("publish order.confirmed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published order.confirmed event",
		slog.String("order_id", order.ID),
		slog.String("order_number", order.OrderNumber),
	)

	return nil
}

// PublishOrderCancelled publishes an order.cancelled event.
func (p *Producer) PublishOrderCancelled(ctx context.Context, order *domain.Order, reason string) error {
	data := OrderCancelledData{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Reason:      reason,
	}

	event, err := pkgkafka.NewEvent(TopicOrderCancelled, order.ID, AggregateTypeOrder, SourceStorefront, data)
	if err != nil {
		return fmt.Errorf("create order.cancelled event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicOrderCancelled, event); err != nil {
		return fmt.Errorf("publish order.cancelled event: %w", err)
	}

	p.logger.DebugContext(ctx, "published order.cancelled event",
		slog.String("order_id", order.ID),
		slog.String("reason", reason),
	)

	return nil
}

// PublishOrderRefunded publishes an order.refunded event.
func (p *Producer) PublishOrderRefunded(ctx context.Context, order *domain.Order, refund *domain.Refund, partial bool) error {
	data := OrderRefundedData{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		RefundID:    refund.ID,
		AmountMinor: refund.AmountMinor,
		Partial:     partial,
	}

	event, err := pkgkafka.NewEvent(TopicOrderRefunded, order.ID, AggregateTypeOrder, SourceStorefront, data)
	if err != nil {
		return fmt.Errorf("create order.refunded event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicOrderRefunded, event); err != nil {
		return fmt.Errorf("publish order.refunded event: %w", err)
	}

	p.logger.DebugContext(ctx, "published order.refunded event",
		slog.String("order_id", order.ID),
		slog.String("refund_id", refund.ID),
		slog.Int64("amount_minor", refund.AmountMinor),
	)

	return nil
}
