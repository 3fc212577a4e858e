package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mahmoodamara/storefront/internal/domain"
	"github.com/mahmoodamara/storefront/internal/event"
	"github.com/mahmoodamara/storefront/internal/gateway"
	"github.com/mahmoodamara/storefront/internal/repository"
	apperrors "github.com/mahmoodamara/storefront/pkg/errors"
)

// RefundService handles full and partial refunds and item returns. Refunds
// are idempotent per key and the refunded total never exceeds the order
// total.
type RefundService struct {
	orders    repository.OrderRepository
	inventory repository.InventoryRepository
	gateway   gateway.Gateway
	producer  *event.Producer
	logger    *slog.Logger
}

// NewRefundService creates a new refund service.
func NewRefundService(
	orders repository.OrderRepository,
	inventory repository.InventoryRepository,
	gw gateway.Gateway,
	producer *event.Producer,
	logger *slog.Logger,
) *RefundService {
	return &RefundService{
		orders:    orders,
		inventory: inventory,
		gateway:   gw,
		producer:  producer,
		logger:    logger,
	}
}

// RefundInput holds the parameters for refunding an order. A zero
// AmountMinor refunds everything still refundable on the order.
type RefundInput struct {
	OrderID        string `json:"order_id" validate:"required"`
	AmountMinor    int64  `json:"amount_minor" validate:"omitempty,gt=0"`
	Reason         string `json:"reason,omitempty"`
	IdempotencyKey string `json:"-"`
}

// refundableStatuses are the order states a refund may start from.
var refundableStatuses = map[string]bool{
	domain.OrderStatusPaid:              true,
	domain.OrderStatusConfirmed:         true,
	domain.OrderStatusRefundPending:     true,
	domain.OrderStatusPartiallyRefunded: true,
}

// Refund issues a full or partial refund. Card payments go through the
// provider; cash on delivery is settled out of band and only recorded. The
// same idempotency key always returns the same refund.
func (s *RefundService) Refund(ctx context.Context, input *RefundInput) (*domain.Refund, error) {
	if input.AmountMinor < 0 {
		return nil, apperrors.InvalidInput("refund amount must be positive")
	}

	if input.IdempotencyKey != "" {
		existing, err := s.orders.GetRefundByIdempotencyKey(ctx, input.IdempotencyKey)
		if err == nil {
			s.logger.InfoContext(ctx, "refund replayed idempotently",
				slog.String("refund_id", existing.ID),
				slog.String("idempotency_key", input.IdempotencyKey),
			)
			return existing, nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
	}

	order, err := s.orders.GetByID(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if !refundableStatuses[order.Status] {
		return nil, apperrors.Conflict(fmt.Sprintf("order in status %s cannot be refunded", order.Status))
	}
	remaining := order.RemainingRefundable()
	if remaining <= 0 {
		return nil, apperrors.ConflictCode("REFUND_EXCEEDS_TOTAL", "order has nothing left to refund")
	}
	amount := input.AmountMinor
	if amount == 0 {
		amount = remaining
	}
	if amount > remaining {
		return nil, apperrors.ConflictCode("REFUND_EXCEEDS_TOTAL",
			fmt.Sprintf("refund amount exceeds the %d remaining refundable", remaining))
	}

	refund, err := s.orders.CreateRefund(ctx, &domain.Refund{
		OrderID:        order.ID,
		AmountMinor:    amount,
		Reason:         input.Reason,
		Status:         domain.RefundStatusPending,
		IdempotencyKey: input.IdempotencyKey,
	})
	if err != nil {
		return nil, err
	}

	// Park the order in refund_pending before touching the provider so a
	// crash between the provider call and our settlement leaves a visible
	// in-flight state instead of a silently paid order.
	if order.Status != domain.OrderStatusRefundPending {
		if err := s.orders.UpdateStatus(ctx, order.ID, order.Status, domain.OrderStatusRefundPending); err != nil {
			return nil, err
		}
		order.Status = domain.OrderStatusRefundPending
	}

	if order.PaymentMethod == domain.PaymentMethodCard {
		result, err := s.gateway.CreateRefund(ctx, &gateway.RefundInput{
			SessionID: order.PaymentSessionID,
			Amount:    amount,
			Currency:  order.Currency,
			Reason:    input.Reason,
		})
		if err != nil {
			s.failRefund(ctx, refund.ID, order.ID, err)
			return nil, apperrors.ServiceUnavailable("payment provider refused the refund")
		}
		if result.Status != domain.RefundStatusSucceeded {
			s.failRefund(ctx, refund.ID, order.ID, fmt.Errorf("provider status %s: %s", result.Status, result.FailureReason))
			return nil, apperrors.ConflictCode("REFUND_REJECTED", "payment provider rejected the refund")
		}
		refund.ProviderRefundID = result.ProviderRefundID
	}

	newStatus := domain.OrderStatusPartiallyRefunded
	if amount == remaining {
		newStatus = domain.OrderStatusRefunded
	}
	if err := s.orders.ApplyRefund(ctx, refund.ID, order.ID, amount, newStatus); err != nil {
		return nil, err
	}
	refund.Status = domain.RefundStatusSucceeded
	order.RefundedMinor += amount
	order.Status = newStatus

	if err := s.producer.PublishOrderRefunded(ctx, order, refund, newStatus != domain.OrderStatusRefunded); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.refunded event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "refund settled",
		slog.String("order_id", order.ID),
		slog.String("refund_id", refund.ID),
		slog.Int64("amount_minor", refund.AmountMinor),
		slog.String("order_status", newStatus),
	)
	return refund, nil
}

func (s *RefundService) failRefund(ctx context.Context, refundID, orderID string, cause error) {
	s.logger.ErrorContext(ctx, "refund failed at provider",
		slog.String("order_id", orderID),
		slog.String("refund_id", refundID),
		slog.String("error", cause.Error()),
	)
	if err := s.orders.MarkRefundFailed(ctx, refundID); err != nil {
		s.logger.ErrorContext(ctx, "failed to mark refund failed",
			slog.String("refund_id", refundID),
			slog.String("error", err.Error()),
		)
	}
}

// ReturnLine is one returned order line.
type ReturnLine struct {
	OrderItemID string `json:"order_item_id" validate:"required"`
	Quantity    int    `json:"quantity" validate:"required,gt=0"`
	Restock     bool   `json:"restock"`
}

// ReturnInput holds the parameters for returning items of an order.
type ReturnInput struct {
	OrderID        string       `json:"order_id" validate:"required"`
	Lines          []ReturnLine `json:"lines" validate:"required,min=1,dive"`
	Reason         string       `json:"reason,omitempty"`
	IdempotencyKey string       `json:"-"`
}

// ReturnItems accepts returned units of an order, refunds their line value
// and optionally restocks them. Gift lines carry no value and cannot be
// returned for money.
func (s *RefundService) ReturnItems(ctx context.Context, input *ReturnInput) (*domain.Refund, error) {
	// A replayed return must not restock or record the lines a second time,
	// so the replay check runs here rather than relying on Refund's.
	if input.IdempotencyKey != "" {
		existing, err := s.orders.GetRefundByIdempotencyKey(ctx, input.IdempotencyKey)
		if err == nil {
			s.logger.InfoContext(ctx, "return replayed idempotently",
				slog.String("refund_id", existing.ID),
				slog.String("idempotency_key", input.IdempotencyKey),
			)
			return existing, nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
	}

	order, err := s.orders.GetByID(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}

	itemsByID := make(map[string]domain.OrderItem, len(order.Items))
	for _, item := range order.Items {
		itemsByID[item.ID] = item
	}

	var amount int64
	for _, line := range input.Lines {
		item, ok := itemsByID[line.OrderItemID]
		if !ok {
			return nil, apperrors.InvalidInput(fmt.Sprintf("item %s does not belong to order %s", line.OrderItemID, input.OrderID))
		}
		if item.IsGift {
			return nil, apperrors.InvalidInput("gift items cannot be returned for a refund")
		}
		if line.Quantity <= 0 || line.Quantity > item.Quantity {
			return nil, apperrors.InvalidInput(fmt.Sprintf("invalid return quantity for item %s", line.OrderItemID))
		}
		amount += item.UnitPriceMinor * int64(line.Quantity)
	}

	refund, err := s.Refund(ctx, &RefundInput{
		OrderID:        input.OrderID,
		AmountMinor:    amount,
		Reason:         input.Reason,
		IdempotencyKey: input.IdempotencyKey,
	})
	if err != nil {
		return nil, err
	}

	for _, line := range input.Lines {
		item := itemsByID[line.OrderItemID]

		if _, err := s.orders.CreateReturn(ctx, &domain.Return{
			OrderID:     input.OrderID,
			OrderItemID: line.OrderItemID,
			Quantity:    line.Quantity,
			Restock:     line.Restock,
			RefundID:    refund.ID,
		}); err != nil {
			s.logger.ErrorContext(ctx, "failed to record return",
				slog.String("order_id", input.OrderID),
				slog.String("order_item_id", line.OrderItemID),
				slog.String("error", err.Error()),
			)
			continue
		}

		if line.Restock {
			orderID := input.OrderID
			if err := s.inventory.AdjustStock(ctx, item.ProductID, item.VariantID, line.Quantity, domain.MovementReasonReturnRestock, &orderID); err != nil {
				s.logger.ErrorContext(ctx, "failed to restock returned items",
					slog.String("order_id", input.OrderID),
					slog.String("variant_id", item.VariantID),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	s.logger.InfoContext(ctx, "return processed",
		slog.String("order_id", input.OrderID),
		slog.String("refund_id", refund.ID),
		slog.Int("lines", len(input.Lines)),
		slog.Int64("amount_minor", amount),
	)
	return refund, nil
}
