package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mahmoodamara/storefront/internal/domain"
	"github.com/mahmoodamara/storefront/internal/event"
	"github.com/mahmoodamara/storefront/internal/gateway"
	"github.com/mahmoodamara/storefront/internal/repository"
	apperrors "github.com/mahmoodamara/storefront/pkg/errors"
)

// Webhook event types delivered by the payment provider.
const (
	WebhookSessionCompleted = "checkout.session.completed"
	WebhookSessionExpired   = "checkout.session.expired"
	WebhookSessionFailed    = "checkout.session.failed"
)

// WebhookEvent is the provider's notification envelope.
type WebhookEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

// WebhookConfig holds webhook processing parameters.
type WebhookConfig struct {
	Secret string
	// AutoRefundOnStockFailure controls what happens when payment arrives but
	// stock no longer covers the order: refund immediately, or park the order
	// in refund_pending for manual handling.
	AutoRefundOnStockFailure bool
}

// WebhookService settles paid orders from payment provider notifications.
// Processing is idempotent: every delivery of the same event converges on the
// same final order state, and replays of settled sessions are acknowledged
// without effect.
type WebhookService struct {
	orders    repository.OrderRepository
	inventory repository.InventoryRepository
	coupons   repository.CouponRepository
	carts     repository.CartRepository
	refunds   *RefundService
	producer  *event.Producer
	logger    *slog.Logger
	cfg       WebhookConfig
}

// NewWebhookService creates a new webhook service.
func NewWebhookService(
	orders repository.OrderRepository,
	inventory repository.InventoryRepository,
	coupons repository.CouponRepository,
	carts repository.CartRepository,
	refunds *RefundService,
	producer *event.Producer,
	logger *slog.Logger,
	cfg WebhookConfig,
) *WebhookService {
	return &WebhookService{
		orders:    orders,
		inventory: inventory,
		coupons:   coupons,
		carts:     carts,
		refunds:   refunds,
		producer:  producer,
		logger:    logger,
		cfg:       cfg,
	}
}

// VerifyAndDecode checks the provider signature and decodes the payload.
func (s *WebhookService) VerifyAndDecode(payload []byte, signature string) (*WebhookEvent, error) {
	if !gateway.VerifySignature(s.cfg.Secret, payload, signature) {
		return nil, apperrors.Unauthorized("invalid webhook signature")
	}
	var evt WebhookEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, apperrors.InvalidInput("malformed webhook payload")
	}
	if evt.SessionID == "" {
		return nil, apperrors.InvalidInput("webhook payload missing session_id")
	}
	return &evt, nil
}

// ProcessEvent applies a verified provider notification. Unknown event types
// and replays of already-settled sessions return nil so the provider stops
// redelivering.
func (s *WebhookService) ProcessEvent(ctx context.Context, evt *WebhookEvent) error {
	switch evt.Type {
	case WebhookSessionCompleted:
		return s.handleSessionCompleted(ctx, evt)
	case WebhookSessionExpired, WebhookSessionFailed:
		return s.handleSessionClosed(ctx, evt)
	default:
		s.logger.DebugContext(ctx, "ignoring webhook event type",
			slog.String("event_id", evt.ID),
			slog.String("type", evt.Type),
		)
		return nil
	}
}

// handleSessionCompleted settles a paid session. The pending_payment -> paid
// transition is the idempotency gate: exactly one delivery wins it, the rest
// are acknowledged as replays.
func (s *WebhookService) handleSessionCompleted(ctx context.Context, evt *WebhookEvent) error {
	order, err := s.orders.MarkPaidBySession(ctx, evt.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadySettled) {
			s.logger.InfoContext(ctx, "webhook replay for settled session",
				slog.String("event_id", evt.ID),
				slog.String("session_id", evt.SessionID),
			)
			return nil
		}
		// A session we have no order for can never be acted on; redelivery
		// would fail the same way forever, so acknowledge it.
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.WarnContext(ctx, "completed session has no matching order",
				slog.String("event_id", evt.ID),
				slog.String("session_id", evt.SessionID),
			)
			return nil
		}
		return err
	}
	order.Status = domain.OrderStatusPaid

	if len(order.Items) == 0 {
		items, err := s.orders.GetItems(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("load order items: %w", err)
		}
		order.Items = items
	}

	if err := s.commitStock(ctx, order); err != nil {
		return s.handleStockFailure(ctx, order, err)
	}

	if order.CouponID != "" {
		if err := s.coupons.Consume(ctx, order.CouponID, order.ID); err != nil {
			s.logger.ErrorContext(ctx, "failed to consume coupon for paid order",
				slog.String("order_id", order.ID),
				slog.String("coupon_id", order.CouponID),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := s.orders.UpdateStatus(ctx, order.ID, domain.OrderStatusPaid, domain.OrderStatusConfirmed); err != nil {
		return fmt.Errorf("confirm paid order: %w", err)
	}
	order.Status = domain.OrderStatusConfirmed

	clearPurchased(ctx, s.carts, order, s.logger)

	if err := s.producer.PublishOrderConfirmed(ctx, order); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.confirmed event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "paid order confirmed",
		slog.String("order_id", order.ID),
		slog.String("order_number", order.OrderNumber),
		slog.String("session_id", evt.SessionID),
		slog.Int64("total_minor", order.TotalMinor),
	)
	return nil
}

// commitStock converts the order's holds into decremented stock. If the holds
// lapsed while the customer was paying, it falls back to a direct decrement
// against whatever stock remains.
func (s *WebhookService) commitStock(ctx context.Context, order *domain.Order) error {
	err := s.inventory.ConfirmForOrder(ctx, order.ID, time.Now().UTC())
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrHoldsLapsed) {
		return err
	}

	s.logger.WarnContext(ctx, "reservation lapsed before payment settled, decrementing directly",
		slog.String("order_id", order.ID),
	)

	items := make([]domain.CartItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, domain.CartItem{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
		})
	}
	return s.inventory.DecrementForOrder(ctx, order.ID, items)
}

// handleStockFailure deals with money taken for stock that is gone: either
// refund automatically or park the order for manual resolution.
func (s *WebhookService) handleStockFailure(ctx context.Context, order *domain.Order, cause error) error {
	if !errors.Is(cause, repository.ErrInsufficientStock) {
		return cause
	}

	s.logger.ErrorContext(ctx, "paid order cannot be fulfilled, stock exhausted",
		slog.String("order_id", order.ID),
		slog.String("order_number", order.OrderNumber),
	)

	if order.CouponID != "" {
		if err := s.coupons.Release(ctx, order.CouponID, order.ID); err != nil {
			s.logger.ErrorContext(ctx, "failed to release coupon for unfulfillable order",
				slog.String("order_id", order.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := s.orders.UpdateStatus(ctx, order.ID, domain.OrderStatusPaid, domain.OrderStatusRefundPending); err != nil {
		return fmt.Errorf("park unfulfillable order: %w", err)
	}
	order.Status = domain.OrderStatusRefundPending

	if !s.cfg.AutoRefundOnStockFailure {
		return nil
	}

	if _, err := s.refunds.Refund(ctx, &RefundInput{
		OrderID:        order.ID,
		AmountMinor:    order.TotalMinor,
		Reason:         "automatic refund: stock unavailable after payment",
		IdempotencyKey: "auto-stock-" + order.ID,
	}); err != nil {
		// The order stays in refund_pending; operators retry from there.
		s.logger.ErrorContext(ctx, "automatic refund failed",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return nil
}

// handleSessionClosed cancels the order behind an expired or failed session
// and releases its holds. Orders that already left pending_payment are left
// alone; the closure notice is stale.
func (s *WebhookService) handleSessionClosed(ctx context.Context, evt *WebhookEvent) error {
	order, err := s.orders.GetByPaymentSession(ctx, evt.SessionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.DebugContext(ctx, "session closure for unknown session",
				slog.String("session_id", evt.SessionID),
			)
			return nil
		}
		return err
	}
	if order.Status != domain.OrderStatusPendingPayment {
		return nil
	}

	reason := "payment session expired"
	if evt.Type == WebhookSessionFailed {
		reason = "payment failed"
	}
	if err := s.orders.Cancel(ctx, order.ID, domain.OrderStatusPendingPayment, reason); err != nil {
		// Lost the race against a completed delivery. That path owns the
		// order now.
		if errors.Is(err, apperrors.ErrConflict) {
			return nil
		}
		return err
	}

	if err := s.inventory.ReleaseForOrder(ctx, order.ID); err != nil {
		s.logger.ErrorContext(ctx, "failed to release stock for closed session",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}
	if order.CouponID != "" {
		if err := s.coupons.Release(ctx, order.CouponID, order.ID); err != nil {
			s.logger.ErrorContext(ctx, "failed to release coupon for closed session",
				slog.String("order_id", order.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := s.producer.PublishOrderCancelled(ctx, order, reason); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.cancelled event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order cancelled after session closure",
		slog.String("order_id", order.ID),
		slog.String("session_id", evt.SessionID),
		slog.String("reason", reason),
	)
	return nil
}
