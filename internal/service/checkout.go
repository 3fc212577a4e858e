package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mahmoodamara/storefront/internal/domain"
	"github.com/mahmoodamara/storefront/internal/event"
	"github.com/mahmoodamara/storefront/internal/gateway"
	"github.com/mahmoodamara/storefront/internal/repository"
	apperrors "github.com/mahmoodamara/storefront/pkg/errors"
)

// CheckoutConfig holds checkout orchestration parameters.
type CheckoutConfig struct {
	ReservationTTL time.Duration
	SuccessURL     string
	CancelURL      string
}

// CheckoutService orchestrates quote-to-order conversion: pricing, stock
// holds, coupon capacity, order creation and payment session setup. Failures
// after a side effect trigger compensating actions in reverse order.
type CheckoutService struct {
	orders    repository.OrderRepository
	inventory repository.InventoryRepository
	coupons   repository.CouponRepository
	carts     repository.CartRepository
	pricing   *PricingService
	gateway   gateway.Gateway
	producer  *event.Producer
	logger    *slog.Logger
	cfg       CheckoutConfig
}

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(
	orders repository.OrderRepository,
	inventory repository.InventoryRepository,
	coupons repository.CouponRepository,
	carts repository.CartRepository,
	pricing *PricingService,
	gw gateway.Gateway,
	producer *event.Producer,
	logger *slog.Logger,
	cfg CheckoutConfig,
) *CheckoutService {
	return &CheckoutService{
		orders:    orders,
		inventory: inventory,
		coupons:   coupons,
		carts:     carts,
		pricing:   pricing,
		gateway:   gw,
		producer:  producer,
		logger:    logger,
		cfg:       cfg,
	}
}

// CheckoutInput holds the parameters for placing an order.
type CheckoutInput struct {
	Items          []domain.CartItem `json:"items" validate:"required,min=1,dive"`
	ShippingMode   string            `json:"shipping_mode" validate:"required,oneof=delivery pickup_point store_pickup"`
	DeliveryAreaID string            `json:"delivery_area_id,omitempty"`
	PickupPointID  string            `json:"pickup_point_id,omitempty"`
	CouponCode     string            `json:"coupon_code,omitempty"`
	PaymentMethod  string            `json:"payment_method" validate:"required,oneof=card cash_on_delivery"`
	Address        *domain.Address   `json:"address,omitempty"`
	IdempotencyKey string            `json:"-"`
}

// CheckoutResult is the outcome of a checkout: the created order plus, for
// card payments, the provider redirect.
type CheckoutResult struct {
	Order       *domain.Order `json:"order"`
	RedirectURL string        `json:"redirect_url,omitempty"`
}

// Quote prices the given items without any side effects.
func (s *CheckoutService) Quote(ctx context.Context, userID string, req *domain.QuoteRequest) (*domain.Quote, error) {
	req.UserID = userID
	return s.pricing.BuildQuote(ctx, req, time.Now().UTC())
}

// Checkout places an order. The same idempotency key always returns the same
// order, no matter how many times the request is retried.
//
// The saga runs: price -> reserve coupon -> reserve stock -> create order ->
// settle (cash on delivery) or open payment session (card). Each failing step
// unwinds the steps before it in reverse order. The order ID is minted up
// front so coupon and stock holds can be keyed to it before the row exists.
func (s *CheckoutService) Checkout(ctx context.Context, userID string, input *CheckoutInput) (*CheckoutResult, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}
	if input == nil || len(input.Items) == 0 {
		return nil, apperrors.InvalidInput("at least one item is required")
	}
	if input.IdempotencyKey == "" {
		return nil, apperrors.InvalidInputCode("MISSING_IDEMPOTENCY_KEY", "Idempotency-Key header is required")
	}
	if input.PaymentMethod != domain.PaymentMethodCard && input.PaymentMethod != domain.PaymentMethodCashOnDelivery {
		return nil, apperrors.InvalidInput("payment_method must be card or cash_on_delivery")
	}
	if input.ShippingMode == domain.ShippingModeDelivery && input.Address == nil {
		return nil, apperrors.InvalidInput("address is required for delivery orders")
	}

	// Idempotent replay: the first request under a (user, key, method) wins,
	// repeats get the order it created. A replayed card order that is still
	// awaiting payment gets its redirect URL back too.
	existing, err := s.orders.GetByIdempotencyKey(ctx, userID, input.IdempotencyKey, input.PaymentMethod)
	if err == nil {
		s.logger.InfoContext(ctx, "checkout replayed idempotently",
			slog.String("order_id", existing.ID),
			slog.String("idempotency_key", input.IdempotencyKey),
		)
		result := &CheckoutResult{Order: existing}
		if existing.Status == domain.OrderStatusPendingPayment && existing.PaymentSessionID != "" {
			session, err := s.gateway.RetrieveSession(ctx, existing.PaymentSessionID)
			if err != nil {
				s.logger.WarnContext(ctx, "could not retrieve payment session on replay",
					slog.String("order_id", existing.ID),
					slog.String("session_id", existing.PaymentSessionID),
					slog.String("error", err.Error()),
				)
			} else {
				result.RedirectURL = session.RedirectURL
			}
		}
		return result, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	quote, err := s.pricing.BuildQuote(ctx, &domain.QuoteRequest{
		UserID:         userID,
		Items:          input.Items,
		ShippingMode:   input.ShippingMode,
		DeliveryAreaID: input.DeliveryAreaID,
		PickupPointID:  input.PickupPointID,
		CouponCode:     input.CouponCode,
	}, now)
	if err != nil {
		return nil, err
	}

	orderID := uuid.NewString()

	if quote.CouponID != "" {
		if err := s.coupons.Reserve(ctx, quote.CouponID, orderID); err != nil {
			if errors.Is(err, repository.ErrCouponExhausted) {
				return nil, apperrors.ConflictCode("COUPON_EXHAUSTED", "coupon usage limit reached")
			}
			return nil, fmt.Errorf("reserve coupon: %w", err)
		}
	}

	// Hold stock for every line, gifts included.
	holdItems := make([]domain.CartItem, 0, len(quote.Lines))
	for _, line := range quote.Lines {
		holdItems = append(holdItems, domain.CartItem{
			ProductID: line.ProductID,
			VariantID: line.VariantID,
			Quantity:  line.Quantity,
		})
	}
	if _, err := s.inventory.Reserve(ctx, orderID, holdItems, s.cfg.ReservationTTL); err != nil {
		s.releaseCoupon(ctx, quote.CouponID, orderID)
		if errors.Is(err, repository.ErrInsufficientStock) {
			return nil, apperrors.ConflictCode("INSUFFICIENT_STOCK", "not enough stock to fulfil the order")
		}
		return nil, fmt.Errorf("reserve stock: %w", err)
	}

	order, err := s.orders.Create(ctx, orderFromQuote(orderID, userID, input, quote))
	if err != nil {
		s.releaseStock(ctx, orderID)
		s.releaseCoupon(ctx, quote.CouponID, orderID)
		return nil, fmt.Errorf("create order: %w", err)
	}

	if input.PaymentMethod == domain.PaymentMethodCashOnDelivery {
		if err := s.settleCashOnDelivery(ctx, order, quote, now); err != nil {
			return nil, err
		}
		confirmed, err := s.orders.GetByID(ctx, order.ID)
		if err != nil {
			confirmed = order
			confirmed.Status = domain.OrderStatusConfirmed
		}
		return &CheckoutResult{Order: confirmed}, nil
	}

	session, err := s.gateway.CreateSession(ctx, &gateway.SessionInput{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Amount:      order.TotalMinor,
		Currency:    order.Currency,
		CustomerID:  userID,
		SuccessURL:  s.cfg.SuccessURL,
		CancelURL:   s.cfg.CancelURL,
	})
	if err != nil {
		s.compensate(ctx, order, true, quote.CouponID != "", "payment session creation failed")
		return nil, apperrors.ServiceUnavailable("payment provider is temporarily unavailable")
	}

	if err := s.orders.SetPaymentSession(ctx, order.ID, session.ID); err != nil {
		s.compensate(ctx, order, true, quote.CouponID != "", "attaching payment session failed")
		return nil, fmt.Errorf("attach payment session: %w", err)
	}
	order.PaymentSessionID = session.ID
	order.Status = domain.OrderStatusPendingPayment

	s.logger.InfoContext(ctx, "checkout awaiting payment",
		slog.String("order_id", order.ID),
		slog.String("order_number", order.OrderNumber),
		slog.String("session_id", session.ID),
		slog.Int64("total_minor", order.TotalMinor),
	)

	return &CheckoutResult{Order: order, RedirectURL: session.RedirectURL}, nil
}

// settleCashOnDelivery confirms the order immediately: stock is committed,
// the coupon consumed and the cart cleared of the purchased pairs.
func (s *CheckoutService) settleCashOnDelivery(ctx context.Context, order *domain.Order, quote *domain.Quote, now time.Time) error {
	if err := s.inventory.ConfirmForOrder(ctx, order.ID, now); err != nil {
		s.compensate(ctx, order, true, quote.CouponID != "", "stock confirmation failed")
		if errors.Is(err, repository.ErrInsufficientStock) || errors.Is(err, repository.ErrHoldsLapsed) {
			return apperrors.ConflictCode("INSUFFICIENT_STOCK", "not enough stock to fulfil the order")
		}
		return fmt.Errorf("confirm stock: %w", err)
	}

	if quote.CouponID != "" {
		if err := s.coupons.Consume(ctx, quote.CouponID, order.ID); err != nil {
			s.logger.ErrorContext(ctx, "failed to consume coupon after stock commit",
				slog.String("order_id", order.ID),
				slog.String("coupon_id", quote.CouponID),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := s.orders.UpdateStatus(ctx, order.ID, domain.OrderStatusPending, domain.OrderStatusConfirmed); err != nil {
		return fmt.Errorf("confirm order: %w", err)
	}
	order.Status = domain.OrderStatusConfirmed

	clearPurchased(ctx, s.carts, order, s.logger)

	if err := s.producer.PublishOrderConfirmed(ctx, order); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.confirmed event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "cash on delivery order confirmed",
		slog.String("order_id", order.ID),
		slog.String("order_number", order.OrderNumber),
		slog.Int64("total_minor", order.TotalMinor),
	)
	return nil
}

// CancelPendingPayment cancels an order that is still waiting for payment and
// releases its holds. Used by the payer abandoning checkout and by session
// expiry notifications.
func (s *CheckoutService) CancelPendingPayment(ctx context.Context, orderID, reason string) error {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != domain.OrderStatusPendingPayment && order.Status != domain.OrderStatusPending {
		return apperrors.Conflict("only orders awaiting payment can be cancelled")
	}

	if err := s.orders.Cancel(ctx, orderID, order.Status, reason); err != nil {
		return err
	}
	s.releaseHolds(ctx, order)

	if err := s.producer.PublishOrderCancelled(ctx, order, reason); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.cancelled event",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "pending order cancelled",
		slog.String("order_id", orderID),
		slog.String("reason", reason),
	)
	return nil
}

// GetOrder retrieves an order, restricted to its owner.
func (s *CheckoutService) GetOrder(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, apperrors.NotFound("order", orderID)
	}
	return order, nil
}

// ListOrders returns a page of the user's orders.
func (s *CheckoutService) ListOrders(ctx context.Context, userID string, page, perPage int) ([]domain.Order, int, error) {
	return s.orders.ListByUser(ctx, userID, page, perPage)
}

// compensate unwinds checkout side effects after a failed step once the order
// row exists: release the stock holds, release the coupon hold, cancel the
// order. Compensation failures are logged; the sweeper and guarded
// transitions pick up stragglers.
func (s *CheckoutService) compensate(ctx context.Context, order *domain.Order, stockHeld, couponHeld bool, reason string) {
	if stockHeld {
		s.releaseStock(ctx, order.ID)
	}
	if couponHeld {
		s.releaseCoupon(ctx, order.CouponID, order.ID)
	}
	if err := s.orders.Cancel(ctx, order.ID, order.Status, reason); err != nil {
		s.logger.ErrorContext(ctx, "compensation: cancel order failed",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *CheckoutService) releaseStock(ctx context.Context, orderID string) {
	if err := s.inventory.ReleaseForOrder(ctx, orderID); err != nil {
		s.logger.ErrorContext(ctx, "compensation: release stock failed",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *CheckoutService) releaseCoupon(ctx context.Context, couponID, orderID string) {
	if couponID == "" {
		return
	}
	if err := s.coupons.Release(ctx, couponID, orderID); err != nil {
		s.logger.ErrorContext(ctx, "compensation: release coupon failed",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
	}
}

// releaseHolds returns the order's stock and coupon holds to their pools.
func (s *CheckoutService) releaseHolds(ctx context.Context, order *domain.Order) {
	if err := s.inventory.ReleaseForOrder(ctx, order.ID); err != nil {
		s.logger.ErrorContext(ctx, "release stock holds failed",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}
	if order.CouponID != "" {
		if err := s.coupons.Release(ctx, order.CouponID, order.ID); err != nil {
			s.logger.ErrorContext(ctx, "release coupon hold failed",
				slog.String("order_id", order.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// clearPurchased removes exactly the purchased (product, variant) pairs from
// the user's cart. Gift lines are not cart content and are skipped. Cart
// trouble never fails a settled order.
func clearPurchased(ctx context.Context, carts repository.CartRepository, order *domain.Order, logger *slog.Logger) {
	cart, err := carts.Get(ctx, order.UserID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			logger.WarnContext(ctx, "could not load cart for post-purchase cleanup",
				slog.String("user_id", order.UserID),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	purchased := make([]domain.CartItem, 0, len(order.Items))
	for _, item := range order.Items {
		if item.IsGift {
			continue
		}
		purchased = append(purchased, domain.CartItem{ProductID: item.ProductID, VariantID: item.VariantID})
	}
	cart.RemovePurchased(purchased)

	if err := carts.Save(ctx, cart); err != nil {
		logger.WarnContext(ctx, "could not save cart after purchase",
			slog.String("user_id", order.UserID),
			slog.String("error", err.Error()),
		)
	}
}

// orderFromQuote materializes a pending order from a priced quote.
func orderFromQuote(orderID, userID string, input *CheckoutInput, quote *domain.Quote) *domain.Order {
	items := make([]domain.OrderItem, 0, len(quote.Lines))
	for _, line := range quote.Lines {
		items = append(items, domain.OrderItem{
			ProductID:      line.ProductID,
			VariantID:      line.VariantID,
			Name:           line.Name,
			Category:       line.Category,
			UnitPriceMinor: line.UnitPriceMinor,
			Quantity:       line.Quantity,
			LineTotalMinor: line.LineTotalMinor,
			IsGift:         line.IsGift,
		})
	}
	return &domain.Order{
		ID:                  orderID,
		UserID:              userID,
		Status:              domain.OrderStatusPending,
		PaymentMethod:       input.PaymentMethod,
		IdempotencyKey:      input.IdempotencyKey,
		Currency:            quote.Currency,
		CouponID:            quote.CouponID,
		CouponCode:          quote.CouponCode,
		CampaignID:          quote.CampaignID,
		ShippingMode:        input.ShippingMode,
		DeliveryAreaID:      quote.DeliveryAreaID,
		PickupPointID:       quote.PickupPointID,
		ShippingAddress:     input.Address,
		Items:               items,
		SubtotalMinor:       quote.SubtotalMinor,
		ShippingFeeMinor:    quote.ShippingFeeMinor,
		CampaignDiscount:    quote.CampaignDiscount,
		CouponDiscount:      quote.CouponDiscount,
		OfferDiscount:       quote.OfferDiscount,
		TotalMinor:          quote.TotalMinor,
		TotalBeforeVATMinor: quote.TotalBeforeVATMinor,
		VATMinor:            quote.VATMinor,
	}
}
