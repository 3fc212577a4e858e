package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mahmoodamara/storefront/internal/domain"
	"github.com/mahmoodamara/storefront/internal/repository"
	"github.com/mahmoodamara/storefront/pkg/database"
	apperrors "github.com/mahmoodamara/storefront/pkg/errors"
)

// OrderRepository persists orders, refunds and returns using PostgreSQL.
type OrderRepository struct {
	pool   database.DBTX
	runner *database.TxRunner
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool database.DBTX, runner *database.TxRunner) *OrderRepository {
	return &OrderRepository{pool: pool, runner: runner}
}

const orderColumns = `id, order_number, user_id, status, payment_method, payment_session_id, idempotency_key, currency,
	coupon_id, coupon_code, campaign_id, shipping_mode, delivery_area_id, pickup_point_id, shipping_address,
	subtotal_minor, shipping_fee_minor, campaign_discount_minor, coupon_discount_minor, offer_discount_minor,
	total_minor, total_before_vat_minor, vat_minor, refunded_minor, cancel_reason, created_at, updated_at`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o                domain.Order
		paymentSessionID *string
		idempotencyKey   *string
		couponID         *string
		couponCode       *string
		campaignID       *string
		deliveryAreaID   *string
		pickupPointID    *string
		cancelReason     *string
		addressJSON      []byte
	)
	err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.UserID,
		&o.Status,
		&o.PaymentMethod,
		&paymentSessionID,
		&idempotencyKey,
		&o.Currency,
		&couponID,
		&couponCode,
		&campaignID,
		&o.ShippingMode,
		&deliveryAreaID,
		&pickupPointID,
		&addressJSON,
		&o.SubtotalMinor,
		&o.ShippingFeeMinor,
		&o.CampaignDiscount,
		&o.CouponDiscount,
		&o.OfferDiscount,
		&o.TotalMinor,
		&o.TotalBeforeVATMinor,
		&o.VATMinor,
		&o.RefundedMinor,
		&cancelReason,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(addressJSON) > 0 {
		var addr domain.Address
		if err := json.Unmarshal(addressJSON, &addr); err != nil {
			return nil, fmt.Errorf("unmarshal shipping address: %w", err)
		}
		o.ShippingAddress = &addr
	}
	if paymentSessionID != nil {
		o.PaymentSessionID = *paymentSessionID
	}
	if idempotencyKey != nil {
		o.IdempotencyKey = *idempotencyKey
	}
	if couponID != nil {
		o.CouponID = *couponID
	}
	if couponCode != nil {
		o.CouponCode = *couponCode
	}
	if campaignID != nil {
		o.CampaignID = *campaignID
	}
	if deliveryAreaID != nil {
		o.DeliveryAreaID = *deliveryAreaID
	}
	if pickupPointID != nil {
		o.PickupPointID = *pickupPointID
	}
	if cancelReason != nil {
		o.CancelReason = *cancelReason
	}
	return &o, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nextOrderNumber claims the next sequence for the given year via counter
// upsert, so numbers are gapless per year and safe under concurrency.
func nextOrderNumber(ctx context.Context, q database.DBTX, now time.Time) (string, error) {
	var seq int64
	err := q.QueryRow(ctx,
		`INSERT INTO order_counters (year, last_seq) VALUES ($1, 1)
		 ON CONFLICT (year) DO UPDATE SET last_seq = order_counters.last_seq + 1
		 RETURNING last_seq`,
		now.Year(),
	).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("claim order number: %w", err)
	}
	return fmt.Sprintf("ORD-%d-%06d", now.Year(), seq), nil
}

// Create assigns the next year-scoped order number and inserts the order with
// its items atomically. The caller supplies the order ID, which lets holds be
// keyed to the order before the row exists; an empty ID gets a fresh one.
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	addressJSON, err := domain.MarshalAddress(order.ShippingAddress)
	if err != nil {
		return nil, fmt.Errorf("marshal shipping address: %w", err)
	}

	orderID := order.ID
	if orderID == "" {
		orderID = uuid.NewString()
	}

	var created *domain.Order
	_, err = r.runner.WithTransaction(ctx, func(ctx context.Context, q database.DBTX) error {
		number, err := nextOrderNumber(ctx, q, time.Now().UTC())
		if err != nil {
			return err
		}

		query := `
			INSERT INTO orders (id, order_number, user_id, status, payment_method, idempotency_key, currency,
				coupon_id, coupon_code, campaign_id, shipping_mode, delivery_area_id, pickup_point_id, shipping_address,
				subtotal_minor, shipping_fee_minor, campaign_discount_minor, coupon_discount_minor, offer_discount_minor,
				total_minor, total_before_vat_minor, vat_minor)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
			RETURNING ` + orderColumns

		created, err = scanOrder(q.QueryRow(ctx, query,
			orderID,
			number,
			order.UserID,
			order.Status,
			order.PaymentMethod,
			nullable(order.IdempotencyKey),
			order.Currency,
			nullable(order.CouponID),
			nullable(order.CouponCode),
			nullable(order.CampaignID),
			order.ShippingMode,
			nullable(order.DeliveryAreaID),
			nullable(order.PickupPointID),
			addressJSON,
			order.SubtotalMinor,
			order.ShippingFeeMinor,
			order.CampaignDiscount,
			order.CouponDiscount,
			order.OfferDiscount,
			order.TotalMinor,
			order.TotalBeforeVATMinor,
			order.VATMinor,
		))
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for _, item := range order.Items {
			var itemID string
			err := q.QueryRow(ctx,
				`INSERT INTO order_items (order_id, product_id, variant_id, name, category, unit_price_minor, quantity, line_total_minor, is_gift)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				 RETURNING id`,
				created.ID, item.ProductID, item.VariantID, item.Name, nullable(item.Category), item.UnitPriceMinor, item.Quantity, item.LineTotalMinor, item.IsGift,
			).Scan(&itemID)
			if err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
			item.ID = itemID
			item.OrderID = created.ID
			created.Items = append(created.Items, item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetByID retrieves an order with its items.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	o, err := scanOrder(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("order", id)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	items, err := r.GetItems(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

// GetByIdempotencyKey retrieves the order created under the given key, scoped
// to the submitting user and payment method.
func (r *OrderRepository) GetByIdempotencyKey(ctx context.Context, userID, key, paymentMethod string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 AND idempotency_key = $2 AND payment_method = $3`

	o, err := scanOrder(r.pool.QueryRow(ctx, query, userID, key, paymentMethod))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get order by idempotency key: %w", err)
	}

	items, err := r.GetItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

// GetByPaymentSession retrieves the order owning the provider session.
func (r *OrderRepository) GetByPaymentSession(ctx context.Context, sessionID string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE payment_session_id = $1`

	o, err := scanOrder(r.pool.QueryRow(ctx, query, sessionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("payment session", sessionID)
		}
		return nil, fmt.Errorf("get order by payment session: %w", err)
	}

	items, err := r.GetItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

// ListByUser returns a page of the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string, page, perPage int) ([]domain.Order, int, error) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 20
	}
	offset := (page - 1) * perPage

	query := `
		SELECT ` + orderColumns + `, count(*) OVER() AS total_count
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, userID, perPage, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders by user: %w", err)
	}
	defer rows.Close()

	var (
		orders     []domain.Order
		totalCount int
	)
	for rows.Next() {
		var (
			o                domain.Order
			paymentSessionID *string
			idempotencyKey   *string
			couponID         *string
			couponCode       *string
			campaignID       *string
			deliveryAreaID   *string
			pickupPointID    *string
			cancelReason     *string
			addressJSON      []byte
		)
		if err := rows.Scan(
			&o.ID,
			&o.OrderNumber,
			&o.UserID,
			&o.Status,
			&o.PaymentMethod,
			&paymentSessionID,
			&idempotencyKey,
			&o.Currency,
			&couponID,
			&couponCode,
			&campaignID,
			&o.ShippingMode,
			&deliveryAreaID,
			&pickupPointID,
			&addressJSON,
			&o.SubtotalMinor,
			&o.ShippingFeeMinor,
			&o.CampaignDiscount,
			&o.CouponDiscount,
			&o.OfferDiscount,
			&o.TotalMinor,
			&o.TotalBeforeVATMinor,
			&o.VATMinor,
			&o.RefundedMinor,
			&cancelReason,
			&o.CreatedAt,
			&o.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan order row: %w", err)
		}
		if len(addressJSON) > 0 {
			var addr domain.Address
			if err := json.Unmarshal(addressJSON, &addr); err != nil {
				return nil, 0, fmt.Errorf("unmarshal shipping address: %w", err)
			}
			o.ShippingAddress = &addr
		}
		if paymentSessionID != nil {
			o.PaymentSessionID = *paymentSessionID
		}
		if couponCode != nil {
			o.CouponCode = *couponCode
		}
		if deliveryAreaID != nil {
			o.DeliveryAreaID = *deliveryAreaID
		}
		if pickupPointID != nil {
			o.PickupPointID = *pickupPointID
		}
		if cancelReason != nil {
			o.CancelReason = *cancelReason
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate order rows: %w", err)
	}

	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, totalCount, nil
}

// GetItems retrieves the items of an order.
func (r *OrderRepository) GetItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	query := `
		SELECT id, order_id, product_id, variant_id, name, category, unit_price_minor, quantity, line_total_minor, is_gift
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC`

	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var (
			item     domain.OrderItem
			category *string
		)
		if err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.VariantID,
			&item.Name,
			&category,
			&item.UnitPriceMinor,
			&item.Quantity,
			&item.LineTotalMinor,
			&item.IsGift,
		); err != nil {
			return nil, fmt.Errorf("scan order item row: %w", err)
		}
		if category != nil {
			item.Category = *category
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order item rows: %w", err)
	}

	if items == nil {
		items = []domain.OrderItem{}
	}
	return items, nil
}

// SetPaymentSession attaches the provider session id and moves the order to
// pending_payment. Only a pending order can enter payment.
func (r *OrderRepository) SetPaymentSession(ctx context.Context, orderID, sessionID string) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE orders SET payment_session_id = $1, status = $2, updated_at = NOW()
		 WHERE id = $3 AND status = $4`,
		sessionID, domain.OrderStatusPendingPayment, orderID, domain.OrderStatusPending,
	)
	if err != nil {
		return fmt.Errorf("set payment session: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("order %s is not pending: %w", orderID, apperrors.ErrConflict)
	}
	return nil
}

// MarkPaidBySession transitions the order owning the payment session from
// pending_payment to paid. Exactly one caller wins the transition; later
// callers get ErrAlreadySettled so webhook replays can be acknowledged.
func (r *OrderRepository) MarkPaidBySession(ctx context.Context, sessionID string) (*domain.Order, error) {
	query := `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE payment_session_id = $2 AND status = $3
		RETURNING ` + orderColumns

	o, err := scanOrder(r.pool.QueryRow(ctx, query,
		domain.OrderStatusPaid, sessionID, domain.OrderStatusPendingPayment,
	))
	if err == nil {
		items, err := r.GetItems(ctx, o.ID)
		if err != nil {
			return nil, err
		}
		o.Items = items
		return o, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("mark paid by session: %w", err)
	}

	// Lost the transition: either a replay or an unknown session.
	existing, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE payment_session_id = $1`, sessionID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("payment session", sessionID)
		}
		return nil, fmt.Errorf("get order by payment session: %w", err)
	}
	return existing, repository.ErrAlreadySettled
}

// UpdateStatus performs a guarded transition; it fails with a conflict if the
// order already left fromStatus.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID, fromStatus, toStatus string) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
		toStatus, orderID, fromStatus,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("order %s is not %s: %w", orderID, fromStatus, apperrors.ErrConflict)
	}
	return nil
}

// Cancel performs a guarded transition to cancelled, recording the reason.
func (r *OrderRepository) Cancel(ctx context.Context, orderID, fromStatus, reason string) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $1, cancel_reason = $2, updated_at = NOW() WHERE id = $3 AND status = $4`,
		domain.OrderStatusCancelled, reason, orderID, fromStatus,
	)
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("order %s is not %s: %w", orderID, fromStatus, apperrors.ErrConflict)
	}
	return nil
}

const refundColumns = `id, order_id, provider_refund_id, amount_minor, reason, status, idempotency_key, created_at, updated_at`

func scanRefund(row pgx.Row) (*domain.Refund, error) {
	var (
		ref              domain.Refund
		providerRefundID *string
		idempotencyKey   *string
	)
	err := row.Scan(
		&ref.ID,
		&ref.OrderID,
		&providerRefundID,
		&ref.AmountMinor,
		&ref.Reason,
		&ref.Status,
		&idempotencyKey,
		&ref.CreatedAt,
		&ref.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if providerRefundID != nil {
		ref.ProviderRefundID = *providerRefundID
	}
	if idempotencyKey != nil {
		ref.IdempotencyKey = *idempotencyKey
	}
	return &ref, nil
}

// CreateRefund inserts a pending refund row.
func (r *OrderRepository) CreateRefund(ctx context.Context, ref *domain.Refund) (*domain.Refund, error) {
	query := `
		INSERT INTO refunds (order_id, provider_refund_id, amount_minor, reason, status, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + refundColumns

	created, err := scanRefund(r.pool.QueryRow(ctx, query,
		ref.OrderID,
		nullable(ref.ProviderRefundID),
		ref.AmountMinor,
		ref.Reason,
		ref.Status,
		nullable(ref.IdempotencyKey),
	))
	if err != nil {
		return nil, fmt.Errorf("create refund: %w", err)
	}
	return created, nil
}

// GetRefundByIdempotencyKey retrieves the refund created under the given key.
func (r *OrderRepository) GetRefundByIdempotencyKey(ctx context.Context, key string) (*domain.Refund, error) {
	query := `SELECT ` + refundColumns + ` FROM refunds WHERE idempotency_key = $1`

	ref, err := scanRefund(r.pool.QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get refund by idempotency key: %w", err)
	}
	return ref, nil
}

// ApplyRefund settles a refund row and bumps the order's refunded total and
// status in one atomic unit.
func (r *OrderRepository) ApplyRefund(ctx context.Context, refundID, orderID string, amount int64, orderStatus string) error {
	_, err := r.runner.WithTransaction(ctx, func(ctx context.Context, q database.DBTX) error {
		ct, err := q.Exec(ctx,
			`UPDATE refunds SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
			domain.RefundStatusSucceeded, refundID, domain.RefundStatusPending,
		)
		if err != nil {
			return fmt.Errorf("settle refund: %w", err)
		}
		if ct.RowsAffected() == 0 {
			return fmt.Errorf("refund %s is not pending: %w", refundID, apperrors.ErrConflict)
		}

		ct, err = q.Exec(ctx,
			`UPDATE orders SET refunded_minor = refunded_minor + $1, status = $2, updated_at = NOW()
			 WHERE id = $3 AND refunded_minor + $1 <= total_minor`,
			amount, orderStatus, orderID,
		)
		if err != nil {
			return fmt.Errorf("apply refund to order: %w", err)
		}
		if ct.RowsAffected() == 0 {
			return fmt.Errorf("refund exceeds order %s total: %w", orderID, apperrors.ErrConflict)
		}
		return nil
	})
	return err
}

// MarkRefundFailed flips a pending refund to failed.
func (r *OrderRepository) MarkRefundFailed(ctx context.Context, refundID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE refunds SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
		domain.RefundStatusFailed, refundID, domain.RefundStatusPending,
	)
	if err != nil {
		return fmt.Errorf("mark refund failed: %w", err)
	}
	return nil
}

// CreateReturn records returned units of an order line.
func (r *OrderRepository) CreateReturn(ctx context.Context, ret *domain.Return) (*domain.Return, error) {
	query := `
		INSERT INTO returns (order_id, order_item_id, quantity, restock, refund_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	created := *ret
	err := r.pool.QueryRow(ctx, query,
		ret.OrderID,
		ret.OrderItemID,
		ret.Quantity,
		ret.Restock,
		nullable(ret.RefundID),
	).Scan(&created.ID, &created.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create return: %w", err)
	}
	return &created, nil
}
