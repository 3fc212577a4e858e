package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mahmoodamara/storefront/internal/domain"
	"github.com/mahmoodamara/storefront/internal/repository"
	"github.com/mahmoodamara/storefront/pkg/database"
	apperrors "github.com/mahmoodamara/storefront/pkg/errors"
)

// CouponRepository is the PostgreSQL coupon capacity ledger. Capacity is
// enforced with a single conditional UPDATE on the counters row, so two
// concurrent reserves for the last slot cannot both win.
type CouponRepository struct {
	pool   database.DBTX
	runner *database.TxRunner
}

// NewCouponRepository creates a new PostgreSQL-backed coupon ledger.
func NewCouponRepository(pool database.DBTX, runner *database.TxRunner) *CouponRepository {
	return &CouponRepository{pool: pool, runner: runner}
}

const couponColumns = `id, code, discount_type, discount_value, min_order_minor, max_discount_minor, usage_limit, used_count, reserved_count, starts_at, expires_at, active, created_at, updated_at`

func scanCoupon(row pgx.Row) (*domain.Coupon, error) {
	var c domain.Coupon
	err := row.Scan(
		&c.ID,
		&c.Code,
		&c.DiscountType,
		&c.DiscountValue,
		&c.MinOrderMinor,
		&c.MaxDiscountMinor,
		&c.UsageLimit,
		&c.UsedCount,
		&c.ReservedCount,
		&c.StartsAt,
		&c.ExpiresAt,
		&c.Active,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetByCode retrieves a coupon by its code.
func (r *CouponRepository) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1`

	c, err := scanCoupon(r.pool.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("coupon", code)
		}
		return nil, fmt.Errorf("get coupon by code: %w", err)
	}
	return c, nil
}

// Reserve takes one capacity slot for the given order. A repeat reserve for
// the same (coupon, order) pair is a no-op; when used plus reserved already
// meet the usage limit it returns ErrCouponExhausted without changing state.
// Coupons without a usage limit always have capacity.
func (r *CouponRepository) Reserve(ctx context.Context, couponID, orderID string) error {
	_, err := r.runner.WithTransaction(ctx, func(ctx context.Context, q database.DBTX) error {
		var status string
		err := q.QueryRow(ctx,
			`SELECT status FROM coupon_reservations WHERE coupon_id = $1 AND order_id = $2`,
			couponID, orderID,
		).Scan(&status)
		if err == nil {
			if status == domain.CouponReservationReleased {
				return fmt.Errorf("coupon %s hold for order %s was released: %w", couponID, orderID, repository.ErrCouponExhausted)
			}
			// Already reserved or consumed for this order.
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("check existing coupon hold: %w", err)
		}

		ct, err := q.Exec(ctx,
			`UPDATE coupons SET reserved_count = reserved_count + 1, updated_at = NOW()
			 WHERE id = $1 AND (usage_limit IS NULL OR used_count + reserved_count < usage_limit)`,
			couponID,
		)
		if err != nil {
			return fmt.Errorf("reserve coupon capacity: %w", err)
		}
		if ct.RowsAffected() == 0 {
			return fmt.Errorf("coupon %s: %w", couponID, repository.ErrCouponExhausted)
		}

		if _, err := q.Exec(ctx,
			`INSERT INTO coupon_reservations (coupon_id, order_id, status)
			 VALUES ($1, $2, 'reserved')`,
			couponID, orderID,
		); err != nil {
			return fmt.Errorf("insert coupon hold: %w", err)
		}
		return nil
	})
	return err
}

// Consume converts the order's hold into a permanent use. Consuming an
// already-consumed hold is a no-op, so payment webhook replays are safe.
func (r *CouponRepository) Consume(ctx context.Context, couponID, orderID string) error {
	_, err := r.runner.WithTransaction(ctx, func(ctx context.Context, q database.DBTX) error {
		ct, err := q.Exec(ctx,
			`UPDATE coupon_reservations SET status = 'consumed', updated_at = NOW()
			 WHERE coupon_id = $1 AND order_id = $2 AND status = 'reserved'`,
			couponID, orderID,
		)
		if err != nil {
			return fmt.Errorf("consume coupon hold: %w", err)
		}
		if ct.RowsAffected() == 0 {
			var status string
			err := q.QueryRow(ctx,
				`SELECT status FROM coupon_reservations WHERE coupon_id = $1 AND order_id = $2`,
				couponID, orderID,
			).Scan(&status)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return apperrors.NotFound("coupon hold", orderID)
				}
				return fmt.Errorf("check coupon hold: %w", err)
			}
			if status == domain.CouponReservationConsumed {
				return nil
			}
			return fmt.Errorf("coupon hold for order %s is %s: %w", orderID, status, apperrors.ErrConflict)
		}

		if _, err := q.Exec(ctx,
			`UPDATE coupons SET used_count = used_count + 1, reserved_count = reserved_count - 1, updated_at = NOW()
			 WHERE id = $1`,
			couponID,
		); err != nil {
			return fmt.Errorf("consume coupon capacity: %w", err)
		}
		return nil
	})
	return err
}

// Release returns the order's hold to the pool. Releasing a missing or
// already-released hold is a no-op; a consumed hold cannot be released.
func (r *CouponRepository) Release(ctx context.Context, couponID, orderID string) error {
	_, err := r.runner.WithTransaction(ctx, func(ctx context.Context, q database.DBTX) error {
		ct, err := q.Exec(ctx,
			`UPDATE coupon_reservations SET status = 'released', updated_at = NOW()
			 WHERE coupon_id = $1 AND order_id = $2 AND status = 'reserved'`,
			couponID, orderID,
		)
		if err != nil {
			return fmt.Errorf("release coupon hold: %w", err)
		}
		if ct.RowsAffected() == 0 {
			return nil
		}

		if _, err := q.Exec(ctx,
			`UPDATE coupons SET reserved_count = reserved_count - 1, updated_at = NOW()
			 WHERE id = $1 AND reserved_count > 0`,
			couponID,
		); err != nil {
			return fmt.Errorf("release coupon capacity: %w", err)
		}
		return nil
	})
	return err
}

// Create inserts a new coupon.
func (r *CouponRepository) Create(ctx context.Context, c *domain.Coupon) (*domain.Coupon, error) {
	query := `
		INSERT INTO coupons (code, discount_type, discount_value, min_order_minor, max_discount_minor, usage_limit, starts_at, expires_at, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + couponColumns

	created, err := scanCoupon(r.pool.QueryRow(ctx, query,
		c.Code,
		c.DiscountType,
		c.DiscountValue,
		c.MinOrderMinor,
		c.MaxDiscountMinor,
		c.UsageLimit,
		c.StartsAt,
		c.ExpiresAt,
		c.Active,
	))
	if err != nil {
		return nil, fmt.Errorf("create coupon: %w", err)
	}
	return created, nil
}
