package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/mahmoodamara/storefront/internal/domain"
	"github.com/mahmoodamara/storefront/internal/repository"
	"github.com/mahmoodamara/storefront/pkg/database"
)

// InventoryRepository manages variant stock, reservation holds and the
// movement audit trail using PostgreSQL. Multi-statement operations run under
// a single transaction with row locks on the affected variants.
type InventoryRepository struct {
	pool   database.DBTX
	runner *database.TxRunner
}

// NewInventoryRepository creates a new PostgreSQL-backed inventory repository.
func NewInventoryRepository(pool database.DBTX, runner *database.TxRunner) *InventoryRepository {
	return &InventoryRepository{pool: pool, runner: runner}
}

const reservationColumns = `id, order_id, product_id, variant_id, quantity, status, expires_at, created_at, updated_at`

// Reserve places an all-or-nothing hold for every item. Variants are locked
// in input order; sellable stock is on-hand minus other active holds. On any
// shortfall the transaction rolls back and ErrInsufficientStock is returned.
func (r *InventoryRepository) Reserve(ctx context.Context, orderID string, items []domain.CartItem, ttl time.Duration) ([]domain.StockReservation, error) {
	if len(items) == 0 {
		return []domain.StockReservation{}, nil
	}

	expiresAt := time.Now().UTC().Add(ttl)
	reservations := make([]domain.StockReservation, 0, len(items))

	_, err := r.runner.WithTransaction(ctx, func(ctx context.Context, q database.DBTX) error {
		reservations = reservations[:0]
		for _, item := range items {
			var stock int
			err := q.QueryRow(ctx,
				`SELECT stock FROM product_variants WHERE id = $1 AND product_id = $2 FOR UPDATE`,
				item.VariantID, item.ProductID,
			).Scan(&stock)
			if err != nil {
				return fmt.Errorf("lock variant %s: %w", item.VariantID, err)
			}

			var held int
			err = q.QueryRow(ctx,
				`SELECT COALESCE(SUM(quantity), 0)
				 FROM stock_reservations
				 WHERE variant_id = $1 AND status = 'active' AND expires_at > NOW()`,
				item.VariantID,
			).Scan(&held)
			if err != nil {
				return fmt.Errorf("sum active holds for variant %s: %w", item.VariantID, err)
			}

			if stock-held < item.Quantity {
				return fmt.Errorf("variant %s: requested %d, sellable %d: %w",
					item.VariantID, item.Quantity, stock-held, repository.ErrInsufficientStock)
			}

			var res domain.StockReservation
			err = q.QueryRow(ctx,
				`INSERT INTO stock_reservations (order_id, product_id, variant_id, quantity, status, expires_at)
				 VALUES ($1, $2, $3, $4, 'active', $5)
				 RETURNING `+reservationColumns,
				orderID, item.ProductID, item.VariantID, item.Quantity, expiresAt,
			).Scan(
				&res.ID,
				&res.OrderID,
				&res.ProductID,
				&res.VariantID,
				&res.Quantity,
				&res.Status,
				&res.ExpiresAt,
				&res.CreatedAt,
				&res.UpdatedAt,
			)
			if err != nil {
				return fmt.Errorf("insert reservation for variant %s: %w", item.VariantID, err)
			}
			reservations = append(reservations, res)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return reservations, nil
}

// ConfirmForOrder flips the order's active holds to confirmed and decrements
// on-hand stock, recording a movement per hold. Any lapsed hold fails the
// whole operation with ErrHoldsLapsed and nothing is decremented. An order
// whose holds are all already confirmed is a no-op, so settlement replays
// cannot decrement twice.
func (r *InventoryRepository) ConfirmForOrder(ctx context.Context, orderID string, now time.Time) error {
	_, err := r.runner.WithTransaction(ctx, func(ctx context.Context, q database.DBTX) error {
		rows, err := q.Query(ctx,
			`SELECT id, product_id, variant_id, quantity, status, expires_at
			 FROM stock_reservations
			 WHERE order_id = $1 AND status IN ('active', 'expired', 'confirmed')
			 ORDER BY created_at ASC
			 FOR UPDATE`,
			orderID,
		)
		if err != nil {
			return fmt.Errorf("lock reservations for order %s: %w", orderID, err)
		}

		type hold struct {
			id        string
			productID string
			variantID string
			quantity  int
			status    string
			expiresAt time.Time
		}
		var holds []hold
		for rows.Next() {
			var h hold
			if err := rows.Scan(&h.id, &h.productID, &h.variantID, &h.quantity, &h.status, &h.expiresAt); err != nil {
				rows.Close()
				return fmt.Errorf("scan reservation row: %w", err)
			}
			holds = append(holds, h)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate reservation rows: %w", err)
		}

		if len(holds) == 0 {
			return fmt.Errorf("order %s has no confirmable holds: %w", orderID, repository.ErrHoldsLapsed)
		}
		pending := holds[:0]
		for _, h := range holds {
			if h.status == domain.ReservationStatusConfirmed {
				continue
			}
			if h.status != domain.ReservationStatusActive || now.After(h.expiresAt) {
				return fmt.Errorf("hold %s lapsed at %s: %w", h.id, h.expiresAt.Format(time.RFC3339), repository.ErrHoldsLapsed)
			}
			pending = append(pending, h)
		}

		for _, h := range pending {
			ct, err := q.Exec(ctx,
				`UPDATE product_variants SET stock = stock - $1, updated_at = NOW()
				 WHERE id = $2 AND stock >= $1`,
				h.quantity, h.variantID,
			)
			if err != nil {
				return fmt.Errorf("decrement stock for variant %s: %w", h.variantID, err)
			}
			if ct.RowsAffected() == 0 {
				return fmt.Errorf("variant %s: %w", h.variantID, repository.ErrInsufficientStock)
			}

			if _, err := q.Exec(ctx,
				`UPDATE stock_reservations SET status = 'confirmed', updated_at = NOW() WHERE id = $1`,
				h.id,
			); err != nil {
				return fmt.Errorf("confirm reservation %s: %w", h.id, err)
			}

			if _, err := q.Exec(ctx,
				`INSERT INTO stock_movements (product_id, variant_id, delta, reason, order_id)
				 VALUES ($1, $2, $3, $4, $5)`,
				h.productID, h.variantID, -h.quantity, domain.MovementReasonOrderConfirmed, orderID,
			); err != nil {
				return fmt.Errorf("record stock movement: %w", err)
			}
		}
		return nil
	})
	return err
}

// DecrementForOrder decrements on-hand stock directly, bypassing this order's
// lapsed holds. Other orders' active holds still count against sellable
// stock, so a late settlement cannot eat into someone else's reservation.
func (r *InventoryRepository) DecrementForOrder(ctx context.Context, orderID string, items []domain.CartItem) error {
	_, err := r.runner.WithTransaction(ctx, func(ctx context.Context, q database.DBTX) error {
		for _, item := range items {
			var stock int
			err := q.QueryRow(ctx,
				`SELECT stock FROM product_variants WHERE id = $1 AND product_id = $2 FOR UPDATE`,
				item.VariantID, item.ProductID,
			).Scan(&stock)
			if err != nil {
				return fmt.Errorf("lock variant %s: %w", item.VariantID, err)
			}

			var held int
			err = q.QueryRow(ctx,
				`SELECT COALESCE(SUM(quantity), 0)
				 FROM stock_reservations
				 WHERE variant_id = $1 AND order_id <> $2 AND status = 'active' AND expires_at > NOW()`,
				item.VariantID, orderID,
			).Scan(&held)
			if err != nil {
				return fmt.Errorf("sum active holds for variant %s: %w", item.VariantID, err)
			}

			if stock-held < item.Quantity {
				return fmt.Errorf("variant %s: requested %d, sellable %d: %w",
					item.VariantID, item.Quantity, stock-held, repository.ErrInsufficientStock)
			}

			if _, err := q.Exec(ctx,
				`UPDATE product_variants SET stock = stock - $1, updated_at = NOW() WHERE id = $2`,
				item.Quantity, item.VariantID,
			); err != nil {
				return fmt.Errorf("decrement stock for variant %s: %w", item.VariantID, err)
			}

			if _, err := q.Exec(ctx,
				`INSERT INTO stock_movements (product_id, variant_id, delta, reason, order_id)
				 VALUES ($1, $2, $3, $4, $5)`,
				item.ProductID, item.VariantID, -item.Quantity, domain.MovementReasonOrderConfirmed, orderID,
			); err != nil {
				return fmt.Errorf("record stock movement: %w", err)
			}
		}
		return nil
	})
	return err
}

// ReleaseForOrder returns the order's active holds to the sellable pool.
// Releasing an order with no active holds is a no-op.
func (r *InventoryRepository) ReleaseForOrder(ctx context.Context, orderID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE stock_reservations SET status = 'released', updated_at = NOW()
		 WHERE order_id = $1 AND status = 'active'`,
		orderID,
	)
	if err != nil {
		return fmt.Errorf("release reservations for order %s: %w", orderID, err)
	}
	return nil
}

// GetByOrderID retrieves all reservations for an order.
func (r *InventoryRepository) GetByOrderID(ctx context.Context, orderID string) ([]domain.StockReservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM stock_reservations
		WHERE order_id = $1
		ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("get reservations by order id: %w", err)
	}
	defer rows.Close()

	var reservations []domain.StockReservation
	for rows.Next() {
		var res domain.StockReservation
		if err := rows.Scan(
			&res.ID,
			&res.OrderID,
			&res.ProductID,
			&res.VariantID,
			&res.Quantity,
			&res.Status,
			&res.ExpiresAt,
			&res.CreatedAt,
			&res.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan reservation row: %w", err)
		}
		reservations = append(reservations, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reservation rows: %w", err)
	}

	if reservations == nil {
		reservations = []domain.StockReservation{}
	}
	return reservations, nil
}

// ExpireSweep marks up to limit lapsed active holds as expired. Since holds
// never decremented on-hand stock, flipping the status is all that is needed
// to return them to the sellable pool.
func (r *InventoryRepository) ExpireSweep(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}

	ct, err := r.pool.Exec(ctx,
		`UPDATE stock_reservations SET status = 'expired', updated_at = NOW()
		 WHERE id IN (
			SELECT id FROM stock_reservations
			WHERE status = 'active' AND expires_at < $1
			ORDER BY expires_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		 )`,
		now, limit,
	)
	if err != nil {
		return 0, fmt.Errorf("expire sweep: %w", err)
	}
	return int(ct.RowsAffected()), nil
}

// CheckAvailability reports sellable stock for the requested pairs without
// locking. Results come back in input order; unknown pairs report zero.
func (r *InventoryRepository) CheckAvailability(ctx context.Context, items []domain.CartItem) ([]repository.AvailabilityResult, error) {
	if len(items) == 0 {
		return []repository.AvailabilityResult{}, nil
	}

	variantIDs := make([]string, 0, len(items))
	for _, item := range items {
		variantIDs = append(variantIDs, item.VariantID)
	}

	query := `
		SELECT v.id, v.stock - COALESCE(h.held, 0) AS sellable
		FROM product_variants v
		LEFT JOIN (
			SELECT variant_id, SUM(quantity) AS held
			FROM stock_reservations
			WHERE status = 'active' AND expires_at > NOW()
			GROUP BY variant_id
		) h ON h.variant_id = v.id
		WHERE v.id = ANY($1)`

	rows, err := r.pool.Query(ctx, query, variantIDs)
	if err != nil {
		return nil, fmt.Errorf("check availability: %w", err)
	}
	defer rows.Close()

	sellable := make(map[string]int, len(items))
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("scan availability row: %w", err)
		}
		sellable[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate availability rows: %w", err)
	}

	results := make([]repository.AvailabilityResult, 0, len(items))
	for _, item := range items {
		avail := sellable[item.VariantID]
		results = append(results, repository.AvailabilityResult{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Requested: item.Quantity,
			Available: avail,
			InStock:   avail >= item.Quantity,
		})
	}
	return results, nil
}

// AdjustStock changes on-hand stock by delta and records a movement. Negative
// adjustments that would take stock below zero fail.
func (r *InventoryRepository) AdjustStock(ctx context.Context, productID, variantID string, delta int, reason string, orderID *string) error {
	_, err := r.runner.WithTransaction(ctx, func(ctx context.Context, q database.DBTX) error {
		ct, err := q.Exec(ctx,
			`UPDATE product_variants SET stock = stock + $1, updated_at = NOW()
			 WHERE id = $2 AND product_id = $3 AND stock + $1 >= 0`,
			delta, variantID, productID,
		)
		if err != nil {
			return fmt.Errorf("adjust stock: %w", err)
		}
		if ct.RowsAffected() == 0 {
			return fmt.Errorf("variant %s: %w", variantID, repository.ErrInsufficientStock)
		}

		if _, err := q.Exec(ctx,
			`INSERT INTO stock_movements (product_id, variant_id, delta, reason, order_id)
			 VALUES ($1, $2, $3, $4, $5)`,
			productID, variantID, delta, reason, orderID,
		); err != nil {
			return fmt.Errorf("record stock movement: %w", err)
		}
		return nil
	})
	return err
}
