package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mahmoodamara/storefront/internal/domain"
	"github.com/mahmoodamara/storefront/pkg/database"
	apperrors "github.com/mahmoodamara/storefront/pkg/errors"
)

// ShippingRepository implements repository.ShippingRepository using PostgreSQL.
type ShippingRepository struct {
	pool database.DBTX
}

// NewShippingRepository creates a new PostgreSQL-backed shipping repository.
func NewShippingRepository(pool database.DBTX) *ShippingRepository {
	return &ShippingRepository{pool: pool}
}

const deliveryAreaColumns = `id, name, fee_minor, active, created_at, updated_at`

func scanDeliveryArea(row pgx.Row) (*domain.DeliveryArea, error) {
	var a domain.DeliveryArea
	err := row.Scan(&a.ID, &a.Name, &a.FeeMinor, &a.Active, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetDeliveryArea retrieves a delivery area by id.
func (r *ShippingRepository) GetDeliveryArea(ctx context.Context, id string) (*domain.DeliveryArea, error) {
	query := `SELECT ` + deliveryAreaColumns + ` FROM delivery_areas WHERE id = $1`

	a, err := scanDeliveryArea(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("delivery area", id)
		}
		return nil, fmt.Errorf("get delivery area: %w", err)
	}
	return a, nil
}

// ListDeliveryAreas returns all active delivery areas ordered by name.
func (r *ShippingRepository) ListDeliveryAreas(ctx context.Context) ([]domain.DeliveryArea, error) {
	query := `SELECT ` + deliveryAreaColumns + ` FROM delivery_areas WHERE active = TRUE ORDER BY name`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list delivery areas: %w", err)
	}
	defer rows.Close()

	areas := []domain.DeliveryArea{}
	for rows.Next() {
		a, err := scanDeliveryArea(rows)
		if err != nil {
			return nil, fmt.Errorf("scan delivery area row: %w", err)
		}
		areas = append(areas, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate delivery area rows: %w", err)
	}
	return areas, nil
}

// CreateDeliveryArea inserts a new delivery area.
func (r *ShippingRepository) CreateDeliveryArea(ctx context.Context, a *domain.DeliveryArea) (*domain.DeliveryArea, error) {
	query := `
		INSERT INTO delivery_areas (name, fee_minor, active)
		VALUES ($1, $2, $3)
		RETURNING ` + deliveryAreaColumns

	created, err := scanDeliveryArea(r.pool.QueryRow(ctx, query, a.Name, a.FeeMinor, a.Active))
	if err != nil {
		return nil, fmt.Errorf("create delivery area: %w", err)
	}
	return created, nil
}

const pickupPointColumns = `id, name, address, fee_minor, active, created_at, updated_at`

func scanPickupPoint(row pgx.Row) (*domain.PickupPoint, error) {
	var p domain.PickupPoint
	err := row.Scan(&p.ID, &p.Name, &p.Address, &p.FeeMinor, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPickupPoint retrieves a pickup point by id.
func (r *ShippingRepository) GetPickupPoint(ctx context.Context, id string) (*domain.PickupPoint, error) {
	query := `SELECT ` + pickupPointColumns + ` FROM pickup_points WHERE id = $1`

	p, err := scanPickupPoint(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("pickup point", id)
		}
		return nil, fmt.Errorf("get pickup point: %w", err)
	}
	return p, nil
}

// ListPickupPoints returns all active pickup points ordered by name.
func (r *ShippingRepository) ListPickupPoints(ctx context.Context) ([]domain.PickupPoint, error) {
	query := `SELECT ` + pickupPointColumns + ` FROM pickup_points WHERE active = TRUE ORDER BY name`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list pickup points: %w", err)
	}
	defer rows.Close()

	points := []domain.PickupPoint{}
	for rows.Next() {
		p, err := scanPickupPoint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pickup point row: %w", err)
		}
		points = append(points, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pickup point rows: %w", err)
	}
	return points, nil
}

// CreatePickupPoint inserts a new pickup point.
func (r *ShippingRepository) CreatePickupPoint(ctx context.Context, p *domain.PickupPoint) (*domain.PickupPoint, error) {
	query := `
		INSERT INTO pickup_points (name, address, fee_minor, active)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + pickupPointColumns

	created, err := scanPickupPoint(r.pool.QueryRow(ctx, query, p.Name, p.Address, p.FeeMinor, p.Active))
	if err != nil {
		return nil, fmt.Errorf("create pickup point: %w", err)
	}
	return created, nil
}
