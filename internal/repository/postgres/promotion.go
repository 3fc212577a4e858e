package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/mahmoodamara/storefront/internal/domain"
	"github.com/mahmoodamara/storefront/pkg/database"
)

// PromotionRepository reads the promotion sets in effect at a given time.
type PromotionRepository struct {
	pool database.DBTX
}

// NewPromotionRepository creates a new PostgreSQL-backed promotion repository.
func NewPromotionRepository(pool database.DBTX) *PromotionRepository {
	return &PromotionRepository{pool: pool}
}

// ListRunningCampaigns returns active campaigns whose window covers now,
// highest priority first, each with its scoped product and category ids.
func (r *PromotionRepository) ListRunningCampaigns(ctx context.Context, now time.Time) ([]domain.Campaign, error) {
	query := `
		SELECT c.id, c.name, c.discount_basis_points, c.fixed_discount_minor, c.max_discount_minor,
		       c.priority, c.starts_at, c.ends_at, c.active, c.created_at, c.updated_at,
		       COALESCE(array_agg(DISTINCT cp.product_id) FILTER (WHERE cp.product_id IS NOT NULL), '{}') AS product_ids,
		       COALESCE(array_agg(DISTINCT cc.category_id) FILTER (WHERE cc.category_id IS NOT NULL), '{}') AS category_ids
		FROM campaigns c
		LEFT JOIN campaign_products cp ON cp.campaign_id = c.id
		LEFT JOIN campaign_categories cc ON cc.campaign_id = c.id
		WHERE c.active = TRUE AND c.starts_at <= $1 AND c.ends_at > $1
		GROUP BY c.id
		ORDER BY c.priority DESC, c.created_at ASC`

	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("list running campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []domain.Campaign
	for rows.Next() {
		var c domain.Campaign
		if err := rows.Scan(
			&c.ID,
			&c.Name,
			&c.DiscountBasisPoints,
			&c.FixedDiscountMinor,
			&c.MaxDiscountMinor,
			&c.Priority,
			&c.StartsAt,
			&c.EndsAt,
			&c.Active,
			&c.CreatedAt,
			&c.UpdatedAt,
			&c.ProductIDs,
			&c.CategoryIDs,
		); err != nil {
			return nil, fmt.Errorf("scan campaign row: %w", err)
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate campaign rows: %w", err)
	}

	if campaigns == nil {
		campaigns = []domain.Campaign{}
	}
	return campaigns, nil
}

// ListRunningOffers returns active offers whose window covers now, highest
// priority first.
func (r *PromotionRepository) ListRunningOffers(ctx context.Context, now time.Time) ([]domain.Offer, error) {
	query := `
		SELECT id, name, offer_type, priority, min_order_minor, params, starts_at, ends_at, active, created_at, updated_at
		FROM offers
		WHERE active = TRUE AND starts_at <= $1 AND ends_at > $1
		ORDER BY priority DESC, created_at ASC`

	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("list running offers: %w", err)
	}
	defer rows.Close()

	var offers []domain.Offer
	for rows.Next() {
		var o domain.Offer
		if err := rows.Scan(
			&o.ID,
			&o.Name,
			&o.Type,
			&o.Priority,
			&o.MinOrderMinor,
			&o.Params,
			&o.StartsAt,
			&o.EndsAt,
			&o.Active,
			&o.CreatedAt,
			&o.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan offer row: %w", err)
		}
		offers = append(offers, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate offer rows: %w", err)
	}

	if offers == nil {
		offers = []domain.Offer{}
	}
	return offers, nil
}

// ListRunningGiftRules returns active gift rules whose window covers now.
func (r *PromotionRepository) ListRunningGiftRules(ctx context.Context, now time.Time) ([]domain.GiftRule, error) {
	query := `
		SELECT id, name, min_order_minor, required_product_id, required_category_id, gift_product_id, gift_variant_id, gift_quantity, starts_at, ends_at, active, created_at, updated_at
		FROM gift_rules
		WHERE active = TRUE AND starts_at <= $1 AND ends_at > $1
		ORDER BY min_order_minor ASC, created_at ASC`

	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("list running gift rules: %w", err)
	}
	defer rows.Close()

	var rules []domain.GiftRule
	for rows.Next() {
		var (
			g                  domain.GiftRule
			requiredProductID  *string
			requiredCategoryID *string
		)
		if err := rows.Scan(
			&g.ID,
			&g.Name,
			&g.MinOrderMinor,
			&requiredProductID,
			&requiredCategoryID,
			&g.GiftProductID,
			&g.GiftVariantID,
			&g.GiftQuantity,
			&g.StartsAt,
			&g.EndsAt,
			&g.Active,
			&g.CreatedAt,
			&g.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan gift rule row: %w", err)
		}
		if requiredProductID != nil {
			g.RequiredProductID = *requiredProductID
		}
		if requiredCategoryID != nil {
			g.RequiredCategoryID = *requiredCategoryID
		}
		rules = append(rules, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gift rule rows: %w", err)
	}

	if rules == nil {
		rules = []domain.GiftRule{}
	}
	return rules, nil
}

// CreateCampaign inserts a campaign and its product scope.
func (r *PromotionRepository) CreateCampaign(ctx context.Context, c *domain.Campaign) (*domain.Campaign, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO campaigns (name, discount_basis_points, fixed_discount_minor, max_discount_minor, priority, starts_at, ends_at, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	created := *c
	err = tx.QueryRow(ctx, query,
		c.Name,
		c.DiscountBasisPoints,
		c.FixedDiscountMinor,
		c.MaxDiscountMinor,
		c.Priority,
		c.StartsAt,
		c.EndsAt,
		c.Active,
	).Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create campaign: %w", err)
	}

	for _, productID := range c.ProductIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO campaign_products (campaign_id, product_id) VALUES ($1, $2)`,
			created.ID, productID,
		); err != nil {
			return nil, fmt.Errorf("scope campaign to product %s: %w", productID, err)
		}
	}

	for _, categoryID := range c.CategoryIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO campaign_categories (campaign_id, category_id) VALUES ($1, $2)`,
			created.ID, categoryID,
		); err != nil {
			return nil, fmt.Errorf("scope campaign to category %s: %w", categoryID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return &created, nil
}

// CreateOffer inserts an offer.
func (r *PromotionRepository) CreateOffer(ctx context.Context, o *domain.Offer) (*domain.Offer, error) {
	query := `
		INSERT INTO offers (name, offer_type, priority, min_order_minor, params, starts_at, ends_at, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	created := *o
	err := r.pool.QueryRow(ctx, query,
		o.Name,
		o.Type,
		o.Priority,
		o.MinOrderMinor,
		o.Params,
		o.StartsAt,
		o.EndsAt,
		o.Active,
	).Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create offer: %w", err)
	}
	return &created, nil
}

// CreateGiftRule inserts a gift rule.
func (r *PromotionRepository) CreateGiftRule(ctx context.Context, g *domain.GiftRule) (*domain.GiftRule, error) {
	query := `
		INSERT INTO gift_rules (name, min_order_minor, required_product_id, required_category_id, gift_product_id, gift_variant_id, gift_quantity, starts_at, ends_at, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`

	created := *g
	err := r.pool.QueryRow(ctx, query,
		g.Name,
		g.MinOrderMinor,
		nullable(g.RequiredProductID),
		nullable(g.RequiredCategoryID),
		g.GiftProductID,
		g.GiftVariantID,
		g.GiftQuantity,
		g.StartsAt,
		g.EndsAt,
		g.Active,
	).Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create gift rule: %w", err)
	}
	return &created, nil
}
