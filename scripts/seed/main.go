// Package main implements a standalone seed script that populates the
// storefront database with realistic demo data: a catalog of products with
// variants and stock, plus a spread of campaigns, coupons, offers and gift
// rules so pricing has something to work with. It writes direct SQL against
// the same schema the service migrates on startup.
package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func dsn() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		getEnv("POSTGRES_USER", "storefront"),
		getEnv("POSTGRES_PASSWORD", "storefront_secret"),
		getEnv("POSTGRES_HOST", "localhost"),
		getEnv("POSTGRES_PORT", "5432"),
		getEnv("POSTGRES_DB_NAME", "storefront_db"),
		getEnv("POSTGRES_SSL_MODE", "disable"),
	)
}

var adjectives = []string{"Classic", "Slim", "Vintage", "Urban", "Premium", "Everyday", "Lightweight", "Heavy-Duty"}
var nouns = []string{"T-Shirt", "Hoodie", "Jeans", "Sneakers", "Backpack", "Cap", "Jacket", "Socks"}
var variantNames = []string{"Small", "Medium", "Large", "X-Large"}

func main() {
	count := 200
	if v := os.Getenv("SEED_PRODUCT_COUNT"); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &count); err != nil {
			log.Fatalf("invalid SEED_PRODUCT_COUNT %q", v)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn())
	if err != nil {
		log.Fatalf("connect to postgres: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("ping postgres: %v", err)
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	start := time.Now()

	categoryIDs, err := seedCategories(ctx, pool)
	if err != nil {
		log.Fatalf("seed categories: %v", err)
	}
	log.Printf("seeded %d categories", len(categoryIDs))

	productIDs, variantIDs, err := seedCatalog(ctx, pool, rng, count, categoryIDs)
	if err != nil {
		log.Fatalf("seed catalog: %v", err)
	}
	log.Printf("seeded %d products with %d variants", len(productIDs), len(variantIDs))

	if err := seedShipping(ctx, pool); err != nil {
		log.Fatalf("seed shipping: %v", err)
	}
	log.Printf("seeded delivery areas and pickup points")

	if err := seedPromotions(ctx, pool, rng, productIDs, categoryIDs); err != nil {
		log.Fatalf("seed promotions: %v", err)
	}
	log.Printf("seeded campaigns, coupons, offers and gift rules")

	log.Printf("done in %s", time.Since(start).Round(time.Millisecond))
}

var categoryNames = []struct{ name, slug string }{
	{"Apparel", "apparel"},
	{"Footwear", "footwear"},
	{"Accessories", "accessories"},
	{"Outdoor", "outdoor"},
}

// seedCategories inserts the fixed category set and returns their IDs.
func seedCategories(ctx context.Context, pool *pgxpool.Pool) ([]string, error) {
	ids := make([]string, 0, len(categoryNames))
	for _, c := range categoryNames {
		var id string
		err := pool.QueryRow(ctx, `
			INSERT INTO categories (name, slug, active)
			VALUES ($1, $2, TRUE)
			ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name
			RETURNING id`,
			c.name, c.slug,
		).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("insert category %s: %w", c.slug, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// seedShipping inserts a handful of delivery areas and pickup points.
func seedShipping(ctx context.Context, pool *pgxpool.Pool) error {
	areas := []struct {
		name string
		fee  int64
	}{
		{"Tel Aviv", 1500},
		{"Jerusalem", 2000},
		{"Haifa", 2000},
		{"North", 2500},
		{"South", 2500},
	}
	for _, a := range areas {
		if _, err := pool.Exec(ctx, `
			INSERT INTO delivery_areas (name, fee_minor, active)
			VALUES ($1, $2, TRUE)
			ON CONFLICT (name) DO NOTHING`,
			a.name, a.fee,
		); err != nil {
			return fmt.Errorf("insert delivery area %s: %w", a.name, err)
		}
	}

	points := []struct {
		name, address string
		fee           int64
	}{
		{"Dizengoff Center Locker", "Dizengoff 50, Tel Aviv", 800},
		{"Central Station Pickup", "Jaffa 224, Jerusalem", 800},
		{"Grand Canyon Locker", "Derech Simha Golan 54, Haifa", 800},
	}
	for _, p := range points {
		if _, err := pool.Exec(ctx, `
			INSERT INTO pickup_points (name, address, fee_minor, active)
			VALUES ($1, $2, $3, TRUE)`,
			p.name, p.address, p.fee,
		); err != nil {
			return fmt.Errorf("insert pickup point %s: %w", p.name, err)
		}
	}
	return nil
}

// seedCatalog inserts products and two to four variants each, returning the
// generated IDs so promotions can reference real rows.
func seedCatalog(ctx context.Context, pool *pgxpool.Pool, rng *rand.Rand, count int, categoryIDs []string) ([]string, []string, error) {
	productIDs := make([]string, 0, count)
	variantIDs := make([]string, 0, count*3)

	for i := 0; i < count; i++ {
		name := fmt.Sprintf("%s %s", adjectives[rng.Intn(len(adjectives))], nouns[rng.Intn(len(nouns))])
		sku := fmt.Sprintf("SKU-%06d", i+1)
		priceMinor := int64(500+rng.Intn(19500)) / 10 * 10

		// A third of the catalog is on sale.
		var salePrice *int64
		var saleStart, saleEnd *time.Time
		if rng.Intn(3) == 0 {
			sp := priceMinor * int64(60+rng.Intn(30)) / 100
			ss := time.Now().Add(-24 * time.Hour)
			se := time.Now().Add(14 * 24 * time.Hour)
			salePrice, saleStart, saleEnd = &sp, &ss, &se
		}

		categoryID := categoryIDs[rng.Intn(len(categoryIDs))]
		var productID string
		err := pool.QueryRow(ctx, `
			INSERT INTO products (sku, name, description, category_id, price_minor, sale_price_minor, sale_starts_at, sale_ends_at, active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE)
			RETURNING id`,
			sku, name, fmt.Sprintf("Demo product %s.", name), categoryID, priceMinor, salePrice, saleStart, saleEnd,
		).Scan(&productID)
		if err != nil {
			return nil, nil, fmt.Errorf("insert product %s: %w", sku, err)
		}
		productIDs = append(productIDs, productID)

		nVariants := 2 + rng.Intn(3)
		for v := 0; v < nVariants; v++ {
			var variantID string
			err := pool.QueryRow(ctx, `
				INSERT INTO product_variants (product_id, sku, name, stock, active)
				VALUES ($1, $2, $3, $4, TRUE)
				RETURNING id`,
				productID, fmt.Sprintf("%s-V%d", sku, v+1), variantNames[v], 10+rng.Intn(190),
			).Scan(&variantID)
			if err != nil {
				return nil, nil, fmt.Errorf("insert variant for %s: %w", sku, err)
			}
			variantIDs = append(variantIDs, variantID)
		}
	}
	return productIDs, variantIDs, nil
}

// seedPromotions creates one product-scoped and one category-scoped campaign,
// a handful of coupons, every offer type and a gift rule.
func seedPromotions(ctx context.Context, pool *pgxpool.Pool, rng *rand.Rand, productIDs, categoryIDs []string) error {
	now := time.Now()
	weekAgo := now.Add(-7 * 24 * time.Hour)
	monthAhead := now.Add(30 * 24 * time.Hour)

	var campaignID string
	err := pool.QueryRow(ctx, `
		INSERT INTO campaigns (name, discount_basis_points, fixed_discount_minor, priority, starts_at, ends_at, active)
		VALUES ('Season Opener', 1500, 0, 10, $1, $2, TRUE)
		RETURNING id`,
		weekAgo, monthAhead,
	).Scan(&campaignID)
	if err != nil {
		return fmt.Errorf("insert campaign: %w", err)
	}
	// Scope the campaign to roughly a quarter of the catalog.
	for _, pid := range productIDs {
		if rng.Intn(4) != 0 {
			continue
		}
		if _, err := pool.Exec(ctx,
			`INSERT INTO campaign_products (campaign_id, product_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			campaignID, pid,
		); err != nil {
			return fmt.Errorf("scope campaign: %w", err)
		}
	}

	// A second campaign scoped to one category.
	var categoryCampaignID string
	err = pool.QueryRow(ctx, `
		INSERT INTO campaigns (name, discount_basis_points, fixed_discount_minor, priority, starts_at, ends_at, active)
		VALUES ('Category Clearance', 1000, 0, 5, $1, $2, TRUE)
		RETURNING id`,
		weekAgo, monthAhead,
	).Scan(&categoryCampaignID)
	if err != nil {
		return fmt.Errorf("insert category campaign: %w", err)
	}
	if _, err := pool.Exec(ctx,
		`INSERT INTO campaign_categories (campaign_id, category_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		categoryCampaignID, categoryIDs[rng.Intn(len(categoryIDs))],
	); err != nil {
		return fmt.Errorf("scope category campaign: %w", err)
	}

	unlimited := 0 // sentinel: 0 means seed a NULL usage_limit
	coupons := []struct {
		code          string
		discountType  string
		discountValue int64
		minOrder      int64
		usageLimit    int
	}{
		{"WELCOME10", "percent", 1000, 0, unlimited},
		{"SAVE25", "fixed", 2500, 10000, 500},
		{"VIP20", "percent", 2000, 25000, 50},
	}
	for _, c := range coupons {
		var limit *int
		if c.usageLimit > 0 {
			limit = &c.usageLimit
		}
		if _, err := pool.Exec(ctx, `
			INSERT INTO coupons (code, discount_type, discount_value, min_order_minor, usage_limit, starts_at, expires_at, active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
			ON CONFLICT (code) DO NOTHING`,
			c.code, c.discountType, c.discountValue, c.minOrder, limit, weekAgo, monthAhead,
		); err != nil {
			return fmt.Errorf("insert coupon %s: %w", c.code, err)
		}
	}

	if _, err := pool.Exec(ctx, `
		INSERT INTO offers (name, offer_type, priority, min_order_minor, params, starts_at, ends_at, active)
		VALUES ('Free shipping over 150', 'free_shipping', 5, 15000, '{}', $1, $2, TRUE)`,
		weekAgo, monthAhead,
	); err != nil {
		return fmt.Errorf("insert free shipping offer: %w", err)
	}

	bxgyProduct := productIDs[rng.Intn(len(productIDs))]
	if _, err := pool.Exec(ctx, `
		INSERT INTO offers (name, offer_type, priority, min_order_minor, params, starts_at, ends_at, active)
		VALUES ('Buy 2 get 1', 'buy_x_get_y', 1, 0, $1, $2, $3, TRUE)`,
		fmt.Sprintf(`{"product_id": %q, "buy": 2, "get": 1}`, bxgyProduct), weekAgo, monthAhead,
	); err != nil {
		return fmt.Errorf("insert buy_x_get_y offer: %w", err)
	}

	if _, err := pool.Exec(ctx, `
		INSERT INTO offers (name, offer_type, priority, min_order_minor, params, starts_at, ends_at, active)
		VALUES ('5% off everything', 'percent_off', 2, 0, '{"basis_points": 500, "max_discount_minor": 5000}', $1, $2, TRUE)`,
		weekAgo, monthAhead,
	); err != nil {
		return fmt.Errorf("insert percent_off offer: %w", err)
	}

	if _, err := pool.Exec(ctx, `
		INSERT INTO offers (name, offer_type, priority, min_order_minor, params, starts_at, ends_at, active)
		VALUES ('20 off over 200', 'fixed_off', 3, 20000, '{"amount_minor": 2000}', $1, $2, TRUE)`,
		weekAgo, monthAhead,
	); err != nil {
		return fmt.Errorf("insert fixed_off offer: %w", err)
	}

	// Gift rule pointing at a real variant of a real product.
	var giftProduct, giftVariant string
	err = pool.QueryRow(ctx, `
		SELECT p.id, v.id FROM products p
		JOIN product_variants v ON v.product_id = p.id
		WHERE p.active AND v.active
		LIMIT 1`,
	).Scan(&giftProduct, &giftVariant)
	if err != nil {
		return fmt.Errorf("pick gift variant: %w", err)
	}
	if _, err := pool.Exec(ctx, `
		INSERT INTO gift_rules (name, min_order_minor, gift_product_id, gift_variant_id, gift_quantity, starts_at, ends_at, active)
		VALUES ('Free gift over 300', 30000, $1, $2, 1, $3, $4, TRUE)`,
		giftProduct, giftVariant, weekAgo, monthAhead,
	); err != nil {
		return fmt.Errorf("insert gift rule: %w", err)
	}

	return nil
}
