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

// CatalogRepository implements repository.CatalogRepository using PostgreSQL.
type CatalogRepository struct {
	pool database.DBTX
}

// NewCatalogRepository creates a new PostgreSQL-backed catalog repository.
func NewCatalogRepository(pool database.DBTX) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// productSelect joins the category so reads carry the category name snapshot.
const productSelect = `
	SELECT p.id, p.sku, p.name, p.description, p.category_id, c.name,
	       p.price_minor, p.sale_price_minor, p.sale_starts_at, p.sale_ends_at,
	       p.active, p.created_at, p.updated_at
	FROM products p
	LEFT JOIN categories c ON c.id = p.category_id`

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var (
		p            domain.Product
		categoryID   *string
		categoryName *string
	)
	err := row.Scan(
		&p.ID,
		&p.SKU,
		&p.Name,
		&p.Description,
		&categoryID,
		&categoryName,
		&p.PriceMinor,
		&p.SalePriceMinor,
		&p.SaleStartsAt,
		&p.SaleEndsAt,
		&p.Active,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if categoryID != nil {
		p.CategoryID = *categoryID
	}
	if categoryName != nil {
		p.CategoryName = *categoryName
	}
	return &p, nil
}

// GetProduct retrieves a product by id.
func (r *CatalogRepository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	query := productSelect + ` WHERE p.id = $1`

	p, err := scanProduct(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("product", id)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// GetProductsByIDs retrieves multiple products keyed by id. Missing ids are
// simply absent from the result map.
func (r *CatalogRepository) GetProductsByIDs(ctx context.Context, ids []string) (map[string]*domain.Product, error) {
	result := make(map[string]*domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := productSelect + ` WHERE p.id = ANY($1)`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("get products by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		result[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}

	return result, nil
}

const variantColumns = `id, product_id, sku, name, stock, active, created_at, updated_at`

func scanVariant(row pgx.Row) (*domain.ProductVariant, error) {
	var v domain.ProductVariant
	err := row.Scan(
		&v.ID,
		&v.ProductID,
		&v.SKU,
		&v.Name,
		&v.Stock,
		&v.Active,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// GetVariant retrieves a product variant by id.
func (r *CatalogRepository) GetVariant(ctx context.Context, id string) (*domain.ProductVariant, error) {
	query := `SELECT ` + variantColumns + ` FROM product_variants WHERE id = $1`

	v, err := scanVariant(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("variant", id)
		}
		return nil, fmt.Errorf("get variant: %w", err)
	}
	return v, nil
}

// GetVariantsByIDs retrieves multiple variants keyed by id.
func (r *CatalogRepository) GetVariantsByIDs(ctx context.Context, ids []string) (map[string]*domain.ProductVariant, error) {
	result := make(map[string]*domain.ProductVariant, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := `SELECT ` + variantColumns + ` FROM product_variants WHERE id = ANY($1)`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("get variants by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan variant row: %w", err)
		}
		result[v.ID] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variant rows: %w", err)
	}

	return result, nil
}

// ListProducts returns a page of products with the total count.
func (r *CatalogRepository) ListProducts(ctx context.Context, page, perPage int) ([]domain.Product, int, error) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 20
	}
	offset := (page - 1) * perPage

	query := `
		SELECT p.id, p.sku, p.name, p.description, p.category_id, c.name,
		       p.price_minor, p.sale_price_minor, p.sale_starts_at, p.sale_ends_at,
		       p.active, p.created_at, p.updated_at, count(*) OVER() AS total_count
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.active = TRUE
		ORDER BY p.created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, perPage, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var (
		products   []domain.Product
		totalCount int
	)
	for rows.Next() {
		var (
			p            domain.Product
			categoryID   *string
			categoryName *string
		)
		if err := rows.Scan(
			&p.ID,
			&p.SKU,
			&p.Name,
			&p.Description,
			&categoryID,
			&categoryName,
			&p.PriceMinor,
			&p.SalePriceMinor,
			&p.SaleStartsAt,
			&p.SaleEndsAt,
			&p.Active,
			&p.CreatedAt,
			&p.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan product row: %w", err)
		}
		if categoryID != nil {
			p.CategoryID = *categoryID
		}
		if categoryName != nil {
			p.CategoryName = *categoryName
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate product rows: %w", err)
	}

	if products == nil {
		products = []domain.Product{}
	}
	return products, totalCount, nil
}

// CreateProduct inserts a new product.
func (r *CatalogRepository) CreateProduct(ctx context.Context, p *domain.Product) (*domain.Product, error) {
	query := `
		INSERT INTO products (sku, name, description, category_id, price_minor, sale_price_minor, sale_starts_at, sale_ends_at, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	var categoryID *string
	if p.CategoryID != "" {
		categoryID = &p.CategoryID
	}

	created := *p
	err := r.pool.QueryRow(ctx, query,
		p.SKU,
		p.Name,
		p.Description,
		categoryID,
		p.PriceMinor,
		p.SalePriceMinor,
		p.SaleStartsAt,
		p.SaleEndsAt,
		p.Active,
	).Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return &created, nil
}

// CreateVariant inserts a new product variant.
func (r *CatalogRepository) CreateVariant(ctx context.Context, v *domain.ProductVariant) (*domain.ProductVariant, error) {
	query := `
		INSERT INTO product_variants (product_id, sku, name, stock, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + variantColumns

	created, err := scanVariant(r.pool.QueryRow(ctx, query,
		v.ProductID,
		v.SKU,
		v.Name,
		v.Stock,
		v.Active,
	))
	if err != nil {
		return nil, fmt.Errorf("create variant: %w", err)
	}
	return created, nil
}

const categoryColumns = `id, name, slug, active, created_at, updated_at`

func scanCategory(row pgx.Row) (*domain.Category, error) {
	var c domain.Category
	err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCategory retrieves a category by id.
func (r *CatalogRepository) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1`

	c, err := scanCategory(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("category", id)
		}
		return nil, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

// ListCategories returns all active categories ordered by name.
func (r *CatalogRepository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE active = TRUE ORDER BY name`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []domain.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category row: %w", err)
		}
		categories = append(categories, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category rows: %w", err)
	}
	return categories, nil
}

// CreateCategory inserts a new category.
func (r *CatalogRepository) CreateCategory(ctx context.Context, c *domain.Category) (*domain.Category, error) {
	query := `
		INSERT INTO categories (name, slug, active)
		VALUES ($1, $2, $3)
		RETURNING ` + categoryColumns

	created, err := scanCategory(r.pool.QueryRow(ctx, query, c.Name, c.Slug, c.Active))
	if err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	return created, nil
}
