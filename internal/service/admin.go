package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/mahmoodamara/storefront/internal/domain"
	"github.com/mahmoodamara/storefront/internal/repository"
	apperrors "github.com/mahmoodamara/storefront/pkg/errors"
)

// AdminService handles catalog, stock, shipping and promotion management.
type AdminService struct {
	catalog    repository.CatalogRepository
	inventory  repository.InventoryRepository
	coupons    repository.CouponRepository
	promotions repository.PromotionRepository
	shipping   repository.ShippingRepository
	logger     *slog.Logger
}

// NewAdminService creates a new admin service.
func NewAdminService(
	catalog repository.CatalogRepository,
	inventory repository.InventoryRepository,
	coupons repository.CouponRepository,
	promotions repository.PromotionRepository,
	shipping repository.ShippingRepository,
	logger *slog.Logger,
) *AdminService {
	return &AdminService{
		catalog:    catalog,
		inventory:  inventory,
		coupons:    coupons,
		promotions: promotions,
		shipping:   shipping,
		logger:     logger,
	}
}

// CreateCategory validates and persists a new catalog category.
func (s *AdminService) CreateCategory(ctx context.Context, c *domain.Category) (*domain.Category, error) {
	if c.Name == "" || c.Slug == "" {
		return nil, apperrors.InvalidInput("category name and slug are required")
	}

	created, err := s.catalog.CreateCategory(ctx, c)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "category created",
		slog.String("category_id", created.ID),
		slog.String("slug", created.Slug))

	return created, nil
}

// CreateProduct validates and persists a new product.
func (s *AdminService) CreateProduct(ctx context.Context, p *domain.Product) (*domain.Product, error) {
	if p.PriceMinor <= 0 {
		return nil, apperrors.InvalidInput("price must be positive")
	}
	if p.SalePriceMinor != nil {
		if *p.SalePriceMinor <= 0 || *p.SalePriceMinor >= p.PriceMinor {
			return nil, apperrors.InvalidInput("sale price must be positive and below the regular price")
		}
	}
	if p.SaleStartsAt != nil && p.SaleEndsAt != nil && !p.SaleStartsAt.Before(*p.SaleEndsAt) {
		return nil, apperrors.InvalidInput("sale window must start before it ends")
	}
	if p.CategoryID != "" {
		if _, err := s.catalog.GetCategory(ctx, p.CategoryID); err != nil {
			return nil, err
		}
	}

	created, err := s.catalog.CreateProduct(ctx, p)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "product created",
		slog.String("product_id", created.ID),
		slog.String("sku", created.SKU))

	return created, nil
}

// CreateVariant validates and persists a new product variant.
func (s *AdminService) CreateVariant(ctx context.Context, v *domain.ProductVariant) (*domain.ProductVariant, error) {
	if v.Stock < 0 {
		return nil, apperrors.InvalidInput("stock must not be negative")
	}
	if _, err := s.catalog.GetProduct(ctx, v.ProductID); err != nil {
		return nil, err
	}

	created, err := s.catalog.CreateVariant(ctx, v)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "variant created",
		slog.String("variant_id", created.ID),
		slog.String("product_id", created.ProductID))

	return created, nil
}

// AdjustStock applies a manual stock correction and records the movement.
func (s *AdminService) AdjustStock(ctx context.Context, productID, variantID string, delta int) error {
	if delta == 0 {
		return apperrors.InvalidInput("delta must not be zero")
	}

	variant, err := s.catalog.GetVariant(ctx, variantID)
	if err != nil {
		return err
	}
	if variant.ProductID != productID {
		return apperrors.InvalidInput("variant does not belong to product")
	}

	if err := s.inventory.AdjustStock(ctx, productID, variantID, delta, domain.MovementReasonAdminAdjust, nil); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "stock adjusted",
		slog.String("variant_id", variantID),
		slog.Int("delta", delta))

	return nil
}

// CreateCoupon validates and persists a new coupon.
func (s *AdminService) CreateCoupon(ctx context.Context, c *domain.Coupon) (*domain.Coupon, error) {
	switch c.DiscountType {
	case domain.CouponTypePercent:
		if c.DiscountValue <= 0 || c.DiscountValue > 10000 {
			return nil, apperrors.InvalidInput("percent discount must be between 1 and 10000 basis points")
		}
	case domain.CouponTypeFixed:
		if c.DiscountValue <= 0 {
			return nil, apperrors.InvalidInput("fixed discount must be positive")
		}
	default:
		return nil, apperrors.InvalidInput("unknown discount type: " + c.DiscountType)
	}
	if c.UsageLimit != nil && *c.UsageLimit <= 0 {
		return nil, apperrors.InvalidInput("usage limit must be positive when set")
	}
	if !c.StartsAt.Before(c.ExpiresAt) {
		return nil, apperrors.InvalidInput("coupon must start before it expires")
	}

	created, err := s.coupons.Create(ctx, c)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "coupon created",
		slog.String("coupon_id", created.ID),
		slog.String("code", created.Code))

	return created, nil
}

// CreateCampaign validates and persists a new campaign.
func (s *AdminService) CreateCampaign(ctx context.Context, c *domain.Campaign) (*domain.Campaign, error) {
	if c.DiscountBasisPoints < 0 || c.DiscountBasisPoints > 10000 {
		return nil, apperrors.InvalidInput("discount basis points must be between 0 and 10000")
	}
	if c.FixedDiscountMinor < 0 {
		return nil, apperrors.InvalidInput("fixed discount must not be negative")
	}
	if c.DiscountBasisPoints == 0 && c.FixedDiscountMinor == 0 {
		return nil, apperrors.InvalidInput("campaign must carry a discount")
	}
	if err := checkWindow(c.StartsAt, c.EndsAt); err != nil {
		return nil, err
	}
	for _, categoryID := range c.CategoryIDs {
		if _, err := s.catalog.GetCategory(ctx, categoryID); err != nil {
			return nil, err
		}
	}

	created, err := s.promotions.CreateCampaign(ctx, c)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "campaign created",
		slog.String("campaign_id", created.ID),
		slog.String("name", created.Name))

	return created, nil
}

// CreateOffer validates and persists a new offer.
func (s *AdminService) CreateOffer(ctx context.Context, o *domain.Offer) (*domain.Offer, error) {
	switch o.Type {
	case domain.OfferTypeFreeShipping:
	case domain.OfferTypeBuyXGetY:
		params, err := o.BuyXGetY()
		if err != nil {
			return nil, apperrors.InvalidInput("invalid buy_x_get_y params: " + err.Error())
		}
		if params.ProductID == "" || params.Buy <= 0 || params.Get <= 0 {
			return nil, apperrors.InvalidInput("buy_x_get_y requires a product and positive buy/get counts")
		}
	case domain.OfferTypePercentOff:
		params, err := o.PercentOff()
		if err != nil {
			return nil, apperrors.InvalidInput("invalid percent_off params: " + err.Error())
		}
		if params.BasisPoints <= 0 || params.BasisPoints > 10000 {
			return nil, apperrors.InvalidInput("percent_off discount must be between 1 and 10000 basis points")
		}
		if params.MaxDiscountMinor != nil && *params.MaxDiscountMinor <= 0 {
			return nil, apperrors.InvalidInput("percent_off cap must be positive when set")
		}
	case domain.OfferTypeFixedOff:
		params, err := o.FixedOff()
		if err != nil {
			return nil, apperrors.InvalidInput("invalid fixed_off params: " + err.Error())
		}
		if params.AmountMinor <= 0 {
			return nil, apperrors.InvalidInput("fixed_off amount must be positive")
		}
	default:
		return nil, apperrors.InvalidInput("unknown offer type: " + o.Type)
	}
	if err := checkWindow(o.StartsAt, o.EndsAt); err != nil {
		return nil, err
	}

	created, err := s.promotions.CreateOffer(ctx, o)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "offer created",
		slog.String("offer_id", created.ID),
		slog.String("type", created.Type))

	return created, nil
}

// CreateGiftRule validates and persists a new gift rule. The gift pair must
// reference an existing active product and variant.
func (s *AdminService) CreateGiftRule(ctx context.Context, g *domain.GiftRule) (*domain.GiftRule, error) {
	if g.GiftQuantity <= 0 {
		return nil, apperrors.InvalidInput("gift quantity must be positive")
	}
	if err := checkWindow(g.StartsAt, g.EndsAt); err != nil {
		return nil, err
	}

	product, err := s.catalog.GetProduct(ctx, g.GiftProductID)
	if err != nil {
		return nil, err
	}
	if !product.Active {
		return nil, apperrors.InvalidInput("gift product is not active")
	}
	variant, err := s.catalog.GetVariant(ctx, g.GiftVariantID)
	if err != nil {
		return nil, err
	}
	if variant.ProductID != g.GiftProductID {
		return nil, apperrors.InvalidInput("gift variant does not belong to gift product")
	}

	if g.RequiredProductID != "" && g.RequiredCategoryID != "" {
		return nil, apperrors.InvalidInput("gift rule may require a product or a category, not both")
	}
	if g.RequiredProductID != "" {
		if _, err := s.catalog.GetProduct(ctx, g.RequiredProductID); err != nil {
			return nil, err
		}
	}
	if g.RequiredCategoryID != "" {
		if _, err := s.catalog.GetCategory(ctx, g.RequiredCategoryID); err != nil {
			return nil, err
		}
	}

	created, err := s.promotions.CreateGiftRule(ctx, g)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "gift rule created",
		slog.String("gift_rule_id", created.ID),
		slog.String("name", created.Name))

	return created, nil
}

// CreateDeliveryArea validates and persists a new delivery area.
func (s *AdminService) CreateDeliveryArea(ctx context.Context, a *domain.DeliveryArea) (*domain.DeliveryArea, error) {
	if a.Name == "" {
		return nil, apperrors.InvalidInput("delivery area name is required")
	}
	if a.FeeMinor < 0 {
		return nil, apperrors.InvalidInput("delivery fee must not be negative")
	}

	created, err := s.shipping.CreateDeliveryArea(ctx, a)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "delivery area created",
		slog.String("delivery_area_id", created.ID),
		slog.String("name", created.Name))

	return created, nil
}

// CreatePickupPoint validates and persists a new pickup point.
func (s *AdminService) CreatePickupPoint(ctx context.Context, p *domain.PickupPoint) (*domain.PickupPoint, error) {
	if p.Name == "" {
		return nil, apperrors.InvalidInput("pickup point name is required")
	}
	if p.FeeMinor < 0 {
		return nil, apperrors.InvalidInput("pickup fee must not be negative")
	}

	created, err := s.shipping.CreatePickupPoint(ctx, p)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "pickup point created",
		slog.String("pickup_point_id", created.ID),
		slog.String("name", created.Name))

	return created, nil
}

func checkWindow(startsAt, endsAt time.Time) error {
	if !startsAt.Before(endsAt) {
		return apperrors.InvalidInput("promotion must start before it ends")
	}
	return nil
}
