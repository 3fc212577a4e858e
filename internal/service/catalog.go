package service

import (
	"context"
	"log/slog"

	"github.com/mahmoodamara/storefront/internal/domain"
	"github.com/mahmoodamara/storefront/internal/repository"
	apperrors "github.com/mahmoodamara/storefront/pkg/errors"
)

// CatalogService serves the public product browse endpoints.
type CatalogService struct {
	catalog   repository.CatalogRepository
	inventory repository.InventoryRepository
	shipping  repository.ShippingRepository
	logger    *slog.Logger
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(
	catalog repository.CatalogRepository,
	inventory repository.InventoryRepository,
	shipping repository.ShippingRepository,
	logger *slog.Logger,
) *CatalogService {
	return &CatalogService{
		catalog:   catalog,
		inventory: inventory,
		shipping:  shipping,
		logger:    logger,
	}
}

// ListCategories returns all active categories.
func (s *CatalogService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.catalog.ListCategories(ctx)
}

// ListDeliveryAreas returns the active delivery areas a customer may ship to.
func (s *CatalogService) ListDeliveryAreas(ctx context.Context) ([]domain.DeliveryArea, error) {
	return s.shipping.ListDeliveryAreas(ctx)
}

// ListPickupPoints returns the active pickup points.
func (s *CatalogService) ListPickupPoints(ctx context.Context) ([]domain.PickupPoint, error) {
	return s.shipping.ListPickupPoints(ctx)
}

// ListProducts returns a page of products.
func (s *CatalogService) ListProducts(ctx context.Context, page, perPage int) ([]domain.Product, int, error) {
	return s.catalog.ListProducts(ctx, page, perPage)
}

// GetProduct returns a single product. Inactive products are hidden from the
// public catalog.
func (s *CatalogService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	product, err := s.catalog.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if !product.Active {
		return nil, apperrors.NotFound("product", id)
	}
	return product, nil
}

// CheckAvailability reports sellable stock for the requested pairs. The
// numbers are advisory; only checkout places holds.
func (s *CatalogService) CheckAvailability(ctx context.Context, items []domain.CartItem) ([]repository.AvailabilityResult, error) {
	if len(items) == 0 {
		return nil, apperrors.InvalidInput("at least one item is required")
	}
	return s.inventory.CheckAvailability(ctx, items)
}
