package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mahmoodamara/storefront/internal/domain"
	apperrors "github.com/mahmoodamara/storefront/pkg/errors"
)

type adminFixture struct {
	catalog   *mockCatalogRepository
	inventory *mockInventoryRepository
	coupons   *mockCouponRepository
	promos    *mockPromotionRepository
	shipping  *mockShippingRepository
	svc       *AdminService
}

func newAdminFixture() *adminFixture {
	f := &adminFixture{
		catalog:   new(mockCatalogRepository),
		inventory: new(mockInventoryRepository),
		coupons:   new(mockCouponRepository),
		promos:    new(mockPromotionRepository),
		shipping:  new(mockShippingRepository),
	}
	f.svc = NewAdminService(f.catalog, f.inventory, f.coupons, f.promos, f.shipping, newTestLogger())
	return f
}

func promoWindow() (time.Time, time.Time) {
	now := time.Now().UTC()
	return now.Add(-time.Hour), now.Add(24 * time.Hour)
}

func TestCreateCategory(t *testing.T) {
	f := newAdminFixture()
	ctx := context.Background()

	f.catalog.On("CreateCategory", ctx, mock.AnythingOfType("*domain.Category")).
		Return(&domain.Category{ID: "cat-1", Name: "Apparel", Slug: "apparel", Active: true}, nil)

	created, err := f.svc.CreateCategory(ctx, &domain.Category{Name: "Apparel", Slug: "apparel", Active: true})

	require.NoError(t, err)
	assert.Equal(t, "cat-1", created.ID)

	_, err = f.svc.CreateCategory(ctx, &domain.Category{Name: "No Slug"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestCreateProduct_CategoryMustExist(t *testing.T) {
	f := newAdminFixture()
	ctx := context.Background()

	f.catalog.On("GetCategory", ctx, "cat-missing").Return(nil, apperrors.ErrNotFound)

	created, err := f.svc.CreateProduct(ctx, &domain.Product{
		SKU:        "TS-001",
		Name:       "T-Shirt",
		PriceMinor: 5000,
		CategoryID: "cat-missing",
		Active:     true,
	})

	assert.Nil(t, created)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	f.catalog.AssertNotCalled(t, "CreateProduct", mock.Anything, mock.Anything)
}

func TestCreateProduct_SalePriceMustUndercutList(t *testing.T) {
	f := newAdminFixture()
	ctx := context.Background()

	sale := int64(6000)
	created, err := f.svc.CreateProduct(ctx, &domain.Product{
		SKU:            "TS-002",
		Name:           "T-Shirt",
		PriceMinor:     5000,
		SalePriceMinor: &sale,
		Active:         true,
	})

	assert.Nil(t, created)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestCreateCoupon_UsageLimit(t *testing.T) {
	f := newAdminFixture()
	ctx := context.Background()
	startsAt, expiresAt := promoWindow()

	f.coupons.On("Create", ctx, mock.AnythingOfType("*domain.Coupon")).
		Return(&domain.Coupon{ID: "c1", Code: "WELCOME"}, nil)

	// nil limit means unlimited and is fine.
	_, err := f.svc.CreateCoupon(ctx, &domain.Coupon{
		Code:          "WELCOME",
		DiscountType:  domain.CouponTypePercent,
		DiscountValue: 1000,
		StartsAt:      startsAt,
		ExpiresAt:     expiresAt,
	})
	require.NoError(t, err)

	_, err = f.svc.CreateCoupon(ctx, &domain.Coupon{
		Code:          "BROKEN",
		DiscountType:  domain.CouponTypePercent,
		DiscountValue: 1000,
		UsageLimit:    intPtr(0),
		StartsAt:      startsAt,
		ExpiresAt:     expiresAt,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestCreateCampaign_ValidatesCategories(t *testing.T) {
	f := newAdminFixture()
	ctx := context.Background()
	startsAt, endsAt := promoWindow()

	f.catalog.On("GetCategory", ctx, "cat-1").Return(&domain.Category{ID: "cat-1"}, nil)
	f.catalog.On("GetCategory", ctx, "cat-missing").Return(nil, apperrors.ErrNotFound)

	created, err := f.svc.CreateCampaign(ctx, &domain.Campaign{
		Name:                "Clearance",
		DiscountBasisPoints: 1500,
		CategoryIDs:         []string{"cat-1", "cat-missing"},
		StartsAt:            startsAt,
		EndsAt:              endsAt,
		Active:              true,
	})

	assert.Nil(t, created)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	f.promos.AssertNotCalled(t, "CreateCampaign", mock.Anything, mock.Anything)
}

func TestCreateOffer_PercentOff(t *testing.T) {
	f := newAdminFixture()
	ctx := context.Background()
	startsAt, endsAt := promoWindow()

	f.promos.On("CreateOffer", ctx, mock.AnythingOfType("*domain.Offer")).
		Return(&domain.Offer{ID: "o1", Type: domain.OfferTypePercentOff}, nil)

	_, err := f.svc.CreateOffer(ctx, &domain.Offer{
		Name:     "Summer 5%",
		Type:     domain.OfferTypePercentOff,
		Params:   json.RawMessage(`{"basis_points": 500, "max_discount_minor": 5000}`),
		StartsAt: startsAt,
		EndsAt:   endsAt,
		Active:   true,
	})
	require.NoError(t, err)

	// Basis points beyond 100% never pass.
	_, err = f.svc.CreateOffer(ctx, &domain.Offer{
		Name:     "Too much",
		Type:     domain.OfferTypePercentOff,
		Params:   json.RawMessage(`{"basis_points": 10001}`),
		StartsAt: startsAt,
		EndsAt:   endsAt,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = f.svc.CreateOffer(ctx, &domain.Offer{
		Name:     "Bad cap",
		Type:     domain.OfferTypePercentOff,
		Params:   json.RawMessage(`{"basis_points": 500, "max_discount_minor": -1}`),
		StartsAt: startsAt,
		EndsAt:   endsAt,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestCreateOffer_FixedOff(t *testing.T) {
	f := newAdminFixture()
	ctx := context.Background()
	startsAt, endsAt := promoWindow()

	f.promos.On("CreateOffer", ctx, mock.AnythingOfType("*domain.Offer")).
		Return(&domain.Offer{ID: "o2", Type: domain.OfferTypeFixedOff}, nil)

	_, err := f.svc.CreateOffer(ctx, &domain.Offer{
		Name:     "20 off",
		Type:     domain.OfferTypeFixedOff,
		Params:   json.RawMessage(`{"amount_minor": 2000}`),
		StartsAt: startsAt,
		EndsAt:   endsAt,
		Active:   true,
	})
	require.NoError(t, err)

	_, err = f.svc.CreateOffer(ctx, &domain.Offer{
		Name:     "Nothing off",
		Type:     domain.OfferTypeFixedOff,
		Params:   json.RawMessage(`{"amount_minor": 0}`),
		StartsAt: startsAt,
		EndsAt:   endsAt,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestCreateOffer_UnknownType(t *testing.T) {
	f := newAdminFixture()
	startsAt, endsAt := promoWindow()

	_, err := f.svc.CreateOffer(context.Background(), &domain.Offer{
		Name:     "Mystery",
		Type:     "mystery_box",
		StartsAt: startsAt,
		EndsAt:   endsAt,
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestCreateGiftRule_RequirementScopes(t *testing.T) {
	f := newAdminFixture()
	ctx := context.Background()
	startsAt, endsAt := promoWindow()

	f.catalog.On("GetProduct", ctx, "gift-p").Return(testProduct("gift-p", 0), nil)
	f.catalog.On("GetVariant", ctx, "gift-v").Return(testVariant("gift-v", "gift-p"), nil)

	// Requiring both a product and a category is ambiguous.
	created, err := f.svc.CreateGiftRule(ctx, &domain.GiftRule{
		Name:               "Tote with purchase",
		MinOrderMinor:      10000,
		RequiredProductID:  "p1",
		RequiredCategoryID: "cat-1",
		GiftProductID:      "gift-p",
		GiftVariantID:      "gift-v",
		GiftQuantity:       1,
		StartsAt:           startsAt,
		EndsAt:             endsAt,
	})
	assert.Nil(t, created)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	// A category requirement alone must point at a real category.
	f.catalog.On("GetCategory", ctx, "cat-missing").Return(nil, apperrors.ErrNotFound)
	_, err = f.svc.CreateGiftRule(ctx, &domain.GiftRule{
		Name:               "Tote with purchase",
		MinOrderMinor:      10000,
		RequiredCategoryID: "cat-missing",
		GiftProductID:      "gift-p",
		GiftVariantID:      "gift-v",
		GiftQuantity:       1,
		StartsAt:           startsAt,
		EndsAt:             endsAt,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	f.promos.AssertNotCalled(t, "CreateGiftRule", mock.Anything, mock.Anything)
}

func TestCreateDeliveryArea(t *testing.T) {
	f := newAdminFixture()
	ctx := context.Background()

	f.shipping.On("CreateDeliveryArea", ctx, mock.AnythingOfType("*domain.DeliveryArea")).
		Return(&domain.DeliveryArea{ID: "area-1", Name: "Tel Aviv", FeeMinor: 250, Active: true}, nil)

	created, err := f.svc.CreateDeliveryArea(ctx, &domain.DeliveryArea{Name: "Tel Aviv", FeeMinor: 250, Active: true})
	require.NoError(t, err)
	assert.Equal(t, "area-1", created.ID)

	_, err = f.svc.CreateDeliveryArea(ctx, &domain.DeliveryArea{Name: "", FeeMinor: 250})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = f.svc.CreateDeliveryArea(ctx, &domain.DeliveryArea{Name: "Eilat", FeeMinor: -1})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestCreatePickupPoint(t *testing.T) {
	f := newAdminFixture()
	ctx := context.Background()

	f.shipping.On("CreatePickupPoint", ctx, mock.AnythingOfType("*domain.PickupPoint")).
		Return(&domain.PickupPoint{ID: "pp-1", Name: "Dizengoff Center", FeeMinor: 100, Active: true}, nil)

	created, err := f.svc.CreatePickupPoint(ctx, &domain.PickupPoint{Name: "Dizengoff Center", Address: "50 Dizengoff St", FeeMinor: 100, Active: true})
	require.NoError(t, err)
	assert.Equal(t, "pp-1", created.ID)

	_, err = f.svc.CreatePickupPoint(ctx, &domain.PickupPoint{FeeMinor: 100})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestAdjustStock_VariantOwnership(t *testing.T) {
	f := newAdminFixture()
	ctx := context.Background()

	f.catalog.On("GetVariant", ctx, "v1").Return(testVariant("v1", "p-other"), nil)

	err := f.svc.AdjustStock(ctx, "p1", "v1", 5)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	f.inventory.AssertNotCalled(t, "AdjustStock", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
