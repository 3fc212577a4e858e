package service

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/mahmoodamara/storefront/internal/domain"
	"github.com/mahmoodamara/storefront/internal/event"
	"github.com/mahmoodamara/storefront/internal/gateway"
	"github.com/mahmoodamara/storefront/internal/repository"
	pkgkafka "github.com/mahmoodamara/storefront/pkg/kafka"
)

// --- Mock Catalog Repository ---

type mockCatalogRepository struct {
	mock.Mock
}

func (m *mockCatalogRepository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockCatalogRepository) GetProductsByIDs(ctx context.Context, ids []string) (map[string]*domain.Product, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]*domain.Product), args.Error(1)
}

func (m *mockCatalogRepository) GetVariant(ctx context.Context, id string) (*domain.ProductVariant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProductVariant), args.Error(1)
}

func (m *mockCatalogRepository) GetVariantsByIDs(ctx context.Context, ids []string) (map[string]*domain.ProductVariant, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]*domain.ProductVariant), args.Error(1)
}

func (m *mockCatalogRepository) ListProducts(ctx context.Context, page, perPage int) ([]domain.Product, int, error) {
	args := m.Called(ctx, page, perPage)
	return args.Get(0).([]domain.Product), args.Int(1), args.Error(2)
}

func (m *mockCatalogRepository) CreateProduct(ctx context.Context, p *domain.Product) (*domain.Product, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockCatalogRepository) CreateVariant(ctx context.Context, v *domain.ProductVariant) (*domain.ProductVariant, error) {
	args := m.Called(ctx, v)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProductVariant), args.Error(1)
}

func (m *mockCatalogRepository) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

func (m *mockCatalogRepository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Category), args.Error(1)
}

func (m *mockCatalogRepository) CreateCategory(ctx context.Context, c *domain.Category) (*domain.Category, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

// --- Mock Shipping Repository ---

type mockShippingRepository struct {
	mock.Mock
}

func (m *mockShippingRepository) GetDeliveryArea(ctx context.Context, id string) (*domain.DeliveryArea, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DeliveryArea), args.Error(1)
}

func (m *mockShippingRepository) GetPickupPoint(ctx context.Context, id string) (*domain.PickupPoint, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PickupPoint), args.Error(1)
}

func (m *mockShippingRepository) ListDeliveryAreas(ctx context.Context) ([]domain.DeliveryArea, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DeliveryArea), args.Error(1)
}

func (m *mockShippingRepository) ListPickupPoints(ctx context.Context) ([]domain.PickupPoint, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PickupPoint), args.Error(1)
}

func (m *mockShippingRepository) CreateDeliveryArea(ctx context.Context, a *domain.DeliveryArea) (*domain.DeliveryArea, error) {
	args := m.Called(ctx, a)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DeliveryArea), args.Error(1)
}

func (m *mockShippingRepository) CreatePickupPoint(ctx context.Context, p *domain.PickupPoint) (*domain.PickupPoint, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PickupPoint), args.Error(1)
}

// --- Mock Inventory Repository ---

type mockInventoryRepository struct {
	mock.Mock
}

func (m *mockInventoryRepository) Reserve(ctx context.Context, orderID string, items []domain.CartItem, ttl time.Duration) ([]domain.StockReservation, error) {
	args := m.Called(ctx, orderID, items, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.StockReservation), args.Error(1)
}

func (m *mockInventoryRepository) ConfirmForOrder(ctx context.Context, orderID string, now time.Time) error {
	args := m.Called(ctx, orderID, now)
	return args.Error(0)
}

func (m *mockInventoryRepository) DecrementForOrder(ctx context.Context, orderID string, items []domain.CartItem) error {
	args := m.Called(ctx, orderID, items)
	return args.Error(0)
}

func (m *mockInventoryRepository) ReleaseForOrder(ctx context.Context, orderID string) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

func (m *mockInventoryRepository) GetByOrderID(ctx context.Context, orderID string) ([]domain.StockReservation, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.StockReservation), args.Error(1)
}

func (m *mockInventoryRepository) ExpireSweep(ctx context.Context, now time.Time, limit int) (int, error) {
	args := m.Called(ctx, now, limit)
	return args.Int(0), args.Error(1)
}

func (m *mockInventoryRepository) CheckAvailability(ctx context.Context, items []domain.CartItem) ([]repository.AvailabilityResult, error) {
	args := m.Called(ctx, items)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.AvailabilityResult), args.Error(1)
}

func (m *mockInventoryRepository) AdjustStock(ctx context.Context, productID, variantID string, delta int, reason string, orderID *string) error {
	args := m.Called(ctx, productID, variantID, delta, reason, orderID)
	return args.Error(0)
}

// --- Mock Coupon Repository ---

type mockCouponRepository struct {
	mock.Mock
}

func (m *mockCouponRepository) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Coupon), args.Error(1)
}

func (m *mockCouponRepository) Reserve(ctx context.Context, couponID, orderID string) error {
	args := m.Called(ctx, couponID, orderID)
	return args.Error(0)
}

func (m *mockCouponRepository) Consume(ctx context.Context, couponID, orderID string) error {
	args := m.Called(ctx, couponID, orderID)
	return args.Error(0)
}

func (m *mockCouponRepository) Release(ctx context.Context, couponID, orderID string) error {
	args := m.Called(ctx, couponID, orderID)
	return args.Error(0)
}

func (m *mockCouponRepository) Create(ctx context.Context, c *domain.Coupon) (*domain.Coupon, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Coupon), args.Error(1)
}

// --- Mock Promotion Repository ---

type mockPromotionRepository struct {
	mock.Mock
}

func (m *mockPromotionRepository) ListRunningCampaigns(ctx context.Context, now time.Time) ([]domain.Campaign, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Campaign), args.Error(1)
}

func (m *mockPromotionRepository) ListRunningOffers(ctx context.Context, now time.Time) ([]domain.Offer, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Offer), args.Error(1)
}

func (m *mockPromotionRepository) ListRunningGiftRules(ctx context.Context, now time.Time) ([]domain.GiftRule, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.GiftRule), args.Error(1)
}

func (m *mockPromotionRepository) CreateCampaign(ctx context.Context, c *domain.Campaign) (*domain.Campaign, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Campaign), args.Error(1)
}

func (m *mockPromotionRepository) CreateOffer(ctx context.Context, o *domain.Offer) (*domain.Offer, error) {
	args := m.Called(ctx, o)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Offer), args.Error(1)
}

func (m *mockPromotionRepository) CreateGiftRule(ctx context.Context, g *domain.GiftRule) (*domain.GiftRule, error) {
	args := m.Called(ctx, g)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.GiftRule), args.Error(1)
}

// --- Mock Order Repository ---

type mockOrderRepository struct {
	mock.Mock
}

func (m *mockOrderRepository) Create(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	args := m.Called(ctx, order)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) GetByIdempotencyKey(ctx context.Context, userID, key, paymentMethod string) (*domain.Order, error) {
	args := m.Called(ctx, userID, key, paymentMethod)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) GetByPaymentSession(ctx context.Context, sessionID string) (*domain.Order, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) ListByUser(ctx context.Context, userID string, page, perPage int) ([]domain.Order, int, error) {
	args := m.Called(ctx, userID, page, perPage)
	return args.Get(0).([]domain.Order), args.Int(1), args.Error(2)
}

func (m *mockOrderRepository) GetItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.OrderItem), args.Error(1)
}

func (m *mockOrderRepository) SetPaymentSession(ctx context.Context, orderID, sessionID string) error {
	args := m.Called(ctx, orderID, sessionID)
	return args.Error(0)
}

func (m *mockOrderRepository) MarkPaidBySession(ctx context.Context, sessionID string) (*domain.Order, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) UpdateStatus(ctx context.Context, orderID, fromStatus, toStatus string) error {
	args := m.Called(ctx, orderID, fromStatus, toStatus)
	return args.Error(0)
}

func (m *mockOrderRepository) Cancel(ctx context.Context, orderID, fromStatus, reason string) error {
	args := m.Called(ctx, orderID, fromStatus, reason)
	return args.Error(0)
}

func (m *mockOrderRepository) CreateRefund(ctx context.Context, r *domain.Refund) (*domain.Refund, error) {
	args := m.Called(ctx, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Refund), args.Error(1)
}

func (m *mockOrderRepository) GetRefundByIdempotencyKey(ctx context.Context, key string) (*domain.Refund, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Refund), args.Error(1)
}

func (m *mockOrderRepository) MarkRefundFailed(ctx context.Context, refundID string) error {
	args := m.Called(ctx, refundID)
	return args.Error(0)
}

func (m *mockOrderRepository) ApplyRefund(ctx context.Context, refundID, orderID string, amount int64, orderStatus string) error {
	args := m.Called(ctx, refundID, orderID, amount, orderStatus)
	return args.Error(0)
}

func (m *mockOrderRepository) CreateReturn(ctx context.Context, ret *domain.Return) (*domain.Return, error) {
	args := m.Called(ctx, ret)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Return), args.Error(1)
}

// --- Mock Cart Repository ---

type mockCartRepository struct {
	mock.Mock
}

func (m *mockCartRepository) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Cart), args.Error(1)
}

func (m *mockCartRepository) Save(ctx context.Context, cart *domain.Cart) error {
	args := m.Called(ctx, cart)
	return args.Error(0)
}

func (m *mockCartRepository) Delete(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// --- Mock Payment Gateway ---

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Name() string {
	return "mock"
}

func (m *mockGateway) CreateSession(ctx context.Context, input *gateway.SessionInput) (*gateway.Session, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Session), args.Error(1)
}

func (m *mockGateway) RetrieveSession(ctx context.Context, sessionID string) (*gateway.Session, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Session), args.Error(1)
}

func (m *mockGateway) CreateRefund(ctx context.Context, input *gateway.RefundInput) (*gateway.RefundResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.RefundResult), args.Error(1)
}

// --- Test Helpers ---

func intPtr(n int) *int { return &n }

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestEventProducer() *event.Producer {
	logger := newTestLogger()
	kafkaCfg := pkgkafka.DefaultProducerConfig([]string{"localhost:9092"})
	kafkaProducer := pkgkafka.NewProducer(kafkaCfg, logger)
	return event.NewProducer(kafkaProducer, logger)
}
