package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mahmoodamara/storefront/internal/domain"
	"github.com/mahmoodamara/storefront/internal/repository"
	apperrors "github.com/mahmoodamara/storefront/pkg/errors"
	"github.com/mahmoodamara/storefront/pkg/money"
)

// PricingConfig holds the fixed pricing parameters. Delivery and pickup point
// fees come from the shipping catalog; only store pickup has a flat fee.
type PricingConfig struct {
	Currency            string
	VATBasisPoints      int64
	StorePickupFeeMinor int64
}

// PricingService computes price quotes. Quoting is pure: it reads catalog,
// promotion and stock state but never changes anything, so a quote can be
// requested any number of times.
//
// The stages run in a fixed order: effective unit prices, shipping fee,
// one campaign, one coupon, stackable offers, gift rules, VAT breakdown.
type PricingService struct {
	catalog   repository.CatalogRepository
	promos    repository.PromotionRepository
	coupons   repository.CouponRepository
	inventory repository.InventoryRepository
	shipping  repository.ShippingRepository
	cfg       PricingConfig
	logger    *slog.Logger
}

// NewPricingService creates a new pricing service.
func NewPricingService(
	catalog repository.CatalogRepository,
	promos repository.PromotionRepository,
	coupons repository.CouponRepository,
	inventory repository.InventoryRepository,
	shipping repository.ShippingRepository,
	cfg PricingConfig,
	logger *slog.Logger,
) *PricingService {
	return &PricingService{
		catalog:   catalog,
		promos:    promos,
		coupons:   coupons,
		inventory: inventory,
		shipping:  shipping,
		cfg:       cfg,
		logger:    logger,
	}
}

// BuildQuote prices the requested items at the given instant. The coupon, if
// present, is validated for window and minimum order but its capacity is not
// reserved here; that happens at checkout.
func (s *PricingService) BuildQuote(ctx context.Context, req *domain.QuoteRequest, now time.Time) (*domain.Quote, error) {
	if len(req.Items) == 0 {
		return nil, apperrors.InvalidInput("at least one item is required")
	}
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, apperrors.InvalidInput(fmt.Sprintf("item %d: quantity must be greater than 0", i))
		}
	}

	quote := &domain.Quote{
		Currency:    s.cfg.Currency,
		GeneratedAt: now,
	}

	// Stage 1: effective unit prices and item subtotal.
	lines, subtotal, err := s.priceLines(ctx, req.Items, now)
	if err != nil {
		return nil, err
	}
	quote.Lines = lines
	quote.SubtotalMinor = subtotal

	// Stage 2: shipping fee from the mode's catalog entry.
	if err := s.applyShipping(ctx, quote, req); err != nil {
		return nil, err
	}

	// Discounts apply to the item subtotal only; shipping is discounted solely
	// through free-shipping offers. remaining tracks the undiscounted item
	// value so stacked discounts can never push the total negative.
	remaining := subtotal

	// Stage 3: at most one campaign, highest priority wins.
	if discount, campaign, err := s.applyCampaign(ctx, quote, remaining, now); err != nil {
		return nil, err
	} else if campaign != nil {
		quote.CampaignID = campaign.ID
		quote.CampaignDiscount = discount
		quote.Promotions = append(quote.Promotions, domain.AppliedPromotion{
			Kind: "campaign", ID: campaign.ID, Name: campaign.Name, DiscountMinor: discount,
		})
		remaining -= discount
	}

	// Stage 4: at most one coupon.
	if req.CouponCode != "" {
		coupon, err := s.coupons.GetByCode(ctx, req.CouponCode)
		if err != nil {
			return nil, err
		}
		if !coupon.IsRedeemable(now) {
			return nil, apperrors.InvalidInputCode("COUPON_NOT_REDEEMABLE", "coupon is not currently redeemable")
		}
		if !coupon.MeetsMinimum(subtotal) {
			return nil, apperrors.InvalidInputCode("COUPON_MIN_ORDER", "order subtotal is below the coupon minimum")
		}
		if coupon.Exhausted() {
			return nil, apperrors.ConflictCode("COUPON_EXHAUSTED", "coupon usage limit reached")
		}

		discount := coupon.DiscountFor(remaining)
		quote.CouponID = coupon.ID
		quote.CouponCode = coupon.Code
		quote.CouponDiscount = discount
		quote.Promotions = append(quote.Promotions, domain.AppliedPromotion{
			Kind: "coupon", ID: coupon.ID, Name: coupon.Code, DiscountMinor: discount,
		})
		remaining -= discount
	}

	// Stage 5: stackable offers in priority order.
	offerDiscount, err := s.applyOffers(ctx, quote, remaining, now)
	if err != nil {
		return nil, err
	}
	quote.OfferDiscount = offerDiscount
	remaining -= offerDiscount

	// Stage 6: gift rules, merged by (product, variant).
	if err := s.applyGifts(ctx, quote, subtotal, now); err != nil {
		return nil, err
	}

	// Stage 7: VAT-inclusive total and back-derived tax component.
	quote.TotalMinor = remaining + quote.ShippingFeeMinor
	quote.TotalBeforeVATMinor, quote.VATMinor = money.SplitVAT(quote.TotalMinor, s.cfg.VATBasisPoints)

	return quote, nil
}

// applyShipping resolves the mode's fee. Delivery and pickup point orders must
// name an active catalog entry; store pickup uses the flat configured fee.
func (s *PricingService) applyShipping(ctx context.Context, quote *domain.Quote, req *domain.QuoteRequest) error {
	quote.ShippingMode = req.ShippingMode

	switch req.ShippingMode {
	case domain.ShippingModeDelivery:
		if req.DeliveryAreaID == "" {
			return apperrors.InvalidInputCode("INVALID_DELIVERY_AREA", "delivery requires a delivery_area_id")
		}
		area, err := s.shipping.GetDeliveryArea(ctx, req.DeliveryAreaID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return apperrors.InvalidInputCode("INVALID_DELIVERY_AREA", "unknown delivery area")
			}
			return err
		}
		if !area.Active {
			return apperrors.InvalidInputCode("INVALID_DELIVERY_AREA", "delivery area is not serviced")
		}
		quote.DeliveryAreaID = area.ID
		quote.ShippingLabel = area.Name
		quote.ShippingFeeMinor = area.FeeMinor

	case domain.ShippingModePickupPoint:
		if req.PickupPointID == "" {
			return apperrors.InvalidInputCode("INVALID_PICKUP_POINT", "pickup_point requires a pickup_point_id")
		}
		point, err := s.shipping.GetPickupPoint(ctx, req.PickupPointID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return apperrors.InvalidInputCode("INVALID_PICKUP_POINT", "unknown pickup point")
			}
			return err
		}
		if !point.Active {
			return apperrors.InvalidInputCode("INVALID_PICKUP_POINT", "pickup point is not available")
		}
		quote.PickupPointID = point.ID
		quote.ShippingLabel = point.Name
		quote.ShippingFeeMinor = point.FeeMinor

	case domain.ShippingModeStorePickup:
		quote.ShippingFeeMinor = s.cfg.StorePickupFeeMinor

	default:
		return apperrors.InvalidInputCode("MISSING_SHIPPING_MODE",
			"shipping_mode must be delivery, pickup_point or store_pickup")
	}
	return nil
}

func (s *PricingService) priceLines(ctx context.Context, items []domain.CartItem, now time.Time) ([]domain.QuoteLine, int64, error) {
	productIDs := make([]string, 0, len(items))
	variantIDs := make([]string, 0, len(items))
	for _, item := range items {
		productIDs = append(productIDs, item.ProductID)
		variantIDs = append(variantIDs, item.VariantID)
	}

	products, err := s.catalog.GetProductsByIDs(ctx, productIDs)
	if err != nil {
		return nil, 0, err
	}
	variants, err := s.catalog.GetVariantsByIDs(ctx, variantIDs)
	if err != nil {
		return nil, 0, err
	}

	lines := make([]domain.QuoteLine, 0, len(items))
	var subtotal int64
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok || !product.Active {
			return nil, 0, apperrors.NotFound("product", item.ProductID)
		}
		variant, ok := variants[item.VariantID]
		if !ok || !variant.Active || variant.ProductID != product.ID {
			return nil, 0, apperrors.NotFound("variant", item.VariantID)
		}

		unit := product.EffectivePrice(now)
		lineTotal := unit * int64(item.Quantity)
		lines = append(lines, domain.QuoteLine{
			ProductID:      product.ID,
			VariantID:      variant.ID,
			Name:           product.Name + " / " + variant.Name,
			CategoryID:     product.CategoryID,
			Category:       product.CategoryName,
			UnitPriceMinor: unit,
			Quantity:       item.Quantity,
			LineTotalMinor: lineTotal,
		})
		subtotal += lineTotal
	}
	return lines, subtotal, nil
}

func (s *PricingService) applyCampaign(ctx context.Context, quote *domain.Quote, remaining int64, now time.Time) (int64, *domain.Campaign, error) {
	campaigns, err := s.promos.ListRunningCampaigns(ctx, now)
	if err != nil {
		return 0, nil, err
	}

	// Campaigns come back highest priority first; the first one that matches
	// any line wins.
	for i := range campaigns {
		campaign := &campaigns[i]
		var eligible int64
		for _, line := range quote.Lines {
			if campaign.AppliesTo(line.ProductID, line.CategoryID) {
				eligible += line.LineTotalMinor
			}
		}
		if eligible == 0 {
			continue
		}
		if eligible > remaining {
			eligible = remaining
		}
		discount := campaign.DiscountFor(eligible)
		if discount == 0 {
			continue
		}
		return discount, campaign, nil
	}
	return 0, nil, nil
}

func (s *PricingService) applyOffers(ctx context.Context, quote *domain.Quote, remaining int64, now time.Time) (int64, error) {
	offers, err := s.promos.ListRunningOffers(ctx, now)
	if err != nil {
		return 0, err
	}

	var total int64
	for i := range offers {
		offer := &offers[i]
		if quote.SubtotalMinor < offer.MinOrderMinor {
			continue
		}

		switch offer.Type {
		case domain.OfferTypeFreeShipping:
			if quote.ShippingFeeMinor > 0 {
				quote.ShippingFeeMinor = 0
				quote.Promotions = append(quote.Promotions, domain.AppliedPromotion{
					Kind: "offer", ID: offer.ID, Name: offer.Name,
				})
			}

		case domain.OfferTypeBuyXGetY:
			params, err := offer.BuyXGetY()
			if err != nil {
				s.logger.WarnContext(ctx, "skipping offer with invalid params",
					slog.String("offer_id", offer.ID),
					slog.String("error", err.Error()),
				)
				continue
			}
			discount := buyXGetYDiscount(quote.Lines, params)
			if discount > remaining-total {
				discount = remaining - total
			}
			if discount <= 0 {
				continue
			}
			total += discount
			quote.Promotions = append(quote.Promotions, domain.AppliedPromotion{
				Kind: "offer", ID: offer.ID, Name: offer.Name, DiscountMinor: discount,
			})

		case domain.OfferTypePercentOff:
			params, err := offer.PercentOff()
			if err != nil {
				s.logger.WarnContext(ctx, "skipping offer with invalid params",
					slog.String("offer_id", offer.ID),
					slog.String("error", err.Error()),
				)
				continue
			}
			discount := (remaining - total) * params.BasisPoints / 10000
			if params.MaxDiscountMinor != nil && discount > *params.MaxDiscountMinor {
				discount = *params.MaxDiscountMinor
			}
			if discount <= 0 {
				continue
			}
			total += discount
			quote.Promotions = append(quote.Promotions, domain.AppliedPromotion{
				Kind: "offer", ID: offer.ID, Name: offer.Name, DiscountMinor: discount,
			})

		case domain.OfferTypeFixedOff:
			params, err := offer.FixedOff()
			if err != nil {
				s.logger.WarnContext(ctx, "skipping offer with invalid params",
					slog.String("offer_id", offer.ID),
					slog.String("error", err.Error()),
				)
				continue
			}
			discount := params.AmountMinor
			if discount > remaining-total {
				discount = remaining - total
			}
			if discount <= 0 {
				continue
			}
			total += discount
			quote.Promotions = append(quote.Promotions, domain.AppliedPromotion{
				Kind: "offer", ID: offer.ID, Name: offer.Name, DiscountMinor: discount,
			})
		}
	}
	return total, nil
}

// buyXGetYDiscount prices the free units of a buy-X-get-Y offer: for every
// full group of Buy+Get units of the target product, Get units are free.
func buyXGetYDiscount(lines []domain.QuoteLine, params *domain.BuyXGetYParams) int64 {
	if params.Buy <= 0 || params.Get <= 0 {
		return 0
	}
	var discount int64
	for _, line := range lines {
		if line.ProductID != params.ProductID {
			continue
		}
		if params.VariantID != "" && line.VariantID != params.VariantID {
			continue
		}
		group := params.Buy + params.Get
		freeUnits := line.Quantity / group * params.Get
		discount += int64(freeUnits) * line.UnitPriceMinor
	}
	return discount
}

func (s *PricingService) applyGifts(ctx context.Context, quote *domain.Quote, subtotal int64, now time.Time) error {
	rules, err := s.promos.ListRunningGiftRules(ctx, now)
	if err != nil {
		return err
	}

	// Merge entitled gifts by (product, variant) so two rules granting the
	// same item produce one line with the summed quantity.
	type giftKey struct{ productID, variantID string }
	gifts := make(map[giftKey]int)
	var order []giftKey
	for _, rule := range rules {
		if subtotal < rule.MinOrderMinor {
			continue
		}
		if !rule.RequirementMet(quote.Lines) {
			continue
		}
		key := giftKey{rule.GiftProductID, rule.GiftVariantID}
		if _, seen := gifts[key]; !seen {
			order = append(order, key)
		}
		gifts[key] += rule.GiftQuantity
		quote.Promotions = append(quote.Promotions, domain.AppliedPromotion{
			Kind: "gift", ID: rule.ID, Name: rule.Name,
		})
	}
	if len(gifts) == 0 {
		return nil
	}

	// Gift stock must cover the granted quantity on top of the paid lines.
	// A shortfall reduces the gift and warns; a fully unavailable gift
	// rejects the quote so the customer is never promised nothing.
	paid := make(map[giftKey]int)
	check := make([]domain.CartItem, 0, len(gifts))
	for _, key := range order {
		for _, line := range quote.Lines {
			if line.ProductID == key.productID && line.VariantID == key.variantID {
				paid[key] += line.Quantity
			}
		}
		check = append(check, domain.CartItem{ProductID: key.productID, VariantID: key.variantID, Quantity: paid[key] + gifts[key]})
	}
	results, err := s.inventory.CheckAvailability(ctx, check)
	if err != nil {
		return err
	}

	giftProducts := make([]string, 0, len(order))
	giftVariants := make([]string, 0, len(order))
	for _, key := range order {
		giftProducts = append(giftProducts, key.productID)
		giftVariants = append(giftVariants, key.variantID)
	}
	products, err := s.catalog.GetProductsByIDs(ctx, giftProducts)
	if err != nil {
		return err
	}
	variants, err := s.catalog.GetVariantsByIDs(ctx, giftVariants)
	if err != nil {
		return err
	}

	giftName := func(key giftKey) string {
		name := "gift"
		if p, ok := products[key.productID]; ok {
			name = p.Name
			if v, ok := variants[key.variantID]; ok {
				name += " / " + v.Name
			}
		}
		return name
	}

	granted := make(map[giftKey]int, len(gifts))
	var blocked []domain.GiftShortfall
	for i, key := range order {
		entitled := gifts[key]
		sellable := results[i].Available - paid[key]
		switch {
		case sellable <= 0:
			blocked = append(blocked, domain.GiftShortfall{
				ProductID: key.productID,
				VariantID: key.variantID,
				Name:      giftName(key),
				Requested: entitled,
				Granted:   0,
			})
		case sellable < entitled:
			granted[key] = sellable
			quote.GiftWarnings = append(quote.GiftWarnings, domain.GiftShortfall{
				ProductID: key.productID,
				VariantID: key.variantID,
				Name:      giftName(key),
				Requested: entitled,
				Granted:   sellable,
			})
		default:
			granted[key] = entitled
		}
	}
	if len(blocked) > 0 {
		return apperrors.InvalidInputCode("GIFT_OUT_OF_STOCK", "gift item is out of stock").WithDetails(blocked)
	}

	for _, key := range order {
		quote.Lines = append(quote.Lines, domain.QuoteLine{
			ProductID:      key.productID,
			VariantID:      key.variantID,
			Name:           giftName(key),
			UnitPriceMinor: 0,
			Quantity:       granted[key],
			LineTotalMinor: 0,
			IsGift:         true,
		})
	}
	return nil
}
