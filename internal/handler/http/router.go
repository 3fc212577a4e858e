package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mahmoodamara/storefront/internal/auth"
	"github.com/mahmoodamara/storefront/internal/service"
	"github.com/mahmoodamara/storefront/pkg/health"
	"github.com/mahmoodamara/storefront/pkg/middleware"
)

// RouterConfig bundles the services and settings the router needs.
type RouterConfig struct {
	Checkout   *service.CheckoutService
	Carts      *service.CartService
	Catalog    *service.CatalogService
	Webhooks   *service.WebhookService
	Refunds    *service.RefundService
	Admin      *service.AdminService
	JWTManager *auth.JWTManager

	Health         *health.Handler
	Logger         *slog.Logger
	CORS           middleware.CORSConfig
	PprofCIDRs     []string
	RequestTimeout time.Duration
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(timeout))
	r.Use(middleware.RequestLogging(cfg.Logger))
	r.Use(middleware.PrometheusMetrics("storefront"))
	r.Use(middleware.Tracing("storefront"))
	r.Use(middleware.RequestLogger(cfg.Logger))

	// Health check endpoints
	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofCIDRs, cfg.Logger)

	// Token validator that bridges to our internal JWTManager.
	tokenValidator := func(token string) (*middleware.Claims, error) {
		claims, err := cfg.JWTManager.ValidateAccessToken(token)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{
			UserID: claims.UserID,
			Email:  claims.Email,
			Role:   claims.Role,
		}, nil
	}

	// Public catalog endpoints
	catalogHandler := NewCatalogHandler(cfg.Catalog, cfg.Logger)
	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", catalogHandler.ListProducts)
		r.Get("/{id}", catalogHandler.GetProduct)

		r.With(ContentTypeJSON).Post("/availability", catalogHandler.CheckAvailability)
	})
	r.Get("/api/v1/categories", catalogHandler.ListCategories)
	r.Route("/api/v1/shipping", func(r chi.Router) {
		r.Get("/delivery-areas", catalogHandler.ListDeliveryAreas)
		r.Get("/pickup-points", catalogHandler.ListPickupPoints)
	})

	// Payment provider callbacks, authenticated by HMAC signature.
	webhookHandler := NewWebhookHandler(cfg.Webhooks, cfg.Logger)
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/payment", webhookHandler.HandlePayment)
	})

	// Store endpoints (auth required)
	storefrontHandler := NewStorefrontHandler(cfg.Checkout, cfg.Logger)
	cartHandler := NewCartHandler(cfg.Carts, cfg.Logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.Auth(tokenValidator))

		r.Post("/quote", storefrontHandler.Quote)
		r.Post("/checkout", storefrontHandler.Checkout)

		r.Get("/orders", storefrontHandler.ListOrders)
		r.Get("/orders/{id}", storefrontHandler.GetOrder)
		r.Post("/orders/{id}/cancel", storefrontHandler.CancelOrder)

		r.Get("/cart", cartHandler.GetCart)
		r.Delete("/cart", cartHandler.ClearCart)
		r.Post("/cart/items", cartHandler.AddItem)
		r.Delete("/cart/items/{productID}/{variantID}", cartHandler.RemoveItem)
	})

	// Admin endpoints (auth + admin role required)
	adminHandler := NewAdminHandler(cfg.Admin, cfg.Refunds, cfg.Checkout, cfg.Logger)
	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.Auth(tokenValidator))
		r.Use(middleware.RequireRole(auth.RoleAdmin))

		r.Post("/categories", adminHandler.CreateCategory)
		r.Post("/products", adminHandler.CreateProduct)
		r.Post("/products/{id}/variants", adminHandler.CreateVariant)
		r.Post("/stock/adjust", adminHandler.AdjustStock)
		r.Post("/shipping/delivery-areas", adminHandler.CreateDeliveryArea)
		r.Post("/shipping/pickup-points", adminHandler.CreatePickupPoint)

		r.Post("/coupons", adminHandler.CreateCoupon)
		r.Post("/campaigns", adminHandler.CreateCampaign)
		r.Post("/offers", adminHandler.CreateOffer)
		r.Post("/gift-rules", adminHandler.CreateGiftRule)

		r.Post("/orders/{id}/refund", adminHandler.RefundOrder)
		r.Post("/orders/{id}/returns", adminHandler.ReturnItems)
		r.Post("/orders/{id}/cancel", adminHandler.CancelOrder)
	})

	return r
}
