package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/livrinho/backend/api/controllers"
	"github.com/livrinho/backend/api/middleware"
	"github.com/livrinho/backend/internal/affiliates"
	"github.com/livrinho/backend/internal/cart"
	checkoutsvc "github.com/livrinho/backend/internal/checkout"
	"github.com/livrinho/backend/internal/coupons"
	"github.com/livrinho/backend/internal/orders"
	"github.com/livrinho/backend/internal/payments"
	pkgauth "github.com/livrinho/backend/pkg/auth"
	"github.com/livrinho/backend/pkg/config"
	"github.com/livrinho/backend/pkg/gateway"
	"github.com/livrinho/backend/pkg/logger"
	pkgredis "github.com/livrinho/backend/pkg/redis"
)

// Deps bundles everything the HTTP surface needs.
type Deps struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         controllers.Pinger
	Redis      *pkgredis.Client
	Gateway    *gateway.Client
	Cart       cart.Service
	Checkout   checkoutsvc.Service
	Coupons    coupons.Service
	Affiliates affiliates.Service
	Orders     orders.Service
	Payments   payments.Service
}

// NewRouter wires the public storefront routes, the gateway webhook, and the
// JWT-protected admin surface.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(d.Logger),
		middleware.RequestID(d.Logger),
		middleware.Logging(d.Logger),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(d.Config))
		r.Get("/ready", controllers.HealthReady(d.Config, d.DB, d.Redis))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Use(middleware.CartSession(d.Logger))
			r.Get("/", controllers.GetCart(d.Cart, d.Logger))
			r.Post("/items", controllers.AddCartItem(d.Cart, d.Logger))
			r.Delete("/items/{itemId}", controllers.RemoveCartItem(d.Cart, d.Logger))
			r.Delete("/", controllers.ClearCart(d.Cart, d.Logger))
		})

		r.With(middleware.Idempotency(d.Redis, d.Logger)).
			Post("/orders", controllers.CreateOrder(d.Checkout, d.Cart, d.Logger))
		r.Get("/orders/{orderId}", controllers.GetOrder(d.Orders, d.Logger))

		r.Post("/coupons/{code}/validate", controllers.ValidateCoupon(d.Coupons, d.Logger))
		r.Get("/payments/{paymentId}/status", controllers.GetPaymentStatus(d.Payments, d.Logger))

		r.Post("/webhooks/gateway", controllers.GatewayWebhook(d.Payments, d.Gateway, d.Logger))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(d.Config.JWT, d.Logger))
		r.Use(middleware.Idempotency(d.Redis, d.Logger))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.AdminListOrders(d.Orders, d.Logger))
			r.Put("/{orderId}", controllers.AdminUpdateOrder(d.Orders, d.Logger))
			r.With(middleware.RequireRole(pkgauth.RoleAdmin, d.Logger)).
				Delete("/{orderId}", controllers.AdminDeleteOrder(d.Orders, d.Logger))
		})
		r.Route("/coupons", func(r chi.Router) {
			r.Get("/", controllers.AdminListCoupons(d.Coupons, d.Logger))
			r.With(middleware.RequireRole(pkgauth.RoleAdmin, d.Logger)).
				Post("/", controllers.AdminCreateCoupon(d.Coupons, d.Logger))
		})
		r.Route("/affiliates", func(r chi.Router) {
			r.Get("/", controllers.AdminListAffiliates(d.Affiliates, d.Logger))
			r.With(middleware.RequireRole(pkgauth.RoleAdmin, d.Logger)).
				Post("/", controllers.AdminCreateAffiliate(d.Affiliates, d.Logger))
		})
	})

	return r
}
