package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/craftandcart/storefront-backend/api/controllers"
	webhookcontrollers "github.com/craftandcart/storefront-backend/api/controllers/webhooks"
	"github.com/craftandcart/storefront-backend/api/middleware"
	"github.com/craftandcart/storefront-backend/internal/cart"
	checkoutsvc "github.com/craftandcart/storefront-backend/internal/checkout"
	"github.com/craftandcart/storefront-backend/internal/orders"
	"github.com/craftandcart/storefront-backend/internal/products"
	stripewebhook "github.com/craftandcart/storefront-backend/internal/webhooks/stripe"
	"github.com/craftandcart/storefront-backend/pkg/config"
	"github.com/craftandcart/storefront-backend/pkg/enums"
	"github.com/craftandcart/storefront-backend/pkg/logger"
	"github.com/craftandcart/storefront-backend/pkg/metrics"
	pkgstripe "github.com/craftandcart/storefront-backend/pkg/stripe"
)

// Deps carries everything the router mounts.
type Deps struct {
	Config  *config.Config
	Logger  *logger.Logger
	Metrics *metrics.HTTPMetrics

	DBPinger    controllers.Pinger
	RedisPinger controllers.Pinger

	ProductRepo     products.Repository
	CartService     cart.Service
	CheckoutService checkoutsvc.Service
	OrdersService   orders.Service

	StripeClient  *pkgstripe.Client
	WebhookSvc    *stripewebhook.Service
	WebhookGuard  *stripewebhook.IdempotencyGuard
	PromGatherers prometheus.Gatherer
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(deps.Metrics),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": deps.DBPinger,
			"redis":    deps.RedisPinger,
		}))
	})

	if deps.PromGatherers != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.PromGatherers, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(deps.WebhookSvc, deps.StripeClient, deps.WebhookGuard, logg))
	})

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", controllers.ListProducts(deps.ProductRepo, logg))
		r.Get("/{productId}", controllers.GetProduct(deps.ProductRepo, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.GetCart(deps.CartService, logg))
			r.Put("/items", controllers.PutCartItem(deps.CartService, logg))
			r.Delete("/items/{productId}", controllers.RemoveCartItem(deps.CartService, logg))
			r.Delete("/", controllers.ClearCart(deps.CartService, logg))
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/create-payment-intent", controllers.CreatePaymentIntent(deps.CheckoutService, logg))
			r.Get("/payment-intent/{intentId}", controllers.GetPaymentIntent(deps.CheckoutService, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(deps.OrdersService, logg))
			r.Get("/{orderId}", controllers.GetOrder(deps.OrdersService, logg))
			r.With(middleware.RequireRole(string(enums.RoleAdmin), logg)).
				Put("/{orderId}/status", controllers.UpdateOrderStatus(deps.OrdersService, logg))
		})
	})

	return r
}
