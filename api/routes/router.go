package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/threadline/threadline-backend/api/controllers"
	cartcontrollers "github.com/threadline/threadline-backend/api/controllers/cart"
	inventorycontrollers "github.com/threadline/threadline-backend/api/controllers/inventory"
	ordercontrollers "github.com/threadline/threadline-backend/api/controllers/orders"
	shippingcontrollers "github.com/threadline/threadline-backend/api/controllers/shipping"
	walletcontrollers "github.com/threadline/threadline-backend/api/controllers/wallet"
	"github.com/threadline/threadline-backend/api/middleware"
	"github.com/threadline/threadline-backend/internal/cart"
	"github.com/threadline/threadline-backend/internal/inventory"
	"github.com/threadline/threadline-backend/internal/orders"
	"github.com/threadline/threadline-backend/internal/shipping"
	"github.com/threadline/threadline-backend/internal/wallet"
	"github.com/threadline/threadline-backend/pkg/config"
	"github.com/threadline/threadline-backend/pkg/db"
	"github.com/threadline/threadline-backend/pkg/enums"
	"github.com/threadline/threadline-backend/pkg/logger"
	"github.com/threadline/threadline-backend/pkg/redis"
)

// redisStore is the slice of the redis client the HTTP edge needs.
type redisStore interface {
	redis.IdempotencyStore
	redis.RateLimiter
	redis.Pinger
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient redisStore,
	metricsHandler http.Handler,
	cartService cart.Service,
	ordersService orders.Service,
	shippingService shipping.Service,
	inventoryService inventory.Service,
	walletService wallet.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	ratePolicy := middleware.RateLimitPolicy{
		Name:   "shipping_rate",
		Window: cfg.Shipping.RateLimitWindow,
		Limit:  cfg.Shipping.RateLimitPerIP,
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    dbP,
			"redis": redisClient,
		}))
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Post("/", cartcontrollers.Open(cartService, logg))
			r.Get("/{cartId}", cartcontrollers.Fetch(cartService, logg))
			r.Post("/{cartId}/lines", cartcontrollers.ReserveLine(cartService, logg))
			r.Delete("/lines/{lineId}", cartcontrollers.RemoveLine(cartService, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(ordersService, logg))
			r.Post("/", ordercontrollers.Create(ordersService, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(ordersService, logg))
			r.Post("/{orderId}/cancel", ordercontrollers.Cancel(ordersService, logg))
		})

		r.With(middleware.RateLimit(ratePolicy, redisClient, logg)).
			Get("/shipping/rate", shippingcontrollers.Rate(shippingService, logg))

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/balance", walletcontrollers.Balance(walletService, logg))
			r.Get("/transactions", walletcontrollers.Transactions(walletService, logg))
			r.Post("/batches/{batchId}/complete", walletcontrollers.CompleteBatch(walletService, logg))
			r.Post("/settle", walletcontrollers.Settle(walletService, logg))
		})
	})

	r.Route("/api/staff/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.ActorRoleStaff, enums.ActorRoleAdmin))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(ordersService, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(ordersService, logg))
			r.Post("/{orderId}/ready", ordercontrollers.MarkReady(ordersService, logg))
			r.Post("/{orderId}/packed", ordercontrollers.MarkPacked(ordersService, logg))
			r.Post("/{orderId}/shipped", ordercontrollers.MarkShipped(ordersService, logg))
		})
		r.Get("/inventory/{productId}", inventorycontrollers.Detail(inventoryService, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.ActorRoleAdmin))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/shipping/rules", func(r chi.Router) {
			r.Get("/", shippingcontrollers.ListRules(shippingService, logg))
			r.Post("/", shippingcontrollers.CreateRule(shippingService, logg))
			r.Post("/{ruleId}/active", shippingcontrollers.SetRuleActive(shippingService, logg))
		})
		r.Route("/inventory/{productId}", func(r chi.Router) {
			r.Get("/", inventorycontrollers.Detail(inventoryService, logg))
			r.Post("/sales", inventorycontrollers.CommitSale(inventoryService, logg))
		})
	})

	return r
}
