package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rjanssen/bartab-backend/api/controllers"
	webhookcontrollers "github.com/rjanssen/bartab-backend/api/controllers/webhooks"
	"github.com/rjanssen/bartab-backend/api/middleware"
	"github.com/rjanssen/bartab-backend/internal/catalog"
	"github.com/rjanssen/bartab-backend/internal/payments"
	"github.com/rjanssen/bartab-backend/internal/receipts"
	"github.com/rjanssen/bartab-backend/internal/reconcile"
	"github.com/rjanssen/bartab-backend/internal/tabs"
	"github.com/rjanssen/bartab-backend/pkg/config"
	"github.com/rjanssen/bartab-backend/pkg/db"
	"github.com/rjanssen/bartab-backend/pkg/logger"
	"github.com/rjanssen/bartab-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	catalogService catalog.Service,
	tabService tabs.Service,
	checkoutService payments.Service,
	receiptService receipts.Service,
	reconcileService reconcile.Service,
	webhookGuard *reconcile.IdempotencyGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Handle("/metrics", promhttp.Handler())

	// The gateway posts callbacks and redirects guest browsers here; neither
	// carries credentials.
	r.Post("/webhooks/mollie", webhookcontrollers.MollieWebhook(reconcileService, webhookGuard, logg))
	r.Get("/pay/return", controllers.PayReturn(tabService, cfg.Checkout, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/drinks", controllers.ListDrinks(catalogService, logg))
		r.Post("/tabs/guest", controllers.StartGuestTab(tabService, logg))
		r.Post("/tabs/{tabId}/checkout", controllers.CreateCheckout(checkoutService, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.Idempotency(redisClient, logg))

			r.Get("/tabs/open", controllers.OpenTab(tabService, logg))
			r.Post("/tabs/items", controllers.AddItem(tabService, logg))
			r.Post("/tabs/{tabId}/close", controllers.CloseTab(tabService, receiptService, logg))
		})
	})

	return r
}
