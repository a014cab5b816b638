package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rjanssen/bartab-backend/api/routes"
	"github.com/rjanssen/bartab-backend/internal/catalog"
	"github.com/rjanssen/bartab-backend/internal/identity"
	"github.com/rjanssen/bartab-backend/internal/payments"
	"github.com/rjanssen/bartab-backend/internal/receipts"
	"github.com/rjanssen/bartab-backend/internal/reconcile"
	"github.com/rjanssen/bartab-backend/internal/tabs"
	"github.com/rjanssen/bartab-backend/pkg/config"
	"github.com/rjanssen/bartab-backend/pkg/db"
	"github.com/rjanssen/bartab-backend/pkg/logger"
	"github.com/rjanssen/bartab-backend/pkg/mailer"
	"github.com/rjanssen/bartab-backend/pkg/metrics"
	"github.com/rjanssen/bartab-backend/pkg/migrate"
	"github.com/rjanssen/bartab-backend/pkg/mollie"
	"github.com/rjanssen/bartab-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	mollieClient, err := mollie.NewClient(cfg.Mollie, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create gateway client", err)
		os.Exit(1)
	}

	sender, err := mailer.New(cfg.Sendgrid, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create mailer", err)
		os.Exit(1)
	}

	reconciliationMetrics := metrics.NewReconciliationMetrics(prometheus.DefaultRegisterer)

	tabRepo := tabs.NewRepository(dbClient.DB())
	catalogService, err := catalog.NewService(catalog.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	tabService, err := tabs.NewService(tabRepo, dbClient, catalogService)
	if err != nil {
		logg.Error(context.Background(), "failed to create tab service", err)
		os.Exit(1)
	}

	checkoutService, err := payments.NewService(tabRepo, dbClient, mollieClient, cfg.Checkout, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	receiptService, err := receipts.NewService(receipts.ServiceParams{
		Tabs:      tabRepo,
		Users:     identity.NewRepository(dbClient.DB()),
		Receipts:  receipts.NewRepository(dbClient.DB()),
		Sender:    sender,
		Dedupe:    redisClient,
		DedupeTTL: cfg.Webhook.ReceiptDedupeTTL,
		SiteName:  cfg.App.SiteName,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create receipt service", err)
		os.Exit(1)
	}

	reconcileService, err := reconcile.NewService(reconcile.ServiceParams{
		Gateway:  mollieClient,
		Tabs:     tabRepo,
		Settler:  tabService,
		Receipts: receiptService,
		Failures: reconcile.NewFailureRepository(dbClient.DB()),
		Metrics:  reconciliationMetrics,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile service", err)
		os.Exit(1)
	}

	webhookGuard, err := reconcile.NewIdempotencyGuard(redisClient, cfg.Webhook.ReplayTTL, "mollie")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			catalogService,
			tabService,
			checkoutService,
			receiptService,
			reconcileService,
			webhookGuard,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
