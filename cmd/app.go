package cmd

import (
	"context"
	"database/sql"

	_ "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-billing/app/metrics"
	"github.com/vibast-solutions/ms-go-billing/app/provider"
	"github.com/vibast-solutions/ms-go-billing/app/repository"
	"github.com/vibast-solutions/ms-go-billing/app/service"
	"github.com/vibast-solutions/ms-go-billing/config"
)

type application struct {
	cfg            *config.Config
	db             *sql.DB
	metrics        *metrics.Collector
	webhookService *service.WebhookService
	billingService *service.BillingService
}

// sqlTransactor binds fresh repositories to every transaction opened by the
// store.
type sqlTransactor struct {
	store *repository.Store
}

func (t *sqlTransactor) WithinTx(ctx context.Context, fn func(repos service.Repositories) error) error {
	return t.store.WithinTx(ctx, func(tx repository.DBTX) error {
		return fn(service.Repositories{
			Charges:       repository.NewChargeRepository(tx),
			Cycles:        repository.NewBillingCycleRepository(tx),
			Subscriptions: repository.NewSubscriptionRepository(tx),
		})
	})
}

func mustCreateApplication() (*application, func()) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	store := repository.NewStore(db)
	webhookEventRepo := repository.NewWebhookEventRepository(store.DB())
	chargeRepo := repository.NewChargeRepository(store.DB())
	cycleRepo := repository.NewBillingCycleRepository(store.DB())
	subscriptionRepo := repository.NewSubscriptionRepository(store.DB())

	asaasGateway := provider.NewAsaasGateway(provider.AsaasConfig{
		BaseURL:       cfg.Asaas.BaseURL,
		WebhookToken:  cfg.Asaas.WebhookToken,
		TenantAPIKeys: cfg.Asaas.TenantAPIKeys,
		HTTPTimeout:   cfg.Asaas.HTTPTimeout,
	})
	mercadoPagoGateway := provider.NewMercadoPagoGateway(provider.MercadoPagoConfig{
		BaseURL:                   cfg.MercadoPago.BaseURL,
		AccessToken:               cfg.MercadoPago.AccessToken,
		WebhookSecret:             cfg.MercadoPago.WebhookSecret,
		SignatureToleranceSeconds: cfg.MercadoPago.SignatureToleranceSeconds,
		HTTPTimeout:               cfg.MercadoPago.HTTPTimeout,
	})

	if cfg.Webhooks.AllowUnsigned {
		logrus.Warn("Unsigned webhook deliveries are accepted for gateways without a configured secret")
	}

	collector := metrics.NewCollector(cfg.Metrics.Namespace)
	providerRegistry := provider.NewRegistry(asaasGateway, mercadoPagoGateway)

	webhookService := service.NewWebhookService(
		webhookEventRepo,
		&sqlTransactor{store: store},
		providerRegistry,
		service.NewCycleGenerator(),
		collector,
		cfg.Webhooks,
	)
	billingService := service.NewBillingService(
		chargeRepo,
		cycleRepo,
		subscriptionRepo,
		asaasGateway,
		mercadoPagoGateway,
	)

	cleanup := func() {
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	}

	return &application{
		cfg:            cfg,
		db:             db,
		metrics:        collector,
		webhookService: webhookService,
		billingService: billingService,
	}, cleanup
}
