package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"sectionhub-shopify-layer/internal/application"
	"sectionhub-shopify-layer/internal/application/webhook_handlers"
	"sectionhub-shopify-layer/internal/config"
	"sectionhub-shopify-layer/internal/infrastructure/alerts"
	"sectionhub-shopify-layer/internal/infrastructure/cache"
	"sectionhub-shopify-layer/internal/infrastructure/encryption"
	"sectionhub-shopify-layer/internal/infrastructure/repository"
	"sectionhub-shopify-layer/internal/infrastructure/repository/sqlstore"
	"sectionhub-shopify-layer/internal/infrastructure/security"
	shopifyinfra "sectionhub-shopify-layer/internal/infrastructure/shopify"
	"sectionhub-shopify-layer/internal/ports"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// app holds the wired services shared by every command
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	store  ports.Store
	redis  *redis.Client

	state      *security.StateManager
	verifier   *shopifyinfra.WebhookVerifier
	oauth      *application.OAuthService
	billing    *application.BillingService
	reconciler *application.Reconciler
	sections   *application.SectionService
	dispatcher *application.WebhookDispatcher
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if cfg.LogFormat == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

// bootstrap loads configuration and wires every dependency
func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg)

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, store: store}

	encryptionService, err := encryption.NewService(cfg.EncryptionKey)
	if err != nil {
		store.Close(ctx)
		return nil, fmt.Errorf("failed to initialize encryption service: %w", err)
	}
	tokens := shopifyinfra.NewTokenManager(encryptionService, logger)

	client := shopifyinfra.NewClient(shopifyinfra.ClientOptions{
		APIKey:      cfg.ShopifyAPIKey,
		APISecret:   cfg.ShopifyAPISecret,
		Scopes:      cfg.ShopifyScopes,
		RedirectURL: cfg.RedirectURL(),
		APIVersion:  cfg.ShopifyAPIVersion,
		Timeout:     cfg.UpstreamTimeout,
		ReadRetries: 2,
	}, logger)
	exchanger := shopifyinfra.NewTokenExchanger(cfg.ShopifyAPIKey, cfg.ShopifyAPISecret, cfg.UpstreamTimeout, logger)
	gateway := shopifyinfra.NewBillingGateway(client, cfg.ChargeTestMode)
	assets := shopifyinfra.NewThemeAssets(client)
	webhooks := shopifyinfra.NewWebhookRegistrar(client, cfg.WebhookURL())

	var guard ports.ChargeGuard
	if cfg.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.close(ctx)
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		guard = cache.NewRedisChargeGuard(a.redis, cfg.ChargeGuardTTL)
	} else {
		logger.Warn().Msg("REDIS_ADDR not set, charge guard is local to this process")
		guard = cache.NewLocalChargeGuard(cfg.ChargeGuardTTL)
	}

	var alerter ports.GapAlerter = alerts.NewLogAlerter(logger)
	if cfg.GapAlertQueueURL != "" {
		sqsAlerter, err := alerts.NewSQSAlerter(ctx, alerts.SQSOptions{
			QueueURL:  cfg.GapAlertQueueURL,
			Region:    cfg.AWSRegion,
			AccessKey: cfg.AWSAccessKey,
			Secret:    cfg.AWSSecretKey,
		}, logger)
		if err != nil {
			a.close(ctx)
			return nil, err
		}
		alerter = sqsAlerter
	}
	recorder := application.NewGapRecorder(store, alerter, logger)

	a.state = security.NewStateManager(cfg.SecureCookies())
	a.verifier = shopifyinfra.NewWebhookVerifier(cfg.ShopifyAPISecret)
	a.oauth = application.NewOAuthService(store, client, a.state, shopifyinfra.VerifyQuery, exchanger, tokens, webhooks, cfg.ShopifyAPISecret, cfg.ShopifyScopes, logger)
	a.billing = application.NewBillingService(store, store, store, gateway, tokens, guard, recorder, cfg.BillingReturnURL(), logger)
	a.reconciler = application.NewReconciler(store, store, store, gateway, tokens, store, recorder, logger)
	a.sections = application.NewSectionService(store, store, store, assets, tokens, application.NewEntitlementGuard(store), logger)

	a.dispatcher = application.NewWebhookDispatcher(logger)
	a.dispatcher.RegisterHandler(webhook_handlers.NewAppUninstalledHandler(logger, store))
	a.dispatcher.RegisterHandler(webhook_handlers.NewSubscriptionUpdateHandler(logger, a.reconciler))

	return a, nil
}

func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (ports.Store, error) {
	if cfg.StoreDriver == config.DriverPostgres {
		store, err := sqlstore.Open(cfg.DatabaseURL, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	repo := repository.NewMongoRepository(client.Database(cfg.MongoDatabase))
	if err := repo.EnsureIndexes(connectCtx); err != nil {
		_ = repo.Close(ctx)
		return nil, err
	}
	logger.Info().Str("database", cfg.MongoDatabase).Msg("MongoDB store ready")
	return repo, nil
}

// sweep runs one reconciliation pass, under the cross-replica lock when Redis is configured
func (a *app) sweep(ctx context.Context) (*application.SweepReport, error) {
	var report *application.SweepReport
	run := func(ctx context.Context) error {
		var err error
		report, err = a.reconciler.Sweep(ctx, a.cfg.SweepBatchSize)
		return err
	}

	if a.redis == nil {
		return report, run(ctx)
	}
	lock := cache.NewSweepLock(a.redis, a.cfg.SweepLockExpiry, a.logger)
	if _, err := lock.Run(ctx, run); err != nil {
		return nil, err
	}
	return report, nil
}

func (a *app) close(ctx context.Context) {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to close redis client")
		}
	}
	if err := a.store.Close(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to close store")
	}
}
