package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"

	"github.com/Checker-Finance/storefront/internal/api"
	"github.com/Checker-Finance/storefront/internal/catalog"
	"github.com/Checker-Finance/storefront/internal/history"
	"github.com/Checker-Finance/storefront/internal/httpclient"
	"github.com/Checker-Finance/storefront/internal/jobs"
	"github.com/Checker-Finance/storefront/internal/metrics"
	"github.com/Checker-Finance/storefront/internal/publisher"
	"github.com/Checker-Finance/storefront/internal/push"
	"github.com/Checker-Finance/storefront/internal/rabbitmq"
	"github.com/Checker-Finance/storefront/internal/ratelimit"
	"github.com/Checker-Finance/storefront/internal/rates"
	internalsecrets "github.com/Checker-Finance/storefront/internal/secrets"
	"github.com/Checker-Finance/storefront/internal/store"
	"github.com/Checker-Finance/storefront/internal/storefront"
	"github.com/Checker-Finance/storefront/pkg/config"
	"github.com/Checker-Finance/storefront/pkg/currency"
	"github.com/Checker-Finance/storefront/pkg/eventbus"
	"github.com/Checker-Finance/storefront/pkg/logger"
	"github.com/Checker-Finance/storefront/pkg/model"
	"github.com/Checker-Finance/storefront/pkg/pricing"
	"github.com/Checker-Finance/storefront/pkg/secrets"
	"github.com/Checker-Finance/storefront/pkg/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg := config.Load()

	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer logger.Sync()

	if err := run(ctx, cfg); err != nil {
		logger.S().Fatalw("pricing-engine.failed", "error", err)
	}
}

// run starts every component and blocks until ctx is done or the HTTP
// listener fails, then shuts everything down.
func run(ctx context.Context, cfg *config.Config) error {
	logg := logger.S()
	logg.Infof("starting [%s]...", cfg.ServiceName)
	if cfg.DatabaseURL != "" {
		logg.Info("connection to DSN: ", utils.MaskDSN(cfg.DatabaseURL))
	}

	// --- Store (Redis + optional Postgres) ---
	var st store.Store
	var pgHistory history.BatchSender
	hybrid, err := store.NewHybrid(store.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	}, cfg.DatabaseURL, store.PGPoolConfig{
		MaxConns:          int32(cfg.PGMaxConns),
		MinConns:          int32(cfg.PGMinConns),
		MaxConnLifetime:   cfg.PGMaxConnLifetime,
		MaxConnIdleTime:   cfg.PGMaxConnIdleTime,
		HealthCheckPeriod: cfg.PGHealthCheckPeriod,
	}, logger.Component("store"))
	if err != nil {
		logg.Warnw("store disabled; rates will not survive restarts", "error", err)
	} else {
		st = hybrid
		if hybrid.PG != nil {
			pgHistory = hybrid.PG
		}
	}

	// --- Outbound HTTP ---
	limits := ratelimit.NewRegistry(ratelimit.Config{
		RequestsPerSecond: float64(cfg.CatalogRPS),
		Burst:             cfg.CatalogRPS * 2,
	})
	httpClient := &http.Client{Timeout: 15 * time.Second}

	// --- Exchange-rate source ---
	source, stopCleaner := buildRateSource(ctx, cfg, limits, httpClient)
	defer close(stopCleaner)

	book := rates.NewBook(logger.Component("rates"), source)
	if st != nil {
		snap, err := st.LoadRates(ctx, cfg.RatesBaseCurrency)
		switch {
		case err != nil:
			logg.Warnw("rates.warm_start_failed", "error", err)
		case snap != nil && book.Seed(rates.FromSnapshot(*snap)):
			logg.Infow("rates.warm_start", "currencies", len(snap.Rates), "fetched_at", snap.FetchedAt)
		}
	}

	// --- Event bus and outbound messaging ---
	bus := eventbus.New()

	var nc *nats.Conn
	if cfg.NATSURL != "" {
		nc, err = nats.Connect(cfg.NATSURL, nats.Name(cfg.ServiceName))
		if err != nil {
			logg.Warnw("nats disabled", "error", err)
			nc = nil
		}
	}
	var pub *publisher.Publisher
	if nc != nil {
		pub, err = publisher.New(nc, "evt.storefront", "STOREFRONT_EVENTS")
		if err != nil {
			return fmt.Errorf("init publisher: %w", err)
		}
		pub.Attach(bus)
	}

	var analytics *rabbitmq.Publisher
	if cfg.RabbitMQURL != "" {
		analytics, err = rabbitmq.NewPublisher(cfg.RabbitMQURL, bus, logger.Component("rabbitmq"))
		if err != nil {
			logg.Warnw("rabbitmq disabled", "url", utils.MaskDSN(cfg.RabbitMQURL), "error", err)
			analytics = nil
		}
	}

	// --- Push hub for live rate updates ---
	hub := push.NewHub(logger.Component("push"), func() *push.Message {
		t := book.Current()
		if t == nil {
			return nil
		}
		return &push.Message{Type: "rates.snapshot", Data: t.Snapshot()}
	})
	mux := http.NewServeMux()
	mux.Handle("/ws/rates", hub)
	pushSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.PushPort),
		Handler:           mux,
		ReadHeaderTimeout: cfg.HTTPReadTimeout,
	}
	go func() {
		logg.Infof("push hub listening on :%d", cfg.PushPort)
		if err := pushSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Errorw("push.listen_failed", "error", err)
		}
	}()

	// --- Rates refresher ---
	deps := jobs.RatesRefresherDeps{Bus: bus, Push: hub}
	if st != nil {
		deps.Saver = st
	}
	if pgHistory != nil {
		deps.History = history.NewRateHistoryWriter(pgHistory, logger.Component("history"), source.Name())
	}
	refresher := jobs.NewRatesRefresher(logger.Component("rates_refresher"), book, deps,
		cfg.RatesRefreshInterval, cfg.RatesSnapshotTTL)
	go refresher.Start(ctx)

	// --- Storefront service ---
	catalogExec := httpclient.New(logger.Component("catalog"), limits, httpClient,
		cfg.UpstreamRetry, catalog.Upstream, catalog.ErrorHandler(logger.Component("catalog"))).
		WithObserver(metrics.ObserveUpstream)
	catalogClient := catalog.NewClient(logger.Component("catalog"), catalogExec, cfg.CatalogBaseURL)

	svc := storefront.NewService(
		logger.Component("storefront"),
		catalogClient,
		catalogClient,
		book,
		&pricing.Calculator{ServiceFeeRate: cfg.ServiceFeeRate, DepositRate: cfg.DepositRate},
		currency.NewFormatter(currency.ParseLocale(cfg.DisplayLocale)),
		bus,
		storefront.Config{ViewTTL: cfg.ViewTTL},
	)
	go svc.StartSweeper(ctx, cfg.ViewSweepInterval)

	// --- Fiber HTTP Server ---
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
		BodyLimit:    cfg.HTTPBodyLimit,
	})
	handler := api.NewStorefrontHandler(logger.Component("api"), svc, refresher)
	api.RegisterRoutes(app, nc, st, handler)

	listenErr := make(chan error, 1)
	go func() {
		logg.Infof("HTTP API listening on :%d", cfg.Port)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			listenErr <- err
		}
	}()

	logg.Infow("["+cfg.ServiceName+"] running",
		"base_currency", cfg.RatesBaseCurrency,
		"rate_source", source.Name(),
		"refresh_interval", cfg.RatesRefreshInterval,
		"nats", nc != nil,
		"rabbitmq", analytics != nil)

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-listenErr:
		logg.Errorw("fiber.listen_failed", "error", err)
		runErr = fmt.Errorf("http listen: %w", err)
	}
	logg.Infof("shutting down [%s]...", cfg.ServiceName)

	refresher.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logg.Warnw("fiber.shutdown_failed", "error", err)
	}
	hub.Close()
	if err := pushSrv.Shutdown(shutdownCtx); err != nil {
		logg.Warnw("push.shutdown_failed", "error", err)
	}
	bus.Wait()
	if analytics != nil {
		if err := analytics.Close(); err != nil {
			logg.Warnw("rabbitmq.close_failed", "error", err)
		}
	}
	if pub != nil {
		pub.Close()
	}
	if nc != nil {
		if err := nc.Drain(); err != nil {
			logg.Warnw("nats.drain_failed", "error", err)
		}
	}
	if st != nil {
		if err := st.Close(); err != nil {
			logg.Warnw("store.close_failed", "error", err)
		}
	}
	return runErr
}

// buildRateSource picks the exchange-rate source. Credentials come from AWS
// Secrets Manager unless RATES_BASE_URL is set, in which case the RATES_*
// environment serves them. The returned channel stops the secrets cache
// cleaner.
func buildRateSource(ctx context.Context, cfg *config.Config, limits *ratelimit.Registry, httpClient *http.Client) (rates.Source, chan struct{}) {
	logg := logger.S()
	stopCleaner := make(chan struct{})

	if cfg.UseStaticRates {
		logg.Warn("using static exchange rates")
		return staticRates(cfg.RatesBaseCurrency), stopCleaner
	}

	var provider secrets.Provider
	if cfg.RatesBaseURL != "" {
		name := strings.ToLower(fmt.Sprintf("%s/storefront/%s", cfg.Env, rates.Upstream))
		provider = secrets.StaticProvider{name: {
			"base_url": cfg.RatesBaseURL,
			"api_key":  cfg.RatesAPIKey,
		}}
		logg.Infow("rates credentials from environment",
			"base_url", cfg.RatesBaseURL,
			"api_key", utils.MaskSecret(cfg.RatesAPIKey))
	} else {
		awsProvider, err := secrets.NewAWSProvider(ctx, cfg.AWSRegion)
		if err != nil {
			logg.Warnw("AWS Secrets Manager unavailable; falling back to static rates", "error", err)
			return staticRates(cfg.RatesBaseCurrency), stopCleaner
		}
		provider = awsProvider
	}

	credCache := secrets.NewCache[rates.Credentials](cfg.CacheTTL)
	go credCache.StartCleaner(cfg.CleanupFreq, stopCleaner)
	resolver := internalsecrets.NewResolver(logger.Component("secrets"), cfg.Env, provider, credCache, rates.ParseCredentials)

	exec := httpclient.New(logger.Component("rates"), limits, httpClient,
		cfg.UpstreamRetry, rates.Upstream, rates.ErrorHandler(logger.Component("rates"))).
		WithObserver(metrics.ObserveUpstream)
	return rates.NewHTTPSource(logger.Component("rates"), exec, resolver, cfg.RatesBaseCurrency), stopCleaner
}

// staticRates is the offline table used for local runs. Values are quoted
// in VND, so any other configured base falls back to it.
func staticRates(base string) rates.StaticSource {
	if base != model.BaseCurrency {
		logger.S().Warnw("static rates are quoted in VND", "configured_base", base)
	}
	now := time.Now().UTC()
	rate := func(code, v string) model.ExchangeRate {
		return model.ExchangeRate{CurrencyCode: code, RateToBase: decimal.RequireFromString(v), UpdatedAt: now}
	}
	return rates.StaticSource{
		Base: model.BaseCurrency,
		Rates: map[string]model.ExchangeRate{
			"VND": rate("VND", "1"),
			"CNY": rate("CNY", "3500"),
			"USD": rate("USD", "25000"),
		},
	}
}
