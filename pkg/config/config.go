package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds the runtime configuration for the pricing engine.
type Config struct {
	ServiceName string
	Env         string
	LogLevel    string

	Port             int
	PushPort         int
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	HTTPBodyLimit    int

	RedisAddr string
	RedisDB   int
	RedisPass string

	DatabaseURL         string
	PGMaxConns          int
	PGMinConns          int
	PGMaxConnLifetime   time.Duration
	PGMaxConnIdleTime   time.Duration
	PGHealthCheckPeriod time.Duration

	NATSURL     string
	RabbitMQURL string
	AWSRegion   string

	CacheTTL    time.Duration
	CleanupFreq time.Duration

	// Marketplace API.
	CatalogBaseURL string
	CatalogRPS     int
	UpstreamRetry  int

	// Exchange-rate API. Credentials come from AWS Secrets Manager
	// ({env}/storefront/exchange-rates) unless RatesBaseURL is set locally.
	RatesBaseURL         string
	RatesAPIKey          string
	RatesBaseCurrency    string
	RatesRefreshInterval time.Duration
	RatesSnapshotTTL     time.Duration
	UseStaticRates       bool

	ServiceFeeRate decimal.Decimal
	DepositRate    decimal.Decimal
	DisplayLocale  string

	ViewTTL           time.Duration
	ViewSweepInterval time.Duration
}

// Load loads configuration from environment variables and optional .env file.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServiceName:          GetEnv("SERVICE_NAME", "pricing-engine"),
		Env:                  GetEnv("ENV", "dev"),
		LogLevel:             GetEnv("LOG_LEVEL", "info"),
		Port:                 GetEnvInt("PORT", 9040),
		PushPort:             GetEnvInt("PUSH_PORT", 9041),
		HTTPReadTimeout:      GetEnvDuration("HTTP_READ_TIMEOUT", 10*time.Second),
		HTTPWriteTimeout:     GetEnvDuration("HTTP_WRITE_TIMEOUT", 10*time.Second),
		HTTPIdleTimeout:      GetEnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		HTTPBodyLimit:        GetEnvInt("HTTP_BODY_LIMIT", 1*1024*1024),
		RedisAddr:            GetEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:              GetEnvInt("REDIS_DB", 0),
		RedisPass:            GetEnv("REDIS_PASS", ""),
		DatabaseURL:          GetEnv("DATABASE_URL", ""),
		PGMaxConns:           GetEnvInt("PG_MAX_CONNS", 10),
		PGMinConns:           GetEnvInt("PG_MIN_CONNS", 2),
		PGMaxConnLifetime:    GetEnvDuration("PG_MAX_CONN_LIFETIME", 30*time.Minute),
		PGMaxConnIdleTime:    GetEnvDuration("PG_MAX_CONN_IDLE_TIME", 5*time.Minute),
		PGHealthCheckPeriod:  GetEnvDuration("PG_HEALTH_CHECK_PERIOD", 1*time.Minute),
		NATSURL:              GetEnv("NATS_URL", "nats://localhost:4222"),
		RabbitMQURL:          GetEnv("RABBITMQ_URL", ""),
		AWSRegion:            GetEnv("AWS_REGION", "us-east-2"),
		CacheTTL:             GetEnvDuration("CACHE_TTL", 24*time.Hour),
		CleanupFreq:          GetEnvDuration("CACHE_CLEANUP_FREQ", 10*time.Minute),
		CatalogBaseURL:       GetEnv("CATALOG_BASE_URL", "http://localhost:8080"),
		CatalogRPS:           GetEnvInt("CATALOG_RPS", 20),
		UpstreamRetry:        GetEnvInt("UPSTREAM_RETRY_MAX", 2),
		RatesBaseURL:         GetEnv("RATES_BASE_URL", ""),
		RatesAPIKey:          GetEnv("RATES_API_KEY", ""),
		RatesBaseCurrency:    GetEnv("RATES_BASE_CURRENCY", "VND"),
		RatesRefreshInterval: GetEnvDuration("RATES_REFRESH_INTERVAL", time.Hour),
		RatesSnapshotTTL:     GetEnvDuration("RATES_SNAPSHOT_TTL", 24*time.Hour),
		UseStaticRates:       GetEnvBool("RATES_STATIC", false),
		ServiceFeeRate:       GetEnvDecimal("SERVICE_FEE_RATE", decimal.RequireFromString("0.015")),
		DepositRate:          GetEnvDecimal("DEPOSIT_RATE", decimal.RequireFromString("0.70")),
		DisplayLocale:        GetEnv("DISPLAY_LOCALE", "en"),
		ViewTTL:              GetEnvDuration("VIEW_TTL", 30*time.Minute),
		ViewSweepInterval:    GetEnvDuration("VIEW_SWEEP_INTERVAL", time.Minute),
	}
}
