package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Checker-Finance/storefront/pkg/model"
)

// Store defines the contract for caching rate snapshots and other JSON state.
type Store interface {
	SaveRates(ctx context.Context, snap model.RateSnapshot, ttl time.Duration) error
	LoadRates(ctx context.Context, base string) (*model.RateSnapshot, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, dest any) error
	HealthCheck(ctx context.Context) error
	Close() error
}

// HybridStore is Redis-first with an optional Postgres pool shared with the
// history writer.
type HybridStore struct {
	redis  *redis.Client
	PG     *pgxpool.Pool
	logger *zap.Logger
}

type PGPoolConfig struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// RedisConfig addresses the cache instance.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RatesKey is the Redis key holding the latest table for base.
func RatesKey(base string) string {
	return "storefront:rates:" + strings.ToUpper(base)
}

// NewHybrid connects to Redis and, when pgURL is set, Postgres.
func NewHybrid(rc RedisConfig, pgURL string, pgPoolConfig PGPoolConfig, logger *zap.Logger) (*HybridStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	var pgPool *pgxpool.Pool
	if pgURL != "" {
		cfg, err := pgxpool.ParseConfig(pgURL)
		if err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("invalid pg config: %w", err)
		}
		applyPoolConfig(cfg, pgPoolConfig)
		pgPool, err = pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
	}

	return &HybridStore{redis: rdb, PG: pgPool, logger: logger}, nil
}

// NewWithClient wraps an existing Redis client (no Postgres).
func NewWithClient(rdb *redis.Client, logger *zap.Logger) *HybridStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HybridStore{redis: rdb, logger: logger}
}

func applyPoolConfig(cfg *pgxpool.Config, p PGPoolConfig) {
	if p.MaxConns > 0 {
		cfg.MaxConns = p.MaxConns
	}
	if p.MinConns > 0 {
		cfg.MinConns = p.MinConns
	}
	if p.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = p.MaxConnLifetime
	}
	if p.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = p.MaxConnIdleTime
	}
	if p.HealthCheckPeriod > 0 {
		cfg.HealthCheckPeriod = p.HealthCheckPeriod
	}
}

// SaveRates stores snap under RatesKey(snap.Base). ttl 0 keeps it forever.
func (s *HybridStore) SaveRates(ctx context.Context, snap model.RateSnapshot, ttl time.Duration) error {
	if err := s.SetJSON(ctx, RatesKey(snap.Base), snap, ttl); err != nil {
		s.logger.Warn("store.redis.save_rates_failed",
			zap.String("base", snap.Base),
			zap.Error(err))
		return err
	}
	return nil
}

// LoadRates returns the cached table for base, or nil when none is stored.
func (s *HybridStore) LoadRates(ctx context.Context, base string) (*model.RateSnapshot, error) {
	var snap model.RateSnapshot
	err := s.GetJSON(ctx, RatesKey(base), &snap)
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *HybridStore) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, key, data, ttl).Err()
}

func (s *HybridStore) GetJSON(ctx context.Context, key string, dest any) error {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (s *HybridStore) HealthCheck(ctx context.Context) error {
	if s.redis == nil {
		return fmt.Errorf("redis not initialized")
	}
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	if s.PG != nil {
		if err := s.PG.Ping(ctx); err != nil {
			return fmt.Errorf("postgres ping failed: %w", err)
		}
	}
	return nil
}

func (s *HybridStore) Close() error {
	if s.PG != nil {
		s.PG.Close()
	}
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}
