package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu    sync.RWMutex
	log   *zap.Logger
	sugar *zap.SugaredLogger
)

// Config builds the zap configuration for env ("dev", "uat" or "prod") and level.
// dev logs colored console output; everything else logs JSON with ISO-8601 times.
func Config(env, level string) zap.Config {
	var cfg zap.Config
	if env == "dev" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg
}

// Init initializes the global logger. Every entry carries service and env.
func Init(service, env, level string) {
	l, err := Config(env, level).Build(
		zap.AddCaller(),
		zap.Fields(zap.String("service", service), zap.String("env", env)),
	)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	Set(l)

	S().Infow("logger initialized", "level", level)
}

// Set replaces the global logger (tests install zap.NewNop or an observer).
func Set(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	log = l
	sugar = l.Sugar()
}

// L returns the base structured Zap logger (for performance-sensitive paths).
func L() *zap.Logger {
	mu.RLock()
	l := log
	mu.RUnlock()
	if l == nil {
		Init("unknown", "dev", "info")
		return L()
	}
	return l
}

// S returns the Sugared logger (for convenience).
func S() *zap.SugaredLogger {
	mu.RLock()
	s := sugar
	mu.RUnlock()
	if s == nil {
		Init("unknown", "dev", "info")
		return S()
	}
	return s
}

// Component returns the global logger named after a subsystem, e.g. "rates".
func Component(name string) *zap.Logger {
	return L().Named(name)
}

// Sync flushes any buffered logs (defer this in main()).
func Sync() {
	mu.RLock()
	l := log
	mu.RUnlock()
	if l != nil {
		_ = l.Sync()
	}
}
