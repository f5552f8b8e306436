// Package ratelimit throttles outbound calls to marketplace and rate APIs.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Config sets the token bucket for one upstream host.
type Config struct {
	RequestsPerSecond float64
	Burst             int
}

// Limiter is a token bucket.
type Limiter struct {
	mu     sync.Mutex
	tokens float64
	last   time.Time
	rate   float64
	burst  float64
}

// New creates a limiter with a full bucket.
func New(cfg Config) *Limiter {
	return &Limiter{
		tokens: float64(cfg.Burst),
		last:   time.Now(),
		rate:   cfg.RequestsPerSecond,
		burst:  float64(cfg.Burst),
	}
}

// Allow takes a token if one is available.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.tokens += now.Sub(l.last).Seconds() * l.rate
	l.last = now
	if l.tokens > l.burst {
		l.tokens = l.burst
	}

	if l.tokens >= 1 {
		l.tokens--
		return true
	}
	return false
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		if l.Allow() {
			return nil
		}
		select {
		case <-time.After(50 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Registry hands out one limiter per key (usually the upstream host).
type Registry struct {
	mu       sync.RWMutex
	limiters map[string]*Limiter
	defaults Config
}

// NewRegistry creates a registry whose limiters use defaults.
func NewRegistry(defaults Config) *Registry {
	return &Registry{
		limiters: make(map[string]*Limiter),
		defaults: defaults,
	}
}

// For returns the limiter for key, creating it on first use.
func (r *Registry) For(key string) *Limiter {
	r.mu.RLock()
	lim, ok := r.limiters[key]
	r.mu.RUnlock()
	if ok {
		return lim
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if lim, ok := r.limiters[key]; ok {
		return lim
	}
	lim = New(r.defaults)
	r.limiters[key] = lim
	return lim
}

// Wait throttles a call scoped to key.
func (r *Registry) Wait(ctx context.Context, key string) error {
	return r.For(key).Wait(ctx)
}
