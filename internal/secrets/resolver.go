// Package secrets resolves upstream API credentials for the pricing engine.
package secrets

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	pkgsecrets "github.com/Checker-Finance/storefront/pkg/secrets"
)

// Resolver fetches and caches a typed credential bundle per upstream.
//
// Secret naming convention: {env}/storefront/{upstream}
type Resolver[T any] struct {
	logger   *zap.Logger
	env      string
	provider pkgsecrets.Provider
	cache    *pkgsecrets.Cache[T]
	parse    func(map[string]string) (T, error)
}

// NewResolver constructs a Resolver. parse extracts T from the raw secret map
// and should validate required fields.
func NewResolver[T any](
	logger *zap.Logger,
	env string,
	provider pkgsecrets.Provider,
	cache *pkgsecrets.Cache[T],
	parse func(map[string]string) (T, error),
) *Resolver[T] {
	return &Resolver[T]{
		logger:   logger,
		env:      env,
		provider: provider,
		cache:    cache,
		parse:    parse,
	}
}

// SecretName builds the secret name for an upstream.
func (r *Resolver[T]) SecretName(upstream string) string {
	return strings.ToLower(fmt.Sprintf("%s/storefront/%s", r.env, upstream))
}

// Resolve returns the credentials for upstream, using the cache when warm.
func (r *Resolver[T]) Resolve(ctx context.Context, upstream string) (T, error) {
	name := r.SecretName(upstream)
	if v, ok := r.cache.Get(name); ok {
		return v, nil
	}

	raw, err := r.provider.GetSecret(ctx, name)
	if err != nil {
		r.logger.Warn("secrets.fetch_failed",
			zap.String("key", name),
			zap.Error(err))
		var zero T
		return zero, fmt.Errorf("resolve credentials for %q: %w", upstream, err)
	}

	v, err := r.parse(raw)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("parse secret %q: %w", name, err)
	}

	r.cache.Put(name, v)
	r.logger.Info("secrets.resolved", zap.String("upstream", upstream))
	return v, nil
}

// Invalidate forgets cached credentials for upstream so the next Resolve refetches.
func (r *Resolver[T]) Invalidate(upstream string) {
	r.cache.Invalidate(r.SecretName(upstream))
}
