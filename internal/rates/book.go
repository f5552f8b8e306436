// Package rates holds the exchange-rate table the storefront prices with and
// keeps it fresh from an external rate source.
package rates

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrNoSource is returned by Refresh when the book has no source configured.
var ErrNoSource = errors.New("rates: no source configured")

// Source fetches a full exchange-rate table.
type Source interface {
	Fetch(ctx context.Context) (*Table, error)
	Name() string
}

// Book owns the current rate table. Readers always see a complete snapshot;
// a refresh replaces it wholesale or not at all.
type Book struct {
	logger  *zap.Logger
	source  Source
	current atomic.Pointer[Table]
	group   singleflight.Group
}

// NewBook creates a Book that refreshes from source.
func NewBook(logger *zap.Logger, source Source) *Book {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Book{logger: logger, source: source}
}

// Current returns the latest snapshot, or nil before the first load.
func (b *Book) Current() *Table {
	return b.current.Load()
}

// Seed installs a table without contacting the source (warm start from cache).
// It never replaces a table that is already loaded.
func (b *Book) Seed(t *Table) bool {
	if t == nil {
		return false
	}
	return b.current.CompareAndSwap(nil, t)
}

// Refresh fetches a new table and swaps it in. Concurrent callers share the
// in-flight fetch. On error the previous table stays current.
func (b *Book) Refresh(ctx context.Context) (*Table, error) {
	if b.source == nil {
		return b.Current(), ErrNoSource
	}

	v, err, shared := b.group.Do("refresh", func() (any, error) {
		start := time.Now()
		t, err := b.source.Fetch(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch rates from %s: %w", b.source.Name(), err)
		}
		if t == nil || t.Len() == 0 {
			return nil, fmt.Errorf("fetch rates from %s: empty table", b.source.Name())
		}
		b.current.Store(t)
		b.logger.Info("rates.table_replaced",
			zap.String("source", b.source.Name()),
			zap.Int("currencies", t.Len()),
			zap.Duration("elapsed", time.Since(start)))
		return t, nil
	})
	if err != nil {
		b.logger.Warn("rates.refresh_failed",
			zap.Error(err),
			zap.Bool("kept_previous", b.Current() != nil))
		return b.Current(), err
	}
	if shared {
		b.logger.Debug("rates.refresh_shared")
	}
	return v.(*Table), nil
}
