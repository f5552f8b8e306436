package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/storefront/internal/metrics"
	"github.com/Checker-Finance/storefront/internal/push"
	"github.com/Checker-Finance/storefront/internal/rates"
	"github.com/Checker-Finance/storefront/pkg/eventbus"
	"github.com/Checker-Finance/storefront/pkg/model"
)

// Refresher is the part of rates.Book the job drives.
type Refresher interface {
	Refresh(ctx context.Context) (*rates.Table, error)
}

// SnapshotSaver persists the latest table for warm starts.
type SnapshotSaver interface {
	SaveRates(ctx context.Context, snap model.RateSnapshot, ttl time.Duration) error
}

// HistoryRecorder appends a table to the rate history.
type HistoryRecorder interface {
	Record(ctx context.Context, snap model.RateSnapshot) error
}

// Broadcaster pushes frames to live storefront views.
type Broadcaster interface {
	Broadcast(m push.Message)
}

// RatesRefresher periodically replaces the exchange-rate table and fans the
// result out to the cache, history, event bus and push subscribers.
type RatesRefresher struct {
	logger   *zap.Logger
	book     Refresher
	saver    SnapshotSaver
	history  HistoryRecorder
	bus      *eventbus.EventBus
	push     Broadcaster
	interval time.Duration
	cacheTTL time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// RatesRefresherDeps groups the optional sinks; nil members are skipped.
type RatesRefresherDeps struct {
	Saver   SnapshotSaver
	History HistoryRecorder
	Bus     *eventbus.EventBus
	Push    Broadcaster
}

// NewRatesRefresher constructs a background job that runs every interval.
func NewRatesRefresher(logger *zap.Logger, book Refresher, deps RatesRefresherDeps, interval, cacheTTL time.Duration) *RatesRefresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RatesRefresher{
		logger:   logger,
		book:     book,
		saver:    deps.Saver,
		history:  deps.History,
		bus:      deps.Bus,
		push:     deps.Push,
		interval: interval,
		cacheTTL: cacheTTL,
		stopCh:   make(chan struct{}),
	}
}

// Start runs one refresh immediately, then one per tick until stopped.
func (r *RatesRefresher) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("rates_refresher.started", zap.Duration("interval", r.interval))
	r.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			r.RunOnce(ctx)
		case <-r.stopCh:
			r.logger.Info("rates_refresher.stopped (manual stop)")
			return
		case <-ctx.Done():
			r.logger.Info("rates_refresher.stopped (context canceled)")
			return
		}
	}
}

// Stop halts the loop. Safe to call more than once.
func (r *RatesRefresher) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

// RunOnce executes one refresh cycle and reports whether the table was replaced.
func (r *RatesRefresher) RunOnce(ctx context.Context) bool {
	_, err := r.RefreshNow(ctx)
	return err == nil
}

// RefreshNow refreshes the table and fans the result out. On error the
// previously loaded table (possibly nil) is returned with it.
func (r *RatesRefresher) RefreshNow(ctx context.Context) (*rates.Table, error) {
	start := time.Now()

	table, err := r.book.Refresh(ctx)
	if err != nil {
		metrics.IncRatesRefresh("error")
		r.logger.Error("rates_refresher.refresh_failed",
			zap.Error(err),
			zap.Int("kept_currencies", table.Len()))
		return table, err
	}
	metrics.IncRatesRefresh("ok")
	metrics.RatesTableSize.Set(float64(table.Len()))
	metrics.SetLastRefresh("rates", time.Now())

	r.Fanout(ctx, table, time.Since(start))

	r.logger.Info("rates_refresher.success",
		zap.Int("currencies", table.Len()),
		zap.Duration("duration", time.Since(start)))
	return table, nil
}

// Fanout distributes a freshly installed table. Failures of one sink do not
// stop the others.
func (r *RatesRefresher) Fanout(ctx context.Context, table *rates.Table, took time.Duration) {
	snap := table.Snapshot()

	if r.saver != nil {
		if err := r.saver.SaveRates(ctx, snap, r.cacheTTL); err != nil {
			r.logger.Warn("rates_refresher.cache_save_failed", zap.Error(err))
		}
	}
	if r.history != nil {
		if err := r.history.Record(ctx, snap); err != nil {
			r.logger.Warn("rates_refresher.history_failed", zap.Error(err))
		}
	}

	event := model.RatesRefreshed{
		Base:       table.Base(),
		Currencies: table.Currencies(),
		FetchedAt:  table.FetchedAt(),
		DurationMs: took.Milliseconds(),
	}
	if r.bus != nil {
		r.bus.Publish(model.EventRatesRefreshed, event)
	}
	if r.push != nil {
		r.push.Broadcast(push.Message{Type: model.EventRatesRefreshed, Data: snap})
	}
}
