// Package history appends refreshed exchange-rate tables to Postgres.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/Checker-Finance/storefront/pkg/model"
)

// BatchSender is the subset of pgxpool.Pool the writer needs.
type BatchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

const insertRate = `
	INSERT INTO pricing.exchange_rate_history (
		currency_code,
		base_currency,
		rate_to_base,
		updated_at,
		recorded_at,
		source
	)
	VALUES ($1, $2, $3, $4, $5, $6)
`

// RateHistoryWriter records every refreshed table in pricing.exchange_rate_history.
type RateHistoryWriter struct {
	db     BatchSender
	logger *zap.Logger
	source string
	now    func() time.Time
}

// NewRateHistoryWriter constructs a writer. source names the rate source
// (e.g. "http", "static"). A nil db makes Record a no-op.
func NewRateHistoryWriter(db BatchSender, logger *zap.Logger, source string) *RateHistoryWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateHistoryWriter{
		db:     db,
		logger: logger,
		source: source,
		now:    time.Now,
	}
}

// Record inserts one row per currency of snap in a single batch.
func (w *RateHistoryWriter) Record(ctx context.Context, snap model.RateSnapshot) error {
	if w.db == nil || len(snap.Rates) == 0 {
		return nil
	}

	recordedAt := w.now().UTC()
	batch := &pgx.Batch{}
	for code, r := range snap.Rates {
		updatedAt := r.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = snap.FetchedAt
		}
		batch.Queue(insertRate,
			code,
			snap.Base,
			r.RateToBase,
			updatedAt,
			recordedAt,
			w.source,
		)
	}

	results := w.db.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			w.logger.Error("history.rate_insert_failed",
				zap.String("base", snap.Base),
				zap.Int("row", i),
				zap.Error(err))
			return fmt.Errorf("record rate history: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("record rate history: %w", err)
	}

	w.logger.Info("history.rates_recorded",
		zap.String("base", snap.Base),
		zap.Int("rows", batch.Len()),
		zap.Time("fetched_at", snap.FetchedAt))
	return nil
}
